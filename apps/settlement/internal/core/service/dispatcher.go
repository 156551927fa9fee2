package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"paywave.com/apps/settlement/internal/domain"
	"paywave.com/pkg/logger"
)

// Dispatcher 广播调度器：纯路由 + 调用，本身不持有状态。
// 适配器按 "NETWORK:CURRENCY" 注册，找不到时退化到 "NETWORK"，最后兜底 "UNKNOWN"。
type Dispatcher struct {
	adapters map[string]domain.NetworkAdapter
	timeout  time.Duration
}

func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		adapters: make(map[string]domain.NetworkAdapter),
		timeout:  timeout,
	}
}

// Register 注册适配器。key 大小写不敏感。
func (d *Dispatcher) Register(key string, adapter domain.NetworkAdapter) {
	d.adapters[strings.ToUpper(key)] = adapter
}

func (d *Dispatcher) resolve(network, currency string) domain.NetworkAdapter {
	if a, ok := d.adapters[network+":"+currency]; ok {
		return a
	}
	if a, ok := d.adapters[network]; ok {
		return a
	}
	return d.adapters[domain.NetworkUnknown]
}

// Broadcast 提交到外部结算网络，返回网络原生流水号。
// 这里是资金离开托管的唯一调用点；至多一次由上游抢单排他性保证。
func (d *Dispatcher) Broadcast(ctx context.Context, job *domain.WithdrawalJob) (string, error) {
	address := job.Routing.Address
	if address == "" {
		// 缺地址是该单的致命错误，绝不能静默跳过
		return "", domain.NewBroadcastError("missing address", nil)
	}

	network := strings.ToUpper(job.Routing.Network)
	if network == "" {
		network = domain.NetworkUnknown
	}
	currency := strings.ToUpper(job.Currency)

	adapter := d.resolve(network, currency)
	if adapter == nil {
		return "", domain.NewBroadcastError("no adapter for network "+network, nil)
	}

	// 广播必须有界。超时按广播失败处理，不引入"结果未知"状态。
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	transferID, err := adapter.Submit(callCtx, address, job.Amount, currency, job.Reference)
	if err != nil {
		if berr, ok := err.(*domain.BroadcastError); ok {
			return "", berr
		}
		return "", domain.NewBroadcastError("network error", err)
	}

	logger.Info(ctx, "✅ 广播成功",
		zap.String("job_id", job.ID),
		zap.String("network", network),
		zap.String("transfer_id", transferID))
	return transferID, nil
}
