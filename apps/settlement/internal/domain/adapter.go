package domain

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// NetworkUnknown 路由提示缺失时的兜底网络键
const NetworkUnknown = "UNKNOWN"

// NetworkAdapter 结算网络适配器接口，屏蔽各网络的提交细节。
// Submit 是资金真正离开托管的唯一时刻，每个已认领任务至多调用一次
// (由抢单的排他性保证，不由适配器保证)。
type NetworkAdapter interface {
	Submit(ctx context.Context, address string, amount decimal.Decimal, currency, reference string) (transferID string, err error)
}

// BroadcastError 广播失败。各网络自己的错误统一收敛成这个类型。
type BroadcastError struct {
	Reason string
	Err    error
}

func (e *BroadcastError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("broadcast failed: %s: %v", e.Reason, e.Err)
	}
	return "broadcast failed: " + e.Reason
}

func (e *BroadcastError) Unwrap() error { return e.Err }

func NewBroadcastError(reason string, err error) *BroadcastError {
	return &BroadcastError{Reason: reason, Err: err}
}
