package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"paywave.com/apps/settlement/internal/core/service"
	"paywave.com/apps/settlement/internal/domain"
)

func TestDispatcherMissingAddress(t *testing.T) {
	d := service.NewDispatcher(time.Second)
	adapter := &fakeAdapter{transfer: "never"}
	d.Register("TRON", adapter)

	job := newAuthorizedJob(time.Now())
	job.Routing.Address = ""

	_, err := d.Broadcast(context.Background(), job)
	require.Error(t, err)
	var berr *domain.BroadcastError
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, "missing address", berr.Reason)
	assert.Equal(t, 0, adapter.callCount(), "缺地址绝不能打到适配器")
}

func TestDispatcherResolvesByNetworkAndCurrency(t *testing.T) {
	d := service.NewDispatcher(time.Second)
	specific := &fakeAdapter{transfer: "specific"}
	generic := &fakeAdapter{transfer: "generic"}
	d.Register("TRON:USDT", specific)
	d.Register("TRON", generic)

	job := newAuthorizedJob(time.Now())
	id, err := d.Broadcast(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "specific", id)

	job.Currency = "TRX"
	id, err = d.Broadcast(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "generic", id)
}

// 路由提示缺失时落到 UNKNOWN 兜底适配器
func TestDispatcherUnknownNetworkFallback(t *testing.T) {
	d := service.NewDispatcher(time.Second)
	fallback := &fakeAdapter{transfer: "via-fallback"}
	d.Register(domain.NetworkUnknown, fallback)

	job := newAuthorizedJob(time.Now())
	job.Routing.Network = ""

	id, err := d.Broadcast(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "via-fallback", id)
	assert.Equal(t, 1, fallback.callCount())
}

func TestDispatcherNoAdapter(t *testing.T) {
	d := service.NewDispatcher(time.Second)
	job := newAuthorizedJob(time.Now())

	_, err := d.Broadcast(context.Background(), job)
	var berr *domain.BroadcastError
	require.True(t, errors.As(err, &berr))
	assert.Contains(t, berr.Reason, "no adapter")
}

// 任意适配器错误统一收敛为 BroadcastError
func TestDispatcherWrapsAdapterError(t *testing.T) {
	d := service.NewDispatcher(time.Second)
	d.Register("TRON", &fakeAdapter{err: errors.New("connection refused")})

	job := newAuthorizedJob(time.Now())
	_, err := d.Broadcast(context.Background(), job)
	var berr *domain.BroadcastError
	require.True(t, errors.As(err, &berr))
	assert.Contains(t, berr.Error(), "connection refused")
}

// slowAdapter 阻塞直到 ctx 超时
type slowAdapter struct{}

func (slowAdapter) Submit(ctx context.Context, address string, amount decimal.Decimal, currency, reference string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// 广播超时按失败处理，不存在"结果未知"状态
func TestDispatcherTimeoutIsFailure(t *testing.T) {
	d := service.NewDispatcher(50 * time.Millisecond)
	d.Register("TRON", slowAdapter{})

	job := newAuthorizedJob(time.Now())
	start := time.Now()
	_, err := d.Broadcast(context.Background(), job)
	require.Error(t, err)
	var berr *domain.BroadcastError
	require.True(t, errors.As(err, &berr))
	assert.Less(t, time.Since(start), 2*time.Second)
}
