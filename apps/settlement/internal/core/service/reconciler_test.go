package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"paywave.com/apps/settlement/internal/core/service"
	"paywave.com/apps/settlement/internal/domain"
	"paywave.com/pkg/xerr"
)

// 幂等退款：refunded 已置位时重跑失败处理，钱包余额不变
func TestRefundIdempotent(t *testing.T) {
	store := newFakeStore()
	job := newAuthorizedJob(time.Now())
	job.Phase = domain.PhaseProcessing
	store.put(job)

	rc := service.NewReconciler(store, true)
	err := rc.OnFailure(context.Background(), job, domain.NewBroadcastError("rpc timeout", nil))
	require.NoError(t, err)
	assert.Equal(t, "102", store.balance(job.FromWalletID).String())

	// 模拟崩溃重跑：任务已在 FailedBroadcast 且 refunded=true。
	// 入账步骤必须 no-op。
	refreshed := store.get(job.ID)
	require.True(t, refreshed.Refund.Refunded)
	_, err = store.RefundToWallet(context.Background(), &refreshed, refreshed.Amount.Add(refreshed.Fee), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "102", store.balance(job.FromWalletID).String(), "重复退款不得再入账")
}

// 退款前就带着 refunded=true 的任务，失败处理完全跳过入账
func TestRefundSkippedWhenAlreadyFlagged(t *testing.T) {
	store := newFakeStore()
	job := newAuthorizedJob(time.Now())
	job.Phase = domain.PhaseProcessing
	job.Refund.Refunded = true
	store.put(job)

	rc := service.NewReconciler(store, true)
	err := rc.OnFailure(context.Background(), job, domain.NewBroadcastError("node down", nil))
	require.NoError(t, err)

	assert.True(t, store.balance(job.FromWalletID).IsZero())
	got := store.get(job.ID)
	assert.Equal(t, domain.PhaseFailedBroadcast, got.Phase)
}

// 退款策略关闭时只登记终态，不动钱包
func TestRefundDisabled(t *testing.T) {
	store := newFakeStore()
	job := newAuthorizedJob(time.Now())
	job.Phase = domain.PhaseProcessing
	store.put(job)

	rc := service.NewReconciler(store, false)
	err := rc.OnFailure(context.Background(), job, domain.NewBroadcastError("rejected", nil))
	require.NoError(t, err)

	assert.True(t, store.balance(job.FromWalletID).IsZero())
	got := store.get(job.ID)
	assert.False(t, got.Refund.Refunded)
	assert.Contains(t, got.Audit.BroadcastError, "rejected")
}

// 无源钱包的任务不退款
func TestRefundSkippedWithoutWallet(t *testing.T) {
	store := newFakeStore()
	job := newAuthorizedJob(time.Now())
	job.Phase = domain.PhaseProcessing
	job.FromWalletID = 0
	store.put(job)

	rc := service.NewReconciler(store, true)
	err := rc.OnFailure(context.Background(), job, domain.NewBroadcastError("rpc timeout", nil))
	require.NoError(t, err)
	assert.True(t, store.balance(0).IsZero())
}

// 终态回写失败必须升级为 ReconcileFatal
func TestMarkFailedPersistenceErrorEscalates(t *testing.T) {
	store := newFakeStore()
	job := newAuthorizedJob(time.Now())
	job.Phase = domain.PhaseProcessing
	store.put(job)
	store.failMarkFailed = true

	rc := service.NewReconciler(store, true)
	err := rc.OnFailure(context.Background(), job, domain.NewBroadcastError("rpc timeout", nil))
	require.Error(t, err)
	assert.True(t, xerr.IsCode(err, xerr.ReconcileFatal))
}

// 退款落库失败同样致命：外部状态与账本可能已发散
func TestRefundPersistenceErrorEscalates(t *testing.T) {
	store := newFakeStore()
	job := newAuthorizedJob(time.Now())
	job.Phase = domain.PhaseProcessing
	store.put(job)
	store.failRefund = true

	rc := service.NewReconciler(store, true)
	err := rc.OnFailure(context.Background(), job, domain.NewBroadcastError("rpc timeout", nil))
	require.Error(t, err)
	assert.True(t, xerr.IsCode(err, xerr.ReconcileFatal))
}
