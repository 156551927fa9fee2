package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"paywave.com/apps/settlement/internal/domain"
	"paywave.com/pkg/logger"
	"paywave.com/pkg/metrics"
	"paywave.com/pkg/xerr"
)

// Reconciler 终态登记。这里的持久化错误是整个 run 里唯一按致命处理的一类：
// 外部网络和内部记录可能已经不一致，必须告警而不是吞掉继续。
type Reconciler struct {
	repo          domain.JobRepo
	refundEnabled bool
	now           func() time.Time
}

func NewReconciler(repo domain.JobRepo, refundEnabled bool) *Reconciler {
	return &Reconciler{
		repo:          repo,
		refundEnabled: refundEnabled,
		now:           time.Now,
	}
}

// OnDryRun 演练：释放认领回队列，盖时间戳。资金不动。
func (rc *Reconciler) OnDryRun(ctx context.Context, job *domain.WithdrawalJob) error {
	if err := rc.repo.ReleaseForDryRun(ctx, job.ID, rc.now()); err != nil {
		return rc.fatal(ctx, job, "dry-run release", err)
	}
	return nil
}

// OnSuccess 成功：写入外部流水号，任务进入终态。这必须是该任务的最后一次写。
func (rc *Reconciler) OnSuccess(ctx context.Context, job *domain.WithdrawalJob, transferID string) error {
	if err := rc.repo.MarkBroadcasted(ctx, job.ID, transferID, rc.now()); err != nil {
		return rc.fatal(ctx, job, "mark broadcasted", err)
	}
	return nil
}

// OnFailure 失败：登记终态，按策略做幂等退款。
// 退款 = 钱包入账 amount+fee + refunded 置位，仓储层保证两半原子。
func (rc *Reconciler) OnFailure(ctx context.Context, job *domain.WithdrawalJob, cause error) error {
	reason := cause.Error()
	if err := rc.repo.MarkFailed(ctx, job.ID, reason, rc.now()); err != nil {
		return rc.fatal(ctx, job, "mark failed", err)
	}
	logger.Warn(ctx, "❌ 提现广播失败",
		zap.String("job_id", job.ID),
		zap.String("reference", job.Reference),
		zap.String("reason", reason))

	if !rc.refundEnabled || job.FromWalletID == 0 || job.Refund.Refunded {
		metrics.RefundTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	total := job.Amount.Add(job.Fee)
	credited, err := rc.repo.RefundToWallet(ctx, job, total, rc.now())
	if err != nil {
		return rc.fatal(ctx, job, "refund", err)
	}
	if credited {
		metrics.RefundTotal.WithLabelValues("credited").Inc()
		logger.Info(ctx, "💰 已退款",
			zap.String("job_id", job.ID),
			zap.Int64("wallet_id", job.FromWalletID),
			zap.String("total", total.String()))
	} else {
		// refunded 守护命中：之前崩溃重跑，入账层面 no-op
		metrics.RefundTotal.WithLabelValues("skipped").Inc()
	}
	return nil
}

func (rc *Reconciler) fatal(ctx context.Context, job *domain.WithdrawalJob, step string, err error) error {
	logger.Error(ctx, "🚨 结算回写失败，状态可能已发散，需要人工对账",
		zap.String("job_id", job.ID),
		zap.String("step", step),
		zap.Error(err))
	return xerr.New(xerr.ReconcileFatal, "reconcile "+step+" for job "+job.ID+": "+err.Error())
}
