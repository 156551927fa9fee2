package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"paywave.com/apps/settlement/internal/domain"
	"paywave.com/pkg/xerr"
)

// 可认领谓词，SelectEligible 和 TryClaim 必须用同一份，否则抢单会出现窗口
const eligibleCond = "settlement_status = ? AND external_transfer_id IS NULL AND phase IN ?"

func eligibleArgs() []interface{} {
	return []interface{}{
		domain.SettlementAuthorized,
		[]domain.Phase{domain.PhaseUnclaimed, domain.PhaseQueued, domain.PhaseRetryRequested},
	}
}

// SelectEligible 捞取可认领任务，老单优先
func (r *Repo) SelectEligible(ctx context.Context, limit int) ([]domain.WithdrawalJob, error) {
	var jobs []domain.WithdrawalJob
	err := r.conn(ctx).WithContext(ctx).
		Where(eligibleCond, eligibleArgs()...).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, xerr.New(xerr.DbError, fmt.Sprintf("select eligible jobs failed: %v", err))
	}
	return jobs, nil
}

// TryClaim 条件更新抢单 (核心)
// SQL: UPDATE withdrawal_jobs SET phase = Processing
//
//	WHERE id = ? AND settlement_status = ? AND external_transfer_id IS NULL AND phase IN (...)
//
// 先前的 SelectEligible 读不可信：写入这一刻由 WHERE 条件原子地重查一遍。
// 两个并发调用者抢同一单：恰好一个看到 RowsAffected = 1，另一个 0。
func (r *Repo) TryClaim(ctx context.Context, jobID string) (bool, error) {
	res := r.conn(ctx).WithContext(ctx).Model(&domain.WithdrawalJob{}).
		Where("id = ? AND "+eligibleCond, append([]interface{}{jobID}, eligibleArgs()...)...).
		Update("phase", domain.PhaseProcessing)

	if res.Error != nil {
		return false, xerr.New(xerr.DbError, fmt.Sprintf("claim job %s failed: %v", jobID, res.Error))
	}
	// 0 行说明别人抢先了（或任务已经不可认领），不是错误
	return res.RowsAffected == 1, nil
}

// ReleaseForDryRun 演练释放：Processing -> Queued
func (r *Repo) ReleaseForDryRun(ctx context.Context, jobID string, at time.Time) error {
	res := r.conn(ctx).WithContext(ctx).Model(&domain.WithdrawalJob{}).
		Where("id = ? AND phase = ?", jobID, domain.PhaseProcessing).
		Updates(map[string]interface{}{
			"phase":                  domain.PhaseQueued,
			"worker_last_dry_run_at": at,
		})
	if res.Error != nil {
		return xerr.New(xerr.DbError, fmt.Sprintf("release job %s failed: %v", jobID, res.Error))
	}
	if res.RowsAffected == 0 {
		return xerr.New(xerr.DbError, fmt.Sprintf("release job %s: not in processing", jobID))
	}
	return nil
}

// MarkBroadcasted 终态成功。此后该任务对本 worker 只读。
func (r *Repo) MarkBroadcasted(ctx context.Context, jobID, transferID string, at time.Time) error {
	res := r.conn(ctx).WithContext(ctx).Model(&domain.WithdrawalJob{}).
		Where("id = ? AND phase = ? AND external_transfer_id IS NULL", jobID, domain.PhaseProcessing).
		Updates(map[string]interface{}{
			"phase":                domain.PhaseBroadcasted,
			"external_transfer_id": transferID,
			"broadcasted_at":       at,
		})
	if res.Error != nil {
		return xerr.New(xerr.DbError, fmt.Sprintf("mark job %s broadcasted failed: %v", jobID, res.Error))
	}
	if res.RowsAffected == 0 {
		return xerr.New(xerr.DbError, fmt.Sprintf("mark job %s broadcasted: unexpected state", jobID))
	}
	return nil
}

// MarkFailed 终态失败。不自动重试，重试是上游显式决定 (RequestRetry)。
func (r *Repo) MarkFailed(ctx context.Context, jobID, reason string, at time.Time) error {
	res := r.conn(ctx).WithContext(ctx).Model(&domain.WithdrawalJob{}).
		Where("id = ? AND phase = ?", jobID, domain.PhaseProcessing).
		Updates(map[string]interface{}{
			"settlement_status":   domain.SettlementFailed,
			"phase":               domain.PhaseFailedBroadcast,
			"broadcast_error":     reason,
			"broadcast_failed_at": at,
		})
	if res.Error != nil {
		return xerr.New(xerr.DbError, fmt.Sprintf("mark job %s failed failed: %v", jobID, res.Error))
	}
	if res.RowsAffected == 0 {
		return xerr.New(xerr.DbError, fmt.Sprintf("mark job %s failed: unexpected state", jobID))
	}
	return nil
}

// RefundToWallet 幂等退款：refunded 置位 + 钱包入账放在同一事务。
// 置位用条件更新守护 (phase = FailedBroadcast AND refunded = false)，
// 0 行命中说明已经退过 (比如入账后标记前崩溃又重跑)，入账步骤必须跳过。
func (r *Repo) RefundToWallet(ctx context.Context, job *domain.WithdrawalJob, total decimal.Decimal, at time.Time) (bool, error) {
	credited := false
	err := r.Transaction(ctx, func(txCtx context.Context) error {
		// 钱包不存在宁可整个退款失败，也不要标成已退实际没入账
		if _, err := r.GetWallet(txCtx, job.FromWalletID); err != nil {
			return err
		}
		res := r.conn(txCtx).WithContext(txCtx).Model(&domain.WithdrawalJob{}).
			Where("id = ? AND phase = ? AND refunded = ?", job.ID, domain.PhaseFailedBroadcast, false).
			Updates(map[string]interface{}{
				"refunded":       true,
				"refunded_at":    at,
				"refunded_total": total,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 已退款，入账步骤 no-op
			return nil
		}
		credited = true
		return r.Credit(txCtx, job.FromWalletID, total)
	})
	if err != nil {
		return false, xerr.New(xerr.DbError, fmt.Sprintf("refund job %s failed: %v", job.ID, err))
	}
	return credited, nil
}

// RequestRetry 上游显式重试入口
func (r *Repo) RequestRetry(ctx context.Context, jobID string) error {
	res := r.conn(ctx).WithContext(ctx).Model(&domain.WithdrawalJob{}).
		Where("id = ? AND phase = ? AND external_transfer_id IS NULL", jobID, domain.PhaseFailedBroadcast).
		Update("phase", domain.PhaseRetryRequested)
	if res.Error != nil {
		return xerr.New(xerr.DbError, fmt.Sprintf("request retry %s failed: %v", jobID, res.Error))
	}
	if res.RowsAffected == 0 {
		return xerr.NewErrCode(xerr.RecordNotFound)
	}
	return nil
}

// CountByState 状态计数，只读
func (r *Repo) CountByState(ctx context.Context) (domain.StatusSummary, error) {
	var s domain.StatusSummary
	db := r.conn(ctx).WithContext(ctx)

	if err := db.Model(&domain.WithdrawalJob{}).
		Where(eligibleCond, eligibleArgs()...).
		Count(&s.Ready).Error; err != nil {
		return s, xerr.New(xerr.DbError, fmt.Sprintf("count ready failed: %v", err))
	}
	if err := db.Model(&domain.WithdrawalJob{}).
		Where("phase = ?", domain.PhaseProcessing).
		Count(&s.Processing).Error; err != nil {
		return s, xerr.New(xerr.DbError, fmt.Sprintf("count processing failed: %v", err))
	}
	if err := db.Model(&domain.WithdrawalJob{}).
		Where("phase = ?", domain.PhaseBroadcasted).
		Count(&s.Broadcasted).Error; err != nil {
		return s, xerr.New(xerr.DbError, fmt.Sprintf("count broadcasted failed: %v", err))
	}
	return s, nil
}
