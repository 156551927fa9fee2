package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementStatus 粗粒度生命周期：上游扣款后置为 Authorized，广播永久失败置为 Failed
type SettlementStatus uint8

const (
	SettlementAuthorized SettlementStatus = iota // 0: 已授权 (资金已扣，等待广播)
	SettlementFailed                             // 1: 结算失败 (广播永久失败)
)

// Phase 细粒度子状态，只归本 worker 管
type Phase uint8

const (
	PhaseUnclaimed       Phase = iota // 0: 未认领
	PhaseQueued                       // 1: 演练释放回队列
	PhaseRetryRequested               // 2: 上游人工请求重试
	PhaseProcessing                   // 3: 已认领，广播中
	PhaseBroadcasted                  // 4: 终态：广播成功
	PhaseFailedBroadcast              // 5: 终态：广播失败
)

// RoutingHints 网络路由提示：目标地址 + 识别到的结算网络
type RoutingHints struct {
	Address string `gorm:"column:external_address;size:128"`
	Network string `gorm:"column:detected_network;size:32"`
}

// AuditTrail 审计时间戳，终态一次性写入
type AuditTrail struct {
	DryRunAt       *time.Time `gorm:"column:worker_last_dry_run_at"`
	BroadcastedAt  *time.Time `gorm:"column:broadcasted_at"`
	FailedAt       *time.Time `gorm:"column:broadcast_failed_at"`
	BroadcastError string     `gorm:"column:broadcast_error;size:512"`
}

// RefundState 退款幂等标记。Refunded 只允许置位一次，且只在广播失败后。
type RefundState struct {
	Refunded      bool            `gorm:"column:refunded"`
	RefundedAt    *time.Time      `gorm:"column:refunded_at"`
	RefundedTotal decimal.Decimal `gorm:"column:refunded_total;type:decimal(36,18)"`
}

// WithdrawalJob 提现结算任务
// 不变量：ExternalTransferID 非空 <=> Phase = Broadcasted；终态任务永不回收再处理
type WithdrawalJob struct {
	ID                 string          `gorm:"primaryKey;size:36"`
	Reference          string          `gorm:"size:64;index"`
	Amount             decimal.Decimal `gorm:"type:decimal(36,18)"`
	Fee                decimal.Decimal `gorm:"type:decimal(36,18)"`
	Currency           string          `gorm:"size:16"`
	FromUserID         int64
	FromWalletID       int64
	SettlementStatus   SettlementStatus `gorm:"index"`
	Phase              Phase            `gorm:"index"`
	ExternalTransferID *string          `gorm:"size:128"` // 只在广播成功时写入一次
	Routing            RoutingHints     `gorm:"embedded"`
	Audit              AuditTrail       `gorm:"embedded"`
	Refund             RefundState      `gorm:"embedded"`
	CreatedAt          time.Time        `gorm:"index"`
	UpdatedAt          time.Time
}

func (WithdrawalJob) TableName() string { return "withdrawal_jobs" }

// Eligible 选取谓词（与 TryClaim 里的条件一字不差）
func (j *WithdrawalJob) Eligible() bool {
	if j.SettlementStatus != SettlementAuthorized || j.ExternalTransferID != nil {
		return false
	}
	switch j.Phase {
	case PhaseUnclaimed, PhaseQueued, PhaseRetryRequested:
		return true
	}
	return false
}

// StatusSummary 各状态任务计数，只读聚合
type StatusSummary struct {
	Ready       int64 `json:"ready"`
	Processing  int64 `json:"processing"`
	Broadcasted int64 `json:"broadcasted"`
}

// JobRepo 任务仓储接口
type JobRepo interface {
	// SelectEligible 捞取可认领任务：Authorized、无外部流水号、
	// Phase ∈ {Unclaimed, Queued, RetryRequested}，按 created_at 升序，limit 截断
	SelectEligible(ctx context.Context, limit int) ([]WithdrawalJob, error)

	// TryClaim 核心：条件更新抢单 (原子操作)
	// 只有写入时仍满足选取谓词才置为 Processing；影响行数恰为 1 才算抢到
	TryClaim(ctx context.Context, jobID string) (bool, error)

	// ReleaseForDryRun 演练释放：Processing -> Queued，并盖演练时间戳
	ReleaseForDryRun(ctx context.Context, jobID string, at time.Time) error

	// MarkBroadcasted 终态成功：写入外部流水号。这是该任务的最后一次写。
	MarkBroadcasted(ctx context.Context, jobID, transferID string, at time.Time) error

	// MarkFailed 终态失败：SettlementFailed + FailedBroadcast + 错误信息
	MarkFailed(ctx context.Context, jobID, reason string, at time.Time) error

	// RefundToWallet 幂等退款：钱包入账 + refunded 置位，同一事务内要么都成功要么都不发生。
	// 已退款的任务重复调用必须是入账层面的 no-op，返回 false。
	RefundToWallet(ctx context.Context, job *WithdrawalJob, total decimal.Decimal, at time.Time) (bool, error)

	// RequestRetry 上游显式重试：FailedBroadcast 且无外部流水号的任务重置为 RetryRequested
	RequestRetry(ctx context.Context, jobID string) error

	// CountByState 状态计数聚合
	CountByState(ctx context.Context) (StatusSummary, error)
}
