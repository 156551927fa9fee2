package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"paywave.com/apps/settlement/internal/domain"
)

// fakeStore 内存实现 domain.JobRepo + 钱包，条件更新语义与 SQL 版一致：
// 判断和写入在同一把锁里完成。
type fakeStore struct {
	mu      sync.Mutex
	jobs    map[string]*domain.WithdrawalJob
	wallets map[int64]decimal.Decimal

	// 故障注入：置位后对应写操作返回错误
	failMarkFailed  bool
	failBroadcasted bool
	failRefund      bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:    make(map[string]*domain.WithdrawalJob),
		wallets: make(map[int64]decimal.Decimal),
	}
}

var errInjected = errors.New("injected store failure")

func (s *fakeStore) put(job *domain.WithdrawalJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *fakeStore) get(id string) domain.WithdrawalJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

func (s *fakeStore) balance(walletID int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallets[walletID]
}

func (s *fakeStore) SelectEligible(ctx context.Context, limit int) ([]domain.WithdrawalJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.WithdrawalJob
	for _, j := range s.jobs {
		if j.Eligible() {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) TryClaim(ctx context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok || !j.Eligible() {
		return false, nil
	}
	j.Phase = domain.PhaseProcessing
	return true, nil
}

func (s *fakeStore) ReleaseForDryRun(ctx context.Context, jobID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok || j.Phase != domain.PhaseProcessing {
		return errors.New("not in processing")
	}
	j.Phase = domain.PhaseQueued
	j.Audit.DryRunAt = &at
	return nil
}

func (s *fakeStore) MarkBroadcasted(ctx context.Context, jobID, transferID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failBroadcasted {
		return errInjected
	}
	j, ok := s.jobs[jobID]
	if !ok || j.Phase != domain.PhaseProcessing || j.ExternalTransferID != nil {
		return errors.New("unexpected state")
	}
	j.Phase = domain.PhaseBroadcasted
	j.ExternalTransferID = &transferID
	j.Audit.BroadcastedAt = &at
	return nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, jobID, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failMarkFailed {
		return errInjected
	}
	j, ok := s.jobs[jobID]
	if !ok || j.Phase != domain.PhaseProcessing {
		return errors.New("unexpected state")
	}
	j.SettlementStatus = domain.SettlementFailed
	j.Phase = domain.PhaseFailedBroadcast
	j.Audit.BroadcastError = reason
	j.Audit.FailedAt = &at
	return nil
}

func (s *fakeStore) RefundToWallet(ctx context.Context, job *domain.WithdrawalJob, total decimal.Decimal, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRefund {
		return false, errInjected
	}
	j, ok := s.jobs[job.ID]
	if !ok {
		return false, errors.New("job not found")
	}
	// refunded 守护：置位 + 入账在同一临界区，等价于 SQL 的单事务
	if j.Phase != domain.PhaseFailedBroadcast || j.Refund.Refunded {
		return false, nil
	}
	j.Refund.Refunded = true
	j.Refund.RefundedAt = &at
	j.Refund.RefundedTotal = total
	s.wallets[j.FromWalletID] = s.wallets[j.FromWalletID].Add(total)
	return true, nil
}

func (s *fakeStore) RequestRetry(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok || j.Phase != domain.PhaseFailedBroadcast || j.ExternalTransferID != nil {
		return errors.New("not retryable")
	}
	j.Phase = domain.PhaseRetryRequested
	return nil
}

func (s *fakeStore) CountByState(ctx context.Context) (domain.StatusSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum domain.StatusSummary
	for _, j := range s.jobs {
		switch {
		case j.Eligible():
			sum.Ready++
		case j.Phase == domain.PhaseProcessing:
			sum.Processing++
		case j.Phase == domain.PhaseBroadcasted:
			sum.Broadcasted++
		}
	}
	return sum, nil
}

var _ domain.JobRepo = (*fakeStore)(nil)

// fakeAdapter 记录 Submit 调用次数，可注入固定返回或错误
type fakeAdapter struct {
	mu       sync.Mutex
	calls    int
	transfer string
	err      error
}

func (a *fakeAdapter) Submit(ctx context.Context, address string, amount decimal.Decimal, currency, reference string) (string, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	return a.transfer, nil
}

func (a *fakeAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// newAuthorizedJob 构造一条待广播任务
func newAuthorizedJob(createdAt time.Time) *domain.WithdrawalJob {
	return &domain.WithdrawalJob{
		ID:               uuid.NewString(),
		Reference:        "WD-" + uuid.NewString()[:8],
		Amount:           decimal.NewFromInt(100),
		Fee:              decimal.NewFromInt(2),
		Currency:         "USDT",
		FromUserID:       7,
		FromWalletID:     42,
		SettlementStatus: domain.SettlementAuthorized,
		Phase:            domain.PhaseUnclaimed,
		Routing: domain.RoutingHints{
			Address: "TXYZa9qM4cBzuZDBPH2nGBg1LQNE5rT8me",
			Network: "TRON",
		},
		CreatedAt: createdAt,
	}
}
