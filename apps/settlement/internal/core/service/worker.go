package service

import (
	"context"

	"go.uber.org/zap"
	"paywave.com/apps/settlement/internal/domain"
	"paywave.com/pkg/logger"
	"paywave.com/pkg/metrics"
)

const (
	// DefaultBatchSize 单次 run 默认认领上限
	DefaultBatchSize = 10
	// MaxBatchSize 调用方给多大都压到这个硬顶
	MaxBatchSize = 50
)

// JobResult 单个任务在本次 run 里的处理结果
type JobResult struct {
	JobID      string `json:"jobId"`
	Reference  string `json:"reference,omitempty"`
	Claimed    bool   `json:"claimed"`
	OK         bool   `json:"ok"`
	DryRun     bool   `json:"dryRun,omitempty"`
	TransferID string `json:"transferId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RunReport 一次 run 的完整结果，调用方可据此审计本次到底发生了什么
type RunReport struct {
	Count   int         `json:"count"`
	Results []JobResult `json:"results"`
}

// Worker 结算 worker：认领 -> 广播 -> 终态登记 的组合层。
// 没有内部调度器，由外部 cron 同步触发；多个实例并发调用也正确，
// 正确性完全落在 TryClaim 的原子条件更新上。
type Worker struct {
	repo       domain.JobRepo
	dispatcher *Dispatcher
	reconciler *Reconciler
}

func NewWorker(repo domain.JobRepo, dispatcher *Dispatcher, reconciler *Reconciler) *Worker {
	return &Worker{
		repo:       repo,
		dispatcher: dispatcher,
		reconciler: reconciler,
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultBatchSize
	}
	if limit > MaxBatchSize {
		return MaxBatchSize
	}
	return limit
}

// Run 执行一次结算批次。批次整体不是事务，每个任务的结果独立提交。
// 返回错误只有一种情况：终态回写失败 (ReconcileFatal)，其余都落在单个 JobResult 里。
func (w *Worker) Run(ctx context.Context, limit int, dryRun bool) (*RunReport, error) {
	limit = clampLimit(limit)

	mode := "live"
	if dryRun {
		mode = "dry_run"
	}
	metrics.WorkerRunTotal.WithLabelValues(mode).Inc()

	jobs, err := w.repo.SelectEligible(ctx, limit)
	if err != nil {
		return nil, err
	}

	report := &RunReport{Results: make([]JobResult, 0, len(jobs))}
	for i := range jobs {
		job := jobs[i]
		result, err := w.processOne(ctx, &job, dryRun)
		if err != nil {
			// 回写失败是唯一往外抛的错误，剩余批次放弃
			return nil, err
		}
		report.Results = append(report.Results, result)
	}
	report.Count = len(report.Results)

	logger.Info(ctx, "🔁 结算批次完成",
		zap.Int("count", report.Count),
		zap.Bool("dry_run", dryRun))
	return report, nil
}

// processOne 处理单个任务。一旦认领成功并发起广播，本任务必须走到终态登记才返回。
func (w *Worker) processOne(ctx context.Context, job *domain.WithdrawalJob, dryRun bool) (JobResult, error) {
	result := JobResult{JobID: job.ID, Reference: job.Reference}

	claimed, err := w.repo.TryClaim(ctx, job.ID)
	if err != nil {
		// 抢单时的存储错误算该单的错误，不影响批次其它任务
		metrics.ClaimTotal.WithLabelValues("error").Inc()
		result.Error = err.Error()
		return result, nil
	}
	if !claimed {
		// 并发下的正常现象：别的实例抢到了。按状态上报，不算错误。
		metrics.ClaimTotal.WithLabelValues("lost").Inc()
		result.Error = "Already claimed"
		return result, nil
	}
	metrics.ClaimTotal.WithLabelValues("won").Inc()
	result.Claimed = true

	if dryRun {
		if err := w.reconciler.OnDryRun(ctx, job); err != nil {
			return result, err
		}
		result.OK = true
		result.DryRun = true
		return result, nil
	}

	network := job.Routing.Network
	if network == "" {
		network = domain.NetworkUnknown
	}

	transferID, berr := w.dispatcher.Broadcast(ctx, job)
	if berr != nil {
		metrics.BroadcastTotal.WithLabelValues(network, "failed").Inc()
		if err := w.reconciler.OnFailure(ctx, job, berr); err != nil {
			return result, err
		}
		result.Error = berr.Error()
		return result, nil
	}

	metrics.BroadcastTotal.WithLabelValues(network, "ok").Inc()
	if err := w.reconciler.OnSuccess(ctx, job, transferID); err != nil {
		return result, err
	}
	result.OK = true
	result.TransferID = transferID
	return result, nil
}
