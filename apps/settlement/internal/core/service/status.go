package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"paywave.com/apps/settlement/internal/domain"
)

const statusCacheKey = "settlement:status_summary"

// StatusReporter 只读状态聚合。运维侧可能高频轮询，
// 加一层短 TTL redis 缓存 + singleflight 防击穿。
type StatusReporter struct {
	repo  domain.JobRepo
	cache *redis.Client // 可为 nil，直接打库
	sf    singleflight.Group
	ttl   time.Duration
}

func NewStatusReporter(repo domain.JobRepo, cache *redis.Client) *StatusReporter {
	return &StatusReporter{
		repo:  repo,
		cache: cache,
		ttl:   3 * time.Second,
	}
}

// Summarize 返回 {ready, processing, broadcasted} 计数。无副作用，任意并发安全。
func (s *StatusReporter) Summarize(ctx context.Context) (domain.StatusSummary, error) {
	if s.cache != nil {
		if b, err := s.cache.Get(ctx, statusCacheKey).Bytes(); err == nil {
			var cached domain.StatusSummary
			if err := json.Unmarshal(b, &cached); err == nil {
				return cached, nil
			}
			// 缓存脏了就删掉，避免持续命中错误
			_ = s.cache.Del(ctx, statusCacheKey).Err()
		}
	}

	v, err, _ := s.sf.Do(statusCacheKey, func() (interface{}, error) {
		summary, err := s.repo.CountByState(ctx)
		if err != nil {
			return domain.StatusSummary{}, err
		}
		if s.cache != nil {
			if b, err := json.Marshal(summary); err == nil {
				_ = s.cache.Set(ctx, statusCacheKey, b, s.ttl).Err()
			}
		}
		return summary, nil
	})
	if err != nil {
		return domain.StatusSummary{}, err
	}
	return v.(domain.StatusSummary), nil
}
