package audit

import (
	"context"
	"fmt"
	"time"

	"campus_wall/internal/domain/wall/model"
	"campus_wall/internal/pkg/worker"
	"campus_wall/pkg/cache"
	"campus_wall/pkg/logger"
	"campus_wall/pkg/metrics"

	"go.uber.org/zap"
)

// Report 一轮对账的结果
type Report struct {
	Scanned  int
	Drifted  int
	Duration time.Duration
}

// Reconciler 计数对账：周期扫描帖子计数，发现偏差交给 worker 池修复
type Reconciler struct {
	store     Store
	pool      *worker.WorkerPool
	metrics   *metrics.MetricsCollector
	log       *zap.Logger
	interval  time.Duration
	batchSize int

	// Cache 非空时修复后删除对应帖子的缓存
	Cache cache.CacheService
}

func NewReconciler(store Store, pool *worker.WorkerPool, m *metrics.MetricsCollector, interval time.Duration, batchSize int) *Reconciler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Reconciler{
		store:     store,
		pool:      pool,
		metrics:   m,
		log:       logger.L().Named("audit"),
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run 定时对账，ctx 取消后退出
func (r *Reconciler) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			report, err := r.ReconcileOnce(ctx)
			if err != nil {
				r.log.Warn("reconcile failed", zap.Error(err))
				continue
			}
			if report.Drifted > 0 {
				r.log.Warn("counter drift repaired",
					zap.Int("scanned", report.Scanned),
					zap.Int("drifted", report.Drifted),
					zap.Duration("cost", report.Duration),
				)
			}
		}
	}
}

// ReconcileOnce 扫描全部帖子，等待本轮修复任务结束后返回
func (r *Reconciler) ReconcileOnce(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report

	afterID := ""
	for {
		rows, err := r.store.ScanBatch(ctx, afterID, r.batchSize)
		if err != nil {
			return report, err
		}
		report.Scanned += len(rows)

		for _, row := range rows {
			if !row.Drifted() {
				continue
			}
			report.Drifted++
			r.recordDrift(row)
			if err := r.pool.SubmitTask(ctx, &repairTask{store: r.store, cache: r.Cache, row: row, log: r.log}); err != nil {
				return report, fmt.Errorf("submit repair for %s: %w", row.PostID, err)
			}
		}

		if len(rows) < r.batchSize {
			break
		}
		afterID = rows[len(rows)-1].PostID
	}

	if err := r.pool.Drain(ctx); err != nil {
		return report, err
	}
	report.Duration = time.Since(start)
	return report, nil
}

func (r *Reconciler) recordDrift(row CounterRow) {
	if row.LikeCount != row.RealLikes {
		r.metrics.RecordCounterDrift(string(model.CounterLikes))
	}
	if row.CommentCount != row.RealComments {
		r.metrics.RecordCounterDrift(string(model.CounterComments))
	}
}

// repairTask 单帖修复任务
type repairTask struct {
	store Store
	cache cache.CacheService
	row   CounterRow
	log   *zap.Logger
}

func (t *repairTask) Key() string {
	return "repair:" + t.row.PostID
}

func (t *repairTask) Run(ctx context.Context) error {
	likes, comments, err := t.store.Repair(ctx, t.row.PostID)
	if err != nil {
		return err
	}
	t.log.Warn("post counters repaired",
		zap.String("postID", t.row.PostID),
		zap.Int64("likeCount", t.row.LikeCount),
		zap.Int64("likes", likes),
		zap.Int64("commentCount", t.row.CommentCount),
		zap.Int64("comments", comments),
	)
	if t.cache != nil {
		if err := t.cache.Delete(ctx, model.PostCacheKey(t.row.PostID)); err != nil {
			t.log.Warn("post cache invalidation failed", zap.String("postID", t.row.PostID), zap.Error(err))
		}
	}
	return nil
}
