package app

import (
	"context"
	"edu_progress_backend/internal/service"
	"edu_progress_backend/pkg/logger"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// newReconcileScheduler 定时按完成记录重算所有选课进度，修正课时发布/删除后缓存的 progress
func newReconcileScheduler(schedule string, completion *service.CompletionService) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		start := time.Now()
		n, err := completion.ReconcileAll(ctx)
		if err != nil {
			logger.Log.Error("Progress reconcile failed", zap.Error(err))
			return
		}
		logger.Log.Info("Progress reconcile finished",
			zap.Int("enrollments", n),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
