package workflow

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/shop_inventory/config"
)

// Notifier is what the scheduler runs on each tick.
type Notifier interface {
	NotifyCurrent(ctx context.Context) (*DispatchReport, error)
}

// LowStockScheduler runs a low stock check on a cron spec with seconds ("0 0 8 * * *").
type LowStockScheduler struct {
	cron     *cron.Cron
	notifier Notifier
	logger   *logrus.Logger
	metrics  *Metrics
}

func NewLowStockScheduler(spec string, notifier Notifier, logger *logrus.Logger, metrics *Metrics) (*LowStockScheduler, error) {
	s := &LowStockScheduler{
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LowStockScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	report, err := s.notifier.NotifyCurrent(ctx)
	if err != nil {
		s.metrics.lowStockCheck("failed")
		config.LogError(s.logger, "workflow", "LowStockScheduler.run", "notify current", nil, err)
		return
	}
	s.metrics.lowStockCheck("ok")
	s.logger.WithFields(logrus.Fields{
		"module":     "workflow",
		"critical":   len(report.Critical),
		"deliveries": len(report.Deliveries),
	}).Info("scheduled low stock check")
}

func (s *LowStockScheduler) Start() {
	s.cron.Start()
}

// Stop waits for a running check to finish, up to the given timeout.
func (s *LowStockScheduler) Stop(timeout time.Duration) {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(timeout):
	}
}
