package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) NotifyCurrent(ctx context.Context) (*DispatchReport, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &DispatchReport{CheckedAt: time.Now()}, nil
}

func TestLowStockSchedulerRejectsBadSchedule(t *testing.T) {
	_, err := NewLowStockScheduler("every morning", &stubNotifier{}, nil, nil)
	assert.Error(t, err)
}

func TestLowStockSchedulerRunCountsResults(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	logger, hook := test.NewNullLogger()
	ok := &stubNotifier{}
	s, err := NewLowStockScheduler("0 0 8 * * *", ok, logger, metrics)
	require.NoError(t, err)
	s.run()
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "scheduled low stock check", hook.LastEntry().Message)

	failing := &stubNotifier{err: errors.New("sheet down")}
	s.notifier = failing
	s.run()

	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.lowStockChecks.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.lowStockChecks.WithLabelValues("failed")))

	s.Start()
	s.Stop(time.Second)
}
