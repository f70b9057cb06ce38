package notification

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/shop_inventory/config"
)

// LogSink writes alerts to the logger. Used when no transport is configured.
type LogSink struct {
	logger *logrus.Logger
}

func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string {
	return config.NotifyDriverLog
}

func (s *LogSink) Send(ctx context.Context, alert Alert) error {
	names := make([]string, len(alert.Products))
	for i, p := range alert.Products {
		names[i] = p.Name
	}
	s.logger.WithFields(logrus.Fields{
		"module":    "notification",
		"recipient": alert.Recipient,
		"products":  names,
	}).Info("low stock alert")
	return nil
}
