package notification

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/shop_inventory/config"
)

// FromConfig builds the sink selected by NOTIFY_DRIVER.
func FromConfig(ctx context.Context, logger *logrus.Logger) (Sink, error) {
	switch config.NotifyDriver() {
	case config.NotifyDriverSMTP:
		return NewEmailSink(config.GetMailSettings())
	case config.NotifyDriverPubSub:
		client, err := config.GetPubSubClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("pubsub sink: %w", err)
		}
		return NewPubSubSink(client, config.AlertTopic()), nil
	default:
		return NewLogSink(logger), nil
	}
}
