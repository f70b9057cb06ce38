package notification

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/pubsub"

	"github.com/mmdatafocus/shop_inventory/config"
)

// PubSubSink publishes each alert as JSON; a subscriber owns the actual delivery.
type PubSubSink struct {
	topic *pubsub.Topic
}

func NewPubSubSink(client *pubsub.Client, topicName string) *PubSubSink {
	return &PubSubSink{topic: client.Topic(topicName)}
}

func (s *PubSubSink) Name() string {
	return config.NotifyDriverPubSub
}

func (s *PubSubSink) Send(ctx context.Context, alert Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	res := s.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"recipient": alert.Recipient},
	})
	_, err = res.Get(ctx)
	return err
}

func (s *PubSubSink) Stop() {
	s.topic.Stop()
}
