package realtime

import (
	"context"
	"time"

	"github.com/maxcoind/kapelukh-backend/internal/model"
	"go.uber.org/zap"
)

const notifyTimeout = 10 * time.Second

// SubscriptionLister is the slice of the durable subscription store the
// broadcaster needs: the fan-out lookup plus snapshot row pruning when a
// record is deleted.
type SubscriptionLister interface {
	ListByTopic(ctx context.Context, topic string) ([]model.Subscription, error)
	DeleteRowByRecordID(ctx context.Context, subscriptionID, recordID string) (bool, error)
}

// Broadcaster fans a change event out to every live subscriber of its
// topic. Delivery is best-effort: a dead or slow recipient is skipped and
// never aborts the loop.
type Broadcaster struct {
	logger        *zap.Logger
	registry      *ConnectionRegistry
	subscriptions SubscriptionLister
}

func NewBroadcaster(
	logger *zap.Logger,
	registry *ConnectionRegistry,
	subscriptions SubscriptionLister,
) *Broadcaster {
	return &Broadcaster{
		logger:        logger,
		registry:      registry,
		subscriptions: subscriptions,
	}
}

// Publish builds the event and delivers it immediately. Subscriptions that
// resolve to no live connection, filter out the event kind, or fail to
// accept the message are skipped silently.
func (b *Broadcaster) Publish(ctx context.Context, topic string, eventType EventType, recordID string, payload map[string]any) {
	timestamp := time.Now().UTC()

	subscriptions, err := b.subscriptions.ListByTopic(ctx, topic)
	if err != nil {
		b.logger.Error("failed to list subscriptions for topic",
			zap.String("topic", topic),
			zap.Error(err))
		return
	}

	for _, subscription := range subscriptions {
		// A deleted record no longer belongs in any materialized
		// snapshot of this topic.
		if eventType == EventDeleted && recordID != "" {
			if _, err := b.subscriptions.DeleteRowByRecordID(ctx, subscription.SubscriptionID, recordID); err != nil {
				b.logger.Warn("failed to prune snapshot row",
					zap.String("subscriptionId", subscription.SubscriptionID),
					zap.String("recordId", recordID),
					zap.Error(err))
			}
		}

		connectionID, params, ok := b.registry.ResolveSubscription(subscription.SubscriptionID)
		if !ok {
			continue
		}

		if !params.Wants(eventType) {
			continue
		}

		message := EventMessage{
			Type:           "event",
			Topic:          topic,
			EventType:      eventType,
			SubscriptionID: subscription.SubscriptionID,
			Data:           payload,
			Timestamp:      timestamp,
		}

		if !b.registry.Send(connectionID, message) {
			b.logger.Debug("skipped delivery to unavailable subscriber",
				zap.String("topic", topic),
				zap.String("subscriptionId", subscription.SubscriptionID),
				zap.String("recordId", recordID))
		}
	}
}

// Notifier is the collaborator REST handlers call after a commit. It
// resolves the entity's plugin, serializes it and publishes the event on a
// detached goroutine so fan-out can never delay or fail the request that
// triggered it.
type Notifier struct {
	logger      *zap.Logger
	plugins     *PluginRegistry
	broadcaster *Broadcaster
}

func NewNotifier(
	logger *zap.Logger,
	plugins *PluginRegistry,
	broadcaster *Broadcaster,
) *Notifier {
	return &Notifier{
		logger:      logger,
		plugins:     plugins,
		broadcaster: broadcaster,
	}
}

func (n *Notifier) Notify(topic string, eventType EventType, entity any) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				n.logger.Error("event notification panicked",
					zap.String("topic", topic),
					zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		plugin, ok := n.plugins.Get(topic)
		if !ok {
			n.logger.Error("no plugin registered for topic",
				zap.String("topic", topic))
			return
		}

		payload, err := plugin.Serialize(entity)
		if err != nil {
			n.logger.Error("failed to serialize entity for event",
				zap.String("topic", topic),
				zap.Error(err))
			return
		}

		recordID, _ := payload["id"].(string)

		n.broadcaster.Publish(ctx, topic, eventType, recordID, payload)
	}()
}
