package realtime

import (
	"context"
	"testing"

	"github.com/maxcoind/kapelukh-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type staticLister struct {
	subscriptions []model.Subscription
	prunedRows    []string
}

func (l *staticLister) ListByTopic(ctx context.Context, topic string) ([]model.Subscription, error) {
	out := make([]model.Subscription, 0, len(l.subscriptions))
	for _, subscription := range l.subscriptions {
		if subscription.Topic == topic {
			out = append(out, subscription)
		}
	}
	return out, nil
}

func (l *staticLister) DeleteRowByRecordID(ctx context.Context, subscriptionID, recordID string) (bool, error) {
	l.prunedRows = append(l.prunedRows, subscriptionID+"/"+recordID)
	return true, nil
}

func TestBroadcaster_Publish(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	registry := NewConnectionRegistry(logger)

	subscriber := NewConnection("client_sub", "admin")
	assert.NoError(t, registry.Connect(subscriber))
	registry.AddSubscription("client_sub", &Subscription{ID: "sub_payment", Topic: "payment"})

	bystander := NewConnection("client_other", "admin")
	assert.NoError(t, registry.Connect(bystander))
	registry.AddSubscription("client_other", &Subscription{ID: "sub_survey", Topic: "survey"})

	lister := &staticLister{subscriptions: []model.Subscription{
		{SubscriptionID: "sub_payment", Username: "admin", Topic: "payment"},
		{SubscriptionID: "sub_survey", Username: "admin", Topic: "survey"},
		{SubscriptionID: "sub_stale", Username: "admin", Topic: "payment"},
	}}

	broadcaster := NewBroadcaster(logger, registry, lister)

	payload := map[string]any{"id": "record-1", "amount": 42.0}
	broadcaster.Publish(context.Background(), "payment", EventCreated, "record-1", payload)

	t.Run("subscriber receives the event", func(t *testing.T) {
		message := <-subscriber.Send

		event, ok := message.(EventMessage)
		assert.True(t, ok)
		assert.Equal(t, "event", event.Type)
		assert.Equal(t, "payment", event.Topic)
		assert.Equal(t, EventCreated, event.EventType)
		assert.Equal(t, "sub_payment", event.SubscriptionID)
		assert.Equal(t, payload, event.Data)
	})

	t.Run("other topics receive nothing", func(t *testing.T) {
		select {
		case message := <-bystander.Send:
			t.Fatalf("unexpected message: %v", message)
		default:
		}
	})
}

func TestBroadcaster_PublishFiltersEventTypes(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	registry := NewConnectionRegistry(logger)

	connection := NewConnection("client_sub", "admin")
	assert.NoError(t, registry.Connect(connection))
	registry.AddSubscription("client_sub", &Subscription{
		ID:     "sub_payment",
		Topic:  "payment",
		Params: SubscriptionParams{EventTypes: []EventType{EventDeleted}},
	})

	lister := &staticLister{subscriptions: []model.Subscription{
		{SubscriptionID: "sub_payment", Username: "admin", Topic: "payment"},
	}}

	broadcaster := NewBroadcaster(logger, registry, lister)

	broadcaster.Publish(context.Background(), "payment", EventCreated, "record-1", map[string]any{"id": "record-1"})

	select {
	case message := <-connection.Send:
		t.Fatalf("unexpected message: %v", message)
	default:
	}

	broadcaster.Publish(context.Background(), "payment", EventDeleted, "record-1", map[string]any{"id": "record-1"})

	message := <-connection.Send
	event, ok := message.(EventMessage)
	assert.True(t, ok)
	assert.Equal(t, EventDeleted, event.EventType)

	assert.Equal(t, []string{"sub_payment/record-1"}, lister.prunedRows)
}

func TestNotifier_Notify(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	registry := NewConnectionRegistry(logger)

	connection := NewConnection("client_sub", "admin")
	assert.NoError(t, registry.Connect(connection))
	registry.AddSubscription("client_sub", &Subscription{ID: "sub_payment", Topic: "payment"})

	lister := &staticLister{subscriptions: []model.Subscription{
		{SubscriptionID: "sub_payment", Username: "admin", Topic: "payment"},
	}}

	plugins := NewPluginRegistry()
	assert.NoError(t, plugins.Register(staticPlugin{topic: "payment"}))

	broadcaster := NewBroadcaster(logger, registry, lister)
	notifier := NewNotifier(logger, plugins, broadcaster)

	notifier.Notify("payment", EventUpdated, struct{}{})

	message := <-connection.Send
	event, ok := message.(EventMessage)
	assert.True(t, ok)
	assert.Equal(t, EventUpdated, event.EventType)
	assert.Equal(t, "record-1", event.Data["id"])
}
