package realtime

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// MaxSubscriptions is the per-connection subscription cap.
const MaxSubscriptions = 10

// ConnectionRegistry tracks live connections and their subscription sets.
// It is entirely in-memory and process-local; all maps are guarded by one
// RWMutex because connections run on their own goroutines.
type ConnectionRegistry struct {
	logger *zap.Logger
	mu     sync.RWMutex

	connections      map[string]*Connection
	connectionBySubs map[string]string
}

func NewConnectionRegistry(logger *zap.Logger) *ConnectionRegistry {
	return &ConnectionRegistry{
		logger:           logger,
		connections:      make(map[string]*Connection),
		connectionBySubs: make(map[string]string),
	}
}

// Connect registers a live connection. The id is generated, so a collision
// is a caller bug.
func (r *ConnectionRegistry) Connect(connection *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[connection.ID]; ok {
		return errors.New("connection id already registered")
	}

	r.connections[connection.ID] = connection

	return nil
}

// Disconnect removes the connection and its in-memory subscriptions and
// closes its send channel. It returns the removed subscriptions so the
// caller can cascade durable cleanup. Idempotent.
func (r *ConnectionRegistry) Disconnect(connectionID string) []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	connection, ok := r.connections[connectionID]
	if !ok {
		return nil
	}

	removed := make([]*Subscription, 0, len(connection.subscriptions))
	for id, subscription := range connection.subscriptions {
		removed = append(removed, subscription)
		delete(r.connectionBySubs, id)
	}

	delete(r.connections, connectionID)
	close(connection.Send)

	return removed
}

// Send attempts to deliver a message over the connection's transport.
// It never blocks and never propagates a failure: a missing connection or
// a full send buffer yields false.
func (r *ConnectionRegistry) Send(connectionID string, message any) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connection, ok := r.connections[connectionID]
	if !ok {
		return false
	}

	select {
	case connection.Send <- message:
		return true
	default:
		r.logger.Warn("connection send buffer is full, dropping message",
			zap.String("connectionId", connectionID))
		return false
	}
}

// ResolveSubscription maps a durable subscription id to the connection
// currently holding it. Fan-out addresses connections this way.
func (r *ConnectionRegistry) ResolveSubscription(subscriptionID string) (connectionID string, params SubscriptionParams, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connectionID, ok = r.connectionBySubs[subscriptionID]
	if !ok {
		return "", SubscriptionParams{}, false
	}

	connection, ok := r.connections[connectionID]
	if !ok {
		return "", SubscriptionParams{}, false
	}

	subscription, ok := connection.subscriptions[subscriptionID]
	if !ok {
		return "", SubscriptionParams{}, false
	}

	return connectionID, subscription.Params, true
}

// AddSubscription attaches a subscription to a connection. No-op if the
// connection is gone.
func (r *ConnectionRegistry) AddSubscription(connectionID string, subscription *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connection, ok := r.connections[connectionID]
	if !ok {
		return
	}

	connection.subscriptions[subscription.ID] = subscription
	r.connectionBySubs[subscription.ID] = connectionID
}

// RemoveSubscription detaches a subscription from a connection. No-op if
// either is absent.
func (r *ConnectionRegistry) RemoveSubscription(connectionID, subscriptionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connection, ok := r.connections[connectionID]
	if !ok {
		return
	}

	delete(connection.subscriptions, subscriptionID)
	delete(r.connectionBySubs, subscriptionID)
}

func (r *ConnectionRegistry) GetSubscription(connectionID, subscriptionID string) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connection, ok := r.connections[connectionID]
	if !ok {
		return nil, false
	}

	subscription, ok := connection.subscriptions[subscriptionID]

	return subscription, ok
}

// SubscriptionByTopic returns the connection's first subscription matching
// the topic. A connection holds at most one subscription per topic.
func (r *ConnectionRegistry) SubscriptionByTopic(connectionID, topic string) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connection, ok := r.connections[connectionID]
	if !ok {
		return nil, false
	}

	for _, subscription := range connection.subscriptions {
		if subscription.Topic == topic {
			return subscription, true
		}
	}

	return nil, false
}

func (r *ConnectionRegistry) SubscriptionCount(connectionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connection, ok := r.connections[connectionID]
	if !ok {
		return 0
	}

	return len(connection.subscriptions)
}

func (r *ConnectionRegistry) IsConnected(connectionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.connections[connectionID]

	return ok
}
