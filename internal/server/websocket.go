package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/maxcoind/kapelukh-backend/internal/auth"
	"github.com/maxcoind/kapelukh-backend/internal/persistence"
	"github.com/maxcoind/kapelukh-backend/internal/realtime"
	"go.uber.org/zap"
)

const maxMessageSize = 4096

// WebSocketServer owns the realtime endpoint: it upgrades connections,
// reads control messages and keeps the in-memory registry and the durable
// subscription store in step.
type WebSocketServer struct {
	logger   *zap.Logger
	upgrader *websocket.Upgrader

	tokens        *auth.TokenManager
	registry      *realtime.ConnectionRegistry
	plugins       *realtime.PluginRegistry
	subscriptions persistence.SubscriptionStore
}

func NewWebSocketServer(
	logger *zap.Logger,
	upgrader *websocket.Upgrader,
	tokens *auth.TokenManager,
	registry *realtime.ConnectionRegistry,
	plugins *realtime.PluginRegistry,
	subscriptions persistence.SubscriptionStore,
) *WebSocketServer {
	return &WebSocketServer{
		logger:        logger,
		upgrader:      upgrader,
		tokens:        tokens,
		registry:      registry,
		plugins:       plugins,
		subscriptions: subscriptions,
	}
}

func (s *WebSocketServer) Register(router *mux.Router) {
	router.HandleFunc("/ws", s.handleConnection)
}

func (s *WebSocketServer) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn.SetReadLimit(maxMessageSize)

	// An anonymous connection is allowed in; it just cannot subscribe.
	// A token that is present but invalid is rejected outright.
	username := ""
	if token := r.URL.Query().Get("token"); token != "" {
		username, err = s.tokens.Verify(token, auth.TokenTypeAccess)
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"),
				time.Now().Add(time.Second))
			_ = conn.Close()
			return
		}
	}

	connection := realtime.NewConnection(realtime.GenerateConnectionID(), username)
	if err := s.registry.Connect(connection); err != nil {
		s.logger.Error("failed to register connection", zap.Error(err))
		_ = conn.Close()
		return
	}

	logger := s.logger.With(
		zap.String("connectionId", connection.ID),
		zap.String("username", username))
	logger.Info("websocket connection established")

	go s.writePump(conn, connection)

	s.readLoop(r.Context(), conn, connection, logger)

	removed := s.registry.Disconnect(connection.ID)
	for _, subscription := range removed {
		if err := s.subscriptions.Delete(context.Background(), subscription.ID); err != nil {
			logger.Warn("failed to delete subscription on disconnect",
				zap.String("subscriptionId", subscription.ID), zap.Error(err))
		}
	}

	logger.Info("websocket connection closed",
		zap.Int("removedSubscriptions", len(removed)))
}

// writePump drains the connection's send channel onto the socket. The
// registry closes the channel on disconnect, which ends the loop.
func (s *WebSocketServer) writePump(conn *websocket.Conn, connection *realtime.Connection) {
	for message := range connection.Send {
		if err := conn.WriteJSON(message); err != nil {
			break
		}
	}

	_ = conn.Close()
}

func (s *WebSocketServer) readLoop(ctx context.Context, conn *websocket.Conn, connection *realtime.Connection, logger *zap.Logger) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var message realtime.InboundMessage
		if err := json.Unmarshal(raw, &message); err != nil {
			s.registry.Send(connection.ID,
				realtime.NewErrorMessage(realtime.CodeInvalidFormat, "message is not valid JSON"))
			continue
		}

		switch message.Type {
		case "subscribe":
			s.handleSubscribe(ctx, connection, message, logger)
		case "unsubscribe":
			s.handleUnsubscribe(ctx, connection, message, logger)
		case "ping":
			s.registry.Send(connection.ID, realtime.NewPongMessage())
		default:
			s.registry.Send(connection.ID,
				realtime.NewErrorMessage(realtime.CodeInvalidType, "unknown message type: "+message.Type))
		}
	}
}

func (s *WebSocketServer) handleSubscribe(ctx context.Context, connection *realtime.Connection, message realtime.InboundMessage, logger *zap.Logger) {
	if connection.Username == "" {
		s.registry.Send(connection.ID,
			realtime.NewErrorMessage(realtime.CodeAuthRequired, "authentication required to subscribe"))
		return
	}

	// The cap is checked before topic validation. A repeat subscribe to a
	// topic the connection already holds never counts against it.
	if s.registry.SubscriptionCount(connection.ID) >= realtime.MaxSubscriptions {
		if _, ok := s.registry.SubscriptionByTopic(connection.ID, message.Topic); !ok {
			s.registry.Send(connection.ID,
				realtime.NewErrorMessage(realtime.CodeMaxSubscriptions, "subscription limit reached"))
			return
		}
	}

	if !s.plugins.IsValidTopic(message.Topic) {
		topics, _ := json.Marshal(s.plugins.Topics())
		s.registry.Send(connection.ID,
			realtime.NewErrorMessage(realtime.CodeInvalidTopic,
				"unknown topic: "+message.Topic+", valid topics: "+string(topics)))
		return
	}

	plugin, ok := s.plugins.Get(message.Topic)
	if !ok {
		s.registry.Send(connection.ID,
			realtime.NewErrorMessage(realtime.CodePluginNotFound, "no plugin registered for topic: "+message.Topic))
		return
	}

	// A repeat subscribe to the same topic reuses the subscription and
	// refreshes its snapshot instead of stacking a duplicate.
	if existing, ok := s.registry.SubscriptionByTopic(connection.ID, message.Topic); ok {
		s.registry.AddSubscription(connection.ID, &realtime.Subscription{
			ID:     existing.ID,
			Topic:  existing.Topic,
			Params: message.Params,
		})

		snapshot, err := plugin.InitialSnapshot(ctx, message.Params)
		if err != nil {
			logger.Error("initial snapshot failed", zap.String("topic", message.Topic), zap.Error(err))
			s.registry.Send(connection.ID,
				realtime.NewErrorMessage(realtime.CodeInternal, "failed to load initial data"))
			return
		}

		if err := s.subscriptions.ReplaceRows(ctx, existing.ID, snapshot.Items); err != nil {
			logger.Warn("failed to replace subscription rows",
				zap.String("subscriptionId", existing.ID), zap.Error(err))
		}

		s.registry.Send(connection.ID,
			realtime.NewSubscribedMessage(message.Topic, existing.ID, snapshot))
		return
	}

	record, err := s.subscriptions.Create(ctx, connection.Username, message.Topic)
	if err != nil {
		logger.Error("failed to create subscription", zap.String("topic", message.Topic), zap.Error(err))
		s.registry.Send(connection.ID,
			realtime.NewErrorMessage(realtime.CodeInternal, "failed to create subscription"))
		return
	}

	subscription := &realtime.Subscription{
		ID:     record.SubscriptionID,
		Topic:  message.Topic,
		Params: message.Params,
	}
	s.registry.AddSubscription(connection.ID, subscription)

	snapshot, err := plugin.InitialSnapshot(ctx, message.Params)
	if err != nil {
		logger.Error("initial snapshot failed", zap.String("topic", message.Topic), zap.Error(err))

		// Roll the half-made subscription back so the client can retry
		// from a clean slate.
		s.registry.RemoveSubscription(connection.ID, subscription.ID)
		if deleteErr := s.subscriptions.Delete(ctx, subscription.ID); deleteErr != nil {
			logger.Warn("failed to roll back subscription",
				zap.String("subscriptionId", subscription.ID), zap.Error(deleteErr))
		}

		s.registry.Send(connection.ID,
			realtime.NewErrorMessage(realtime.CodeInternal, "failed to load initial data"))
		return
	}

	if err := s.subscriptions.ReplaceRows(ctx, subscription.ID, snapshot.Items); err != nil {
		logger.Warn("failed to replace subscription rows",
			zap.String("subscriptionId", subscription.ID), zap.Error(err))
	}

	logger.Info("subscribed",
		zap.String("topic", message.Topic),
		zap.String("subscriptionId", subscription.ID))

	s.registry.Send(connection.ID,
		realtime.NewSubscribedMessage(message.Topic, subscription.ID, snapshot))
}

// handleUnsubscribe removes the topic subscription from both stores. An
// unsubscribe for a topic the connection never joined is a silent no-op.
func (s *WebSocketServer) handleUnsubscribe(ctx context.Context, connection *realtime.Connection, message realtime.InboundMessage, logger *zap.Logger) {
	subscription, ok := s.registry.SubscriptionByTopic(connection.ID, message.Topic)
	if !ok {
		return
	}

	s.registry.RemoveSubscription(connection.ID, subscription.ID)
	if err := s.subscriptions.Delete(ctx, subscription.ID); err != nil {
		logger.Warn("failed to delete subscription",
			zap.String("subscriptionId", subscription.ID), zap.Error(err))
	}

	logger.Info("unsubscribed",
		zap.String("topic", message.Topic),
		zap.String("subscriptionId", subscription.ID))

	s.registry.Send(connection.ID,
		realtime.NewUnsubscribedMessage(message.Topic, subscription.ID))
}
