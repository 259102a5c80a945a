package realtime

import (
	"slices"
	"time"
)

// EventType is the kind of change carried by an event message.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Protocol error codes sent to clients in error messages.
const (
	CodeAuthRequired     = "AUTH_REQUIRED"
	CodeMaxSubscriptions = "MAX_SUBSCRIPTIONS"
	CodeInvalidTopic     = "INVALID_TOPIC"
	CodePluginNotFound   = "PLUGIN_NOT_FOUND"
	CodeInvalidType      = "INVALID_TYPE"
	CodeInvalidFormat    = "INVALID_FORMAT"
	CodeInternal         = "INTERNAL"
)

// SubscriptionParams narrows which event kinds a subscription wants.
// An empty list means all of them.
type SubscriptionParams struct {
	EventTypes []EventType `json:"event_types,omitempty"`
}

func (p SubscriptionParams) Wants(eventType EventType) bool {
	if len(p.EventTypes) == 0 {
		return true
	}
	return slices.Contains(p.EventTypes, eventType)
}

// InboundMessage is the envelope for the three client control messages:
// subscribe, unsubscribe and ping.
type InboundMessage struct {
	Type   string             `json:"type"`
	Topic  string             `json:"topic,omitempty"`
	Params SubscriptionParams `json:"params,omitempty"`
}

// Snapshot is the initial data set a plugin produces for a new
// subscription.
type Snapshot struct {
	Items []map[string]any `json:"items"`
	Total int              `json:"total"`
}

type SubscribedMessage struct {
	Type           string    `json:"type"`
	Topic          string    `json:"topic"`
	SubscriptionID string    `json:"subscription_id"`
	Timestamp      time.Time `json:"timestamp"`
	Data           Snapshot  `json:"data"`
}

func NewSubscribedMessage(topic, subscriptionID string, data Snapshot) SubscribedMessage {
	return SubscribedMessage{
		Type:           "subscribed",
		Topic:          topic,
		SubscriptionID: subscriptionID,
		Timestamp:      time.Now().UTC(),
		Data:           data,
	}
}

type UnsubscribedMessage struct {
	Type           string    `json:"type"`
	Topic          string    `json:"topic"`
	SubscriptionID string    `json:"subscription_id"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewUnsubscribedMessage(topic, subscriptionID string) UnsubscribedMessage {
	return UnsubscribedMessage{
		Type:           "unsubscribed",
		Topic:          topic,
		SubscriptionID: subscriptionID,
		Timestamp:      time.Now().UTC(),
	}
}

type EventMessage struct {
	Type           string         `json:"type"`
	Topic          string         `json:"topic"`
	EventType      EventType      `json:"event_type"`
	SubscriptionID string         `json:"subscription_id"`
	Data           map[string]any `json:"data"`
	Timestamp      time.Time      `json:"timestamp"`
}

type PongMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPongMessage() PongMessage {
	return PongMessage{
		Type:      "pong",
		Timestamp: time.Now().UTC(),
	}
}

type ErrorMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
}

func NewErrorMessage(code, message string) ErrorMessage {
	return ErrorMessage{
		Type:      "error",
		Timestamp: time.Now().UTC(),
		Message:   message,
		Code:      code,
	}
}
