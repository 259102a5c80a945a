// Package model holds the domain entities shared by the stores, the topic
// plugins and the REST handlers.
package model

import "time"

// Payment is a single customer payment. The id is the hex form of the
// backing store's object id.
type Payment struct {
	ID         string
	CustomerID int64
	Amount     float64
	Date       time.Time
}

// Survey is the questionnaire a Telegram user fills in through the bot.
// A user has at most one survey.
type Survey struct {
	ID              string
	UserID          int64
	FullName        map[string]string
	SuperPowers     []string
	BirthDate       string
	TraitsToImprove []string
	ToBuy           []string
	ToSell          []string
	Service         string
	MaterialGoal    string
	SocialGoal      string
	SpiritualGoal   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TelegramUser is a bot user record. Deletion is soft: IsActive flips to
// false and the record stays.
type TelegramUser struct {
	ID                string
	TelegramID        int64
	Username          string
	FirstName         string
	LastName          string
	LanguageCode      string
	IsActive          bool
	IsBot             bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastInteractionAt *time.Time
}

// Subscription is the durable record of a WebSocket topic subscription.
// The in-memory connection state references it by SubscriptionID.
type Subscription struct {
	SubscriptionID string
	Username       string
	Topic          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SubscriptionRow is one materialized record of a subscription's last
// initial-snapshot fetch, ordered by RowIndex within the subscription.
type SubscriptionRow struct {
	SubscriptionID string
	RecordID       string
	RowIndex       int
	RecordData     []byte
	CreatedAt      time.Time
}
