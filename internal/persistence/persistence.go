// Package persistence declares the store interfaces the rest of the
// backend is written against. Mongo implementations cover the domain
// entities, Postgres covers the durable subscription records.
package persistence

import (
	"context"
	"time"

	"github.com/maxcoind/kapelukh-backend/internal/model"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// PaymentFilter narrows and orders a payment listing.
type PaymentFilter struct {
	CustomerID *int64
	DateFrom   *time.Time
	DateTo     *time.Time
	SortBy     string
	SortOrder  SortOrder
	Skip       int64
	Limit      int64
}

// PaymentUpdate applies only its non-nil fields.
type PaymentUpdate struct {
	CustomerID *int64
	Amount     *float64
	Date       *time.Time
}

type PaymentStore interface {
	Setup(ctx context.Context) error
	Create(ctx context.Context, payment model.Payment) (model.Payment, error)
	Get(ctx context.Context, id string) (model.Payment, error)
	List(ctx context.Context, filter PaymentFilter) ([]model.Payment, error)
	Update(ctx context.Context, id string, update PaymentUpdate) (model.Payment, error)
	Delete(ctx context.Context, id string) (model.Payment, error)
}

type SurveyFilter struct {
	UserID    *int64
	SortBy    string
	SortOrder SortOrder
	Skip      int64
	Limit     int64
}

type SurveyUpdate struct {
	FullName        map[string]string
	SuperPowers     []string
	BirthDate       *string
	TraitsToImprove []string
	ToBuy           []string
	ToSell          []string
	Service         *string
	MaterialGoal    *string
	SocialGoal      *string
	SpiritualGoal   *string
}

type SurveyStore interface {
	Setup(ctx context.Context) error
	Create(ctx context.Context, survey model.Survey) (model.Survey, error)
	Get(ctx context.Context, id string) (model.Survey, error)
	GetByUserID(ctx context.Context, userID int64) (model.Survey, error)
	List(ctx context.Context, filter SurveyFilter) ([]model.Survey, error)
	Update(ctx context.Context, id string, update SurveyUpdate) (model.Survey, error)
	Delete(ctx context.Context, id string) (model.Survey, error)
}

type TelegramUserFilter struct {
	TelegramID  *int64
	Username    *string
	IsActive    *bool
	IsBot       *bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time
	SortBy      string
	SortOrder   SortOrder
	Skip        int64
	Limit       int64
}

type TelegramUserUpdate struct {
	Username     *string
	FirstName    *string
	LastName     *string
	LanguageCode *string
	IsActive     *bool
}

type TelegramUserStore interface {
	Setup(ctx context.Context) error
	Create(ctx context.Context, user model.TelegramUser) (model.TelegramUser, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (model.TelegramUser, error)
	List(ctx context.Context, filter TelegramUserFilter) ([]model.TelegramUser, error)
	Update(ctx context.Context, telegramID int64, update TelegramUserUpdate) (model.TelegramUser, error)
	SoftDelete(ctx context.Context, telegramID int64) (model.TelegramUser, error)
	TouchInteraction(ctx context.Context, telegramID int64) (model.TelegramUser, error)
}

// SubscriptionStore is the durable record of WebSocket subscriptions and
// their materialized snapshot rows. Every mutation is one short
// transaction: a failure never leaves a subscription half-created.
type SubscriptionStore interface {
	Create(ctx context.Context, username, topic string) (model.Subscription, error)
	GetByID(ctx context.Context, subscriptionID string) (model.Subscription, error)
	ListByTopic(ctx context.Context, topic string) ([]model.Subscription, error)
	ListByUser(ctx context.Context, username string) ([]model.Subscription, error)
	Delete(ctx context.Context, subscriptionID string) error
	ReplaceRows(ctx context.Context, subscriptionID string, records []map[string]any) error
	Rows(ctx context.Context, subscriptionID string) ([]model.SubscriptionRow, error)
	DeleteRowByRecordID(ctx context.Context, subscriptionID, recordID string) (bool, error)
}
