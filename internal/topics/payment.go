// Package topics implements the realtime plugin for each subscribable
// entity kind.
package topics

import (
	"context"
	"fmt"
	"time"

	"github.com/maxcoind/kapelukh-backend/internal/model"
	"github.com/maxcoind/kapelukh-backend/internal/persistence"
	"github.com/maxcoind/kapelukh-backend/internal/realtime"
)

const (
	TopicPayment      = "payment"
	TopicSurvey       = "survey"
	TopicTelegramUser = "telegram_user"
)

const snapshotLimit = 100

type PaymentPlugin struct {
	payments persistence.PaymentStore
}

func NewPaymentPlugin(payments persistence.PaymentStore) *PaymentPlugin {
	return &PaymentPlugin{payments: payments}
}

func (p *PaymentPlugin) Topic() string { return TopicPayment }

func (p *PaymentPlugin) Serialize(entity any) (map[string]any, error) {
	payment, ok := entity.(model.Payment)
	if !ok {
		return nil, fmt.Errorf("topic %s cannot serialize %T", TopicPayment, entity)
	}

	return map[string]any{
		"id":          payment.ID,
		"customer_id": payment.CustomerID,
		"amount":      payment.Amount,
		"date":        payment.Date.UTC().Format(time.RFC3339),
	}, nil
}

// InitialSnapshot returns the newest payments first.
func (p *PaymentPlugin) InitialSnapshot(ctx context.Context, _ realtime.SubscriptionParams) (realtime.Snapshot, error) {
	payments, err := p.payments.List(ctx, persistence.PaymentFilter{
		SortBy:    "date",
		SortOrder: persistence.SortDesc,
		Limit:     snapshotLimit,
	})
	if err != nil {
		return realtime.Snapshot{}, err
	}

	items := make([]map[string]any, len(payments))
	for i, payment := range payments {
		items[i], err = p.Serialize(payment)
		if err != nil {
			return realtime.Snapshot{}, err
		}
	}

	return realtime.Snapshot{Items: items, Total: len(items)}, nil
}
