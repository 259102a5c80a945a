package topics

import (
	"context"
	"fmt"
	"time"

	"github.com/maxcoind/kapelukh-backend/internal/model"
	"github.com/maxcoind/kapelukh-backend/internal/persistence"
	"github.com/maxcoind/kapelukh-backend/internal/realtime"
)

type TelegramUserPlugin struct {
	users persistence.TelegramUserStore
}

func NewTelegramUserPlugin(users persistence.TelegramUserStore) *TelegramUserPlugin {
	return &TelegramUserPlugin{users: users}
}

func (p *TelegramUserPlugin) Topic() string { return TopicTelegramUser }

func (p *TelegramUserPlugin) Serialize(entity any) (map[string]any, error) {
	user, ok := entity.(model.TelegramUser)
	if !ok {
		return nil, fmt.Errorf("topic %s cannot serialize %T", TopicTelegramUser, entity)
	}

	var lastInteraction any
	if user.LastInteractionAt != nil {
		lastInteraction = user.LastInteractionAt.UTC().Format(time.RFC3339)
	}

	return map[string]any{
		"id":                  user.ID,
		"telegram_id":         user.TelegramID,
		"username":            user.Username,
		"first_name":          user.FirstName,
		"last_name":           user.LastName,
		"language_code":       user.LanguageCode,
		"is_active":           user.IsActive,
		"is_bot":              user.IsBot,
		"created_at":          user.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":          user.UpdatedAt.UTC().Format(time.RFC3339),
		"last_interaction_at": lastInteraction,
	}, nil
}

func (p *TelegramUserPlugin) InitialSnapshot(ctx context.Context, _ realtime.SubscriptionParams) (realtime.Snapshot, error) {
	users, err := p.users.List(ctx, persistence.TelegramUserFilter{
		SortBy:    "created_at",
		SortOrder: persistence.SortDesc,
		Limit:     snapshotLimit,
	})
	if err != nil {
		return realtime.Snapshot{}, err
	}

	items := make([]map[string]any, len(users))
	for i, user := range users {
		items[i], err = p.Serialize(user)
		if err != nil {
			return realtime.Snapshot{}, err
		}
	}

	return realtime.Snapshot{Items: items, Total: len(items)}, nil
}
