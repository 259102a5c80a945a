package topics

import (
	"context"
	"fmt"
	"time"

	"github.com/maxcoind/kapelukh-backend/internal/model"
	"github.com/maxcoind/kapelukh-backend/internal/persistence"
	"github.com/maxcoind/kapelukh-backend/internal/realtime"
)

type SurveyPlugin struct {
	surveys persistence.SurveyStore
}

func NewSurveyPlugin(surveys persistence.SurveyStore) *SurveyPlugin {
	return &SurveyPlugin{surveys: surveys}
}

func (p *SurveyPlugin) Topic() string { return TopicSurvey }

func (p *SurveyPlugin) Serialize(entity any) (map[string]any, error) {
	survey, ok := entity.(model.Survey)
	if !ok {
		return nil, fmt.Errorf("topic %s cannot serialize %T", TopicSurvey, entity)
	}

	return map[string]any{
		"id":                survey.ID,
		"user_id":           survey.UserID,
		"full_name":         survey.FullName,
		"super_powers":      survey.SuperPowers,
		"birth_date":        survey.BirthDate,
		"traits_to_improve": survey.TraitsToImprove,
		"to_buy":            survey.ToBuy,
		"to_sell":           survey.ToSell,
		"service":           survey.Service,
		"material_goal":     survey.MaterialGoal,
		"social_goal":       survey.SocialGoal,
		"spiritual_goal":    survey.SpiritualGoal,
		"created_at":        survey.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":        survey.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (p *SurveyPlugin) InitialSnapshot(ctx context.Context, _ realtime.SubscriptionParams) (realtime.Snapshot, error) {
	surveys, err := p.surveys.List(ctx, persistence.SurveyFilter{
		SortBy:    "created_at",
		SortOrder: persistence.SortDesc,
		Limit:     snapshotLimit,
	})
	if err != nil {
		return realtime.Snapshot{}, err
	}

	items := make([]map[string]any, len(surveys))
	for i, survey := range surveys {
		items[i], err = p.Serialize(survey)
		if err != nil {
			return realtime.Snapshot{}, err
		}
	}

	return realtime.Snapshot{Items: items, Total: len(items)}, nil
}
