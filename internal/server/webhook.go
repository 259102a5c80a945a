package server

import (
	"errors"
	"net/http"

	"github.com/maxcoind/kapelukh-backend/internal/ierr"
	"github.com/maxcoind/kapelukh-backend/internal/model"
	"github.com/maxcoind/kapelukh-backend/internal/realtime"
	"github.com/maxcoind/kapelukh-backend/internal/topics"
	"go.uber.org/zap"
)

const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// telegramUpdate is the subset of the Bot API update we care about.
// Everything else in the payload is ignored.
type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		From *struct {
			ID           int64  `json:"id"`
			IsBot        bool   `json:"is_bot"`
			FirstName    string `json:"first_name"`
			LastName     string `json:"last_name"`
			Username     string `json:"username"`
			LanguageCode string `json:"language_code"`
		} `json:"from"`
	} `json:"message"`
}

func (s *RESTServer) telegramWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookSecret == "" {
		s.writeError(w, ierr.New(ierr.ErrorCodeUnavailable, errors.New("telegram webhook is not configured")))
		return
	}
	if r.Header.Get(webhookSecretHeader) != s.webhookSecret {
		s.writeError(w, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("invalid webhook secret")))
		return
	}

	var update telegramUpdate
	if err := decodeBody(r, &update); err != nil {
		s.writeError(w, err)
		return
	}

	// Updates without a sender (channel posts, edits we do not track)
	// are acknowledged without touching the store.
	if update.Message == nil || update.Message.From == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	from := update.Message.From

	user, err := s.users.GetByTelegramID(r.Context(), from.ID)
	switch {
	case err == nil:
		user, err = s.users.TouchInteraction(r.Context(), from.ID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.notifier.Notify(topics.TopicTelegramUser, realtime.EventUpdated, user)

	case errorCode(err) == ierr.ErrorCodeNotFound:
		user, err = s.users.Create(r.Context(), model.TelegramUser{
			TelegramID:   from.ID,
			Username:     from.Username,
			FirstName:    from.FirstName,
			LastName:     from.LastName,
			LanguageCode: from.LanguageCode,
			IsBot:        from.IsBot,
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.logger.Info("registered telegram user from webhook",
			zap.Int64("telegram_id", user.TelegramID),
			zap.String("username", user.Username))
		s.notifier.Notify(topics.TopicTelegramUser, realtime.EventCreated, user)

	default:
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
