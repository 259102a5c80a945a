package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/maxcoind/kapelukh-backend/internal/ierr"
	"github.com/maxcoind/kapelukh-backend/internal/model"
	"github.com/maxcoind/kapelukh-backend/internal/persistence"
	"github.com/maxcoind/kapelukh-backend/internal/realtime"
	"github.com/maxcoind/kapelukh-backend/internal/topics"
)

type TelegramUserCreateRequest struct {
	TelegramID   int64  `json:"telegram_id" validate:"required,gt=0"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	LanguageCode string `json:"language_code"`
	IsBot        bool   `json:"is_bot"`
}

type TelegramUserUpdateRequest struct {
	Username     *string `json:"username,omitempty"`
	FirstName    *string `json:"first_name,omitempty"`
	LastName     *string `json:"last_name,omitempty"`
	LanguageCode *string `json:"language_code,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

type TelegramUserResponse struct {
	ID                string     `json:"id"`
	TelegramID        int64      `json:"telegram_id"`
	Username          string     `json:"username"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	LanguageCode      string     `json:"language_code"`
	IsActive          bool       `json:"is_active"`
	IsBot             bool       `json:"is_bot"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	LastInteractionAt *time.Time `json:"last_interaction_at,omitempty"`
}

func newTelegramUserResponse(user model.TelegramUser) TelegramUserResponse {
	return TelegramUserResponse{
		ID:                user.ID,
		TelegramID:        user.TelegramID,
		Username:          user.Username,
		FirstName:         user.FirstName,
		LastName:          user.LastName,
		LanguageCode:      user.LanguageCode,
		IsActive:          user.IsActive,
		IsBot:             user.IsBot,
		CreatedAt:         user.CreatedAt,
		UpdatedAt:         user.UpdatedAt,
		LastInteractionAt: user.LastInteractionAt,
	}
}

func pathTelegramID(r *http.Request) (int64, error) {
	telegramID, err := strconv.ParseInt(mux.Vars(r)["telegramId"], 10, 64)
	if err != nil {
		return 0, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid telegram id"))
	}
	return telegramID, nil
}

func (s *RESTServer) createTelegramUser(w http.ResponseWriter, r *http.Request) {
	var req TelegramUserCreateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, ierr.New(ierr.ErrorCodeInvalidArgument, err))
		return
	}

	user, err := s.users.Create(r.Context(), model.TelegramUser{
		TelegramID:   req.TelegramID,
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		LanguageCode: req.LanguageCode,
		IsBot:        req.IsBot,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.notifier.Notify(topics.TopicTelegramUser, realtime.EventCreated, user)

	writeJSON(w, http.StatusCreated, newTelegramUserResponse(user))
}

func (s *RESTServer) getTelegramUser(w http.ResponseWriter, r *http.Request) {
	telegramID, err := pathTelegramID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	user, err := s.users.GetByTelegramID(r.Context(), telegramID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newTelegramUserResponse(user))
}

func (s *RESTServer) listTelegramUsers(w http.ResponseWriter, r *http.Request) {
	filter := persistence.TelegramUserFilter{
		SortBy:    r.URL.Query().Get("sort_by"),
		SortOrder: persistence.SortOrder(r.URL.Query().Get("sort_order")),
	}
	if username := r.URL.Query().Get("username"); username != "" {
		filter.Username = &username
	}

	var err error
	if filter.Skip, filter.Limit, err = queryPage(r); err != nil {
		s.writeError(w, err)
		return
	}
	if filter.TelegramID, err = queryInt64(r, "telegram_id"); err != nil {
		s.writeError(w, err)
		return
	}
	if filter.IsActive, err = queryBool(r, "is_active"); err != nil {
		s.writeError(w, err)
		return
	}
	if filter.IsBot, err = queryBool(r, "is_bot"); err != nil {
		s.writeError(w, err)
		return
	}
	if filter.CreatedFrom, err = queryTime(r, "created_from"); err != nil {
		s.writeError(w, err)
		return
	}
	if filter.CreatedTo, err = queryTime(r, "created_to"); err != nil {
		s.writeError(w, err)
		return
	}
	if filter.UpdatedFrom, err = queryTime(r, "updated_from"); err != nil {
		s.writeError(w, err)
		return
	}
	if filter.UpdatedTo, err = queryTime(r, "updated_to"); err != nil {
		s.writeError(w, err)
		return
	}

	users, err := s.users.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]TelegramUserResponse, len(users))
	for i, user := range users {
		out[i] = newTelegramUserResponse(user)
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *RESTServer) updateTelegramUser(w http.ResponseWriter, r *http.Request) {
	telegramID, err := pathTelegramID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req TelegramUserUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	user, err := s.users.Update(r.Context(), telegramID, persistence.TelegramUserUpdate{
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		LanguageCode: req.LanguageCode,
		IsActive:     req.IsActive,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.notifier.Notify(topics.TopicTelegramUser, realtime.EventUpdated, user)

	writeJSON(w, http.StatusOK, newTelegramUserResponse(user))
}

func (s *RESTServer) deleteTelegramUser(w http.ResponseWriter, r *http.Request) {
	telegramID, err := pathTelegramID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	user, err := s.users.SoftDelete(r.Context(), telegramID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.notifier.Notify(topics.TopicTelegramUser, realtime.EventDeleted, user)

	w.WriteHeader(http.StatusNoContent)
}
