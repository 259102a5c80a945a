package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/maxcoind/kapelukh-backend/internal/auth"
	"github.com/maxcoind/kapelukh-backend/internal/ierr"
	"github.com/maxcoind/kapelukh-backend/internal/model"
)

type SubscriptionResponse struct {
	SubscriptionID string    `json:"subscription_id"`
	Topic          string    `json:"topic"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	RecordIDs      []string  `json:"record_ids"`
}

func newSubscriptionResponse(sub model.Subscription, rows []model.SubscriptionRow) SubscriptionResponse {
	recordIDs := make([]string, len(rows))
	for i, row := range rows {
		recordIDs[i] = row.RecordID
	}

	return SubscriptionResponse{
		SubscriptionID: sub.SubscriptionID,
		Topic:          sub.Topic,
		CreatedAt:      sub.CreatedAt,
		UpdatedAt:      sub.UpdatedAt,
		RecordIDs:      recordIDs,
	}
}

// listSubscriptions returns the caller's durable subscriptions with the
// record ids of their materialized snapshots.
func (s *RESTServer) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		s.writeError(w, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("not authenticated")))
		return
	}

	subs, err := s.subscriptions.ListByUser(r.Context(), username)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]SubscriptionResponse, len(subs))
	for i, sub := range subs {
		rows, err := s.subscriptions.Rows(r.Context(), sub.SubscriptionID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		out[i] = newSubscriptionResponse(sub, rows)
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *RESTServer) getSubscription(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		s.writeError(w, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("not authenticated")))
		return
	}

	sub, err := s.subscriptions.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	if sub.Username != username {
		s.writeError(w, ierr.New(ierr.ErrorCodePermissionDenied, errors.New("subscription belongs to another user")))
		return
	}

	rows, err := s.subscriptions.Rows(r.Context(), sub.SubscriptionID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newSubscriptionResponse(sub, rows))
}
