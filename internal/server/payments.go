package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/maxcoind/kapelukh-backend/internal/ierr"
	"github.com/maxcoind/kapelukh-backend/internal/model"
	"github.com/maxcoind/kapelukh-backend/internal/persistence"
	"github.com/maxcoind/kapelukh-backend/internal/realtime"
	"github.com/maxcoind/kapelukh-backend/internal/topics"
)

type PaymentCreateRequest struct {
	CustomerID int64      `json:"customer_id" validate:"required,gt=0"`
	Amount     float64    `json:"amount" validate:"required,gt=0"`
	Date       *time.Time `json:"date,omitempty"`
}

type PaymentUpdateRequest struct {
	CustomerID *int64     `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	Amount     *float64   `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Date       *time.Time `json:"date,omitempty"`
}

type PaymentResponse struct {
	ID         string    `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Amount     float64   `json:"amount"`
	Date       time.Time `json:"date"`
}

func newPaymentResponse(payment model.Payment) PaymentResponse {
	return PaymentResponse{
		ID:         payment.ID,
		CustomerID: payment.CustomerID,
		Amount:     payment.Amount,
		Date:       payment.Date,
	}
}

func (s *RESTServer) createPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentCreateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, ierr.New(ierr.ErrorCodeInvalidArgument, err))
		return
	}

	payment := model.Payment{
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
	}
	if req.Date != nil {
		payment.Date = *req.Date
	}

	payment, err := s.payments.Create(r.Context(), payment)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.notifier.Notify(topics.TopicPayment, realtime.EventCreated, payment)

	writeJSON(w, http.StatusCreated, newPaymentResponse(payment))
}

func (s *RESTServer) getPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := s.payments.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newPaymentResponse(payment))
}

func (s *RESTServer) listPayments(w http.ResponseWriter, r *http.Request) {
	filter := persistence.PaymentFilter{
		SortBy:    r.URL.Query().Get("sort_by"),
		SortOrder: persistence.SortOrder(r.URL.Query().Get("sort_order")),
	}
	var err error
	if filter.Skip, filter.Limit, err = queryPage(r); err != nil {
		s.writeError(w, err)
		return
	}
	if filter.CustomerID, err = queryInt64(r, "customer_id"); err != nil {
		s.writeError(w, err)
		return
	}
	if filter.DateFrom, err = queryTime(r, "date_from"); err != nil {
		s.writeError(w, err)
		return
	}
	if filter.DateTo, err = queryTime(r, "date_to"); err != nil {
		s.writeError(w, err)
		return
	}

	payments, err := s.payments.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]PaymentResponse, len(payments))
	for i, payment := range payments {
		out[i] = newPaymentResponse(payment)
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *RESTServer) updatePayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, ierr.New(ierr.ErrorCodeInvalidArgument, err))
		return
	}

	payment, err := s.payments.Update(r.Context(), mux.Vars(r)["id"], persistence.PaymentUpdate{
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		Date:       req.Date,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.notifier.Notify(topics.TopicPayment, realtime.EventUpdated, payment)

	writeJSON(w, http.StatusOK, newPaymentResponse(payment))
}

func (s *RESTServer) deletePayment(w http.ResponseWriter, r *http.Request) {
	payment, err := s.payments.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.notifier.Notify(topics.TopicPayment, realtime.EventDeleted, payment)

	w.WriteHeader(http.StatusNoContent)
}
