package server

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/maxcoind/kapelukh-backend/internal/ai"
	"github.com/maxcoind/kapelukh-backend/internal/auth"
	"github.com/maxcoind/kapelukh-backend/internal/persistence"
	"github.com/maxcoind/kapelukh-backend/internal/realtime"
	"go.uber.org/zap"
)

// RESTServer exposes the CRUD endpoints for payments, surveys and
// Telegram-bot users, plus auth and the Telegram webhook. Every mutation
// fires a change event through the notifier after the store write
// succeeds.
type RESTServer struct {
	logger   *zap.Logger
	validate *validator.Validate

	tokens        *auth.TokenManager
	credentials   auth.Credentials
	webhookSecret string

	payments      persistence.PaymentStore
	surveys       persistence.SurveyStore
	users         persistence.TelegramUserStore
	subscriptions persistence.SubscriptionStore

	notifier        *realtime.Notifier
	surveyValidator ai.Validator
}

func NewRESTServer(
	logger *zap.Logger,
	tokens *auth.TokenManager,
	credentials auth.Credentials,
	webhookSecret string,
	payments persistence.PaymentStore,
	surveys persistence.SurveyStore,
	users persistence.TelegramUserStore,
	subscriptions persistence.SubscriptionStore,
	notifier *realtime.Notifier,
	surveyValidator ai.Validator,
) *RESTServer {
	return &RESTServer{
		logger:          logger,
		validate:        validator.New(),
		tokens:          tokens,
		credentials:     credentials,
		webhookSecret:   webhookSecret,
		payments:        payments,
		surveys:         surveys,
		users:           users,
		subscriptions:   subscriptions,
		notifier:        notifier,
		surveyValidator: surveyValidator,
	}
}

func (s *RESTServer) Register(router *mux.Router) {
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	router.HandleFunc("/auth/login", s.login).Methods("POST")
	router.HandleFunc("/auth/refresh", s.refresh).Methods("POST")
	router.Handle("/auth/me", s.requireAuth(http.HandlerFunc(s.me))).Methods("GET")

	router.HandleFunc("/telegram/webhook", s.telegramWebhook).Methods("POST")

	payments := router.PathPrefix("/payments").Subrouter()
	payments.Use(s.requireAuth)
	payments.HandleFunc("", s.createPayment).Methods("POST")
	payments.HandleFunc("", s.listPayments).Methods("GET")
	payments.HandleFunc("/{id}", s.getPayment).Methods("GET")
	payments.HandleFunc("/{id}", s.updatePayment).Methods("PUT")
	payments.HandleFunc("/{id}", s.deletePayment).Methods("DELETE")

	surveys := router.PathPrefix("/surveys").Subrouter()
	surveys.Use(s.requireAuth)
	surveys.HandleFunc("", s.createSurvey).Methods("POST")
	surveys.HandleFunc("", s.listSurveys).Methods("GET")
	surveys.HandleFunc("/by-user/{userId}", s.getSurveyByUser).Methods("GET")
	surveys.HandleFunc("/{id}", s.getSurvey).Methods("GET")
	surveys.HandleFunc("/{id}", s.updateSurvey).Methods("PUT")
	surveys.HandleFunc("/{id}", s.deleteSurvey).Methods("DELETE")
	surveys.HandleFunc("/{id}/validate", s.validateSurvey).Methods("POST")

	users := router.PathPrefix("/telegram-users").Subrouter()
	users.Use(s.requireAuth)
	users.HandleFunc("", s.createTelegramUser).Methods("POST")
	users.HandleFunc("", s.listTelegramUsers).Methods("GET")
	users.HandleFunc("/{telegramId}", s.getTelegramUser).Methods("GET")
	users.HandleFunc("/{telegramId}", s.updateTelegramUser).Methods("PUT")
	users.HandleFunc("/{telegramId}", s.deleteTelegramUser).Methods("DELETE")

	subscriptions := router.PathPrefix("/subscriptions").Subrouter()
	subscriptions.Use(s.requireAuth)
	subscriptions.HandleFunc("", s.listSubscriptions).Methods("GET")
	subscriptions.HandleFunc("/{id}", s.getSubscription).Methods("GET")
}
