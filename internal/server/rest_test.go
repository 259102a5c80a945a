package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/maxcoind/kapelukh-backend/internal/ai"
	"github.com/maxcoind/kapelukh-backend/internal/auth"
	"github.com/maxcoind/kapelukh-backend/internal/ierr"
	"github.com/maxcoind/kapelukh-backend/internal/model"
	"github.com/maxcoind/kapelukh-backend/internal/persistence"
	"github.com/maxcoind/kapelukh-backend/internal/realtime"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakePaymentStore struct {
	payments []model.Payment
}

func (s *fakePaymentStore) Setup(ctx context.Context) error { return nil }

func (s *fakePaymentStore) Create(ctx context.Context, payment model.Payment) (model.Payment, error) {
	payment.ID = fmt.Sprintf("pay_%03d", len(s.payments)+1)
	s.payments = append(s.payments, payment)
	return payment, nil
}

func (s *fakePaymentStore) Get(ctx context.Context, id string) (model.Payment, error) {
	for _, payment := range s.payments {
		if payment.ID == id {
			return payment, nil
		}
	}
	return model.Payment{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("payment not found"))
}

func (s *fakePaymentStore) List(ctx context.Context, filter persistence.PaymentFilter) ([]model.Payment, error) {
	return s.payments, nil
}

func (s *fakePaymentStore) Update(ctx context.Context, id string, update persistence.PaymentUpdate) (model.Payment, error) {
	return s.Get(ctx, id)
}

func (s *fakePaymentStore) Delete(ctx context.Context, id string) (model.Payment, error) {
	return s.Get(ctx, id)
}

type fakeSurveyStore struct{}

func (s *fakeSurveyStore) Setup(ctx context.Context) error { return nil }

func (s *fakeSurveyStore) Create(ctx context.Context, survey model.Survey) (model.Survey, error) {
	survey.ID = "svy_001"
	return survey, nil
}

func (s *fakeSurveyStore) Get(ctx context.Context, id string) (model.Survey, error) {
	return model.Survey{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("survey not found"))
}

func (s *fakeSurveyStore) GetByUserID(ctx context.Context, userID int64) (model.Survey, error) {
	return model.Survey{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("survey not found"))
}

func (s *fakeSurveyStore) List(ctx context.Context, filter persistence.SurveyFilter) ([]model.Survey, error) {
	return nil, nil
}

func (s *fakeSurveyStore) Update(ctx context.Context, id string, update persistence.SurveyUpdate) (model.Survey, error) {
	return model.Survey{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("survey not found"))
}

func (s *fakeSurveyStore) Delete(ctx context.Context, id string) (model.Survey, error) {
	return model.Survey{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("survey not found"))
}

type fakeTelegramUserStore struct {
	mu    sync.Mutex
	users map[int64]model.TelegramUser
}

func newFakeTelegramUserStore() *fakeTelegramUserStore {
	return &fakeTelegramUserStore{users: make(map[int64]model.TelegramUser)}
}

func (s *fakeTelegramUserStore) Setup(ctx context.Context) error { return nil }

func (s *fakeTelegramUserStore) Create(ctx context.Context, user model.TelegramUser) (model.TelegramUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.TelegramID]; ok {
		return model.TelegramUser{}, ierr.New(ierr.ErrorCodeAlreadyExists, errors.New("telegram user already exists"))
	}

	user.ID = fmt.Sprintf("usr_%03d", len(s.users)+1)
	user.IsActive = true
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	s.users[user.TelegramID] = user

	return user, nil
}

func (s *fakeTelegramUserStore) GetByTelegramID(ctx context.Context, telegramID int64) (model.TelegramUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[telegramID]
	if !ok {
		return model.TelegramUser{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("telegram user not found"))
	}
	return user, nil
}

func (s *fakeTelegramUserStore) List(ctx context.Context, filter persistence.TelegramUserFilter) ([]model.TelegramUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.TelegramUser
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *fakeTelegramUserStore) Update(ctx context.Context, telegramID int64, update persistence.TelegramUserUpdate) (model.TelegramUser, error) {
	return s.GetByTelegramID(ctx, telegramID)
}

func (s *fakeTelegramUserStore) SoftDelete(ctx context.Context, telegramID int64) (model.TelegramUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[telegramID]
	if !ok {
		return model.TelegramUser{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("telegram user not found"))
	}
	user.IsActive = false
	s.users[telegramID] = user
	return user, nil
}

func (s *fakeTelegramUserStore) TouchInteraction(ctx context.Context, telegramID int64) (model.TelegramUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[telegramID]
	if !ok {
		return model.TelegramUser{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("telegram user not found"))
	}
	now := time.Now().UTC()
	user.LastInteractionAt = &now
	s.users[telegramID] = user
	return user, nil
}

func newTestRESTServer(t *testing.T, webhookSecret string) (*httptest.Server, *auth.TokenManager, *fakeTelegramUserStore, *memorySubscriptionStore) {
	t.Helper()

	logger, _ := zap.NewDevelopment()
	tokens := auth.NewTokenManager("test-secret", 15*time.Minute, 24*time.Hour)

	hash, err := auth.HashPassword("test-password")
	assert.NoError(t, err)
	credentials := auth.Credentials{Username: "admin", PasswordHash: hash}

	registry := realtime.NewConnectionRegistry(logger)
	store := newMemorySubscriptionStore()
	plugins := realtime.NewPluginRegistry()
	broadcaster := realtime.NewBroadcaster(logger, registry, store)
	notifier := realtime.NewNotifier(logger, plugins, broadcaster)

	users := newFakeTelegramUserStore()

	restServer := NewRESTServer(
		logger,
		tokens,
		credentials,
		webhookSecret,
		&fakePaymentStore{},
		&fakeSurveyStore{},
		users,
		store,
		notifier,
		ai.Disabled{},
	)

	router := mux.NewRouter()
	restServer.Register(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server, tokens, users, store
}

func TestRESTServer_Auth(t *testing.T) {
	server, _, _, _ := newTestRESTServer(t, "")

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/healthz")
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("login with valid credentials", func(t *testing.T) {
		body := `{"username":"admin","password":"test-password"}`
		resp, err := http.Post(server.URL+"/auth/login", "application/json", bytes.NewBufferString(body))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var pair auth.TokenPair
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.Equal(t, "bearer", pair.TokenType)
	})

	t.Run("login with wrong password", func(t *testing.T) {
		body := `{"username":"admin","password":"wrong"}`
		resp, err := http.Post(server.URL+"/auth/login", "application/json", bytes.NewBufferString(body))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("refresh with refresh token", func(t *testing.T) {
		body := `{"username":"admin","password":"test-password"}`
		resp, err := http.Post(server.URL+"/auth/login", "application/json", bytes.NewBufferString(body))
		assert.NoError(t, err)

		var pair auth.TokenPair
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))

		refreshBody := `{"refresh_token":"` + pair.RefreshToken + `"}`
		resp, err = http.Post(server.URL+"/auth/refresh", "application/json", bytes.NewBufferString(refreshBody))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("refresh rejects access token", func(t *testing.T) {
		body := `{"username":"admin","password":"test-password"}`
		resp, err := http.Post(server.URL+"/auth/login", "application/json", bytes.NewBufferString(body))
		assert.NoError(t, err)

		var pair auth.TokenPair
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))

		refreshBody := `{"refresh_token":"` + pair.AccessToken + `"}`
		resp, err = http.Post(server.URL+"/auth/refresh", "application/json", bytes.NewBufferString(refreshBody))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("me requires a token", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/auth/me")
		assert.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestRESTServer_Payments(t *testing.T) {
	server, tokens, _, _ := newTestRESTServer(t, "")

	accessToken, err := tokens.Issue("admin", auth.TokenTypeAccess)
	assert.NoError(t, err)

	authorized := func(method, path, body string) *http.Request {
		var req *http.Request
		if body != "" {
			req, _ = http.NewRequest(method, server.URL+path, bytes.NewBufferString(body))
		} else {
			req, _ = http.NewRequest(method, server.URL+path, nil)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	t.Run("list requires auth", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/payments")
		assert.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("create and get", func(t *testing.T) {
		body := `{"customer_id":42,"amount":199.99}`
		resp, err := http.DefaultClient.Do(authorized("POST", "/payments", body))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var created PaymentResponse
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
		assert.Equal(t, int64(42), created.CustomerID)
		assert.NotEmpty(t, created.ID)

		resp, err = http.DefaultClient.Do(authorized("GET", "/payments/"+created.ID, ""))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("create rejects invalid body", func(t *testing.T) {
		body := `{"customer_id":42}`
		resp, err := http.DefaultClient.Do(authorized("POST", "/payments", body))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("list rejects a malformed limit", func(t *testing.T) {
		resp, err := http.DefaultClient.Do(authorized("GET", "/payments?limit=abc", ""))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("get missing payment", func(t *testing.T) {
		resp, err := http.DefaultClient.Do(authorized("GET", "/payments/pay_999", ""))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("survey validation is unavailable", func(t *testing.T) {
		resp, err := http.DefaultClient.Do(authorized("POST", "/surveys/svy_001/validate", ""))
		assert.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestRESTServer_TelegramWebhook(t *testing.T) {
	server, _, users, _ := newTestRESTServer(t, "hook-secret")

	update := `{"update_id":1,"message":{"from":{"id":777,"is_bot":false,"first_name":"Ada","username":"ada"}}}`

	post := func(secret string) *http.Response {
		req, _ := http.NewRequest("POST", server.URL+"/telegram/webhook", bytes.NewBufferString(update))
		req.Header.Set("Content-Type", "application/json")
		if secret != "" {
			req.Header.Set("X-Telegram-Bot-Api-Secret-Token", secret)
		}
		resp, err := http.DefaultClient.Do(req)
		assert.NoError(t, err)
		return resp
	}

	t.Run("rejects a wrong secret", func(t *testing.T) {
		resp := post("wrong-secret")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("registers a new user", func(t *testing.T) {
		resp := post("hook-secret")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		user, err := users.GetByTelegramID(context.Background(), 777)
		assert.NoError(t, err)
		assert.Equal(t, "ada", user.Username)
		assert.True(t, user.IsActive)
		assert.Nil(t, user.LastInteractionAt)
	})

	t.Run("touches a known user", func(t *testing.T) {
		resp := post("hook-secret")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		user, err := users.GetByTelegramID(context.Background(), 777)
		assert.NoError(t, err)
		assert.NotNil(t, user.LastInteractionAt)
	})
}

func TestRESTServer_Subscriptions(t *testing.T) {
	server, tokens, _, store := newTestRESTServer(t, "")

	sub, err := store.Create(context.Background(), "admin", "payment")
	assert.NoError(t, err)
	assert.NoError(t, store.ReplaceRows(context.Background(), sub.SubscriptionID, []map[string]any{
		{"id": "rec-1"},
		{"id": "rec-2"},
	}))

	otherSub, err := store.Create(context.Background(), "someone-else", "survey")
	assert.NoError(t, err)

	accessToken, err := tokens.Issue("admin", auth.TokenTypeAccess)
	assert.NoError(t, err)

	get := func(path string) *http.Response {
		req, _ := http.NewRequest("GET", server.URL+path, nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		resp, err := http.DefaultClient.Do(req)
		assert.NoError(t, err)
		return resp
	}

	t.Run("lists own subscriptions with record ids", func(t *testing.T) {
		resp := get("/subscriptions")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var out []SubscriptionResponse
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Len(t, out, 1)
		assert.Equal(t, sub.SubscriptionID, out[0].SubscriptionID)
		assert.Equal(t, []string{"rec-1", "rec-2"}, out[0].RecordIDs)
	})

	t.Run("get by id", func(t *testing.T) {
		resp := get("/subscriptions/" + sub.SubscriptionID)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("another user's subscription is forbidden", func(t *testing.T) {
		resp := get("/subscriptions/" + otherSub.SubscriptionID)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		resp := get("/subscriptions/sub_999999")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestRESTServer_WebhookNotConfigured(t *testing.T) {
	server, _, _, _ := newTestRESTServer(t, "")

	resp, err := http.Post(server.URL+"/telegram/webhook", "application/json", bytes.NewBufferString(`{}`))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
