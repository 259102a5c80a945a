package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/maxcoind/kapelukh-backend/internal/ai"
	"github.com/maxcoind/kapelukh-backend/internal/auth"
	"github.com/maxcoind/kapelukh-backend/internal/migrate"
	"github.com/maxcoind/kapelukh-backend/internal/persistence/mongodb"
	"github.com/maxcoind/kapelukh-backend/internal/persistence/postgres"
	"github.com/maxcoind/kapelukh-backend/internal/realtime"
	"github.com/maxcoind/kapelukh-backend/internal/server"
	"github.com/maxcoind/kapelukh-backend/internal/topics"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type App struct {
	logger   *zap.Logger
	settings Settings

	mongoClient *mongo.Client
	postgresDB  *postgres.DB

	paymentStore      *mongodb.PaymentStore
	surveyStore       *mongodb.SurveyStore
	telegramUserStore *mongodb.TelegramUserStore

	websocketServer *server.WebSocketServer
	restServer      *server.RESTServer
}

func NewApp(ctx context.Context, logger *zap.Logger, settings Settings) (*App, error) {
	mongoClient, err := mongo.Connect(options.Client().ApplyURI(settings.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := migrate.Up(ctx, settings.PostgresDSN); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	postgresDB, err := postgres.New(ctx, settings.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	paymentStore := mongodb.NewPaymentStore(mongoClient, settings.MongoDatabase)
	surveyStore := mongodb.NewSurveyStore(mongoClient, settings.MongoDatabase)
	telegramUserStore := mongodb.NewTelegramUserStore(mongoClient, settings.MongoDatabase)
	subscriptionStore := postgres.NewSubscriptionStore(postgresDB)

	plugins := realtime.NewPluginRegistry()
	for _, plugin := range []realtime.Plugin{
		topics.NewPaymentPlugin(paymentStore),
		topics.NewSurveyPlugin(surveyStore),
		topics.NewTelegramUserPlugin(telegramUserStore),
	} {
		if err := plugins.Register(plugin); err != nil {
			return nil, err
		}
	}

	registry := realtime.NewConnectionRegistry(logger)
	broadcaster := realtime.NewBroadcaster(logger, registry, subscriptionStore)
	notifier := realtime.NewNotifier(logger, plugins, broadcaster)

	tokens := auth.NewTokenManager(settings.JWTSecret, settings.AccessTokenTTL, settings.RefreshTokenTTL)
	credentials := auth.Credentials{
		Username:     settings.AdminUser,
		PasswordHash: settings.AdminPasswordHash,
	}

	websocketUpgrader := &websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		EnableCompression: true,
	}

	websocketServer := server.NewWebSocketServer(
		logger,
		websocketUpgrader,
		tokens,
		registry,
		plugins,
		subscriptionStore,
	)
	restServer := server.NewRESTServer(
		logger,
		tokens,
		credentials,
		settings.TelegramWebhookSecret,
		paymentStore,
		surveyStore,
		telegramUserStore,
		subscriptionStore,
		notifier,
		ai.Disabled{},
	)

	return &App{
		logger:            logger,
		settings:          settings,
		mongoClient:       mongoClient,
		postgresDB:        postgresDB,
		paymentStore:      paymentStore,
		surveyStore:       surveyStore,
		telegramUserStore: telegramUserStore,
		websocketServer:   websocketServer,
		restServer:        restServer,
	}, nil
}

func (a *App) setup(ctx context.Context) error {
	if err := a.paymentStore.Setup(ctx); err != nil {
		return fmt.Errorf("setup payment store: %w", err)
	}
	if err := a.surveyStore.Setup(ctx); err != nil {
		return fmt.Errorf("setup survey store: %w", err)
	}
	if err := a.telegramUserStore.Setup(ctx); err != nil {
		return fmt.Errorf("setup telegram user store: %w", err)
	}

	a.startHttpServer(ctx)

	return nil
}

func (a *App) startHttpServer(ctx context.Context) {
	notifyCtx, notifyCtxCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer notifyCtxCancel()

	address := fmt.Sprintf("0.0.0.0:%d", a.settings.Port)

	router := mux.NewRouter()
	if a.settings.BasePath != "" {
		router = router.PathPrefix(a.settings.BasePath).Subrouter()
	}

	a.websocketServer.Register(router)
	a.restServer.Register(router)

	httpServer := &http.Server{
		Addr:    address,
		Handler: router,
	}

	a.logger.Info("starting http server",
		zap.String("address", address))

	go func() {
		err := httpServer.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("failed to start http server",
				zap.Error(err))
		}
	}()

	<-notifyCtx.Done()

	a.logger.Info("stopping http server")

	shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCtxCancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Fatal("http server shutdown failed",
			zap.Error(err))
	}

	a.postgresDB.Close()
	if err := a.mongoClient.Disconnect(context.Background()); err != nil {
		a.logger.Warn("mongodb disconnect failed", zap.Error(err))
	}

	a.logger.Info("http server stopped")
}

func main() {
	ctx := context.Background()

	var settings Settings
	_, err := env.UnmarshalFromEnviron(&settings)
	if err != nil {
		fallback, _ := zap.NewDevelopment()
		fallback.Fatal("failed to parse settings from environment", zap.Error(err))
	}

	logger, err := buildZapLogger(settings.LogEncoding, settings.LogLevel)
	if err != nil {
		fallback, _ := zap.NewDevelopment()
		fallback.Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	app, err := NewApp(ctx, logger, settings)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}

	err = app.setup(ctx)
	if err != nil {
		logger.Fatal("failed to setup", zap.Error(err))
	}
}
