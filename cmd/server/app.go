package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/auth"
	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/channel"
	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/config"
	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/dispatch"
	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/history"
	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/httpapi"
	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/kv"
	"github.com/ixNieStudio/edgeone-webhook-pusher-sub001/internal/logging"
)

const (
	configFilePath         = "etc/app.yaml"
	gracefulShutdownPeriod = 5 * time.Second
	startupTimeout         = 10 * time.Second
)

// Application holds the fully wired service.
type Application struct {
	cfg    config.Config
	log    zerolog.Logger
	server *http.Server
}

// NewApplication builds every component in dependency order: store,
// adapter table, services, engine, HTTP surface.
func NewApplication() *Application {
	cfg := config.MustLoad(configFilePath)
	log := logging.New(cfg.App.LogLevel)

	store := buildStore(cfg, log)

	httpClient := &http.Client{Timeout: cfg.Channels.SendTimeout}
	adapters := channel.NewTable(
		channel.NewWeComApp(httpClient, store, cfg.Channels.TokenTTLMargin),
		channel.NewWeComBot(httpClient),
		channel.NewDingTalkBot(httpClient),
		channel.NewLarkBot(httpClient),
	)

	authService := auth.NewService(store, cfg.App.RateWindow, log)
	registry := channel.NewRegistry(store, adapters, log)
	historyStore := history.NewStore(store, log)
	engine := dispatch.NewEngine(registry, historyStore, log)

	bootstrapAccount(authService, log)

	handler := httpapi.NewHandler(authService, engine, historyStore, registry, cfg.App.RateLimit, log)
	router := httpapi.NewRouter(handler)

	return &Application{
		cfg: cfg,
		log: log,
		server: &http.Server{
			Addr:         cfg.App.Addr,
			Handler:      router,
			ReadTimeout:  cfg.App.RequestTimeout,
			WriteTimeout: cfg.App.RequestTimeout,
		},
	}
}

// Run serves until SIGINT/SIGTERM, then shuts down gracefully.
func (app *Application) Run() {
	notifyCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		app.log.Info().Str("addr", app.cfg.App.Addr).Msg("http server listening")
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-notifyCtx.Done()
	app.log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownPeriod)
	defer cancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// buildStore opens the configured key-value backend.
func buildStore(cfg config.Config, log zerolog.Logger) kv.Store {
	if cfg.Storage.Backend == config.BackendMemory {
		log.Warn().Msg("using in-memory storage, all state is lost on restart")
		return kv.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
	store := kv.NewRedisStore(client, cfg.Storage.Namespace)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Storage.RedisAddr).Msg("redis unreachable")
	}
	return store
}

// bootstrapAccount creates the first account when the store holds none
// and logs its SendKey once, so a fresh deployment is usable immediately.
func bootstrapAccount(authService *auth.Service, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if _, err := authService.FirstAccount(ctx); err == nil {
		return
	} else if !errors.Is(err, auth.ErrAccountNotFound) {
		log.Fatal().Err(err).Msg("account lookup failed")
	}

	account, err := authService.CreateAccount(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap account creation failed")
	}
	log.Info().
		Str("account_id", account.ID).
		Str("send_key", account.SendKey).
		Msg("bootstrap account created, store this send key")
}
