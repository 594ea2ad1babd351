// Package gateway собирает шлюз OpenConnect: клиент backend, реестр сессий
// браузеров, хранилище учётных данных, публикацию событий и HTTP-сервер.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/openconnect-gateway/internal/backend"
	"github.com/magabrotheeeer/openconnect-gateway/internal/cache"
	"github.com/magabrotheeeer/openconnect-gateway/internal/config"
	"github.com/magabrotheeeer/openconnect-gateway/internal/events"
	"github.com/magabrotheeeer/openconnect-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/openconnect-gateway/internal/metrics"
	"github.com/magabrotheeeer/openconnect-gateway/internal/session"
)

// App — собранный шлюз.
type App struct {
	server    *http.Server
	logger    *slog.Logger
	registry  *session.Registry
	cache     *cache.Cache
	amqpConn  *amqp.Connection
	publisher *events.Publisher
}

// New собирает приложение. Redis и RabbitMQ необязательны: без redis
// токены хранятся в памяти процесса, без RabbitMQ события не публикуются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{logger: logger}

	var creds session.CredentialFactory = cache.NewMemoryCredentials()
	if cfg.AddressRedis != "" {
		cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, err
		}
		app.cache = cacheRedis
		creds = cache.NewRedisCredentials(cacheRedis)
	} else {
		logger.Warn("redis address is not set, credentials are kept in memory")
	}

	opts := session.RegistryOptions{
		ExpiryCheckInterval: cfg.ExpiryCheckInterval,
		IdleTTL:             cfg.IdleTTL,
		AnonymousIdleTTL:    cfg.AnonymousIdleTTL,
		MaxScopes:           cfg.MaxScopes,
		DefaultTokenTTL:     cfg.DefaultTokenTTL,
		Loading:             metrics.LoadingGauge{},
	}
	if cfg.AMQP.URL != "" {
		conn, err := events.Connect(cfg.AMQP.URL, 5, 2*time.Second)
		if err != nil {
			app.closeStores()
			return nil, err
		}
		app.amqpConn = conn
		pub, err := events.NewPublisher(conn, cfg.Exchange, logger)
		if err != nil {
			app.closeStores()
			return nil, err
		}
		app.publisher = pub
		opts.Events = pub
	}

	api := backend.New(cfg.Backend, logger)
	app.registry = session.NewRegistry(api, creds, logger, opts)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, Deps{
		Registry:  app.registry,
		Cache:     app.cache,
		SignInURL: api.GoogleSignInURL(),
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run обслуживает запросы до отмены ctx, затем корректно останавливает
// сервер и фоновые задачи сессий.
func (a *App) Run(ctx context.Context) error {
	go a.registry.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	a.registry.Close()
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("failed to close event publisher", sl.Err(err))
		}
	}
	a.closeStores()
}

func (a *App) closeStores() {
	if a.amqpConn != nil {
		if err := a.amqpConn.Close(); err != nil {
			a.logger.Warn("failed to close amqp connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close redis", sl.Err(err))
		}
	}
}
