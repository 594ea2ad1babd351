// Package audit собирает сервис журнала событий сессий: читает события
// из очереди RabbitMQ и передаёт их в audit.Recorder.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	auditservice "github.com/magabrotheeeer/openconnect-gateway/internal/audit"
	"github.com/magabrotheeeer/openconnect-gateway/internal/cache"
	"github.com/magabrotheeeer/openconnect-gateway/internal/config"
	"github.com/magabrotheeeer/openconnect-gateway/internal/events"
)

// App — сервис журнала.
type App struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	cache    *cache.Cache
	queue    string
	recorder *auditservice.Recorder
	logger   *slog.Logger
}

// New подключается к брокеру и объявляет очередь журнала.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.AMQP.URL == "" {
		return nil, errors.New("amqp url is not set")
	}

	var store auditservice.Store
	var cacheRedis *cache.Cache
	if cfg.AddressRedis != "" {
		c, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, err
		}
		cacheRedis, store = c, c
	}

	conn, err := events.Connect(cfg.AMQP.URL, 5, 2*time.Second)
	if err != nil {
		closeCache(cacheRedis, logger)
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		closeCache(cacheRedis, logger)
		return nil, err
	}
	if err := events.SetupQueue(ch, cfg.Exchange, cfg.Queue); err != nil {
		ch.Close()
		conn.Close()
		closeCache(cacheRedis, logger)
		return nil, err
	}

	return &App{
		conn:     conn,
		ch:       ch,
		cache:    cacheRedis,
		queue:    cfg.Queue,
		recorder: auditservice.NewRecorder(logger, store, cfg.Retention),
		logger:   logger,
	}, nil
}

// Run читает события до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	err := events.Consume(ctx, a.ch, a.queue, a.logger, a.recorder.Record)
	if err != nil {
		a.logger.Error("session event consumer stopped", slog.String("queue", a.queue), slog.Any("err", err))
	}

	a.logger.Info("audit service shutting down gracefully")
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	closeCache(a.cache, a.logger)
	return err
}

func closeCache(c *cache.Cache, logger *slog.Logger) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Error("failed to close redis", slog.Any("err", err))
	}
}
