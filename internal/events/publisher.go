package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher отправляет события сессии в exchange. Канал amqp не
// потокобезопасен, поэтому публикации сериализуются.
type Publisher struct {
	mu       sync.Mutex
	ch       channel
	exchange string
	log      *slog.Logger
}

// NewPublisher открывает канал и объявляет exchange.
func NewPublisher(conn *amqp.Connection, exchange string, log *slog.Logger) (*Publisher, error) {
	const op = "events.NewPublisher"
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := SetupExchange(ch, exchange); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &Publisher{ch: ch, exchange: exchange, log: log}, nil
}

// Publish публикует событие с ключом маршрутизации, равным его типу.
func (p *Publisher) Publish(ctx context.Context, ev models.SessionEvent) error {
	const op = "events.Publisher.Publish"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.Publish(
		p.exchange,
		ev.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    ev.At,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	p.log.Debug("session event published", slog.String("type", ev.Type), slog.String("scope", ev.Scope))
	return nil
}

// Close закрывает канал.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}
