package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/openconnect-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

// Handler обрабатывает одно событие. Ошибка возвращает сообщение в очередь.
type Handler func(ctx context.Context, ev models.SessionEvent) error

// Consume читает события из очереди до отмены ctx. Нечитаемые
// сообщения отбрасываются без повторной доставки.
func Consume(ctx context.Context, ch *amqp.Channel, queue string, log *slog.Logger, handle Handler) error {
	const op = "events.Consume"
	if err := ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}
	delivery, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-delivery:
			if !ok {
				return fmt.Errorf("%s: delivery channel closed", op)
			}
			settle(ctx, d, d.Body, log, handle)
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func settle(ctx context.Context, ack acknowledger, body []byte, log *slog.Logger, handle Handler) {
	var ev models.SessionEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Error("malformed session event dropped", sl.Err(err))
		if err := ack.Nack(false, false); err != nil {
			log.Error("failed to nack message", sl.Err(err))
		}
		return
	}
	if err := handle(ctx, ev); err != nil {
		log.Warn("session event handler failed, requeueing", slog.String("type", ev.Type), sl.Err(err))
		if err := ack.Nack(false, true); err != nil {
			log.Error("failed to nack message", sl.Err(err))
		}
		return
	}
	if err := ack.Ack(false); err != nil {
		log.Error("failed to ack message", sl.Err(err))
	}
}
