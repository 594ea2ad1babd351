// Package events публикует события жизненного цикла сессий в RabbitMQ
// и читает их обратно для журнала аудита.
package events

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

// Connect подключается к брокеру, повторяя попытку retries раз с паузой delay.
func Connect(url string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "events.Connect"
	var conn *amqp.Connection
	var err error

	if retries < 1 {
		retries = 1
	}
	for range retries {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// Types — все типы событий сессии. Используются как ключи маршрутизации.
func Types() []string {
	return []string{
		models.EventLogin,
		models.EventOAuthLogin,
		models.EventSignup,
		models.EventLogout,
		models.EventProfileUpdated,
	}
}

// SetupExchange объявляет direct-exchange для событий сессии.
func SetupExchange(ch *amqp.Channel, exchange string) error {
	const op = "events.SetupExchange"
	err := ch.ExchangeDeclare(
		exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetupQueue объявляет очередь и привязывает её ко всем типам событий.
func SetupQueue(ch *amqp.Channel, exchange, queue string) error {
	const op = "events.SetupQueue"
	if err := SetupExchange(ch, exchange); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("%s: failed to declare queue %s: %w", op, queue, err)
	}
	for _, key := range Types() {
		if err := ch.QueueBind(queue, key, exchange, false, nil); err != nil {
			return fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, queue, key, err)
		}
	}
	return nil
}
