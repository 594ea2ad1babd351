package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

type channelMock struct {
	mock.Mock
}

func (m *channelMock) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(exchange, key, mandatory, immediate, msg).Error(0)
}

func (m *channelMock) Close() error {
	return m.Called().Error(0)
}

type ackMock struct {
	mock.Mock
}

func (m *ackMock) Ack(multiple bool) error {
	return m.Called(multiple).Error(0)
}

func (m *ackMock) Nack(multiple, requeue bool) error {
	return m.Called(multiple, requeue).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestPublish(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := models.SessionEvent{Type: models.EventLogout, Scope: "s1", UserID: "u1", Reason: "expired", At: at}

	ch := new(channelMock)
	ch.On("Publish", "session_events", models.EventLogout, false, false, mock.MatchedBy(func(msg amqp.Publishing) bool {
		var got models.SessionEvent
		if err := json.Unmarshal(msg.Body, &got); err != nil {
			return false
		}
		return msg.ContentType == "application/json" &&
			msg.DeliveryMode == amqp.Persistent &&
			got.Reason == "expired" && got.UserID == "u1"
	})).Return(nil).Once()

	p := &Publisher{ch: ch, exchange: "session_events", log: newNoopLogger()}
	require.NoError(t, p.Publish(context.Background(), ev))
	ch.AssertExpectations(t)
}

func TestPublish_Errors(t *testing.T) {
	ch := new(channelMock)
	ch.On("Publish", mock.Anything, mock.Anything, false, false, mock.Anything).Return(errors.New("channel closed")).Once()
	p := &Publisher{ch: ch, exchange: "session_events", log: newNoopLogger()}

	err := p.Publish(context.Background(), models.SessionEvent{Type: models.EventLogin})
	assert.ErrorContains(t, err, "channel closed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = p.Publish(ctx, models.SessionEvent{Type: models.EventLogin})
	assert.ErrorIs(t, err, context.Canceled)
	ch.AssertNumberOfCalls(t, "Publish", 1)
}

func TestSettle(t *testing.T) {
	ctx := context.Background()
	body, err := json.Marshal(models.SessionEvent{Type: models.EventLogin, Scope: "s1"})
	require.NoError(t, err)

	t.Run("ack on success", func(t *testing.T) {
		ack := new(ackMock)
		ack.On("Ack", false).Return(nil).Once()
		var got models.SessionEvent
		settle(ctx, ack, body, newNoopLogger(), func(_ context.Context, ev models.SessionEvent) error {
			got = ev
			return nil
		})
		assert.Equal(t, "s1", got.Scope)
		ack.AssertExpectations(t)
	})

	t.Run("requeue on handler error", func(t *testing.T) {
		ack := new(ackMock)
		ack.On("Nack", false, true).Return(nil).Once()
		settle(ctx, ack, body, newNoopLogger(), func(context.Context, models.SessionEvent) error {
			return errors.New("sink unavailable")
		})
		ack.AssertExpectations(t)
	})

	t.Run("drop malformed", func(t *testing.T) {
		ack := new(ackMock)
		ack.On("Nack", false, false).Return(nil).Once()
		settle(ctx, ack, []byte("{"), newNoopLogger(), func(context.Context, models.SessionEvent) error {
			t.Fatal("handler must not be called")
			return nil
		})
		ack.AssertExpectations(t)
	})
}
