// Package audit ведёт журнал событий сессий: входов, выходов и
// завершения онбординга. Последнее событие каждого пользователя
// хранится в redis, если он подключён.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/openconnect-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

const keyPrefix = "openconnect:audit:last"

// Store сохраняет последнее событие пользователя.
type Store interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Recorder записывает события в журнал.
type Recorder struct {
	log       *slog.Logger
	store     Store
	retention time.Duration
}

// NewRecorder создаёт Recorder. store может быть nil: тогда события только логируются.
func NewRecorder(log *slog.Logger, store Store, retention time.Duration) *Recorder {
	return &Recorder{log: log, store: store, retention: retention}
}

// Record пишет событие в журнал. Ошибка хранилища возвращается,
// чтобы сообщение было доставлено повторно.
func (r *Recorder) Record(ctx context.Context, ev models.SessionEvent) error {
	const op = "audit.Recorder.Record"

	r.log.Info("session event",
		sl.Op(op),
		slog.String("type", ev.Type),
		sl.Scope(ev.Scope),
		slog.String("user_id", ev.UserID),
		slog.String("reason", ev.Reason),
		slog.Time("at", ev.At),
	)
	if r.store == nil || ev.UserID == "" {
		return nil
	}
	if err := r.store.Set(ctx, key(ev.UserID), ev, r.retention); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Last возвращает последнее событие пользователя.
func (r *Recorder) Last(ctx context.Context, userID string) (models.SessionEvent, bool, error) {
	const op = "audit.Recorder.Last"
	var ev models.SessionEvent
	if r.store == nil {
		return ev, false, nil
	}
	found, err := r.store.Get(ctx, key(userID), &ev)
	if err != nil {
		return ev, false, fmt.Errorf("%s: %w", op, err)
	}
	return ev, found, nil
}

func key(userID string) string {
	return keyPrefix + ":" + userID
}
