// Package expiry периодически проверяет срок сохранённого токена
// и завершает сессию, когда он наступил.
package expiry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/openconnect-gateway/internal/cache"
	"github.com/magabrotheeeer/openconnect-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

// Причины, с которыми наблюдатель завершает сессию.
const (
	ReasonExpired = "expired"
	ReasonInvalid = "invalid_credential"
)

// CredentialSource отдаёт сохранённый токен.
type CredentialSource interface {
	Load(ctx context.Context) (models.Credential, error)
}

// Logouter завершает сессию.
type Logouter interface {
	Logout(ctx context.Context, reason string)
}

// Watcher проверяет срок токена сразу при запуске и затем с интервалом.
type Watcher struct {
	creds    CredentialSource
	session  Logouter
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// New создаёт Watcher. Интервал меньше или равный нулю заменяется на 5 минут.
func New(creds CredentialSource, session Logouter, interval time.Duration, log *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Watcher{
		creds:    creds,
		session:  session,
		interval: interval,
		now:      time.Now,
		log:      log,
	}
}

// Check выполняет одну проверку и сообщает, была ли завершена сессия.
// Нет токена — ничего не делает. Токен без читаемого срока считается
// недействительным.
func (w *Watcher) Check(ctx context.Context) bool {
	const op = "expiry.Watcher.Check"
	cred, err := w.creds.Load(ctx)
	switch {
	case errors.Is(err, cache.ErrNoCredential):
		return false
	case errors.Is(err, cache.ErrInvalidCredential):
		w.log.Info("stored credential is invalid, signing out", sl.Op(op), sl.Err(err))
		w.session.Logout(ctx, ReasonInvalid)
		return true
	case err != nil:
		w.log.Warn("failed to load credential", sl.Op(op), sl.Err(err))
		return false
	}
	if !cred.Expired(w.now()) {
		return false
	}
	w.log.Info("token expired, signing out", sl.Op(op), slog.Time("expiry", cred.Expiry))
	w.session.Logout(ctx, ReasonExpired)
	return true
}

// Run проверяет срок до отмены ctx.
func (w *Watcher) Run(ctx context.Context) {
	w.Check(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}
