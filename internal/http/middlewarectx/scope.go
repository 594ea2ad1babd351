// Package middlewarectx содержит HTTP middleware шлюза: привязку запроса
// к сессии браузера по cookie и ограничение частоты запросов.
//
// ScopeMiddleware читает идентификатор сессии из cookie, при отсутствии
// выдаёт новый и кладёт сессию в контекст запроса для обработчиков.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/openconnect-gateway/internal/config"
	"github.com/magabrotheeeer/openconnect-gateway/internal/session"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// ScopeKey — ключ сессии браузера в контексте.
const ScopeKey Key = "scope"

// Registry выдаёт сессию по идентификатору.
type Registry interface {
	Acquire(id string) *session.Scope
}

// ScopeMiddleware привязывает запрос к сессии браузера.
// Некорректный или отсутствующий идентификатор заменяется новым.
func ScopeMiddleware(reg Registry, cfg config.Session, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.ScopeMiddleware"

			id := ""
			if c, err := r.Cookie(cfg.CookieName); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					id = c.Value
				}
			}
			if id == "" {
				id = uuid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    id,
					Path:     "/",
					HttpOnly: true,
					Secure:   cfg.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
				log.Debug("new session scope issued",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
			}

			sc := reg.Acquire(id)
			ctx := context.WithValue(r.Context(), ScopeKey, sc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ScopeFrom возвращает сессию из контекста.
func ScopeFrom(ctx context.Context) (*session.Scope, bool) {
	sc, ok := ctx.Value(ScopeKey).(*session.Scope)
	return sc, ok && sc != nil
}

// WithScope кладёт сессию в контекст.
func WithScope(ctx context.Context, sc *session.Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, sc)
}

// SessionState возвращает снимок сессии запроса. Подходит как guard.StateFunc.
func SessionState(r *http.Request) (session.State, bool) {
	sc, ok := ScopeFrom(r.Context())
	if !ok {
		return session.State{}, false
	}
	return sc.Store.Snapshot(), true
}

// Resolve строит функцию, которая достаёт зависимость обработчика
// из сессии запроса.
func Resolve[T any](pick func(*session.Scope) T) func(*http.Request) (T, bool) {
	return func(r *http.Request) (T, bool) {
		sc, ok := ScopeFrom(r.Context())
		if !ok {
			var zero T
			return zero, false
		}
		return pick(sc), true
	}
}
