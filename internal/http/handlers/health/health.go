// Package health реализует проверку готовности шлюза.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/openconnect-gateway/internal/http/response"
	"github.com/magabrotheeeer/openconnect-gateway/internal/lib/sl"
)

// Pinger — зависимость, доступность которой проверяется.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Counter сообщает число сессий в памяти.
type Counter interface {
	Len() int
}

// Handler отвечает на проверки готовности.
type Handler struct {
	log      *slog.Logger
	sessions Counter
	deps     map[string]Pinger
}

// New создает новый экземпляр Handler. deps может быть пустым.
func New(log *slog.Logger, sessions Counter, deps map[string]Pinger) *Handler {
	return &Handler{
		log:      log,
		sessions: sessions,
		deps:     deps,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	checks := make(map[string]string, len(h.deps))
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.log.Warn("dependency unavailable", slog.String("op", op), slog.String("dependency", name), sl.Err(err))
			checks[name] = "unavailable"
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	if status != "ok" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"status":   status,
		"sessions": h.sessions.Len(),
		"checks":   checks,
	}))
}
