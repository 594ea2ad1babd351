// Package logout реализует HTTP-обработчик выхода из сессии.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/openconnect-gateway/internal/http/response"
	"github.com/magabrotheeeer/openconnect-gateway/internal/session"
)

// Service описывает сессию, из которой выходит пользователь.
type Service interface {
	Logout(ctx context.Context, reason string)
}

// Resolver возвращает сессию запроса.
type Resolver func(r *http.Request) (Service, bool)

// Handler обрабатывает выход. Повторный выход не является ошибкой.
type Handler struct {
	log        *slog.Logger
	resolve    Resolver
	loginRoute string
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, resolve Resolver, loginRoute string) *Handler {
	return &Handler{log: log, resolve: resolve, loginRoute: loginRoute}
}

// @Summary Выход
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response "Путь для перехода"
// @Router /auth/logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	svc, ok := h.resolve(r)
	if !ok {
		log.Error("session scope missing")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	svc.Logout(r.Context(), session.ReasonUser)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"redirect": h.loginRoute,
	}))
}
