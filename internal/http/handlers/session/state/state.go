// Package state реализует HTTP-обработчик, отдающий текущее состояние
// сессии браузера: профиль, флаги загрузки и аутентификации, а также
// состояние route guard и стартовое представление для него.
package state

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/openconnect-gateway/internal/config"
	"github.com/magabrotheeeer/openconnect-gateway/internal/guard"
	"github.com/magabrotheeeer/openconnect-gateway/internal/http/response"
	"github.com/magabrotheeeer/openconnect-gateway/internal/session"
)

// Service — источник состояния сессии.
type Service interface {
	Snapshot() session.State
}

// Resolver возвращает сессию запроса.
type Resolver func(r *http.Request) (Service, bool)

// Handler обрабатывает запрос состояния сессии.
type Handler struct {
	log     *slog.Logger
	resolve Resolver
	routes  config.Routes
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, resolve Resolver, routes config.Routes) *Handler {
	return &Handler{log: log, resolve: resolve, routes: routes}
}

// ServeHTTP отдаёт снимок сессии. Пока сессия загружается, landing пуст.
// @Summary Состояние сессии
// @Tags Session
// @Produce  json
// @Success 200 {object} response.Response "Сессия, состояние и стартовое представление"
// @Router /session [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.state"

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

	st := svc.Snapshot()
	gs := guard.Classify(st)
	landing := ""
	if gs != guard.Checking {
		landing = guard.LandingFor(h.routes, st)
	}

	log.Debug("session state requested", slog.String("state", gs.String()))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"session": st,
		"state":   gs.String(),
		"landing": landing,
	}))
}
