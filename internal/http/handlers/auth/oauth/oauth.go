// Package oauth реализует вход через Google: перенаправление браузера на
// backend и приём токена, который backend возвращает в callback.
package oauth

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/openconnect-gateway/internal/apperr"
	"github.com/magabrotheeeer/openconnect-gateway/internal/config"
	"github.com/magabrotheeeer/openconnect-gateway/internal/guard"
	"github.com/magabrotheeeer/openconnect-gateway/internal/http/response"
	"github.com/magabrotheeeer/openconnect-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
	"github.com/magabrotheeeer/openconnect-gateway/internal/session"
)

// Service — сессия браузера, проходящего вход через Google.
type Service interface {
	Snapshot() session.State
	Logout(ctx context.Context, reason string)
	HandleOAuthCallback(ctx context.Context, token string) (*models.User, error)
	SetReturnTo(path string)
	TakeReturnTo() string
}

// Resolver возвращает сессию запроса.
type Resolver func(r *http.Request) (Service, bool)

// Handler обрабатывает начало входа и callback.
type Handler struct {
	log       *slog.Logger
	resolve   Resolver
	signInURL string
	routes    config.Routes
}

// New создает новый экземпляр Handler. signInURL — адрес входа через Google на backend.
func New(log *slog.Logger, resolve Resolver, signInURL string, routes config.Routes) *Handler {
	return &Handler{log: log, resolve: resolve, signInURL: signInURL, routes: routes}
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request, log *slog.Logger) (Service, bool) {
	svc, ok := h.resolve(r)
	if !ok {
		log.Error("session scope missing")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
	}
	return svc, ok
}

// Start запоминает путь возврата и перенаправляет браузер на backend.
// Токен прежней сессии удаляется до ухода со страницы.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.oauth.start"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	svc, ok := h.scope(w, r, log)
	if !ok {
		return
	}
	if svc.Snapshot().IsAuthenticated {
		svc.Logout(r.Context(), session.ReasonReauth)
	}
	svc.SetReturnTo(localPath(r.URL.Query().Get("return_to")))

	log.Info("redirecting to google sign in")
	http.Redirect(w, r, h.signInURL, http.StatusFound)
}

// Callback принимает токен из query-параметра token. При успехе
// перенаправляет на онбординг или на сохранённый путь возврата,
// при ошибке на страницу входа с текстом ошибки.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.oauth.callback"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	svc, ok := h.scope(w, r, log)
	if !ok {
		return
	}
	q := r.URL.Query()
	returnTo := svc.TakeReturnTo()

	if e := q.Get("error"); e != "" {
		log.Info("google sign in failed", slog.String("error", e))
		h.fail(w, r, "authentication failed: "+e)
		return
	}

	_, err := svc.HandleOAuthCallback(r.Context(), q.Get("token"))
	if err != nil {
		log.Info("oauth callback failed", sl.Err(err))
		h.fail(w, r, apperr.From(err).Message)
		return
	}

	st := svc.Snapshot()
	target := h.routes.OAuthLanding
	switch {
	case !st.HasCompletedOnboarding:
		target = h.routes.Onboarding
	case returnTo != "":
		target = returnTo
	case st.IsAdmin:
		target = guard.LandingFor(h.routes, st)
	}
	log.Info("signed in with google", slog.String("redirect", target))
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string) {
	target := h.routes.Login + "?" + url.Values{"error": {msg}}.Encode()
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// localPath пропускает только пути внутри приложения.
func localPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, "\\") {
		return ""
	}
	return p
}
