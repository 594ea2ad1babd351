package guard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/openconnect-gateway/internal/http/response"
	"github.com/magabrotheeeer/openconnect-gateway/internal/metrics"
	"github.com/magabrotheeeer/openconnect-gateway/internal/session"
)

// StateFunc возвращает состояние сессии запроса.
type StateFunc func(r *http.Request) (session.State, bool)

// RequireView пропускает запрос к представлению, только если Evaluate
// разрешает его показ. Пока сессия загружается, отвечает 202 с
// представлением "loading". Перенаправления отдаются кодом 303.
func RequireView(log *slog.Logger, g *Guard, v View, state StateFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st, ok := state(r)
			if !ok {
				log.Error("session scope missing", slog.String("request_id", middleware.GetReqID(r.Context())))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal error"))
				return
			}
			d := g.Evaluate(st, v)
			metrics.GuardDecision(string(d.Action))
			switch d.Action {
			case Loading:
				w.Header().Set("Retry-After", "1")
				render.Status(r, http.StatusAccepted)
				render.JSON(w, r, response.StatusOKWithData(map[string]string{"view": "loading"}))
			case Redirect:
				w.Header().Set("Location", d.Target)
				render.Status(r, http.StatusSeeOther)
				render.JSON(w, r, response.StatusOKWithData(d))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RequireAPI защищает JSON API: вместо перенаправлений возвращает
// 401, если нужен вход, и 403, если не хватает онбординга или роли.
// Пока сессия загружается, отвечает 503 с Retry-After.
func RequireAPI(log *slog.Logger, g *Guard, v View, state StateFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st, ok := state(r)
			if !ok {
				log.Error("session scope missing", slog.String("request_id", middleware.GetReqID(r.Context())))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal error"))
				return
			}
			d := g.Evaluate(st, v)
			if d.Action == Render {
				next.ServeHTTP(w, r)
				return
			}
			switch {
			case d.Action == Loading:
				w.Header().Set("Retry-After", "1")
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, response.Error("session is loading, retry shortly"))
			case d.Target == g.routes.Login:
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("you are not signed in"))
			case d.Target == g.routes.Onboarding:
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("complete your profile first"))
			default:
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("you do not have access to this resource"))
			}
		})
	}
}
