package gateway

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	_ "github.com/magabrotheeeer/openconnect-gateway/docs"
	"github.com/magabrotheeeer/openconnect-gateway/internal/cache"
	"github.com/magabrotheeeer/openconnect-gateway/internal/config"
	"github.com/magabrotheeeer/openconnect-gateway/internal/guard"
	"github.com/magabrotheeeer/openconnect-gateway/internal/http/handlers/auth/activate"
	"github.com/magabrotheeeer/openconnect-gateway/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/openconnect-gateway/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/openconnect-gateway/internal/http/handlers/auth/oauth"
	"github.com/magabrotheeeer/openconnect-gateway/internal/http/handlers/auth/password"
	"github.com/magabrotheeeer/openconnect-gateway/internal/http/handlers/auth/signup"
	"github.com/magabrotheeeer/openconnect-gateway/internal/http/handlers/health"
	"github.com/magabrotheeeer/openconnect-gateway/internal/http/handlers/ideas"
	"github.com/magabrotheeeer/openconnect-gateway/internal/http/handlers/profile"
	"github.com/magabrotheeeer/openconnect-gateway/internal/http/handlers/session/state"
	"github.com/magabrotheeeer/openconnect-gateway/internal/http/handlers/stream"
	"github.com/magabrotheeeer/openconnect-gateway/internal/http/handlers/views"
	"github.com/magabrotheeeer/openconnect-gateway/internal/http/middlewarectx"
	"github.com/magabrotheeeer/openconnect-gateway/internal/session"
)

// Deps — зависимости маршрутов.
type Deps struct {
	Registry *session.Registry
	// Cache может быть nil.
	Cache     *cache.Cache
	SignInURL string
}

// viewSource объединяет состояние сессии и запросы к backend для представлений.
type viewSource struct {
	*session.Store
	*session.API
}

// RegisterRoutes регистрирует все маршруты шлюза.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, deps Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	var (
		dirCache views.Cache
		pingers  = map[string]health.Pinger{}
	)
	if deps.Cache != nil {
		dirCache = deps.Cache
		pingers["redis"] = deps.Cache
	}

	r.Get("/health", health.New(logger, deps.Registry, pingers).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Описание API
	r.Get("/docs/*", httpSwagger.WrapHandler)

	g := guard.New(cfg.Routes, guard.DefaultViews(cfg.Routes))
	byName := map[string]guard.View{}
	for _, v := range guard.DefaultViews(cfg.Routes) {
		byName[v.Name] = v
	}
	requireView := func(name string) func(http.Handler) http.Handler {
		return guard.RequireView(logger, g, byName[name], middlewarectx.SessionState)
	}
	requireAPI := func(v guard.View) func(http.Handler) http.Handler {
		return guard.RequireAPI(logger, g, v, middlewarectx.SessionState)
	}
	account := guard.View{Name: "account", Path: "/api/v1/profile", RequiresAuth: true}
	member := byName["feed"]
	admin := byName["admin_ideas"]

	scope := middlewarectx.Resolve(func(sc *session.Scope) *session.Scope { return sc })
	api := middlewarectx.Resolve(func(sc *session.Scope) *session.API { return sc.API })

	viewHandler := views.New(logger,
		middlewarectx.Resolve(func(sc *session.Scope) views.Service { return viewSource{sc.Store, sc.API} }),
		dirCache, cfg.DirectoryCacheTTL)
	oauthHandler := oauth.New(logger, func(req *http.Request) (oauth.Service, bool) { return scope(req) }, deps.SignInURL, cfg.Routes)
	passwordHandler := password.New(logger, func(req *http.Request) (password.Service, bool) { return api(req) }, cfg.Login)
	profileHandler := profile.New(logger, func(req *http.Request) (profile.Service, bool) { return scope(req) }, cfg.Routes)
	ideasHandler := ideas.New(logger, func(req *http.Request) (ideas.Service, bool) { return api(req) })

	r.Group(func(r chi.Router) {
		r.Use(middlewarectx.ScopeMiddleware(deps.Registry, cfg.Session, logger))

		// Представления
		r.Get("/", viewHandler.Public("home"))
		r.Get("/auth/login", viewHandler.Public("login"))
		r.Get("/auth/signup", viewHandler.Public("signup"))
		r.Get("/auth/activation", viewHandler.Public("activation"))
		r.Get("/auth/forgot-password", viewHandler.Public("forgot_password"))
		r.Get("/auth/reset-password", viewHandler.Public("reset_password"))
		r.Get("/auth/google/login", oauthHandler.Start)
		r.Get("/auth/google/callback", oauthHandler.Callback)

		r.With(requireView("onboarding")).Get(cfg.Onboarding, viewHandler.Own("onboarding"))
		r.With(requireView("profile")).Get("/profile", viewHandler.Own("profile"))
		r.With(requireView("user_profile")).Get("/profile/{id}", viewHandler.UserProfile)
		r.With(requireView("community")).Get("/community", viewHandler.Community)
		r.With(requireView("my_submissions")).Get("/my-submissions", viewHandler.MySubmissions)
		r.With(requireView("view_ideas")).Get("/view-ideas", viewHandler.Ideas("view_ideas", views.OthersApproved))
		r.With(requireView("feed")).Get("/feed", viewHandler.Ideas("feed", views.Approved))
		r.With(requireView("admin")).Get("/admin", viewHandler.Own("admin"))
		r.With(requireView("admin_ideas")).Get("/admin/ideas", viewHandler.Ideas("admin_ideas", nil))

		r.Get("/ws", stream.New(logger, g, func(req *http.Request) (guard.StateSource, bool) { return scope(req) }).ServeHTTP)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/session", state.New(logger, func(req *http.Request) (state.Service, bool) { return scope(req) }, cfg.Routes).ServeHTTP)

			// Вход и восстановление доступа с ограничением частоты
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RateLimitMiddleware(logger, rate.Limit(cfg.LoginRate), cfg.LoginBurst))
				r.Post("/auth/login", login.New(logger, func(req *http.Request) (login.Service, bool) { return scope(req) }, cfg.Routes).ServeHTTP)
				r.Post("/auth/signup", signup.New(logger, func(req *http.Request) (signup.Service, bool) { return scope(req) }).ServeHTTP)
				r.Put("/auth/activate", activate.New(logger, func(req *http.Request) (activate.Service, bool) { return api(req) }, cfg.Login).ServeHTTP)
				r.Post("/auth/forgot-password", passwordHandler.Forgot)
				r.Post("/auth/reset-password", passwordHandler.Reset)
			})
			r.Post("/auth/logout", logout.New(logger, func(req *http.Request) (logout.Service, bool) { return scope(req) }, cfg.Login).ServeHTTP)

			r.With(requireAPI(account)).Post("/profile", profileHandler.Create)
			r.With(requireAPI(account)).Patch("/profile", profileHandler.Update)

			r.With(requireAPI(member)).Post("/ideas", ideasHandler.Submit)
			r.With(requireAPI(member)).Get("/ideas", ideasHandler.List)
			r.With(requireAPI(member)).Get("/ideas/{id}", ideasHandler.Get)
			r.With(requireAPI(member)).Delete("/ideas/{id}", ideasHandler.Remove)
			r.With(requireAPI(admin)).Patch("/ideas/{id}", ideasHandler.SetStatus)
		})
	})
}
