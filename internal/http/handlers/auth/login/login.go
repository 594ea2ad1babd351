// Package login реализует HTTP-обработчик входа по email и паролю.
//
// Обработчик декодирует и валидирует тело запроса, передаёт вход сессии
// браузера и возвращает профиль вместе с представлением, на которое
// нужно перейти: онбординг, если профиль не заполнен, иначе стартовое.
package login

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/openconnect-gateway/internal/config"
	"github.com/magabrotheeeer/openconnect-gateway/internal/guard"
	"github.com/magabrotheeeer/openconnect-gateway/internal/http/response"
	"github.com/magabrotheeeer/openconnect-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
	"github.com/magabrotheeeer/openconnect-gateway/internal/session"
)

// Request — структура входных данных для входа.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Service описывает сессию, в которой выполняется вход.
type Service interface {
	Login(ctx context.Context, email, password string) (*models.User, error)
	Snapshot() session.State
}

// Resolver возвращает сессию запроса.
type Resolver func(r *http.Request) (Service, bool)

// Handler обрабатывает HTTP-запросы на вход.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	resolve  Resolver            // Сессия браузера, выполняющего запрос
	routes   config.Routes       // Пути представлений для перехода после входа
	validate *validator.Validate // Валидатор для проверки входных данных
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, resolve Resolver, routes config.Routes) *Handler {
	return &Handler{
		log:      log,
		resolve:  resolve,
		routes:   routes,
		validate: validator.New(),
	}
}

// ServeHTTP выполняет вход.
// @Summary Вход по email и паролю
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные"
// @Success 200 {object} response.Response "Пользователь и путь для перехода"
// @Failure 401 {object} response.Response "Неверные учетные данные"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Failure 503 {object} response.Response "Backend недоступен"
// @Router /auth/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	user, err := svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Info("login failed", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Info("login success", slog.String("user_id", user.ID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user":     user,
		"redirect": guard.LandingFor(h.routes, svc.Snapshot()),
	}))
}
