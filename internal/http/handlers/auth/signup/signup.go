// Package signup реализует HTTP-обработчик регистрации учётной записи.
//
// Регистрация не открывает сессию: учётную запись нужно активировать
// по ссылке из письма, после чего войти.
package signup

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/openconnect-gateway/internal/http/response"
	"github.com/magabrotheeeer/openconnect-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

// Request — структура входных данных для регистрации.
//
// Username от 3 до 50 символов, пароль минимум 8 символов.
type Request struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Service описывает сессию, от имени которой идёт регистрация.
type Service interface {
	Signup(ctx context.Context, username, email, password string) (*models.User, error)
}

// Resolver возвращает сессию запроса.
type Resolver func(r *http.Request) (Service, bool)

// Handler обрабатывает HTTP-запросы на регистрацию.
type Handler struct {
	log      *slog.Logger
	resolve  Resolver
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, resolve Resolver) *Handler {
	return &Handler{
		log:      log,
		resolve:  resolve,
		validate: validator.New(),
	}
}

// @Summary Регистрация
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные регистрации"
// @Success 201 {object} response.Response "Созданная учетная запись"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Router /auth/signup [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.signup"

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

	user, err := svc.Signup(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		log.Info("signup failed", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Info("account created")
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user":    user,
		"message": "account created, check your email to activate it",
	}))
}
