// Package password реализует HTTP-обработчики восстановления пароля:
// запрос письма со ссылкой и установку нового пароля по токену.
package password

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
)

// ForgotRequest — адрес, на который отправить ссылку.
type ForgotRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetRequest — токен из письма и новый пароль.
type ResetRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Service — вызовы backend для восстановления пароля.
type Service interface {
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, password string) (string, error)
}

// Resolver возвращает клиент backend сессии запроса.
type Resolver func(r *http.Request) (Service, bool)

// Handler обрабатывает оба шага восстановления.
type Handler struct {
	log        *slog.Logger
	resolve    Resolver
	loginRoute string
	validate   *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, resolve Resolver, loginRoute string) *Handler {
	return &Handler{
		log:        log,
		resolve:    resolve,
		loginRoute: loginRoute,
		validate:   validator.New(),
	}
}

// decode читает и валидирует тело. Возвращает false, если ответ уже записан.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return false
	}
	return true
}

func (h *Handler) service(w http.ResponseWriter, r *http.Request, log *slog.Logger) (Service, bool) {
	svc, ok := h.resolve(r)
	if !ok {
		log.Error("session scope missing")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
	}
	return svc, ok
}

// Forgot отправляет письмо со ссылкой для сброса пароля.
// @Summary Запрос на сброс пароля
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body ForgotRequest true "Email учетной записи"
// @Success 200 {object} response.Response "Сообщение backend"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Router /auth/forgot-password [post]
func (h *Handler) Forgot(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.password.forgot"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	svc, ok := h.service(w, r, log)
	if !ok {
		return
	}
	var req ForgotRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	msg, err := svc.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		log.Info("password reset request failed", sl.Err(err))
		response.AppError(w, r, err)
		return
	}
	if msg == "" {
		msg = "if an account exists for this email, a reset link has been sent"
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": msg,
	}))
}

// Reset устанавливает новый пароль.
// @Summary Установка нового пароля
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body ResetRequest true "Токен сброса и новый пароль"
// @Success 200 {object} response.Response "Сообщение backend"
// @Failure 401 {object} response.Response "Недействительный токен"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Router /auth/reset-password [post]
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.password.reset"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	svc, ok := h.service(w, r, log)
	if !ok {
		return
	}
	var req ResetRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	msg, err := svc.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		log.Info("password reset failed", sl.Err(err))
		response.AppError(w, r, err)
		return
	}
	if msg == "" {
		msg = "your password has been reset"
	}
	log.Info("password reset")
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message":  msg,
		"redirect": h.loginRoute,
	}))
}
