// Package profile реализует HTTP-обработчики создания и обновления профиля
// текущего пользователя.
//
// Тело запроса — частичный профиль: переданные поля перезаписываются,
// остальные сохраняются. После записи обработчик возвращает итоговый
// профиль и представление, на которое нужно перейти.
package profile

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

// Service — сессия, профиль которой изменяется.
type Service interface {
	CreateProfile(ctx context.Context, patch models.UserPatch) (*models.User, error)
	UpdateProfile(ctx context.Context, patch models.UserPatch) (*models.User, error)
	Snapshot() session.State
}

// Resolver возвращает сессию запроса.
type Resolver func(r *http.Request) (Service, bool)

// Handler обрабатывает запись профиля.
type Handler struct {
	log      *slog.Logger
	resolve  Resolver
	routes   config.Routes
	validate *validator.Validate
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

type writeFunc func(Service, context.Context, models.UserPatch) (*models.User, error)

// Create завершает онбординг: POST /api/v1/profile.
// @Summary Заполнение профиля при онбординге
// @Tags Profile
// @Accept  json
// @Produce  json
// @Param request body models.UserPatch true "Поля профиля"
// @Success 201 {object} response.Response "Профиль и путь для перехода"
// @Failure 401 {object} response.Response "Сессия завершена"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Router /profile [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, "handlers.profile.create", http.StatusCreated, Service.CreateProfile)
}

// Update частично обновляет профиль: PATCH /api/v1/profile.
// @Summary Изменение профиля
// @Tags Profile
// @Accept  json
// @Produce  json
// @Param request body models.UserPatch true "Изменяемые поля"
// @Success 200 {object} response.Response "Профиль и путь для перехода"
// @Failure 401 {object} response.Response "Сессия завершена"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Router /profile [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, "handlers.profile.update", http.StatusOK, Service.UpdateProfile)
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, op string, status int, do writeFunc) {
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

	var patch models.UserPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(patch); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	user, err := do(svc, r.Context(), patch)
	if err != nil {
		log.Info("profile write failed", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Info("profile saved", slog.String("user_id", user.ID))
	render.Status(r, status)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user":     user,
		"redirect": guard.LandingFor(h.routes, svc.Snapshot()),
	}))
}
