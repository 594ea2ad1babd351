// Package ideas реализует HTTP-обработчики идей: отправку на модерацию,
// просмотр списка и одной идеи, решение модератора и удаление.
//
// Права доступа проверяет route guard до вызова обработчика; backend
// дополнительно проверяет владение идеей и роль администратора.
package ideas

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/openconnect-gateway/internal/http/response"
	"github.com/magabrotheeeer/openconnect-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var errInvalidPage = errors.New("invalid pagination parameters")

// Service — операции backend над идеями в рамках сессии.
type Service interface {
	SubmitIdea(ctx context.Context, sub models.IdeaSubmission) (*models.Idea, error)
	ListIdeas(ctx context.Context, page, pageSize int) (*models.IdeaPage, error)
	GetIdea(ctx context.Context, id string) (*models.Idea, error)
	UpdateIdeaStatus(ctx context.Context, id string, upd models.IdeaStatusUpdate) (*models.Idea, error)
	DeleteIdea(ctx context.Context, id string) error
}

// Resolver возвращает клиент backend сессии запроса.
type Resolver func(r *http.Request) (Service, bool)

// Handler обрабатывает запросы к идеям.
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

func (h *Handler) begin(w http.ResponseWriter, r *http.Request, op string) (Service, *slog.Logger, bool) {
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	svc, ok := h.resolve(r)
	if !ok {
		log.Error("session scope missing")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
	}
	return svc, log, ok
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return false
	}
	return true
}

// Submit отправляет идею на модерацию: POST /api/v1/ideas.
// @Summary Отправка идеи
// @Tags Ideas
// @Accept  json
// @Produce  json
// @Param request body models.IdeaSubmission true "Идея"
// @Success 201 {object} response.Response "Созданная идея"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Router /ideas [post]
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	svc, log, ok := h.begin(w, r, "handlers.ideas.submit")
	if !ok {
		return
	}
	var sub models.IdeaSubmission
	if !h.decode(w, r, log, &sub) {
		return
	}

	idea, err := svc.SubmitIdea(r.Context(), sub)
	if err != nil {
		log.Info("failed to submit idea", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Info("idea submitted", slog.String("idea_id", idea.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"idea": idea,
	}))
}

// List возвращает страницу идей: GET /api/v1/ideas?page=&page_size=.
// @Summary Список идей
// @Tags Ideas
// @Produce  json
// @Param page query int false "Номер страницы"
// @Param page_size query int false "Размер страницы, не больше 100"
// @Success 200 {object} response.Response "Страница идей"
// @Failure 422 {object} response.Response "Некорректная пагинация"
// @Router /ideas [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	svc, log, ok := h.begin(w, r, "handlers.ideas.list")
	if !ok {
		return
	}
	page, pageSize, err := Page(r)
	if err != nil {
		log.Info("invalid pagination", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("page and page_size must be positive integers"))
		return
	}

	res, err := svc.ListIdeas(r.Context(), page, pageSize)
	if err != nil {
		log.Info("failed to list ideas", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Debug("ideas listed", slog.Int("count", len(res.Ideas)))
	render.JSON(w, r, response.StatusOKWithData(res))
}

// Get возвращает одну идею: GET /api/v1/ideas/{id}.
// @Summary Идея по id
// @Tags Ideas
// @Produce  json
// @Param id path string true "ID идеи"
// @Success 200 {object} response.Response "Идея"
// @Failure 422 {object} response.Response "Идея не найдена"
// @Router /ideas/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	svc, log, ok := h.begin(w, r, "handlers.ideas.get")
	if !ok {
		return
	}

	idea, err := svc.GetIdea(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		log.Info("failed to read idea", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"idea": idea,
	}))
}

// SetStatus сохраняет решение модератора: PATCH /api/v1/ideas/{id}.
// @Summary Решение модератора
// @Tags Ideas
// @Accept  json
// @Produce  json
// @Param id path string true "ID идеи"
// @Param request body models.IdeaStatusUpdate true "Статус и отзыв"
// @Success 200 {object} response.Response "Обновленная идея"
// @Failure 403 {object} response.Response "Нужна роль администратора"
// @Router /ideas/{id} [patch]
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	svc, log, ok := h.begin(w, r, "handlers.ideas.status")
	if !ok {
		return
	}
	var upd models.IdeaStatusUpdate
	if !h.decode(w, r, log, &upd) {
		return
	}

	id := chi.URLParam(r, "id")
	idea, err := svc.UpdateIdeaStatus(r.Context(), id, upd)
	if err != nil {
		log.Info("failed to update idea status", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Info("idea status updated", slog.String("idea_id", id), slog.String("status", idea.Status))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"idea": idea,
	}))
}

// Remove удаляет идею владельца: DELETE /api/v1/ideas/{id}.
// @Summary Удаление идеи
// @Tags Ideas
// @Produce  json
// @Param id path string true "ID идеи"
// @Success 200 {object} response.Response "Сообщение backend"
// @Router /ideas/{id} [delete]
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	svc, log, ok := h.begin(w, r, "handlers.ideas.remove")
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := svc.DeleteIdea(r.Context(), id); err != nil {
		log.Info("failed to delete idea", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Info("idea deleted", slog.String("idea_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "idea deleted",
	}))
}

// Page читает page и page_size из query. Отсутствующие параметры
// заменяются значениями по умолчанию, page_size ограничен сверху.
func Page(r *http.Request) (page, pageSize int, err error) {
	q := r.URL.Query()
	page, pageSize = 1, defaultPageSize
	if s := q.Get("page"); s != "" {
		if page, err = strconv.Atoi(s); err != nil || page < 1 {
			return 0, 0, errInvalidPage
		}
	}
	if s := q.Get("page_size"); s != "" {
		if pageSize, err = strconv.Atoi(s); err != nil || pageSize < 1 {
			return 0, 0, errInvalidPage
		}
	}
	return page, min(pageSize, maxPageSize), nil
}
