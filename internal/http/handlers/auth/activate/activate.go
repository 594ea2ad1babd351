// Package activate реализует HTTP-обработчик активации учётной записи
// по токену из письма.
package activate

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

// Request — токен активации.
type Request struct {
	Token string `json:"token" validate:"required"`
}

// Service активирует учётную запись.
type Service interface {
	ActivateUser(ctx context.Context, token string) (*models.User, error)
}

// Resolver возвращает клиент backend сессии запроса.
type Resolver func(r *http.Request) (Service, bool)

// Handler обрабатывает активацию.
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

// @Summary Активация учетной записи
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Токен из письма"
// @Success 200 {object} response.Response "Активированная учетная запись"
// @Failure 401 {object} response.Response "Недействительный токен"
// @Router /auth/activate [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.activate"

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
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	user, err := svc.ActivateUser(r.Context(), req.Token)
	if err != nil {
		log.Info("activation failed", sl.Err(err))
		response.AppError(w, r, err)
		return
	}

	log.Info("account activated", slog.String("user_id", user.ID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user":     user,
		"message":  "your account has been activated, you can sign in now",
		"redirect": h.loginRoute,
	}))
}
