// Package views реализует обработчики представлений клиента. Каждый
// обработчик вызывается только после того, как route guard разрешил показ,
// и отдаёт JSON с данными представления.
package views

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/openconnect-gateway/internal/http/handlers/ideas"
	"github.com/magabrotheeeer/openconnect-gateway/internal/http/response"
	"github.com/magabrotheeeer/openconnect-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
	"github.com/magabrotheeeer/openconnect-gateway/internal/session"
)

const (
	defaultDirectoryLimit = 20
	maxDirectoryLimit     = 100
	directoryKeyPrefix    = "openconnect:directory"
)

// Service — сессия запроса и операции backend, нужные представлениям.
type Service interface {
	Snapshot() session.State
	Directory(ctx context.Context, limit, offset int) (*models.Directory, error)
	ProfileByID(ctx context.Context, id string) (*models.ProfileWithIdeas, error)
	ListIdeas(ctx context.Context, page, pageSize int) (*models.IdeaPage, error)
}

// Cache — JSON-кэш данных каталога. Может быть nil.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Resolver возвращает сессию запроса.
type Resolver func(r *http.Request) (Service, bool)

// Handler отдаёт данные представлений.
type Handler struct {
	log      *slog.Logger
	resolve  Resolver
	cache    Cache
	cacheTTL time.Duration
}

// New создает новый экземпляр Handler. cache может быть nil: тогда каталог
// сообщества каждый раз читается из backend.
func New(log *slog.Logger, resolve Resolver, cache Cache, cacheTTL time.Duration) *Handler {
	return &Handler{
		log:      log,
		resolve:  resolve,
		cache:    cache,
		cacheTTL: cacheTTL,
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

func view(name string, data map[string]any) response.Response {
	if data == nil {
		data = map[string]any{}
	}
	data["view"] = name
	return response.StatusOKWithData(data)
}

// Public отдаёт представление, которому не нужны данные backend:
// главную страницу и формы входа, регистрации и восстановления пароля.
// Токен из ссылки в письме передаётся клиенту как есть.
func (h *Handler) Public(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, _, ok := h.begin(w, r, "handlers.views.public")
		if !ok {
			return
		}
		data := map[string]any{"session": svc.Snapshot()}
		if token := r.URL.Query().Get("token"); token != "" {
			data["token"] = token
		}
		if msg := r.URL.Query().Get("error"); msg != "" {
			data["error"] = msg
		}
		render.JSON(w, r, view(name, data))
	}
}

// Own отдаёт представление с профилем текущего пользователя:
// онбординг, собственный профиль и панель администратора.
func (h *Handler) Own(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, _, ok := h.begin(w, r, "handlers.views.own")
		if !ok {
			return
		}
		render.JSON(w, r, view(name, map[string]any{"user": svc.Snapshot().User}))
	}
}

// UserProfile отдаёт профиль другого пользователя с его идеями.
func (h *Handler) UserProfile(w http.ResponseWriter, r *http.Request) {
	svc, log, ok := h.begin(w, r, "handlers.views.user_profile")
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	p, err := svc.ProfileByID(r.Context(), id)
	if err != nil {
		log.Info("failed to load profile", slog.String("user_id", id), sl.Err(err))
		response.AppError(w, r, err)
		return
	}
	render.JSON(w, r, view("user_profile", map[string]any{
		"profile":      p,
		"display_name": p.Profile.DisplayName(),
	}))
}

// DirectoryEntry — запись каталога с готовым отображаемым именем.
type DirectoryEntry struct {
	models.ProfileWithIdeas
	DisplayName string `json:"display_name"`
}

// Community отдаёт страницу каталога сообщества. Страницы каталога
// кэшируются на cacheTTL, ошибки кэша не мешают ответу.
func (h *Handler) Community(w http.ResponseWriter, r *http.Request) {
	svc, log, ok := h.begin(w, r, "handlers.views.community")
	if !ok {
		return
	}
	limit, offset, err := directoryPage(r)
	if err != nil {
		log.Info("invalid pagination", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("limit and offset must be non-negative integers"))
		return
	}

	key := fmt.Sprintf("%s:%d:%d", directoryKeyPrefix, limit, offset)
	var dir models.Directory
	cached := false
	if h.cache != nil {
		if cached, err = h.cache.Get(r.Context(), key, &dir); err != nil {
			log.Warn("directory cache read failed", sl.Err(err))
			cached = false
		}
	}
	if !cached {
		d, err := svc.Directory(r.Context(), limit, offset)
		if err != nil {
			log.Info("failed to load directory", sl.Err(err))
			response.AppError(w, r, err)
			return
		}
		dir = *d
		if h.cache != nil {
			if err := h.cache.Set(r.Context(), key, dir, h.cacheTTL); err != nil {
				log.Warn("directory cache write failed", sl.Err(err))
			}
		}
	}

	entries := make([]DirectoryEntry, 0, len(dir.Profiles))
	for _, p := range dir.Profiles {
		entries = append(entries, DirectoryEntry{ProfileWithIdeas: p, DisplayName: p.Profile.DisplayName()})
	}
	log.Debug("directory served", slog.Bool("cached", cached), slog.Int("count", len(entries)))
	render.JSON(w, r, view("community", map[string]any{
		"profiles": entries,
		"count":    dir.Count,
		"limit":    limit,
		"offset":   offset,
	}))
}

// MySubmissions отдаёт идеи текущего пользователя, при необходимости
// отфильтрованные по статусу (?status=).
func (h *Handler) MySubmissions(w http.ResponseWriter, r *http.Request) {
	svc, log, ok := h.begin(w, r, "handlers.views.my_submissions")
	if !ok {
		return
	}
	st := svc.Snapshot()
	if st.User == nil {
		log.Error("authenticated view without user")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	p, err := svc.ProfileByID(r.Context(), st.User.ID)
	if err != nil {
		log.Info("failed to load submissions", sl.Err(err))
		response.AppError(w, r, err)
		return
	}
	list := filterStatus(p.Ideas, r.URL.Query().Get("status"))
	render.JSON(w, r, view("my_submissions", map[string]any{
		"ideas": list,
		"total": len(list),
	}))
}

// Ideas отдаёт страницу идей для ленты, просмотра идей других
// пользователей и модерации. keep отбирает идеи для показа, nil оставляет все.
func (h *Handler) Ideas(name string, keep func(st session.State, idea models.Idea) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, log, ok := h.begin(w, r, "handlers.views.ideas")
		if !ok {
			return
		}
		page, pageSize, err := ideas.Page(r)
		if err != nil {
			log.Info("invalid pagination", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("page and page_size must be positive integers"))
			return
		}
		res, err := svc.ListIdeas(r.Context(), page, pageSize)
		if err != nil {
			log.Info("failed to list ideas", slog.String("view", name), sl.Err(err))
			response.AppError(w, r, err)
			return
		}
		list := res.Ideas
		if keep != nil {
			st := svc.Snapshot()
			list = make([]models.Idea, 0, len(res.Ideas))
			for _, idea := range res.Ideas {
				if keep(st, idea) {
					list = append(list, idea)
				}
			}
		}
		list = filterStatus(list, r.URL.Query().Get("status"))
		render.JSON(w, r, view(name, map[string]any{
			"ideas":    list,
			"metadata": res.Metadata,
		}))
	}
}

// Approved оставляет одобренные идеи.
func Approved(_ session.State, idea models.Idea) bool {
	return idea.Status == models.IdeaApproved
}

// OthersApproved оставляет одобренные идеи других пользователей.
func OthersApproved(st session.State, idea models.Idea) bool {
	return Approved(st, idea) && (st.User == nil || idea.UserID != st.User.ID)
}

func filterStatus(list []models.Idea, status string) []models.Idea {
	if status == "" {
		return list
	}
	out := make([]models.Idea, 0, len(list))
	for _, idea := range list {
		if strings.EqualFold(idea.Status, status) {
			out = append(out, idea)
		}
	}
	return out
}

func directoryPage(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	limit = defaultDirectoryLimit
	if s := q.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("invalid limit %q", s)
		}
	}
	if s := q.Get("offset"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", s)
		}
	}
	return min(limit, maxDirectoryLimit), offset, nil
}
