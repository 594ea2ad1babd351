package session

import (
	"context"

	"github.com/magabrotheeeer/openconnect-gateway/internal/backend"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

// API — клиент backend одной сессии. Если backend отвергает токен,
// сессия завершается до возврата ошибки вызывающему.
type API struct {
	client *backend.Client
	store  *Store
}

// NewAPI связывает клиент backend с сессией.
func NewAPI(client *backend.Client, store *Store) *API {
	return &API{client: client, store: store}
}

func (a *API) observe(ctx context.Context, err error) error {
	if err != nil {
		a.store.ObserveError(ctx, err)
	}
	return err
}

// ActivateUser активирует учётную запись по токену из письма.
func (a *API) ActivateUser(ctx context.Context, token string) (*models.User, error) {
	u, err := a.client.ActivateUser(ctx, token)
	return u, a.observe(ctx, err)
}

// RequestPasswordReset отправляет письмо со ссылкой для сброса пароля.
func (a *API) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	msg, err := a.client.RequestPasswordReset(ctx, email)
	return msg, a.observe(ctx, err)
}

// ResetPassword задаёт новый пароль по токену сброса.
func (a *API) ResetPassword(ctx context.Context, token, password string) (string, error) {
	msg, err := a.client.ResetPassword(ctx, token, password)
	return msg, a.observe(ctx, err)
}

// GoogleSignInURL возвращает адрес начала входа через Google.
func (a *API) GoogleSignInURL() string {
	return a.client.GoogleSignInURL()
}

// SubmitIdea отправляет идею на модерацию.
func (a *API) SubmitIdea(ctx context.Context, sub models.IdeaSubmission) (*models.Idea, error) {
	idea, err := a.client.SubmitIdea(ctx, sub)
	return idea, a.observe(ctx, err)
}

// ListIdeas возвращает страницу идей.
func (a *API) ListIdeas(ctx context.Context, page, pageSize int) (*models.IdeaPage, error) {
	p, err := a.client.ListIdeas(ctx, page, pageSize)
	return p, a.observe(ctx, err)
}

// GetIdea возвращает идею по идентификатору.
func (a *API) GetIdea(ctx context.Context, id string) (*models.Idea, error) {
	idea, err := a.client.GetIdea(ctx, id)
	return idea, a.observe(ctx, err)
}

// UpdateIdeaStatus меняет статус идеи.
func (a *API) UpdateIdeaStatus(ctx context.Context, id string, upd models.IdeaStatusUpdate) (*models.Idea, error) {
	idea, err := a.client.UpdateIdeaStatus(ctx, id, upd)
	return idea, a.observe(ctx, err)
}

// DeleteIdea удаляет идею.
func (a *API) DeleteIdea(ctx context.Context, id string) error {
	return a.observe(ctx, a.client.DeleteIdea(ctx, id))
}

// Directory возвращает страницу каталога сообщества.
func (a *API) Directory(ctx context.Context, limit, offset int) (*models.Directory, error) {
	d, err := a.client.Directory(ctx, limit, offset)
	return d, a.observe(ctx, err)
}

// ProfileByID возвращает профиль пользователя с его идеями.
func (a *API) ProfileByID(ctx context.Context, id string) (*models.ProfileWithIdeas, error) {
	p, err := a.client.ProfileByID(ctx, id)
	return p, a.observe(ctx, err)
}
