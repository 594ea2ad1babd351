package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/magabrotheeeer/openconnect-gateway/internal/apperr"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

type ideaEnvelope struct {
	Idea *models.Idea `json:"idea"`
}

// SubmitIdea отправляет новую идею на модерацию.
func (c *Client) SubmitIdea(ctx context.Context, sub models.IdeaSubmission) (*models.Idea, error) {
	if sub.Tags == nil {
		sub.Tags = []string{}
	}
	var out ideaEnvelope
	err := c.do(ctx, "backend.SubmitIdea", request{
		method: http.MethodPost,
		path:   "/ideas",
		body:   sub,
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return requireIdea(out)
}

// ListIdeas возвращает страницу идей. Нумерация страниц с единицы.
func (c *Client) ListIdeas(ctx context.Context, page, pageSize int) (*models.IdeaPage, error) {
	var out models.IdeaPage
	err := c.do(ctx, "backend.ListIdeas", request{
		method: http.MethodGet,
		path:   "/ideas",
		query: url.Values{
			"page":      {strconv.Itoa(page)},
			"page_size": {strconv.Itoa(pageSize)},
		},
		auth: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Ideas == nil {
		out.Ideas = []models.Idea{}
	}
	return &out, nil
}

// GetIdea возвращает одну идею.
func (c *Client) GetIdea(ctx context.Context, id string) (*models.Idea, error) {
	var out ideaEnvelope
	err := c.do(ctx, "backend.GetIdea", request{
		method: http.MethodGet,
		path:   "/ideas/" + url.PathEscape(id),
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return requireIdea(out)
}

// UpdateIdeaStatus меняет статус идеи и, если передан, отзыв модератора.
func (c *Client) UpdateIdeaStatus(ctx context.Context, id string, upd models.IdeaStatusUpdate) (*models.Idea, error) {
	var out ideaEnvelope
	err := c.do(ctx, "backend.UpdateIdeaStatus", request{
		method: http.MethodPatch,
		path:   "/ideas/" + url.PathEscape(id),
		body:   upd,
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return requireIdea(out)
}

// DeleteIdea удаляет идею владельца.
func (c *Client) DeleteIdea(ctx context.Context, id string) error {
	return c.do(ctx, "backend.DeleteIdea", request{
		method: http.MethodDelete,
		path:   "/ideas/" + url.PathEscape(id),
		auth:   true,
	}, nil)
}

func requireIdea(out ideaEnvelope) (*models.Idea, error) {
	if out.Idea == nil {
		return nil, apperr.Network("unexpected response from backend", nil)
	}
	return out.Idea, nil
}
