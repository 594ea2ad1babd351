package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/magabrotheeeer/openconnect-gateway/internal/apperr"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

type profileEnvelope struct {
	Profile             *models.User `json:"profile"`
	HasCompletedProfile *bool        `json:"has_completed_profile"`
}

type patchEnvelope struct {
	Profile             *models.UserPatch `json:"profile"`
	HasCompletedProfile *bool             `json:"has_completed_profile"`
}

type profileDetailEnvelope struct {
	Response *struct {
		AvatarURL  string        `json:"avatarURL"`
		Ideas      []models.Idea `json:"ideas"`
		IdeasCount int           `json:"ideas_count"`
		Profile    models.User   `json:"profile"`
	} `json:"response"`
}

// CurrentProfile возвращает профиль владельца токена.
func (c *Client) CurrentProfile(ctx context.Context) (*models.User, error) {
	var out profileEnvelope
	err := c.do(ctx, "backend.CurrentProfile", request{
		method: http.MethodGet,
		path:   "/profile",
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Profile == nil {
		return nil, apperr.Network("unexpected response from backend", nil)
	}
	if out.HasCompletedProfile != nil {
		out.Profile.HasCompletedProfile = *out.HasCompletedProfile
	}
	return out.Profile, nil
}

// CreateProfile заполняет профиль при онбординге. Возвращает поля,
// которые backend прислал в ответе.
func (c *Client) CreateProfile(ctx context.Context, patch models.UserPatch) (models.UserPatch, error) {
	return c.writeProfile(ctx, "backend.CreateProfile", http.MethodPost, patch)
}

// UpdateProfile обновляет часть полей профиля.
func (c *Client) UpdateProfile(ctx context.Context, patch models.UserPatch) (models.UserPatch, error) {
	return c.writeProfile(ctx, "backend.UpdateProfile", http.MethodPatch, patch)
}

func (c *Client) writeProfile(ctx context.Context, op, method string, patch models.UserPatch) (models.UserPatch, error) {
	var out patchEnvelope
	err := c.do(ctx, op, request{
		method: method,
		path:   "/profile",
		body:   patch,
		auth:   true,
	}, &out)
	if err != nil {
		return models.UserPatch{}, err
	}
	var result models.UserPatch
	if out.Profile != nil {
		result = *out.Profile
	}
	if out.HasCompletedProfile != nil {
		result.HasCompletedProfile = out.HasCompletedProfile
	}
	return result, nil
}

// Directory возвращает страницу каталога сообщества: профили вместе с их идеями.
func (c *Client) Directory(ctx context.Context, limit, offset int) (*models.Directory, error) {
	var out models.Directory
	err := c.do(ctx, "backend.Directory", request{
		method: http.MethodGet,
		path:   "/profiles/ideas",
		query: url.Values{
			"limit":  {strconv.Itoa(limit)},
			"offset": {strconv.Itoa(offset)},
		},
		auth: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	for i := range out.Profiles {
		if out.Profiles[i].Profile.Skills == nil {
			out.Profiles[i].Profile.Skills = []string{}
		}
		if out.Profiles[i].Ideas == nil {
			out.Profiles[i].Ideas = []models.Idea{}
		}
	}
	return &out, nil
}

// ProfileByID возвращает профиль другого пользователя с его идеями.
func (c *Client) ProfileByID(ctx context.Context, id string) (*models.ProfileWithIdeas, error) {
	var out profileDetailEnvelope
	err := c.do(ctx, "backend.ProfileByID", request{
		method: http.MethodGet,
		path:   "/profiles/" + url.PathEscape(id),
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Response == nil {
		return nil, apperr.Network("unexpected response from backend", nil)
	}
	p := out.Response.Profile
	if p.AvatarURL == "" {
		p.AvatarURL = out.Response.AvatarURL
	}
	return &models.ProfileWithIdeas{
		Profile:    p,
		Ideas:      out.Response.Ideas,
		IdeasCount: out.Response.IdeasCount,
	}, nil
}
