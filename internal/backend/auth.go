package backend

import (
	"context"
	"net/http"
	"strings"

	"github.com/magabrotheeeer/openconnect-gateway/internal/apperr"
	"github.com/magabrotheeeer/openconnect-gateway/internal/lib/jwt"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

type userEnvelope struct {
	User *models.User `json:"user"`
}

type signInResponse struct {
	AuthenticationToken *models.AuthenticationToken `json:"authentication_token"`
	User                *models.User                `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// SignUp создаёт учётную запись. Учётная запись неактивна до подтверждения email.
func (c *Client) SignUp(ctx context.Context, req models.SignUpRequest) (*models.User, error) {
	var out userEnvelope
	err := c.do(ctx, "backend.SignUp", request{
		method: http.MethodPost,
		path:   "/users",
		body:   req,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, apperr.Network("unexpected response from backend", nil)
	}
	return out.User, nil
}

// ActivateUser активирует учётную запись по токену из письма.
func (c *Client) ActivateUser(ctx context.Context, token string) (*models.User, error) {
	var out userEnvelope
	err := c.do(ctx, "backend.ActivateUser", request{
		method: http.MethodPut,
		path:   "/users/activated",
		body:   map[string]string{"token": token},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, apperr.Network("unexpected response from backend", nil)
	}
	return out.User, nil
}

// SignIn обменивает email и пароль на bearer-токен. Профиль в ответе
// может отсутствовать, тогда его нужно запросить через CurrentProfile.
func (c *Client) SignIn(ctx context.Context, creds models.Credentials) (*models.SignInResult, error) {
	var out signInResponse
	err := c.do(ctx, "backend.SignIn", request{
		method: http.MethodPost,
		path:   "/auth/tokens/authentication",
		body:   creds,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.AuthenticationToken == nil || out.AuthenticationToken.Token == "" {
		return nil, apperr.Network("unexpected response from backend", nil)
	}

	token := out.AuthenticationToken.Token
	expiry, perr := parseTime(out.AuthenticationToken.Expiry)
	if perr != nil {
		// срок можно восстановить из самого токена, если это JWT
		at, jerr := jwt.Expiry(token)
		if jerr != nil {
			return nil, apperr.Network("sign-in response has no usable expiry", perr)
		}
		expiry = at
	}

	return &models.SignInResult{
		Credential: models.Credential{Token: token, Expiry: expiry},
		User:       out.User,
	}, nil
}

// RequestPasswordReset отправляет письмо со ссылкой для сброса пароля.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	var out messageResponse
	err := c.do(ctx, "backend.RequestPasswordReset", request{
		method: http.MethodPost,
		path:   "/auth/password-reset",
		body:   map[string]string{"email": email},
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

// ResetPassword устанавливает новый пароль по токену сброса.
func (c *Client) ResetPassword(ctx context.Context, token, password string) (string, error) {
	var out messageResponse
	err := c.do(ctx, "backend.ResetPassword", request{
		method: http.MethodPut,
		path:   "/users/password",
		body:   map[string]string{"token": token, "password": password},
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

// GoogleSignInURL — адрес, на который браузер уходит для входа через Google.
// После входа backend возвращает браузер на /auth/google/callback?token=...
func (c *Client) GoogleSignInURL() string {
	return strings.TrimRight(c.baseURL, "/") + "/auth/google/login"
}
