package signup

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/openconnect-gateway/internal/apperr"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

type SessionMock struct {
	mock.Mock
}

func (m *SessionMock) Signup(ctx context.Context, username, email, password string) (*models.User, error) {
	args := m.Called(ctx, username, email, password)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestSignupHandler(t *testing.T) {
	tests := []struct {
		name      string
		req       Request
		setup     func(m *SessionMock)
		wantCode  int
		wantError string
		wantField string
	}{
		{
			name: "created",
			req:  Request{Username: "ada", Email: "a@b.c", Password: "password1"},
			setup: func(m *SessionMock) {
				m.On("Signup", mock.Anything, "ada", "a@b.c", "password1").Return(&models.User{ID: "u1"}, nil).Once()
			},
			wantCode: http.StatusCreated,
		},
		{
			name:      "short password",
			req:       Request{Username: "ada", Email: "a@b.c", Password: "short"},
			setup:     func(*SessionMock) {},
			wantCode:  http.StatusUnprocessableEntity,
			wantError: "field Password must be at least 8 characters long",
			wantField: "Password",
		},
		{
			name: "email taken",
			req:  Request{Username: "ada", Email: "a@b.c", Password: "password1"},
			setup: func(m *SessionMock) {
				m.On("Signup", mock.Anything, "ada", "a@b.c", "password1").
					Return(nil, apperr.Validation("invalid input", map[string][]string{"email": {"a user with this email address already exists"}})).Once()
			},
			wantCode:  http.StatusUnprocessableEntity,
			wantError: "invalid input",
			wantField: "email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(SessionMock)
			tt.setup(m)
			h := New(newNoopLogger(), func(*http.Request) (Service, bool) { return m, true })

			body, err := json.Marshal(tt.req)
			require.NoError(t, err)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewReader(body)))

			assert.Equal(t, tt.wantCode, rec.Code)
			var resp struct {
				Error  string              `json:"error"`
				Fields map[string][]string `json:"fields"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
			if tt.wantField != "" {
				assert.NotEmpty(t, resp.Fields[tt.wantField])
			}
			m.AssertExpectations(t)
		})
	}
}
