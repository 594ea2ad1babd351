package password

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/openconnect-gateway/internal/apperr"
)

type APIMock struct {
	mock.Mock
}

func (m *APIMock) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *APIMock) ResetPassword(ctx context.Context, token, password string) (string, error) {
	args := m.Called(ctx, token, password)
	return args.String(0), args.Error(1)
}

func newHandler(m *APIMock) *Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, func(*http.Request) (Service, bool) { return m, true }, "/auth/login")
}

func TestForgot(t *testing.T) {
	m := new(APIMock)
	m.On("RequestPasswordReset", mock.Anything, "a@b.c").Return("", nil).Once()

	rec := httptest.NewRecorder()
	newHandler(m).Forgot(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c"}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"OK","data":{"message":"if an account exists for this email, a reset link has been sent"}}`, rec.Body.String())
	m.AssertExpectations(t)
}

func TestForgot_InvalidEmail(t *testing.T) {
	m := new(APIMock)
	rec := httptest.NewRecorder()
	newHandler(m).Forgot(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope"}`)))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	m.AssertNotCalled(t, "RequestPasswordReset", mock.Anything, mock.Anything)
}

func TestReset(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		setup    func(m *APIMock)
		wantCode int
		wantBody string
	}{
		{
			name: "reset",
			body: `{"token":"T","password":"newpassword"}`,
			setup: func(m *APIMock) {
				m.On("ResetPassword", mock.Anything, "T", "newpassword").Return("password updated", nil).Once()
			},
			wantCode: http.StatusOK,
			wantBody: `{"status":"OK","data":{"message":"password updated","redirect":"/auth/login"}}`,
		},
		{
			name: "expired token",
			body: `{"token":"T","password":"newpassword"}`,
			setup: func(m *APIMock) {
				m.On("ResetPassword", mock.Anything, "T", "newpassword").Return("", apperr.Auth("the link is invalid or has expired")).Once()
			},
			wantCode: http.StatusUnauthorized,
			wantBody: `{"status":"Error","error":"the link is invalid or has expired","kind":"auth"}`,
		},
		{
			name:     "broken body",
			body:     `{`,
			setup:    func(*APIMock) {},
			wantCode: http.StatusBadRequest,
			wantBody: `{"status":"Error","error":"invalid request body"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(APIMock)
			tt.setup(m)
			rec := httptest.NewRecorder()
			newHandler(m).Reset(rec, httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tt.body)))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			m.AssertExpectations(t)
		})
	}
}
