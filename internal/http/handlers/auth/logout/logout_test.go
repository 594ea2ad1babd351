package logout

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/openconnect-gateway/internal/session"
)

type SessionMock struct {
	mock.Mock
}

func (m *SessionMock) Logout(ctx context.Context, reason string) {
	m.Called(ctx, reason)
}

func TestLogoutHandler(t *testing.T) {
	m := new(SessionMock)
	m.On("Logout", mock.Anything, session.ReasonUser).Twice()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(log, func(*http.Request) (Service, bool) { return m, true }, "/auth/login")

	for range 2 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"OK","data":{"redirect":"/auth/login"}}`, rec.Body.String())
	}
	m.AssertExpectations(t)
}
