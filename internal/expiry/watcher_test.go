package expiry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/openconnect-gateway/internal/cache"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

type mockLogouter struct {
	mock.Mock
}

func (m *mockLogouter) Logout(ctx context.Context, reason string) {
	m.Called(ctx, reason)
}

type failingSource struct{}

func (failingSource) Load(context.Context) (models.Credential, error) {
	return models.Credential{}, errors.New("connection refused")
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newWatcher(src CredentialSource, s Logouter, now time.Time) *Watcher {
	w := New(src, s, time.Minute, newNoopLogger())
	w.now = func() time.Time { return now }
	return w
}

func TestCheck(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("expired five minutes ago", func(t *testing.T) {
		store := cache.NewMemoryCredentialStore()
		require.NoError(t, store.Save(ctx, models.Credential{Token: "tok", Expiry: now.Add(-5 * time.Minute)}))
		s := new(mockLogouter)
		s.On("Logout", mock.Anything, ReasonExpired).Once()

		assert.True(t, newWatcher(store, s, now).Check(ctx))
		s.AssertNumberOfCalls(t, "Logout", 1)
	})

	t.Run("expires in an hour", func(t *testing.T) {
		store := cache.NewMemoryCredentialStore()
		require.NoError(t, store.Save(ctx, models.Credential{Token: "tok", Expiry: now.Add(time.Hour)}))
		s := new(mockLogouter)

		assert.False(t, newWatcher(store, s, now).Check(ctx))
		s.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
	})

	t.Run("expires exactly now", func(t *testing.T) {
		store := cache.NewMemoryCredentialStore()
		require.NoError(t, store.Save(ctx, models.Credential{Token: "tok", Expiry: now}))
		s := new(mockLogouter)
		s.On("Logout", mock.Anything, ReasonExpired).Once()

		assert.True(t, newWatcher(store, s, now).Check(ctx))
	})

	t.Run("no token", func(t *testing.T) {
		s := new(mockLogouter)
		assert.False(t, newWatcher(cache.NewMemoryCredentialStore(), s, now).Check(ctx))
		s.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
	})

	t.Run("unparseable expiry", func(t *testing.T) {
		store := cache.NewMemoryCredentialStore()
		store.SetRaw(cache.TokenKey, "tok")
		store.SetRaw(cache.TokenExpiryKey, "tomorrow")
		s := new(mockLogouter)
		s.On("Logout", mock.Anything, ReasonInvalid).Once()

		assert.True(t, newWatcher(store, s, now).Check(ctx))
		s.AssertExpectations(t)
	})

	t.Run("storage failure", func(t *testing.T) {
		s := new(mockLogouter)
		assert.False(t, newWatcher(failingSource{}, s, now).Check(ctx))
		s.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
	})
}

func TestRun_ChecksImmediately(t *testing.T) {
	now := time.Now()
	store := cache.NewMemoryCredentialStore()
	require.NoError(t, store.Save(context.Background(), models.Credential{Token: "tok", Expiry: now.Add(-time.Minute)}))

	done := make(chan struct{})
	s := new(mockLogouter)
	s.On("Logout", mock.Anything, ReasonExpired).Run(func(mock.Arguments) {
		close(done)
	}).Once()

	w := New(store, s, time.Hour, newNoopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expired token was not detected on start")
	}
}
