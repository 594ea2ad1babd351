package guard

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/openconnect-gateway/internal/config"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
	"github.com/magabrotheeeer/openconnect-gateway/internal/session"
)

var testRoutes = config.Routes{
	Login:        "/auth/login",
	Onboarding:   "/onboarding",
	Landing:      "/profile",
	AdminLanding: "/admin",
	OAuthLanding: "/community",
}

func newTestGuard() *Guard {
	return New(testRoutes, DefaultViews(testRoutes))
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	checking   = session.State{IsLoading: true}
	anonymous  = session.State{}
	incomplete = session.State{IsAuthenticated: true, User: &models.User{ID: "u1"}}
	complete   = session.State{IsAuthenticated: true, HasCompletedOnboarding: true, User: &models.User{ID: "u1"}}
	admin      = session.State{IsAuthenticated: true, HasCompletedOnboarding: true, IsAdmin: true, User: &models.User{ID: "u1", UserType: "admin"}}
)

func TestClassify(t *testing.T) {
	assert.Equal(t, Checking, Classify(checking))
	assert.Equal(t, Checking, Classify(session.State{IsLoading: true, IsAuthenticated: true}))
	assert.Equal(t, Anonymous, Classify(anonymous))
	assert.Equal(t, AuthenticatedIncomplete, Classify(incomplete))
	assert.Equal(t, AuthenticatedIncomplete, Classify(session.State{IsAuthenticated: true, IsAdmin: true}))
	assert.Equal(t, AuthenticatedComplete, Classify(complete))
	assert.Equal(t, AuthenticatedAdmin, Classify(admin))
}

func TestResolve(t *testing.T) {
	g := newTestGuard()

	tests := []struct {
		name       string
		state      session.State
		path       string
		wantAction Action
		wantTarget string
	}{
		{"checking on guarded view", checking, "/profile", Loading, ""},
		{"checking on public view", checking, "/auth/login", Render, ""},
		{"anonymous on guarded view", anonymous, "/profile", Redirect, "/auth/login"},
		{"anonymous on admin view", anonymous, "/admin/ideas", Redirect, "/auth/login"},
		{"anonymous on onboarding", anonymous, "/onboarding", Redirect, "/auth/login"},
		{"anonymous on public view", anonymous, "/", Render, ""},
		{"incomplete on guarded view", incomplete, "/community", Redirect, "/onboarding"},
		{"incomplete on onboarding", incomplete, "/onboarding", Render, ""},
		{"incomplete on admin view", incomplete, "/admin", Redirect, "/onboarding"},
		{"complete on onboarding", complete, "/onboarding", Redirect, "/profile"},
		{"complete on guarded view", complete, "/feed", Render, ""},
		{"complete on user profile", complete, "/profile/42", Render, ""},
		{"complete on admin view", complete, "/admin", Redirect, "/profile"},
		{"admin on admin view", admin, "/admin/ideas", Render, ""},
		{"admin on onboarding", admin, "/onboarding", Redirect, "/admin"},
		{"admin on member view", admin, "/community", Render, ""},
		{"unknown path", complete, "/nope", Redirect, "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Resolve(tt.state, tt.path)
			assert.Equal(t, tt.wantAction, d.Action)
			assert.Equal(t, tt.wantTarget, d.Target)
		})
	}
}

func TestMatchPath(t *testing.T) {
	assert.True(t, matchPath("/profile/{id}", "/profile/42"))
	assert.True(t, matchPath("/profile/{id}", "/profile/42/"))
	assert.False(t, matchPath("/profile/{id}", "/profile"))
	assert.False(t, matchPath("/profile/{id}", "/profile/42/ideas"))
	assert.True(t, matchPath("/", "/"))
	assert.False(t, matchPath("/", "/feed"))
}

// fakeSource — изменяемое состояние сессии с подпиской.
type fakeSource struct {
	mu    sync.Mutex
	state session.State
	subs  []chan struct{}
}

func (f *fakeSource) Snapshot() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSource) Subscribe() (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{}, 1)
	f.subs = append(f.subs, ch)
	return ch, func() {}
}

func (f *fakeSource) set(st session.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = st
	for _, ch := range f.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func TestNavigator_FollowsRedirects(t *testing.T) {
	src := &fakeSource{state: incomplete}
	n := NewNavigator(newTestGuard(), src)

	d := n.Navigate("/community")
	assert.Equal(t, Render, d.Action)
	assert.Equal(t, "onboarding", d.View)
	assert.Equal(t, "/onboarding", n.Current())
}

func TestNavigator_ReevaluatesOnStateChange(t *testing.T) {
	src := &fakeSource{state: checking}
	n := NewNavigator(newTestGuard(), src)
	require.Equal(t, Loading, n.Navigate("/profile").Action)

	decisions := make(chan Decision, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx, func(d Decision) { decisions <- d })

	// Run подписывается асинхронно
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.subs) == 1
	}, time.Second, 5*time.Millisecond)

	src.set(anonymous)
	select {
	case d := <-decisions:
		assert.Equal(t, Render, d.Action)
		assert.Equal(t, "login", d.View)
		assert.Equal(t, "/auth/login", d.Target)
	case <-time.After(time.Second):
		t.Fatal("no decision after session ended")
	}
	assert.Equal(t, "/auth/login", n.Current())
}

func TestRequireView(t *testing.T) {
	g := newTestGuard()
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name         string
		state        session.State
		wantCode     int
		wantLocation string
		wantCalled   bool
	}{
		{"loading", checking, http.StatusAccepted, "", false},
		{"redirect", anonymous, http.StatusSeeOther, "/auth/login", false},
		{"render", complete, http.StatusOK, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			state := func(*http.Request) (session.State, bool) { return tt.state, true }
			h := RequireView(newNoopLogger(), g, Member("profile", "/profile"), state)(next)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profile", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			assert.Equal(t, tt.wantCalled, called)
			if tt.wantCode == http.StatusAccepted {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
				var body struct {
					Data map[string]string `json:"data"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, "loading", body.Data["view"])
			}
		})
	}
}

func TestRequireAPI(t *testing.T) {
	g := newTestGuard()
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		view     View
		state    session.State
		wantCode int
	}{
		{"loading", Member("ideas", "/ideas"), checking, http.StatusServiceUnavailable},
		{"anonymous", Member("ideas", "/ideas"), anonymous, http.StatusUnauthorized},
		{"incomplete", Member("ideas", "/ideas"), incomplete, http.StatusForbidden},
		{"not admin", Admin("moderation", "/ideas"), complete, http.StatusForbidden},
		{"admin", Admin("moderation", "/ideas"), admin, http.StatusOK},
		{"missing scope", Member("ideas", "/ideas"), session.State{}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := func(*http.Request) (session.State, bool) { return tt.state, tt.name != "missing scope" }
			h := RequireAPI(newNoopLogger(), g, tt.view, state)(next)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ideas", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
