package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/openconnect-gateway/internal/backend"
	"github.com/magabrotheeeer/openconnect-gateway/internal/cache"
	"github.com/magabrotheeeer/openconnect-gateway/internal/config"
	"github.com/magabrotheeeer/openconnect-gateway/internal/session"
)

// fakeBackend — минимальный REST backend с одним пользователем.
type fakeBackend struct {
	mu        sync.Mutex
	completed bool
}

func (b *fakeBackend) profile() map[string]any {
	return map[string]any{"id": "u1", "username": "ada", "email": "ada@example.com", "has_completed_profile": b.completed}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/auth/tokens/authentication":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"authentication_token": map[string]any{
				"token":  "tok",
				"expiry": time.Now().Add(time.Hour).Format(time.RFC3339),
			},
			"user": b.profile(),
		})
	case r.Header.Get("Authorization") != "Bearer tok":
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid or missing authentication token"}`))
	case r.Method == http.MethodGet && r.URL.Path == "/profile":
		_ = json.NewEncoder(w).Encode(map[string]any{"profile": b.profile()})
	case r.Method == http.MethodPatch && r.URL.Path == "/profile":
		var patch map[string]any
		_ = json.NewDecoder(r.Body).Decode(&patch)
		if v, ok := patch["has_completed_profile"].(bool); ok {
			b.completed = v
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"profile": patch})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestGateway(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	be := httptest.NewServer(&fakeBackend{})
	t.Cleanup(be.Close)

	cfg := &config.Config{
		Backend: config.Backend{BaseURL: be.URL, TimeoutBackend: time.Second, BreakerFailures: 100, BreakerOpenDelay: time.Second},
		Session: config.Session{
			CookieName:          "oc_session",
			ExpiryCheckInterval: time.Hour,
			DefaultTokenTTL:     time.Hour,
			IdleTTL:             time.Hour,
			LoginRate:           100,
			LoginBurst:          100,
			DirectoryCacheTTL:   time.Minute,
		},
		Routes: config.Routes{
			Login:        "/auth/login",
			Onboarding:   "/onboarding",
			Landing:      "/profile",
			AdminLanding: "/admin",
			OAuthLanding: "/community",
		},
	}

	api := backend.New(cfg.Backend, log)
	reg := session.NewRegistry(api, cache.NewMemoryCredentials(), log, session.RegistryOptions{
		ExpiryCheckInterval: cfg.ExpiryCheckInterval,
		IdleTTL:             cfg.IdleTTL,
		DefaultTokenTTL:     cfg.DefaultTokenTTL,
	})
	t.Cleanup(reg.Close)

	router := chi.NewRouter()
	RegisterRoutes(router, log, cfg, Deps{Registry: reg, SignInURL: api.GoogleSignInURL()})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func newBrowser(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func do(t *testing.T, c *http.Client, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestGateway_OnboardingGate(t *testing.T) {
	srv := newTestGateway(t)
	browser := newBrowser(t)

	// анонимный пользователь отправляется на вход, как только сессия проверена
	require.Eventually(t, func() bool {
		resp := do(t, browser, http.MethodGet, srv.URL+"/profile", "")
		return resp.StatusCode == http.StatusSeeOther && resp.Header.Get("Location") == "/auth/login"
	}, 2*time.Second, 20*time.Millisecond)

	resp := do(t, browser, http.MethodPost, srv.URL+"/api/v1/auth/login", `{"email":"ada@example.com","password":"pa55word"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, browser, http.MethodGet, srv.URL+"/profile", "")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/onboarding", resp.Header.Get("Location"))

	resp = do(t, browser, http.MethodPatch, srv.URL+"/api/v1/profile", `{"has_completed_profile":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, browser, http.MethodGet, srv.URL+"/profile", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Data struct {
			View string `json:"view"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "profile", body.Data.View)

	resp = do(t, browser, http.MethodPost, srv.URL+"/api/v1/auth/logout", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, browser, http.MethodGet, srv.URL+"/profile", "")
	assert.Equal(t, "/auth/login", resp.Header.Get("Location"))
}

func TestGateway_APIRequiresSession(t *testing.T) {
	srv := newTestGateway(t)
	browser := newBrowser(t)

	require.Eventually(t, func() bool {
		return do(t, browser, http.MethodGet, srv.URL+"/api/v1/ideas", "").StatusCode == http.StatusUnauthorized
	}, 2*time.Second, 20*time.Millisecond)
}

func TestGateway_Infrastructure(t *testing.T) {
	srv := newTestGateway(t)
	browser := newBrowser(t)

	resp := do(t, browser, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, browser, http.MethodGet, srv.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, browser, http.MethodGet, srv.URL+"/docs/doc.json", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc struct {
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "/api/v1", doc.BasePath)
	assert.Contains(t, doc.Paths, "/auth/login")
	assert.Contains(t, doc.Paths["/ideas/{id}"], "patch")

	resp = do(t, browser, http.MethodGet, srv.URL+"/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
