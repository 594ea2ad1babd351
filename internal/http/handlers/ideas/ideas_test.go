package ideas

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/openconnect-gateway/internal/apperr"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) SubmitIdea(ctx context.Context, sub models.IdeaSubmission) (*models.Idea, error) {
	args := m.Called(ctx, sub)
	i, _ := args.Get(0).(*models.Idea)
	return i, args.Error(1)
}

func (m *MockService) ListIdeas(ctx context.Context, page, pageSize int) (*models.IdeaPage, error) {
	args := m.Called(ctx, page, pageSize)
	p, _ := args.Get(0).(*models.IdeaPage)
	return p, args.Error(1)
}

func (m *MockService) GetIdea(ctx context.Context, id string) (*models.Idea, error) {
	args := m.Called(ctx, id)
	i, _ := args.Get(0).(*models.Idea)
	return i, args.Error(1)
}

func (m *MockService) UpdateIdeaStatus(ctx context.Context, id string, upd models.IdeaStatusUpdate) (*models.Idea, error) {
	args := m.Called(ctx, id, upd)
	i, _ := args.Get(0).(*models.Idea)
	return i, args.Error(1)
}

func (m *MockService) DeleteIdea(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func newHandler(m *MockService) *Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, func(*http.Request) (Service, bool) { return m, true })
}

func withID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestSubmit(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		setup    func(m *MockService)
		wantCode int
		wantBody string
	}{
		{
			name: "submitted",
			body: `{"title":"Campus map","description":"Indoor navigation","category":"mobile","tags":["go","maps"]}`,
			setup: func(m *MockService) {
				m.On("SubmitIdea", mock.Anything, mock.MatchedBy(func(s models.IdeaSubmission) bool {
					return s.Title == "Campus map" && assert.ObjectsAreEqual([]string{"go", "maps"}, s.Tags)
				})).Return(&models.Idea{ID: "i1", Title: "Campus map", Status: models.IdeaPending}, nil).Once()
			},
			wantCode: http.StatusCreated,
			wantBody: `"status":"pending"`,
		},
		{
			name:     "missing title",
			body:     `{"description":"x","category":"web"}`,
			setup:    func(*MockService) {},
			wantCode: http.StatusUnprocessableEntity,
			wantBody: `field Title is a required field`,
		},
		{
			name:     "bad link",
			body:     `{"title":"t","description":"d","category":"c","github_link":"nope"}`,
			setup:    func(*MockService) {},
			wantCode: http.StatusUnprocessableEntity,
			wantBody: `field GitHubLink must be a valid url`,
		},
		{
			name: "backend unavailable",
			body: `{"title":"t","description":"d","category":"c"}`,
			setup: func(m *MockService) {
				m.On("SubmitIdea", mock.Anything, mock.Anything).
					Return(nil, apperr.Network("something went wrong, please try again", nil)).Once()
			},
			wantCode: http.StatusServiceUnavailable,
			wantBody: `"kind":"network"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockService)
			tt.setup(m)
			rec := httptest.NewRecorder()
			newHandler(m).Submit(rec, httptest.NewRequest(http.MethodPost, "/api/v1/ideas", strings.NewReader(tt.body)))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			m.AssertExpectations(t)
		})
	}
}

func TestList(t *testing.T) {
	m := new(MockService)
	m.On("ListIdeas", mock.Anything, 2, 100).
		Return(&models.IdeaPage{Ideas: []models.Idea{{ID: "i1"}}, Metadata: models.PageMetadata{CurrentPage: 2}}, nil).Once()

	rec := httptest.NewRecorder()
	newHandler(m).List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ideas?page=2&page_size=500", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"current_page":2`)
	m.AssertExpectations(t)
}

func TestList_InvalidPage(t *testing.T) {
	m := new(MockService)
	rec := httptest.NewRecorder()
	newHandler(m).List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ideas?page=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	m.AssertNotCalled(t, "ListIdeas", mock.Anything, mock.Anything, mock.Anything)
}

func TestPage(t *testing.T) {
	page, size, err := Page(httptest.NewRequest(http.MethodGet, "/ideas", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, page)
	assert.Equal(t, defaultPageSize, size)

	_, _, err = Page(httptest.NewRequest(http.MethodGet, "/ideas?page_size=abc", nil))
	assert.ErrorIs(t, err, errInvalidPage)
}

func TestGet(t *testing.T) {
	m := new(MockService)
	m.On("GetIdea", mock.Anything, "i1").Return(&models.Idea{ID: "i1", Title: "Campus map"}, nil).Once()
	m.On("GetIdea", mock.Anything, "missing").Return(nil, apperr.Validation("not found", nil)).Once()

	rec := httptest.NewRecorder()
	newHandler(m).Get(rec, withID(httptest.NewRequest(http.MethodGet, "/api/v1/ideas/i1", nil), "i1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Campus map"`)

	rec = httptest.NewRecorder()
	newHandler(m).Get(rec, withID(httptest.NewRequest(http.MethodGet, "/api/v1/ideas/missing", nil), "missing"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"not found"`)
	m.AssertExpectations(t)
}

func TestSetStatus(t *testing.T) {
	t.Run("approved", func(t *testing.T) {
		m := new(MockService)
		upd := models.IdeaStatusUpdate{Status: models.IdeaApproved, Feedback: "great"}
		m.On("UpdateIdeaStatus", mock.Anything, "i1", upd).
			Return(&models.Idea{ID: "i1", Status: models.IdeaApproved, Feedback: "great"}, nil).Once()

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/ideas/i1", strings.NewReader(`{"status":"approved","feedback":"great"}`))
		newHandler(m).SetStatus(rec, withID(req, "i1"))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"approved"`)
		m.AssertExpectations(t)
	})

	t.Run("unknown status", func(t *testing.T) {
		m := new(MockService)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/ideas/i1", strings.NewReader(`{"status":"archived"}`))
		newHandler(m).SetStatus(rec, withID(req, "i1"))

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "must be one of: pending approved rejected")
	})
}

func TestRemove(t *testing.T) {
	m := new(MockService)
	m.On("DeleteIdea", mock.Anything, "i1").Return(nil).Once()
	m.On("DeleteIdea", mock.Anything, "i2").Return(apperr.Auth("you do not have access to this resource")).Once()

	rec := httptest.NewRecorder()
	newHandler(m).Remove(rec, withID(httptest.NewRequest(http.MethodDelete, "/api/v1/ideas/i1", nil), "i1"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	newHandler(m).Remove(rec, withID(httptest.NewRequest(http.MethodDelete, "/api/v1/ideas/i2", nil), "i2"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	m.AssertExpectations(t)
}
