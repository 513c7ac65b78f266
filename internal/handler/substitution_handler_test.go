package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolops/staff-leave-api/internal/middleware"
	"github.com/schoolops/staff-leave-api/internal/models"
	appErrors "github.com/schoolops/staff-leave-api/pkg/errors"
)

type substitutionServiceMock struct {
	resolveResp *models.Substitution
	resolveErr  error
	lastActor   string
	listResp    []models.Substitution
	lastFilter  models.SubstitutionFilter
}

func (m *substitutionServiceMock) Accept(ctx context.Context, substitutionID, actorTeacherID string) (*models.Substitution, error) {
	m.lastActor = actorTeacherID
	return m.resolveResp, m.resolveErr
}

func (m *substitutionServiceMock) Reject(ctx context.Context, substitutionID, actorTeacherID string) (*models.Substitution, error) {
	m.lastActor = actorTeacherID
	return m.resolveResp, m.resolveErr
}

func (m *substitutionServiceMock) Get(ctx context.Context, id string) (*models.Substitution, error) {
	if m.resolveResp == nil {
		return nil, appErrors.ErrNotFound
	}
	return m.resolveResp, nil
}

func (m *substitutionServiceMock) List(ctx context.Context, filter models.SubstitutionFilter) ([]models.Substitution, *models.Pagination, error) {
	m.lastFilter = filter
	return m.listResp, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.listResp)}, nil
}

func TestSubstitutionHandlerAccept(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &substitutionServiceMock{
		resolveResp: &models.Substitution{ID: "s1", Status: models.SubstitutionAccepted},
	}
	handler := NewSubstitutionHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/substitutions/s1/accept", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	c.Set(middleware.ContextUserKey, teacherClaims("t2"))

	handler.Accept(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t2", mockSvc.lastActor)
}

func TestSubstitutionHandlerRejectForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &substitutionServiceMock{resolveErr: appErrors.ErrForbidden}
	handler := NewSubstitutionHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/substitutions/s1/reject", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	c.Set(middleware.ContextUserKey, teacherClaims("t9"))

	handler.Reject(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestSubstitutionHandlerResolveWithoutTeacherIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSubstitutionHandler(&substitutionServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/substitutions/s1/accept", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Accept(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubstitutionHandlerListParsesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &substitutionServiceMock{listResp: []models.Substitution{{ID: "s1"}}}
	handler := NewSubstitutionHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/substitutions?status=pending&date_from=2026-03-02&page=2&page_size=10", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastFilter.Status)
	assert.Equal(t, models.SubstitutionPending, *mockSvc.lastFilter.Status)
	require.NotNil(t, mockSvc.lastFilter.DateFrom)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), *mockSvc.lastFilter.DateFrom)
	assert.Equal(t, 2, mockSvc.lastFilter.Page)
	assert.Equal(t, 10, mockSvc.lastFilter.PageSize)
}

func TestSubstitutionHandlerListMine(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &substitutionServiceMock{listResp: []models.Substitution{{ID: "s1", SubstituteTeacherID: "t2"}}}
	handler := NewSubstitutionHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/substitutions/mine", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, teacherClaims("t2"))

	handler.ListMine(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t2", mockSvc.lastFilter.TeacherID)
}
