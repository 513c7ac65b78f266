package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schoolops/staff-leave-api/internal/models"
	appErrors "github.com/schoolops/staff-leave-api/pkg/errors"
	"github.com/schoolops/staff-leave-api/pkg/response"
)

type substitutionService interface {
	Accept(ctx context.Context, substitutionID, actorTeacherID string) (*models.Substitution, error)
	Reject(ctx context.Context, substitutionID, actorTeacherID string) (*models.Substitution, error)
	Get(ctx context.Context, id string) (*models.Substitution, error)
	List(ctx context.Context, filter models.SubstitutionFilter) ([]models.Substitution, *models.Pagination, error)
}

// SubstitutionHandler exposes the substitution assignment endpoints.
type SubstitutionHandler struct {
	service substitutionService
}

// NewSubstitutionHandler builds a new handler.
func NewSubstitutionHandler(svc substitutionService) *SubstitutionHandler {
	return &SubstitutionHandler{service: svc}
}

// Get godoc
// @Summary Get a substitution assignment
// @Tags Substitutions
// @Produce json
// @Param id path string true "Substitution ID"
// @Success 200 {object} response.Envelope
// @Router /substitutions/{id} [get]
func (h *SubstitutionHandler) Get(c *gin.Context) {
	substitution, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, substitution, nil)
}

// List godoc
// @Summary List substitution assignments
// @Tags Substitutions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /substitutions [get]
func (h *SubstitutionHandler) List(c *gin.Context) {
	filter := substitutionFilterFromQuery(c)
	substitutions, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, substitutions, pagination)
}

// ListMine godoc
// @Summary List substitutions involving the caller
// @Tags Substitutions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /substitutions/mine [get]
func (h *SubstitutionHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.TeacherID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := substitutionFilterFromQuery(c)
	filter.TeacherID = claims.TeacherID

	substitutions, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, substitutions, pagination)
}

// Accept godoc
// @Summary Accept a substitution assignment
// @Tags Substitutions
// @Produce json
// @Param id path string true "Substitution ID"
// @Success 200 {object} response.Envelope
// @Router /substitutions/{id}/accept [post]
func (h *SubstitutionHandler) Accept(c *gin.Context) {
	h.resolve(c, h.service.Accept)
}

// Reject godoc
// @Summary Reject a substitution assignment
// @Tags Substitutions
// @Produce json
// @Param id path string true "Substitution ID"
// @Success 200 {object} response.Envelope
// @Router /substitutions/{id}/reject [post]
func (h *SubstitutionHandler) Reject(c *gin.Context) {
	h.resolve(c, h.service.Reject)
}

func (h *SubstitutionHandler) resolve(c *gin.Context, fn func(context.Context, string, string) (*models.Substitution, error)) {
	claims := claimsFromContext(c)
	if claims == nil || claims.TeacherID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	substitution, err := fn(c.Request.Context(), c.Param("id"), claims.TeacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, substitution, nil)
}

func substitutionFilterFromQuery(c *gin.Context) models.SubstitutionFilter {
	filter := models.SubstitutionFilter{TeacherID: c.Query("teacher_id")}

	if raw := c.Query("status"); raw != "" {
		status := models.SubstitutionStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("date_from"); raw != "" {
		if date, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateFrom = &date
		}
	}
	if raw := c.Query("date_to"); raw != "" {
		if date, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateTo = &date
		}
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return filter
}
