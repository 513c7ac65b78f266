package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schoolops/staff-leave-api/internal/models"
	"github.com/schoolops/staff-leave-api/internal/service"
	appErrors "github.com/schoolops/staff-leave-api/pkg/errors"
	"github.com/schoolops/staff-leave-api/pkg/response"
)

type leaveService interface {
	Submit(ctx context.Context, req service.SubmitLeaveRequest) (*service.SubmitLeaveResult, error)
	Approve(ctx context.Context, leaveID, actorID, comment string) (*service.ResolveLeaveResult, error)
	Reject(ctx context.Context, leaveID, actorID, comment string) (*models.LeaveRequest, error)
	Get(ctx context.Context, leaveID string) (*models.LeaveRequest, *models.LeaveApprovalLog, error)
	List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequest, *models.Pagination, error)
}

type countdownService interface {
	Countdown(ctx context.Context, leaveID string) (*service.AutoApprovalCountdown, error)
}

// LeaveHandler exposes the leave lifecycle endpoints.
type LeaveHandler struct {
	service   leaveService
	countdown countdownService
}

// NewLeaveHandler builds a new handler.
func NewLeaveHandler(svc leaveService, countdown countdownService) *LeaveHandler {
	return &LeaveHandler{service: svc, countdown: countdown}
}

type resolveLeaveRequest struct {
	Comment string `json:"comment"`
}

// Submit godoc
// @Summary Submit a leave request
// @Tags Leaves
// @Accept json
// @Produce json
// @Param payload body service.SubmitLeaveRequest true "Leave payload"
// @Success 201 {object} response.Envelope
// @Router /leaves [post]
func (h *LeaveHandler) Submit(c *gin.Context) {
	var req service.SubmitLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid leave payload"))
		return
	}

	// Teachers submit for themselves; the token is authoritative.
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleTeacher && claims.TeacherID != "" {
		req.TeacherID = claims.TeacherID
	}

	result, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Approve godoc
// @Summary Manually approve a leave request
// @Tags Leaves
// @Accept json
// @Produce json
// @Param id path string true "Leave ID"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id}/approve [post]
func (h *LeaveHandler) Approve(c *gin.Context) {
	var req resolveLeaveRequest
	_ = c.ShouldBindJSON(&req)

	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	result, err := h.service.Approve(c.Request.Context(), c.Param("id"), claims.UserID, req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reject godoc
// @Summary Manually reject a leave request
// @Tags Leaves
// @Accept json
// @Produce json
// @Param id path string true "Leave ID"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id}/reject [post]
func (h *LeaveHandler) Reject(c *gin.Context) {
	var req resolveLeaveRequest
	_ = c.ShouldBindJSON(&req)

	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	leave, err := h.service.Reject(c.Request.Context(), c.Param("id"), claims.UserID, req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

// Get godoc
// @Summary Get a leave request with its approval log
// @Tags Leaves
// @Produce json
// @Param id path string true "Leave ID"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id} [get]
func (h *LeaveHandler) Get(c *gin.Context) {
	leave, entry, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"leave": leave, "approval_log": entry}, nil)
}

// Countdown godoc
// @Summary Time remaining before auto-approval
// @Tags Leaves
// @Produce json
// @Param id path string true "Leave ID"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id}/auto-approval [get]
func (h *LeaveHandler) Countdown(c *gin.Context) {
	countdown, err := h.countdown.Countdown(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if countdown == nil {
		response.JSON(c, http.StatusOK, gin.H{"applicable": false}, nil)
		return
	}
	response.JSON(c, http.StatusOK, countdown, nil)
}

// List godoc
// @Summary List leave requests
// @Tags Leaves
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /leaves [get]
func (h *LeaveHandler) List(c *gin.Context) {
	filter := leaveFilterFromQuery(c)
	leaves, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leaves, pagination)
}

// ListMine godoc
// @Summary List the caller's own leave requests
// @Tags Leaves
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /leaves/mine [get]
func (h *LeaveHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.TeacherID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := leaveFilterFromQuery(c)
	filter.TeacherID = claims.TeacherID

	leaves, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leaves, pagination)
}

func leaveFilterFromQuery(c *gin.Context) models.LeaveFilter {
	filter := models.LeaveFilter{TeacherID: c.Query("teacher_id")}

	if raw := c.Query("status"); raw != "" {
		status := models.LeaveStatus(raw)
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
