package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolops/staff-leave-api/internal/models"
	"github.com/schoolops/staff-leave-api/internal/service"
	appErrors "github.com/schoolops/staff-leave-api/pkg/errors"
	"github.com/schoolops/staff-leave-api/pkg/response"
)

type autoApprovalService interface {
	Current(ctx context.Context) (*models.AutoApprovalConfig, error)
	Update(ctx context.Context, req service.UpdateAutoApprovalRequest, actorID string) (*models.AutoApprovalConfig, error)
}

// AutoApprovalHandler exposes the auto-approval configuration endpoints.
type AutoApprovalHandler struct {
	service autoApprovalService
}

// NewAutoApprovalHandler builds a new handler.
func NewAutoApprovalHandler(svc autoApprovalService) *AutoApprovalHandler {
	return &AutoApprovalHandler{service: svc}
}

// GetConfig godoc
// @Summary Get the auto-approval configuration
// @Tags AutoApproval
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auto-approval/config [get]
func (h *AutoApprovalHandler) GetConfig(c *gin.Context) {
	cfg, err := h.service.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// UpdateConfig godoc
// @Summary Update the auto-approval configuration
// @Tags AutoApproval
// @Accept json
// @Produce json
// @Param payload body service.UpdateAutoApprovalRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /auto-approval/config [put]
func (h *AutoApprovalHandler) UpdateConfig(c *gin.Context) {
	var req service.UpdateAutoApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid config payload"))
		return
	}

	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	cfg, err := h.service.Update(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}
