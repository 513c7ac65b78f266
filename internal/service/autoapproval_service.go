package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/schoolops/staff-leave-api/internal/models"
	appErrors "github.com/schoolops/staff-leave-api/pkg/errors"
)

const autoApprovalConfigCacheKey = "auto_approval:config"

type autoApprovalConfigRepository interface {
	Get(ctx context.Context) (*models.AutoApprovalConfig, error)
	Upsert(ctx context.Context, cfg *models.AutoApprovalConfig) error
}

type configCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type countdownLeaveRepository interface {
	FindByID(ctx context.Context, id string) (*models.LeaveRequest, error)
}

// UpdateAutoApprovalRequest carries a partial configuration update. Nil
// fields are left unchanged.
type UpdateAutoApprovalRequest struct {
	Enabled              *bool    `json:"enabled"`
	TimeoutMinutes       *int     `json:"timeout_minutes" validate:"omitempty,gt=0"`
	ApplicableLeaveTypes []string `json:"applicable_leave_types" validate:"omitempty,dive,oneof=sick casual emergency maternity other"`
	NotifyAdmin          *bool    `json:"notify_admin"`
	NotifyTeacher        *bool    `json:"notify_teacher"`
}

// AutoApprovalCountdown is the remaining-time view for a pending leave.
type AutoApprovalCountdown struct {
	Status           string     `json:"status"` // pending | overdue
	MinutesRemaining int        `json:"minutes_remaining"`
	Deadline         *time.Time `json:"deadline,omitempty"`
}

// AutoApprovalService owns the singleton auto-approval policy: lazily created
// with defaults on first read, cached briefly, and invalidated on update.
type AutoApprovalService struct {
	repo      autoApprovalConfigRepository
	cache     configCache
	leaves    countdownLeaveRepository
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAutoApprovalService constructs an AutoApprovalService.
func NewAutoApprovalService(repo autoApprovalConfigRepository, cache configCache, leaves countdownLeaveRepository, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *AutoApprovalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &AutoApprovalService{
		repo:      repo,
		cache:     cache,
		leaves:    leaves,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Current returns the effective configuration, writing the defaults on first
// ever read so later updates have a row to build on.
func (s *AutoApprovalService) Current(ctx context.Context) (*models.AutoApprovalConfig, error) {
	if s.cache != nil {
		var cached models.AutoApprovalConfig
		if err := s.cache.Get(ctx, autoApprovalConfigCacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Sugar().Warnw("config cache read failed", "error", err)
		}
	}

	cfg, err := s.repo.Get(ctx)
	if err != nil {
		if err != sql.ErrNoRows {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load auto-approval config")
		}
		cfg = models.DefaultAutoApprovalConfig()
		if err := s.repo.Upsert(ctx, cfg); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to initialize auto-approval config")
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, autoApprovalConfigCacheKey, cfg, s.cacheTTL); err != nil {
			s.logger.Sugar().Warnw("config cache write failed", "error", err)
		}
	}

	return cfg, nil
}

// Update applies a partial configuration change and invalidates the cache.
func (s *AutoApprovalService) Update(ctx context.Context, req UpdateAutoApprovalRequest, actorID string) (*models.AutoApprovalConfig, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid auto-approval config payload")
	}

	cfg, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.TimeoutMinutes != nil {
		cfg.TimeoutMinutes = *req.TimeoutMinutes
	}
	if req.ApplicableLeaveTypes != nil {
		cfg.ApplicableLeaveTypes = pq.StringArray(req.ApplicableLeaveTypes)
	}
	if req.NotifyAdmin != nil {
		cfg.NotifyAdmin = *req.NotifyAdmin
	}
	if req.NotifyTeacher != nil {
		cfg.NotifyTeacher = *req.NotifyTeacher
	}
	cfg.UpdatedBy = &actorID

	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update auto-approval config")
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, autoApprovalConfigCacheKey); err != nil {
			s.logger.Sugar().Warnw("config cache invalidation failed", "error", err)
		}
	}

	s.logger.Sugar().Infow("auto-approval config updated", "actor_id", actorID, "enabled", cfg.Enabled, "timeout_minutes", cfg.TimeoutMinutes)
	return cfg, nil
}

// Countdown reports time left before a pending leave is auto-approved. Nil
// when auto-approval does not apply to the leave.
func (s *AutoApprovalService) Countdown(ctx context.Context, leaveID string) (*AutoApprovalCountdown, error) {
	cfg, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, nil
	}

	leave, err := s.leaves.FindByID(ctx, leaveID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave request")
	}
	if leave.Status != models.LeaveStatusPending || !cfg.Applies(leave.LeaveType) {
		return nil, nil
	}

	deadline := leave.SubmittedAt.Add(cfg.Timeout())
	remaining := deadline.Sub(s.now().UTC())
	if remaining <= 0 {
		return &AutoApprovalCountdown{Status: "overdue", MinutesRemaining: 0, Deadline: &deadline}, nil
	}
	return &AutoApprovalCountdown{
		Status:           "pending",
		MinutesRemaining: int(remaining.Minutes()),
		Deadline:         &deadline,
	}, nil
}
