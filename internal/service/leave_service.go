package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schoolops/staff-leave-api/internal/models"
	"github.com/schoolops/staff-leave-api/internal/notify"
	appErrors "github.com/schoolops/staff-leave-api/pkg/errors"
)

// AdminRecipient is the broadcast recipient id the gateway fans out to
// administrators.
const AdminRecipient = "admins"

const dateLayout = "2006-01-02"

type leaveRepository interface {
	Create(ctx context.Context, leave *models.LeaveRequest) error
	FindByID(ctx context.Context, id string) (*models.LeaveRequest, error)
	List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequest, int, error)
	ResolveIfPending(ctx context.Context, id string, status models.LeaveStatus, approvedBy *string, approvedAt time.Time) (bool, error)
}

type approvalLogRepository interface {
	Create(ctx context.Context, entry *models.LeaveApprovalLog) error
	FindByLeaveID(ctx context.Context, leaveID string) (*models.LeaveApprovalLog, error)
	Resolve(ctx context.Context, leaveID string, status models.ApprovalLogStatus, approvalType models.ApprovalType, approvedBy *string, actualTime time.Time, notes string) error
}

type leaveTeacherRepository interface {
	ExistsActive(ctx context.Context, id string) (bool, error)
}

type autoApprovalConfigSource interface {
	Current(ctx context.Context) (*models.AutoApprovalConfig, error)
}

type absenceCoverer interface {
	CoverAbsence(ctx context.Context, leave *models.LeaveRequest) (*models.FinderResult, error)
}

type leaveMetrics interface {
	LeaveSubmitted()
	LeaveManualResolved(outcome string)
}

// SubmitLeaveRequest is the submission payload.
type SubmitLeaveRequest struct {
	TeacherID string  `json:"teacher_id" validate:"required"`
	LeaveType string  `json:"leave_type" validate:"required"`
	StartDate string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string  `json:"end_date" validate:"required,datetime=2006-01-02"`
	StartTime *string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime   *string `json:"end_time" validate:"omitempty,datetime=15:04"`
	Reason    *string `json:"reason" validate:"omitempty,max=1000"`
}

// SubmitLeaveResult returns the created leave and, when auto-approval
// applies, the deadline so the caller can display the countdown.
type SubmitLeaveResult struct {
	Leave                *models.LeaveRequest `json:"leave"`
	AutoApprovalDeadline *time.Time           `json:"auto_approval_deadline,omitempty"`
}

// ResolveLeaveResult reports a manual approval together with its finder run.
type ResolveLeaveResult struct {
	Leave  *models.LeaveRequest `json:"leave"`
	Finder *models.FinderResult `json:"finder,omitempty"`
}

// LeaveService is the synchronous leave lifecycle: submit, manual approve,
// manual reject. It shares the conditional-resolution rule with the
// auto-approval monitor, so a racing manual and automatic resolution can
// never both win.
type LeaveService struct {
	leaves    leaveRepository
	logs      approvalLogRepository
	teachers  leaveTeacherRepository
	configSrc autoApprovalConfigSource
	finder    absenceCoverer
	notifier  notify.Notifier
	metrics   leaveMetrics
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewLeaveService constructs a LeaveService.
func NewLeaveService(
	leaves leaveRepository,
	logs approvalLogRepository,
	teachers leaveTeacherRepository,
	configSrc autoApprovalConfigSource,
	finder absenceCoverer,
	notifier notify.Notifier,
	metrics leaveMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
) *LeaveService {
	if validate == nil {
		validate = validator.New()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaveService{
		leaves:    leaves,
		logs:      logs,
		teachers:  teachers,
		configSrc: configSrc,
		finder:    finder,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit validates and persists a new leave request in pending status, with
// its audit entry and, when the policy applies, the auto-approval deadline.
func (s *LeaveService) Submit(ctx context.Context, req SubmitLeaveRequest) (*SubmitLeaveResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave payload")
	}

	leaveType := models.LeaveType(req.LeaveType)
	if !leaveType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidLeaveType, fmt.Sprintf("unknown leave type %q", req.LeaveType))
	}

	startDate, _ := time.Parse(dateLayout, req.StartDate)
	endDate, _ := time.Parse(dateLayout, req.EndDate)
	if startDate.After(endDate) {
		return nil, appErrors.Clone(appErrors.ErrInvalidDateRange, "start date is after end date")
	}
	// Single-day requests are rejected: a leave must span at least two days.
	if startDate.Equal(endDate) {
		return nil, appErrors.Clone(appErrors.ErrInvalidDateRange, "leave must span at least two days")
	}

	exists, err := s.teachers.ExistsActive(ctx, req.TeacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify teacher")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrInvalidTeacher, "")
	}

	now := s.now().UTC()
	leave := &models.LeaveRequest{
		TeacherID:   req.TeacherID,
		LeaveType:   leaveType,
		StartDate:   startDate,
		EndDate:     endDate,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Reason:      req.Reason,
		Status:      models.LeaveStatusPending,
		SubmittedAt: now,
	}
	if err := s.leaves.Create(ctx, leave); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create leave request")
	}

	cfg, err := s.configSrc.Current(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load auto-approval config")
	}

	var deadline *time.Time
	if cfg.Enabled && cfg.Applies(leaveType) {
		d := now.Add(cfg.Timeout())
		deadline = &d
	}

	notes := "Leave application submitted, awaiting approval"
	entry := &models.LeaveApprovalLog{
		LeaveID:              leave.ID,
		ApprovalType:         models.ApprovalTypeAuto,
		SubmittedAt:          now,
		AutoApprovalDeadline: deadline,
		Status:               models.ApprovalLogPending,
		Notes:                &notes,
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create approval log")
	}

	if err := s.notifier.Notify(ctx, AdminRecipient, fmt.Sprintf("New %s leave request from teacher %s awaits review.", leaveType, leave.TeacherID)); err != nil {
		s.logger.Sugar().Warnw("leave submission notification failed", "leave_id", leave.ID, "error", err)
	}

	if s.metrics != nil {
		s.metrics.LeaveSubmitted()
	}

	s.logger.Sugar().Infow("leave submitted", "leave_id", leave.ID, "teacher_id", leave.TeacherID, "type", leaveType)
	return &SubmitLeaveResult{Leave: leave, AutoApprovalDeadline: deadline}, nil
}

// Approve performs a manual approval and runs the substitution finder over
// the full date range. Returns Conflict when the leave already left pending.
func (s *LeaveService) Approve(ctx context.Context, leaveID, actorID string, comment string) (*ResolveLeaveResult, error) {
	leave, err := s.getLeave(ctx, leaveID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	applied, err := s.leaves.ResolveIfPending(ctx, leaveID, models.LeaveStatusApproved, &actorID, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve leave")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrConflict, "leave request already resolved")
	}

	leave.Status = models.LeaveStatusApproved
	leave.ApprovedBy = &actorID
	leave.ApprovedAt = &now

	notes := comment
	if notes == "" {
		notes = "Approved by administrator"
	}
	if err := s.logs.Resolve(ctx, leaveID, models.ApprovalLogManualApproved, models.ApprovalTypeManual, &actorID, now, notes); err != nil {
		s.logger.Sugar().Errorw("failed to resolve approval log", "leave_id", leaveID, "error", err)
	}

	finderResult, err := s.finder.CoverAbsence(ctx, leave)
	if err != nil {
		// Approval already committed; report coverage failure without undoing it.
		s.logger.Sugar().Errorw("substitution coverage failed after approval", "leave_id", leaveID, "error", err)
		finderResult = &models.FinderResult{}
	}

	if err := s.notifier.Notify(ctx, leave.TeacherID, "Your leave request has been approved."); err != nil {
		s.logger.Sugar().Warnw("approval notification failed", "leave_id", leaveID, "error", err)
	}

	if s.metrics != nil {
		s.metrics.LeaveManualResolved("approved")
	}

	s.logger.Sugar().Infow("leave approved", "leave_id", leaveID, "actor_id", actorID,
		"substitutions_created", len(finderResult.Created), "unresolved_slots", len(finderResult.Unresolved))
	return &ResolveLeaveResult{Leave: leave, Finder: finderResult}, nil
}

// Reject performs a manual rejection. No substitutions are ever created.
func (s *LeaveService) Reject(ctx context.Context, leaveID, actorID string, comment string) (*models.LeaveRequest, error) {
	leave, err := s.getLeave(ctx, leaveID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	applied, err := s.leaves.ResolveIfPending(ctx, leaveID, models.LeaveStatusRejected, &actorID, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject leave")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrConflict, "leave request already resolved")
	}

	leave.Status = models.LeaveStatusRejected
	leave.ApprovedBy = &actorID
	leave.ApprovedAt = &now

	notes := comment
	if notes == "" {
		notes = "Rejected by administrator"
	}
	if err := s.logs.Resolve(ctx, leaveID, models.ApprovalLogRejected, models.ApprovalTypeManual, &actorID, now, notes); err != nil {
		s.logger.Sugar().Errorw("failed to resolve approval log", "leave_id", leaveID, "error", err)
	}

	if err := s.notifier.Notify(ctx, leave.TeacherID, "Your leave request has been rejected."); err != nil {
		s.logger.Sugar().Warnw("rejection notification failed", "leave_id", leaveID, "error", err)
	}

	if s.metrics != nil {
		s.metrics.LeaveManualResolved("rejected")
	}

	s.logger.Sugar().Infow("leave rejected", "leave_id", leaveID, "actor_id", actorID)
	return leave, nil
}

// Get returns a leave with its approval log entry.
func (s *LeaveService) Get(ctx context.Context, leaveID string) (*models.LeaveRequest, *models.LeaveApprovalLog, error) {
	leave, err := s.getLeave(ctx, leaveID)
	if err != nil {
		return nil, nil, err
	}
	entry, err := s.logs.FindByLeaveID(ctx, leaveID)
	if err != nil && err != sql.ErrNoRows {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval log")
	}
	return leave, entry, nil
}

// List returns leaves plus pagination data.
func (s *LeaveService) List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequest, *models.Pagination, error) {
	leaves, total, err := s.leaves.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leave requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return leaves, pagination, nil
}

func (s *LeaveService) getLeave(ctx context.Context, leaveID string) (*models.LeaveRequest, error) {
	leave, err := s.leaves.FindByID(ctx, leaveID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave request")
	}
	return leave, nil
}
