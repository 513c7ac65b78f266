package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/schoolops/staff-leave-api/internal/models"
)

// LeaveRepository manages persistence for leave requests.
type LeaveRepository struct {
	db *sqlx.DB
}

// NewLeaveRepository constructs a LeaveRepository.
func NewLeaveRepository(db *sqlx.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

// Create inserts a new leave request.
func (r *LeaveRepository) Create(ctx context.Context, leave *models.LeaveRequest) error {
	if leave.ID == "" {
		leave.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if leave.SubmittedAt.IsZero() {
		leave.SubmittedAt = now
	}
	leave.UpdatedAt = now

	const query = `INSERT INTO leave_requests (id, teacher_id, leave_type, start_date, end_date, start_time, end_time, reason, status, approved_by, approved_at, substitution_created, submitted_at, updated_at)
VALUES (:id, :teacher_id, :leave_type, :start_date, :end_date, :start_time, :end_time, :reason, :status, :approved_by, :approved_at, :substitution_created, :submitted_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, leave); err != nil {
		return fmt.Errorf("create leave request: %w", err)
	}
	return nil
}

// FindByID fetches a leave request by ID.
func (r *LeaveRepository) FindByID(ctx context.Context, id string) (*models.LeaveRequest, error) {
	const query = `SELECT id, teacher_id, leave_type, start_date, end_date, start_time, end_time, reason, status, approved_by, approved_at, substitution_created, submitted_at, updated_at
FROM leave_requests WHERE id = $1`
	var leave models.LeaveRequest
	if err := r.db.GetContext(ctx, &leave, query, id); err != nil {
		return nil, err
	}
	return &leave, nil
}

// List returns leave requests matching filters along with total count.
func (r *LeaveRepository) List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequest, int, error) {
	base := "FROM leave_requests WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("end_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT id, teacher_id, leave_type, start_date, end_date, start_time, end_time, reason, status, approved_by, approved_at, substitution_created, submitted_at, updated_at %s ORDER BY submitted_at DESC LIMIT %d OFFSET %d", base, size, offset)
	var leaves []models.LeaveRequest
	if err := r.db.SelectContext(ctx, &leaves, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list leave requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count leave requests: %w", err)
	}

	return leaves, total, nil
}

// ListOverduePending returns pending leaves of the given types submitted at or
// before the cutoff. These are the auto-approval candidates.
func (r *LeaveRepository) ListOverduePending(ctx context.Context, leaveTypes []string, cutoff time.Time) ([]models.LeaveRequest, error) {
	if len(leaveTypes) == 0 {
		return nil, nil
	}
	const query = `SELECT id, teacher_id, leave_type, start_date, end_date, start_time, end_time, reason, status, approved_by, approved_at, substitution_created, submitted_at, updated_at
FROM leave_requests
WHERE status = 'pending' AND leave_type = ANY($1) AND submitted_at <= $2
ORDER BY submitted_at ASC`
	var leaves []models.LeaveRequest
	if err := r.db.SelectContext(ctx, &leaves, query, pq.Array(leaveTypes), cutoff); err != nil {
		return nil, fmt.Errorf("list overdue pending leaves: %w", err)
	}
	return leaves, nil
}

// ResolveIfPending transitions a leave out of pending with a conditional
// write. Returns false without error when another actor already resolved it;
// exactly one concurrent caller observes true.
func (r *LeaveRepository) ResolveIfPending(ctx context.Context, id string, status models.LeaveStatus, approvedBy *string, approvedAt time.Time) (bool, error) {
	const query = `UPDATE leave_requests
SET status = $2, approved_by = $3, approved_at = $4, updated_at = $4
WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, status, approvedBy, approvedAt)
	if err != nil {
		return false, fmt.Errorf("resolve leave request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve leave request rows: %w", err)
	}
	return affected == 1, nil
}

// MarkSubstitutionCreated flips the idempotency guard after a finder run.
func (r *LeaveRepository) MarkSubstitutionCreated(ctx context.Context, id string) error {
	const query = `UPDATE leave_requests SET substitution_created = TRUE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark substitution created: %w", err)
	}
	return nil
}

// HasApprovedLeaveOn reports whether the teacher has an approved leave
// covering the given date.
func (r *LeaveRepository) HasApprovedLeaveOn(ctx context.Context, teacherID string, date time.Time) (bool, error) {
	const query = `SELECT 1 FROM leave_requests
WHERE teacher_id = $1 AND status = 'approved' AND start_date <= $2 AND end_date >= $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, teacherID, date); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check approved leave: %w", err)
	}
	return true, nil
}
