package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolops/staff-leave-api/internal/models"
)

// ApprovalLogRepository manages the per-leave audit trail. Entries are created
// once at submission and mutated in place to their terminal status, never
// replaced.
type ApprovalLogRepository struct {
	db *sqlx.DB
}

// NewApprovalLogRepository constructs an ApprovalLogRepository.
func NewApprovalLogRepository(db *sqlx.DB) *ApprovalLogRepository {
	return &ApprovalLogRepository{db: db}
}

// Create inserts the pending audit entry for a freshly submitted leave.
func (r *ApprovalLogRepository) Create(ctx context.Context, entry *models.LeaveApprovalLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO leave_approval_logs (id, leave_id, approval_type, submitted_at, auto_approval_deadline, actual_approval_time, approved_by, status, notes, created_at, updated_at)
VALUES (:id, :leave_id, :approval_type, :submitted_at, :auto_approval_deadline, :actual_approval_time, :approved_by, :status, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create approval log: %w", err)
	}
	return nil
}

// FindByLeaveID fetches the audit entry for a leave.
func (r *ApprovalLogRepository) FindByLeaveID(ctx context.Context, leaveID string) (*models.LeaveApprovalLog, error) {
	const query = `SELECT id, leave_id, approval_type, submitted_at, auto_approval_deadline, actual_approval_time, approved_by, status, notes, created_at, updated_at
FROM leave_approval_logs WHERE leave_id = $1`
	var entry models.LeaveApprovalLog
	if err := r.db.GetContext(ctx, &entry, query, leaveID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Resolve moves the entry to its terminal status.
func (r *ApprovalLogRepository) Resolve(ctx context.Context, leaveID string, status models.ApprovalLogStatus, approvalType models.ApprovalType, approvedBy *string, actualTime time.Time, notes string) error {
	const query = `UPDATE leave_approval_logs
SET status = $2, approval_type = $3, approved_by = $4, actual_approval_time = $5, notes = $6, updated_at = $5
WHERE leave_id = $1`
	if _, err := r.db.ExecContext(ctx, query, leaveID, status, approvalType, approvedBy, actualTime, notes); err != nil {
		return fmt.Errorf("resolve approval log: %w", err)
	}
	return nil
}
