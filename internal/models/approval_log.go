package models

import "time"

// ApprovalType distinguishes automatic from manual resolution.
type ApprovalType string

const (
	ApprovalTypeAuto   ApprovalType = "auto"
	ApprovalTypeManual ApprovalType = "manual"
)

// ApprovalLogStatus is the lifecycle state of an approval log entry.
type ApprovalLogStatus string

const (
	ApprovalLogPending        ApprovalLogStatus = "pending"
	ApprovalLogAutoApproved   ApprovalLogStatus = "auto_approved"
	ApprovalLogManualApproved ApprovalLogStatus = "manual_approved"
	ApprovalLogRejected       ApprovalLogStatus = "rejected"
)

// LeaveApprovalLog is the audit record of how and when a leave was resolved.
// One entry is created per leave at submission and updated exactly once when
// the leave leaves pending.
type LeaveApprovalLog struct {
	ID                   string            `db:"id" json:"id"`
	LeaveID              string            `db:"leave_id" json:"leave_id"`
	ApprovalType         ApprovalType      `db:"approval_type" json:"approval_type"`
	SubmittedAt          time.Time         `db:"submitted_at" json:"submitted_at"`
	AutoApprovalDeadline *time.Time        `db:"auto_approval_deadline" json:"auto_approval_deadline,omitempty"`
	ActualApprovalTime   *time.Time        `db:"actual_approval_time" json:"actual_approval_time,omitempty"`
	ApprovedBy           *string           `db:"approved_by" json:"approved_by,omitempty"`
	Status               ApprovalLogStatus `db:"status" json:"status"`
	Notes                *string           `db:"notes" json:"notes,omitempty"`
	CreatedAt            time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time         `db:"updated_at" json:"updated_at"`
}
