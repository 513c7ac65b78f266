package models

import "time"

// LeaveType enumerates the recognized absence categories.
type LeaveType string

const (
	LeaveTypeSick      LeaveType = "sick"
	LeaveTypeCasual    LeaveType = "casual"
	LeaveTypeEmergency LeaveType = "emergency"
	LeaveTypeMaternity LeaveType = "maternity"
	LeaveTypeOther     LeaveType = "other"
)

// KnownLeaveTypes lists every recognized leave type.
var KnownLeaveTypes = []LeaveType{
	LeaveTypeSick,
	LeaveTypeCasual,
	LeaveTypeEmergency,
	LeaveTypeMaternity,
	LeaveTypeOther,
}

// Valid reports whether the leave type is one of the recognized values.
func (t LeaveType) Valid() bool {
	for _, known := range KnownLeaveTypes {
		if t == known {
			return true
		}
	}
	return false
}

// LeaveStatus is the lifecycle state of a leave request.
type LeaveStatus string

const (
	LeaveStatusPending  LeaveStatus = "pending"
	LeaveStatusApproved LeaveStatus = "approved"
	LeaveStatusRejected LeaveStatus = "rejected"
)

// LeaveRequest is a teacher's submitted absence covering an inclusive date
// range. Requests are never deleted; resolution only moves status out of
// pending, exactly once.
type LeaveRequest struct {
	ID                  string      `db:"id" json:"id"`
	TeacherID           string      `db:"teacher_id" json:"teacher_id"`
	LeaveType           LeaveType   `db:"leave_type" json:"leave_type"`
	StartDate           time.Time   `db:"start_date" json:"start_date"`
	EndDate             time.Time   `db:"end_date" json:"end_date"`
	StartTime           *string     `db:"start_time" json:"start_time,omitempty"`
	EndTime             *string     `db:"end_time" json:"end_time,omitempty"`
	Reason              *string     `db:"reason" json:"reason,omitempty"`
	Status              LeaveStatus `db:"status" json:"status"`
	ApprovedBy          *string     `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt          *time.Time  `db:"approved_at" json:"approved_at,omitempty"`
	SubstitutionCreated bool        `db:"substitution_created" json:"substitution_created"`
	SubmittedAt         time.Time   `db:"submitted_at" json:"submitted_at"`
	UpdatedAt           time.Time   `db:"updated_at" json:"updated_at"`
}

// Covers reports whether the leave's date range includes the given date.
func (l *LeaveRequest) Covers(date time.Time) bool {
	day := date.Truncate(24 * time.Hour)
	return !day.Before(l.StartDate) && !day.After(l.EndDate)
}

// LeaveFilter captures filtering options for listing leave requests.
type LeaveFilter struct {
	TeacherID string
	Status    *LeaveStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}
