package models

import (
	"time"

	"github.com/lib/pq"
)

// AutoApprovalConfigID is the fixed id of the singleton configuration row.
const AutoApprovalConfigID = "auto-approval"

// AutoApprovalConfig is the process-wide auto-approval policy. Lazily
// initialized with defaults on first read, mutated only through the explicit
// configuration update operation.
type AutoApprovalConfig struct {
	ID                   string         `db:"id" json:"-"`
	Enabled              bool           `db:"enabled" json:"enabled"`
	TimeoutMinutes       int            `db:"timeout_minutes" json:"timeout_minutes"`
	ApplicableLeaveTypes pq.StringArray `db:"applicable_leave_types" json:"applicable_leave_types"`
	NotifyAdmin          bool           `db:"notify_admin" json:"notify_admin"`
	NotifyTeacher        bool           `db:"notify_teacher" json:"notify_teacher"`
	LastUpdated          time.Time      `db:"last_updated" json:"last_updated"`
	UpdatedBy            *string        `db:"updated_by" json:"updated_by,omitempty"`
}

// DefaultAutoApprovalConfig returns the policy used before an administrator
// has ever saved one.
func DefaultAutoApprovalConfig() *AutoApprovalConfig {
	return &AutoApprovalConfig{
		ID:             AutoApprovalConfigID,
		Enabled:        true,
		TimeoutMinutes: 30,
		ApplicableLeaveTypes: pq.StringArray{
			string(LeaveTypeSick),
			string(LeaveTypeCasual),
			string(LeaveTypeEmergency),
		},
		NotifyAdmin:   true,
		NotifyTeacher: true,
		LastUpdated:   time.Now().UTC(),
	}
}

// Applies reports whether the given leave type is eligible for auto-approval.
func (c *AutoApprovalConfig) Applies(t LeaveType) bool {
	for _, applicable := range c.ApplicableLeaveTypes {
		if LeaveType(applicable) == t {
			return true
		}
	}
	return false
}

// Timeout returns the configured timeout as a duration.
func (c *AutoApprovalConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}
