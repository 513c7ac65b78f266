package models

import "time"

// SubstitutionStatus is the lifecycle state of a substitute assignment.
type SubstitutionStatus string

const (
	SubstitutionPending   SubstitutionStatus = "pending"
	SubstitutionAccepted  SubstitutionStatus = "accepted"
	SubstitutionRejected  SubstitutionStatus = "rejected"
	SubstitutionCompleted SubstitutionStatus = "completed"
)

// Substitution assigns one teacher to cover another's period slot on a
// specific date. Only the assigned substitute may accept or reject it.
type Substitution struct {
	ID                  string             `db:"id" json:"id"`
	OriginalTeacherID   string             `db:"original_teacher_id" json:"original_teacher_id"`
	SubstituteTeacherID string             `db:"substitute_teacher_id" json:"substitute_teacher_id"`
	SubjectID           string             `db:"subject_id" json:"subject_id"`
	ClassroomID         string             `db:"classroom_id" json:"classroom_id"`
	Date                time.Time          `db:"date" json:"date"`
	StartTime           string             `db:"start_time" json:"start_time"`
	EndTime             string             `db:"end_time" json:"end_time"`
	PeriodNumber        int                `db:"period_number" json:"period_number"`
	Status              SubstitutionStatus `db:"status" json:"status"`
	Reason              *string            `db:"reason" json:"reason,omitempty"`
	AbsenceReason       *string            `db:"absence_reason" json:"absence_reason,omitempty"`
	NotificationSent    bool               `db:"notification_sent" json:"notification_sent"`
	NotificationSentAt  *time.Time         `db:"notification_sent_at" json:"notification_sent_at,omitempty"`
	CreatedAt           time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `db:"updated_at" json:"updated_at"`
}

// SubstitutionFilter captures filtering options for listing substitutions.
type SubstitutionFilter struct {
	TeacherID string // matches either side of the assignment
	Status    *SubstitutionStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

// UnresolvedSlot identifies a period for which no available qualified
// substitute could be found. Left for manual administrator follow-up.
type UnresolvedSlot struct {
	Date         time.Time `json:"date"`
	PeriodNumber int       `json:"period_number"`
	SubjectID    string    `json:"subject_id"`
}

// FinderResult aggregates a substitution finder run.
type FinderResult struct {
	Created    []Substitution   `json:"created"`
	Unresolved []UnresolvedSlot `json:"unresolved"`
	Success    bool             `json:"success"`
}
