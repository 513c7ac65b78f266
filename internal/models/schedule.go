package models

import "time"

// ScheduleEntry is one period of a teacher's fixed weekly timetable. Supplied
// read-only by the surrounding timetable system. DayOfWeek uses 0=Monday
// through 6=Sunday.
type ScheduleEntry struct {
	ID           string `db:"id" json:"id"`
	TeacherID    string `db:"teacher_id" json:"teacher_id"`
	DayOfWeek    int    `db:"day_of_week" json:"day_of_week"`
	PeriodNumber int    `db:"period_number" json:"period_number"`
	StartTime    string `db:"start_time" json:"start_time"`
	EndTime      string `db:"end_time" json:"end_time"`
	SubjectID    string `db:"subject_id" json:"subject_id"`
	ClassroomID  string `db:"classroom_id" json:"classroom_id"`
	IsBreak      bool   `db:"is_break" json:"is_break"`
}

// DayOfWeekFor converts a calendar date to the schedule's weekday encoding.
func DayOfWeekFor(date time.Time) int {
	// time.Weekday has Sunday=0; the timetable stores Monday=0.
	return (int(date.Weekday()) + 6) % 7
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func IsWeekend(date time.Time) bool {
	return DayOfWeekFor(date) >= 5
}
