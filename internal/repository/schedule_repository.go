package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/schoolops/staff-leave-api/internal/models"
)

// ScheduleRepository is the read-only view over the fixed weekly timetable.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs a ScheduleRepository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// PeriodsFor returns a teacher's schedule entries for a weekday ordered by
// period number. Break periods are included; callers filter them.
func (r *ScheduleRepository) PeriodsFor(ctx context.Context, teacherID string, dayOfWeek int) ([]models.ScheduleEntry, error) {
	const query = `SELECT id, teacher_id, day_of_week, period_number, start_time, end_time, subject_id, classroom_id, is_break
FROM schedule_entries
WHERE teacher_id = $1 AND day_of_week = $2
ORDER BY period_number ASC`
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, teacherID, dayOfWeek); err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	return entries, nil
}

// HasEntryAt reports whether the teacher already teaches at the given weekday
// and period.
func (r *ScheduleRepository) HasEntryAt(ctx context.Context, teacherID string, dayOfWeek, periodNumber int) (bool, error) {
	const query = `SELECT 1 FROM schedule_entries
WHERE teacher_id = $1 AND day_of_week = $2 AND period_number = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, teacherID, dayOfWeek, periodNumber); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check schedule entry: %w", err)
	}
	return true, nil
}
