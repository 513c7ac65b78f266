package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolops/staff-leave-api/internal/models"
)

// SubstitutionRepository manages persistence for substitute assignments.
type SubstitutionRepository struct {
	db *sqlx.DB
}

// NewSubstitutionRepository constructs a SubstitutionRepository.
func NewSubstitutionRepository(db *sqlx.DB) *SubstitutionRepository {
	return &SubstitutionRepository{db: db}
}

// Create inserts a new substitution record.
func (r *SubstitutionRepository) Create(ctx context.Context, sub *models.Substitution) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	const query = `INSERT INTO substitutions (id, original_teacher_id, substitute_teacher_id, subject_id, classroom_id, date, start_time, end_time, period_number, status, reason, absence_reason, notification_sent, notification_sent_at, created_at, updated_at)
VALUES (:id, :original_teacher_id, :substitute_teacher_id, :subject_id, :classroom_id, :date, :start_time, :end_time, :period_number, :status, :reason, :absence_reason, :notification_sent, :notification_sent_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("create substitution: %w", err)
	}
	return nil
}

// FindByID fetches a substitution by ID.
func (r *SubstitutionRepository) FindByID(ctx context.Context, id string) (*models.Substitution, error) {
	const query = `SELECT id, original_teacher_id, substitute_teacher_id, subject_id, classroom_id, date, start_time, end_time, period_number, status, reason, absence_reason, notification_sent, notification_sent_at, created_at, updated_at
FROM substitutions WHERE id = $1`
	var sub models.Substitution
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		return nil, err
	}
	return &sub, nil
}

// List returns substitutions matching filters along with total count.
func (r *SubstitutionRepository) List(ctx context.Context, filter models.SubstitutionFilter) ([]models.Substitution, int, error) {
	base := "FROM substitutions WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("(original_teacher_id = $%d OR substitute_teacher_id = $%d)", len(args)+1, len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
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

	query := fmt.Sprintf("SELECT id, original_teacher_id, substitute_teacher_id, subject_id, classroom_id, date, start_time, end_time, period_number, status, reason, absence_reason, notification_sent, notification_sent_at, created_at, updated_at %s ORDER BY date DESC, period_number ASC LIMIT %d OFFSET %d", base, size, offset)
	var subs []models.Substitution
	if err := r.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list substitutions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count substitutions: %w", err)
	}

	return subs, total, nil
}

// HasAssignmentAt reports whether the teacher already holds a live (pending or
// accepted) substitution for the given date and period.
func (r *SubstitutionRepository) HasAssignmentAt(ctx context.Context, substituteTeacherID string, date time.Time, periodNumber int) (bool, error) {
	const query = `SELECT 1 FROM substitutions
WHERE substitute_teacher_id = $1 AND date = $2 AND period_number = $3 AND status IN ('pending', 'accepted') LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, substituteTeacherID, date, periodNumber); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check substitution assignment: %w", err)
	}
	return true, nil
}

// UpdateStatusIfPending applies the pending→accepted / pending→rejected
// transition conditionally. Returns false when the record already left
// pending.
func (r *SubstitutionRepository) UpdateStatusIfPending(ctx context.Context, id string, status models.SubstitutionStatus) (bool, error) {
	const query = `UPDATE substitutions SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update substitution status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update substitution status rows: %w", err)
	}
	return affected == 1, nil
}

// MarkNotified records that the offer notification was handed to the gateway.
func (r *SubstitutionRepository) MarkNotified(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE substitutions SET notification_sent = TRUE, notification_sent_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("mark substitution notified: %w", err)
	}
	return nil
}

// CompletePastAccepted moves accepted substitutions whose date has passed to
// completed. Housekeeping, run periodically by the monitor.
func (r *SubstitutionRepository) CompletePastAccepted(ctx context.Context, before time.Time) (int64, error) {
	const query = `UPDATE substitutions SET status = 'completed', updated_at = $2 WHERE status = 'accepted' AND date < $1`
	res, err := r.db.ExecContext(ctx, query, before, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("complete past substitutions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("complete past substitutions rows: %w", err)
	}
	return affected, nil
}
