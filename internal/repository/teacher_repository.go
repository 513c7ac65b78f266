package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/schoolops/staff-leave-api/internal/models"
)

// TeacherRepository reads the staff roster reference. The roster itself is
// managed by the surrounding system; this service only consults it.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// FindByID fetches a teacher by ID.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	const query = `SELECT id, user_id, full_name, email, active, created_at, updated_at FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ExistsActive reports whether an active teacher with the given id exists.
func (r *TeacherRepository) ExistsActive(ctx context.Context, id string) (bool, error) {
	const query = `SELECT 1 FROM teachers WHERE id = $1 AND active = TRUE LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teacher exists: %w", err)
	}
	return true, nil
}

// QualifiedForSubject returns active teachers whose capability set includes
// the subject, excluding the given teacher. Ordered by id so the matcher's
// first-available-wins selection is deterministic.
func (r *TeacherRepository) QualifiedForSubject(ctx context.Context, subjectID, excludeTeacherID string) ([]models.Teacher, error) {
	const query = `SELECT t.id, t.user_id, t.full_name, t.email, t.active, t.created_at, t.updated_at
FROM teachers t
JOIN teacher_subjects ts ON ts.teacher_id = t.id
WHERE ts.subject_id = $1 AND t.id <> $2 AND t.active = TRUE
ORDER BY t.id ASC`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, subjectID, excludeTeacherID); err != nil {
		return nil, fmt.Errorf("list qualified teachers: %w", err)
	}
	return teachers, nil
}
