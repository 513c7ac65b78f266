package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/schoolops/staff-leave-api/internal/models"
)

// AutoApprovalConfigRepository persists the singleton auto-approval policy.
type AutoApprovalConfigRepository struct {
	db *sqlx.DB
}

// NewAutoApprovalConfigRepository constructs the repository.
func NewAutoApprovalConfigRepository(db *sqlx.DB) *AutoApprovalConfigRepository {
	return &AutoApprovalConfigRepository{db: db}
}

// Get fetches the singleton configuration row. Returns sql.ErrNoRows when the
// row has never been written.
func (r *AutoApprovalConfigRepository) Get(ctx context.Context) (*models.AutoApprovalConfig, error) {
	const query = `SELECT id, enabled, timeout_minutes, applicable_leave_types, notify_admin, notify_teacher, last_updated, updated_by
FROM auto_approval_config WHERE id = $1`
	var cfg models.AutoApprovalConfig
	if err := r.db.GetContext(ctx, &cfg, query, models.AutoApprovalConfigID); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Upsert inserts or updates the singleton configuration row.
func (r *AutoApprovalConfigRepository) Upsert(ctx context.Context, cfg *models.AutoApprovalConfig) error {
	cfg.ID = models.AutoApprovalConfigID
	cfg.LastUpdated = time.Now().UTC()

	const query = `INSERT INTO auto_approval_config (id, enabled, timeout_minutes, applicable_leave_types, notify_admin, notify_teacher, last_updated, updated_by)
VALUES (:id, :enabled, :timeout_minutes, :applicable_leave_types, :notify_admin, :notify_teacher, :last_updated, :updated_by)
ON CONFLICT (id)
DO UPDATE SET enabled = EXCLUDED.enabled, timeout_minutes = EXCLUDED.timeout_minutes,
              applicable_leave_types = EXCLUDED.applicable_leave_types,
              notify_admin = EXCLUDED.notify_admin, notify_teacher = EXCLUDED.notify_teacher,
              last_updated = EXCLUDED.last_updated, updated_by = EXCLUDED.updated_by`
	if _, err := r.db.NamedExecContext(ctx, query, cfg); err != nil {
		return fmt.Errorf("upsert auto-approval config: %w", err)
	}
	return nil
}
