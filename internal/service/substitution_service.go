package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/schoolops/staff-leave-api/internal/models"
	"github.com/schoolops/staff-leave-api/internal/notify"
	appErrors "github.com/schoolops/staff-leave-api/pkg/errors"
)

type substitutionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Substitution, error)
	List(ctx context.Context, filter models.SubstitutionFilter) ([]models.Substitution, int, error)
	UpdateStatusIfPending(ctx context.Context, id string, status models.SubstitutionStatus) (bool, error)
}

// SubstitutionService handles the substitute's accept/reject decision. Only
// the assigned substitute may resolve an offer, and only while it is pending.
// A rejection deliberately does not re-run the finder; the slot stays visible
// for manual follow-up.
type SubstitutionService struct {
	subs     substitutionRepository
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewSubstitutionService constructs a SubstitutionService.
func NewSubstitutionService(subs substitutionRepository, notifier notify.Notifier, logger *zap.Logger) *SubstitutionService {
	if notifier == nil {
		notifier = notify.NewLogNotifier(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubstitutionService{subs: subs, notifier: notifier, logger: logger}
}

// Accept marks the assignment accepted by its substitute.
func (s *SubstitutionService) Accept(ctx context.Context, substitutionID, actorTeacherID string) (*models.Substitution, error) {
	return s.resolve(ctx, substitutionID, actorTeacherID, models.SubstitutionAccepted)
}

// Reject marks the assignment rejected by its substitute.
func (s *SubstitutionService) Reject(ctx context.Context, substitutionID, actorTeacherID string) (*models.Substitution, error) {
	return s.resolve(ctx, substitutionID, actorTeacherID, models.SubstitutionRejected)
}

func (s *SubstitutionService) resolve(ctx context.Context, substitutionID, actorTeacherID string, status models.SubstitutionStatus) (*models.Substitution, error) {
	sub, err := s.subs.FindByID(ctx, substitutionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "substitution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitution")
	}

	if sub.SubstituteTeacherID != actorTeacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned substitute may resolve this assignment")
	}

	applied, err := s.subs.UpdateStatusIfPending(ctx, substitutionID, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update substitution")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrConflict, "substitution already resolved")
	}

	sub.Status = status
	sub.UpdatedAt = time.Now().UTC()

	verb := "accepted"
	if status == models.SubstitutionRejected {
		verb = "rejected"
	}
	msg := fmt.Sprintf("Substitution for period %d on %s was %s.", sub.PeriodNumber, sub.Date.Format("2006-01-02"), verb)
	if err := s.notifier.Notify(ctx, sub.OriginalTeacherID, msg); err != nil {
		s.logger.Sugar().Warnw("substitution resolution notification failed", "substitution_id", substitutionID, "error", err)
	}
	if err := s.notifier.Notify(ctx, AdminRecipient, msg); err != nil {
		s.logger.Sugar().Warnw("substitution resolution notification failed", "substitution_id", substitutionID, "error", err)
	}

	s.logger.Sugar().Infow("substitution resolved", "substitution_id", substitutionID, "status", status, "actor_teacher_id", actorTeacherID)
	return sub, nil
}

// Get returns a substitution by id.
func (s *SubstitutionService) Get(ctx context.Context, id string) (*models.Substitution, error) {
	sub, err := s.subs.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "substitution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitution")
	}
	return sub, nil
}

// List returns substitutions plus pagination data.
func (s *SubstitutionService) List(ctx context.Context, filter models.SubstitutionFilter) ([]models.Substitution, *models.Pagination, error) {
	subs, total, err := s.subs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list substitutions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return subs, pagination, nil
}
