package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/schoolops/staff-leave-api/internal/models"
	"github.com/schoolops/staff-leave-api/internal/notify"
)

type finderScheduleRepository interface {
	PeriodsFor(ctx context.Context, teacherID string, dayOfWeek int) ([]models.ScheduleEntry, error)
	HasEntryAt(ctx context.Context, teacherID string, dayOfWeek, periodNumber int) (bool, error)
}

type finderTeacherRepository interface {
	QualifiedForSubject(ctx context.Context, subjectID, excludeTeacherID string) ([]models.Teacher, error)
}

type finderLeaveRepository interface {
	HasApprovedLeaveOn(ctx context.Context, teacherID string, date time.Time) (bool, error)
	MarkSubstitutionCreated(ctx context.Context, id string) error
}

type finderSubstitutionRepository interface {
	Create(ctx context.Context, sub *models.Substitution) error
	HasAssignmentAt(ctx context.Context, substituteTeacherID string, date time.Time, periodNumber int) (bool, error)
	MarkNotified(ctx context.Context, id string, at time.Time) error
}

type finderMetrics interface {
	SubstitutionsCreated(n int)
	UnresolvedSlots(n int)
}

// FinderService implements the substitute matching algorithm: for every
// teaching period an absent teacher would have covered, pick the first
// qualified teacher who is free, not absent, and not already substituting.
type FinderService struct {
	schedules     finderScheduleRepository
	teachers      finderTeacherRepository
	leaves        finderLeaveRepository
	substitutions finderSubstitutionRepository
	notifier      notify.Notifier
	metrics       finderMetrics
	skipWeekends  bool
	logger        *zap.Logger
	now           func() time.Time
}

// NewFinderService constructs a FinderService.
func NewFinderService(
	schedules finderScheduleRepository,
	teachers finderTeacherRepository,
	leaves finderLeaveRepository,
	substitutions finderSubstitutionRepository,
	notifier notify.Notifier,
	metrics finderMetrics,
	skipWeekends bool,
	logger *zap.Logger,
) *FinderService {
	if notifier == nil {
		notifier = notify.NewLogNotifier(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinderService{
		schedules:     schedules,
		teachers:      teachers,
		leaves:        leaves,
		substitutions: substitutions,
		notifier:      notifier,
		metrics:       metrics,
		skipWeekends:  skipWeekends,
		logger:        logger,
		now:           time.Now,
	}
}

// CoverAbsence creates pending substitutions for every non-break period the
// absent teacher holds across the leave's date range. Slots with no available
// qualified substitute are reported as unresolved rather than failing the
// run; success means at least one substitution was created.
func (s *FinderService) CoverAbsence(ctx context.Context, leave *models.LeaveRequest) (*models.FinderResult, error) {
	result := &models.FinderResult{}

	for date := leave.StartDate; !date.After(leave.EndDate); date = date.AddDate(0, 0, 1) {
		if s.skipWeekends && models.IsWeekend(date) {
			continue
		}

		entries, err := s.schedules.PeriodsFor(ctx, leave.TeacherID, models.DayOfWeekFor(date))
		if err != nil {
			return nil, fmt.Errorf("schedule lookup for %s: %w", date.Format("2006-01-02"), err)
		}

		for _, entry := range entries {
			if entry.IsBreak {
				continue
			}

			substitute, err := s.findAvailableSubstitute(ctx, leave.TeacherID, date, entry)
			if err != nil {
				return nil, err
			}
			if substitute == nil {
				result.Unresolved = append(result.Unresolved, models.UnresolvedSlot{
					Date:         date,
					PeriodNumber: entry.PeriodNumber,
					SubjectID:    entry.SubjectID,
				})
				continue
			}

			sub, err := s.createSubstitution(ctx, leave, date, entry, substitute)
			if err != nil {
				return nil, err
			}
			result.Created = append(result.Created, *sub)
		}
	}

	result.Success = len(result.Created) > 0

	if result.Success {
		if err := s.leaves.MarkSubstitutionCreated(ctx, leave.ID); err != nil {
			s.logger.Sugar().Errorw("failed to mark substitution created", "leave_id", leave.ID, "error", err)
		}
	}

	if s.metrics != nil {
		s.metrics.SubstitutionsCreated(len(result.Created))
		s.metrics.UnresolvedSlots(len(result.Unresolved))
	}

	s.logger.Sugar().Infow("absence coverage computed",
		"leave_id", leave.ID,
		"created", len(result.Created),
		"unresolved", len(result.Unresolved),
	)

	return result, nil
}

// findAvailableSubstitute returns the first qualified teacher free for the
// slot, or nil when none is available. Candidates are enumerated in stable
// roster order; no ranking policy is applied.
func (s *FinderService) findAvailableSubstitute(ctx context.Context, absentTeacherID string, date time.Time, entry models.ScheduleEntry) (*models.Teacher, error) {
	candidates, err := s.teachers.QualifiedForSubject(ctx, entry.SubjectID, absentTeacherID)
	if err != nil {
		return nil, fmt.Errorf("qualified teachers for subject %s: %w", entry.SubjectID, err)
	}

	for i := range candidates {
		candidate := &candidates[i]

		busy, err := s.schedules.HasEntryAt(ctx, candidate.ID, entry.DayOfWeek, entry.PeriodNumber)
		if err != nil {
			return nil, fmt.Errorf("availability of %s: %w", candidate.ID, err)
		}
		if busy {
			continue
		}

		assigned, err := s.substitutions.HasAssignmentAt(ctx, candidate.ID, date, entry.PeriodNumber)
		if err != nil {
			return nil, fmt.Errorf("assignments of %s: %w", candidate.ID, err)
		}
		if assigned {
			continue
		}

		absent, err := s.leaves.HasApprovedLeaveOn(ctx, candidate.ID, date)
		if err != nil {
			return nil, fmt.Errorf("leave status of %s: %w", candidate.ID, err)
		}
		if absent {
			continue
		}

		return candidate, nil
	}

	return nil, nil
}

func (s *FinderService) createSubstitution(ctx context.Context, leave *models.LeaveRequest, date time.Time, entry models.ScheduleEntry, substitute *models.Teacher) (*models.Substitution, error) {
	reason := fmt.Sprintf("Automatic substitution for %s leave", leave.LeaveType)
	absenceReason := string(leave.LeaveType)

	sub := &models.Substitution{
		OriginalTeacherID:   leave.TeacherID,
		SubstituteTeacherID: substitute.ID,
		SubjectID:           entry.SubjectID,
		ClassroomID:         entry.ClassroomID,
		Date:                date,
		StartTime:           entry.StartTime,
		EndTime:             entry.EndTime,
		PeriodNumber:        entry.PeriodNumber,
		Status:              models.SubstitutionPending,
		Reason:              &reason,
		AbsenceReason:       &absenceReason,
	}

	if err := s.substitutions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create substitution for period %d on %s: %w", entry.PeriodNumber, date.Format("2006-01-02"), err)
	}

	msg := fmt.Sprintf("You have been assigned to cover period %d on %s.", entry.PeriodNumber, date.Format("2006-01-02"))
	if err := s.notifier.Notify(ctx, substitute.ID, msg); err != nil {
		s.logger.Sugar().Warnw("substitution offer notification failed", "substitution_id", sub.ID, "error", err)
	} else {
		sentAt := s.now().UTC()
		sub.NotificationSent = true
		sub.NotificationSentAt = &sentAt
		if err := s.substitutions.MarkNotified(ctx, sub.ID, sentAt); err != nil {
			s.logger.Sugar().Warnw("failed to mark substitution notified", "substitution_id", sub.ID, "error", err)
		}
	}

	return sub, nil
}
