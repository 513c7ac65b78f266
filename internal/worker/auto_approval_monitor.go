package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/schoolops/staff-leave-api/internal/models"
	"github.com/schoolops/staff-leave-api/internal/notify"
)

const adminRecipient = "admins"

type monitorLeaveRepository interface {
	ListOverduePending(ctx context.Context, leaveTypes []string, cutoff time.Time) ([]models.LeaveRequest, error)
	ResolveIfPending(ctx context.Context, id string, status models.LeaveStatus, approvedBy *string, approvedAt time.Time) (bool, error)
}

type monitorApprovalLogRepository interface {
	Resolve(ctx context.Context, leaveID string, status models.ApprovalLogStatus, approvalType models.ApprovalType, approvedBy *string, actualTime time.Time, notes string) error
}

type monitorSubstitutionRepository interface {
	CompletePastAccepted(ctx context.Context, before time.Time) (int64, error)
}

type monitorConfigSource interface {
	Current(ctx context.Context) (*models.AutoApprovalConfig, error)
}

type monitorFinder interface {
	CoverAbsence(ctx context.Context, leave *models.LeaveRequest) (*models.FinderResult, error)
}

type monitorMetrics interface {
	LeaveAutoApproved()
	MonitorScanError()
}

// AutoApprovalMonitor is the single long-lived background worker that
// approves stale pending leaves once their configured review window passes.
// All state it relies on lives in the store, so a restarted monitor resumes
// correctly with no recovery step.
type AutoApprovalMonitor struct {
	leaves    monitorLeaveRepository
	logs      monitorApprovalLogRepository
	subs      monitorSubstitutionRepository
	configSrc monitorConfigSource
	finder    monitorFinder
	notifier  notify.Notifier
	metrics   monitorMetrics
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// MonitorOptions bundles the monitor's dependencies.
type MonitorOptions struct {
	Leaves        monitorLeaveRepository
	Logs          monitorApprovalLogRepository
	Substitutions monitorSubstitutionRepository
	ConfigSource  monitorConfigSource
	Finder        monitorFinder
	Notifier      notify.Notifier
	Metrics       monitorMetrics
	Interval      time.Duration
	Logger        *zap.Logger
	Now           func() time.Time
}

// NewAutoApprovalMonitor constructs the worker. Nothing runs until Start.
func NewAutoApprovalMonitor(opts MonitorOptions) *AutoApprovalMonitor {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewLogNotifier(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AutoApprovalMonitor{
		leaves:    opts.Leaves,
		logs:      opts.Logs,
		subs:      opts.Substitutions,
		configSrc: opts.ConfigSource,
		finder:    opts.Finder,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		interval:  opts.Interval,
		logger:    opts.Logger,
		now:       opts.Now,
	}
}

// Start launches the scan loop. Safe to call once.
func (m *AutoApprovalMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.loop()
	m.started = true
	m.logger.Sugar().Infow("auto-approval monitor started", "interval", m.interval)
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
func (m *AutoApprovalMonitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.mu.Unlock()
	m.wg.Wait()
	m.logger.Sugar().Infow("auto-approval monitor stopped")
}

func (m *AutoApprovalMonitor) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if err := m.ScanOnce(m.ctx); err != nil {
				m.logger.Sugar().Errorw("auto-approval scan failed", "error", err)
			}
		}
	}
}

// ScanOnce runs a single scan cycle: auto-approve every overdue pending leave
// of an applicable type, then complete past accepted substitutions. One bad
// candidate never stops the cycle.
func (m *AutoApprovalMonitor) ScanOnce(ctx context.Context) error {
	cfg, err := m.configSrc.Current(ctx)
	if err != nil {
		return fmt.Errorf("load auto-approval config: %w", err)
	}
	if !cfg.Enabled {
		return m.housekeeping(ctx)
	}

	cutoff := m.now().UTC().Add(-cfg.Timeout())
	candidates, err := m.leaves.ListOverduePending(ctx, cfg.ApplicableLeaveTypes, cutoff)
	if err != nil {
		return fmt.Errorf("list overdue pending leaves: %w", err)
	}

	for i := range candidates {
		if err := m.autoApprove(ctx, &candidates[i], cfg); err != nil {
			// Failed candidates stay pending and are retried next scan.
			m.logger.Sugar().Errorw("auto-approval failed", "leave_id", candidates[i].ID, "error", err)
			if m.metrics != nil {
				m.metrics.MonitorScanError()
			}
		}
	}

	return m.housekeeping(ctx)
}

func (m *AutoApprovalMonitor) autoApprove(ctx context.Context, leave *models.LeaveRequest, cfg *models.AutoApprovalConfig) error {
	now := m.now().UTC()

	// Conditional claim: a manual resolution landing first wins silently.
	applied, err := m.leaves.ResolveIfPending(ctx, leave.ID, models.LeaveStatusApproved, nil, now)
	if err != nil {
		return fmt.Errorf("claim leave: %w", err)
	}
	if !applied {
		m.logger.Sugar().Debugw("leave resolved by another actor, skipping", "leave_id", leave.ID)
		return nil
	}

	leave.Status = models.LeaveStatusApproved
	leave.ApprovedBy = nil
	leave.ApprovedAt = &now

	notes := fmt.Sprintf("Auto-approved after %d minutes", cfg.TimeoutMinutes)
	if err := m.logs.Resolve(ctx, leave.ID, models.ApprovalLogAutoApproved, models.ApprovalTypeAuto, nil, now, notes); err != nil {
		m.logger.Sugar().Errorw("failed to resolve approval log", "leave_id", leave.ID, "error", err)
	}

	result, err := m.finder.CoverAbsence(ctx, leave)
	if err != nil {
		m.logger.Sugar().Errorw("substitution coverage failed after auto-approval", "leave_id", leave.ID, "error", err)
		result = &models.FinderResult{}
	}

	if cfg.NotifyTeacher {
		if err := m.notifier.Notify(ctx, leave.TeacherID, "Your leave request has been approved automatically."); err != nil {
			m.logger.Sugar().Warnw("auto-approval notification failed", "leave_id", leave.ID, "error", err)
		}
	}
	if cfg.NotifyAdmin {
		msg := fmt.Sprintf("Leave %s was approved automatically; %d substitutions created, %d slots unresolved.",
			leave.ID, len(result.Created), len(result.Unresolved))
		if err := m.notifier.Notify(ctx, adminRecipient, msg); err != nil {
			m.logger.Sugar().Warnw("auto-approval notification failed", "leave_id", leave.ID, "error", err)
		}
	}

	if m.metrics != nil {
		m.metrics.LeaveAutoApproved()
	}

	m.logger.Sugar().Infow("leave auto-approved", "leave_id", leave.ID,
		"substitutions_created", len(result.Created), "unresolved_slots", len(result.Unresolved))
	return nil
}

// housekeeping completes accepted substitutions whose date has passed.
func (m *AutoApprovalMonitor) housekeeping(ctx context.Context) error {
	today := m.now().UTC().Truncate(24 * time.Hour)
	completed, err := m.subs.CompletePastAccepted(ctx, today)
	if err != nil {
		return fmt.Errorf("complete past substitutions: %w", err)
	}
	if completed > 0 {
		m.logger.Sugar().Infow("substitutions completed", "count", completed)
	}
	return nil
}
