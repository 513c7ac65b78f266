package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolops/staff-leave-api/internal/models"
)

type fakeMonitorLeaves struct {
	mu       sync.Mutex
	overdue  []models.LeaveRequest
	listErr  error
	resolved map[string]bool  // leaves already out of pending
	claimErr map[string]error // forced claim failures per leave
	claims   []string
}

func (f *fakeMonitorLeaves) ListOverduePending(ctx context.Context, leaveTypes []string, cutoff time.Time) ([]models.LeaveRequest, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.overdue, nil
}

func (f *fakeMonitorLeaves) ResolveIfPending(ctx context.Context, id string, status models.LeaveStatus, approvedBy *string, approvedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if approvedBy != nil {
		return false, errors.New("auto-approval must record a nil approver")
	}
	if err, ok := f.claimErr[id]; ok {
		return false, err
	}
	if f.resolved[id] {
		return false, nil
	}
	if f.resolved == nil {
		f.resolved = make(map[string]bool)
	}
	f.resolved[id] = true
	f.claims = append(f.claims, id)
	return true, nil
}

type fakeMonitorLogs struct {
	resolved []string
	statuses []models.ApprovalLogStatus
	err      error
}

func (f *fakeMonitorLogs) Resolve(ctx context.Context, leaveID string, status models.ApprovalLogStatus, approvalType models.ApprovalType, approvedBy *string, actualTime time.Time, notes string) error {
	if f.err != nil {
		return f.err
	}
	f.resolved = append(f.resolved, leaveID)
	f.statuses = append(f.statuses, status)
	return nil
}

type fakeMonitorSubs struct {
	completed int64
	calls     int
}

func (f *fakeMonitorSubs) CompletePastAccepted(ctx context.Context, before time.Time) (int64, error) {
	f.calls++
	return f.completed, nil
}

type fixedConfigSource struct {
	cfg *models.AutoApprovalConfig
	err error
}

func (f *fixedConfigSource) Current(ctx context.Context) (*models.AutoApprovalConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cfg, nil
}

type fakeMonitorFinder struct {
	covered []string
	err     error
}

func (f *fakeMonitorFinder) CoverAbsence(ctx context.Context, leave *models.LeaveRequest) (*models.FinderResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.covered = append(f.covered, leave.ID)
	return &models.FinderResult{Created: []models.Substitution{{ID: "s-" + leave.ID}}, Success: true}, nil
}

type fakeMonitorNotifier struct {
	recipients []string
}

func (f *fakeMonitorNotifier) Notify(ctx context.Context, recipientID, body string) error {
	f.recipients = append(f.recipients, recipientID)
	return nil
}

type countingMetrics struct {
	autoApproved int
	scanErrors   int
}

func (c *countingMetrics) LeaveAutoApproved() { c.autoApproved++ }
func (c *countingMetrics) MonitorScanError() { c.scanErrors++ }

func fixedNow() time.Time {
	return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
}

func overdueLeave(id string) models.LeaveRequest {
	return models.LeaveRequest{
		ID:          id,
		TeacherID:   "t1",
		LeaveType:   models.LeaveTypeSick,
		StartDate:   time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		Status:      models.LeaveStatusPending,
		SubmittedAt: fixedNow().Add(-time.Hour),
	}
}

func newMonitorFixture(cfg *models.AutoApprovalConfig) (MonitorOptions, *fakeMonitorLeaves, *fakeMonitorLogs, *fakeMonitorSubs, *fakeMonitorFinder, *fakeMonitorNotifier, *countingMetrics) {
	leaves := &fakeMonitorLeaves{resolved: map[string]bool{}}
	logs := &fakeMonitorLogs{}
	subs := &fakeMonitorSubs{}
	finder := &fakeMonitorFinder{}
	notifier := &fakeMonitorNotifier{}
	metrics := &countingMetrics{}
	opts := MonitorOptions{
		Leaves:        leaves,
		Logs:          logs,
		Substitutions: subs,
		ConfigSource:  &fixedConfigSource{cfg: cfg},
		Finder:        finder,
		Notifier:      notifier,
		Metrics:       metrics,
		Logger:        zap.NewNop(),
		Now:           fixedNow,
	}
	return opts, leaves, logs, subs, finder, notifier, metrics
}

func TestScanOnceAutoApprovesOverdueLeave(t *testing.T) {
	opts, leaves, logs, subs, finder, notifier, metrics := newMonitorFixture(models.DefaultAutoApprovalConfig())
	leaves.overdue = []models.LeaveRequest{overdueLeave("l1")}

	monitor := NewAutoApprovalMonitor(opts)
	require.NoError(t, monitor.ScanOnce(context.Background()))

	assert.Equal(t, []string{"l1"}, leaves.claims)
	assert.Equal(t, []models.ApprovalLogStatus{models.ApprovalLogAutoApproved}, logs.statuses)
	assert.Equal(t, []string{"l1"}, finder.covered)
	// Teacher and admin notices, per the default config.
	assert.Equal(t, []string{"t1", adminRecipient}, notifier.recipients)
	assert.Equal(t, 1, metrics.autoApproved)
	assert.Equal(t, 1, subs.calls)
}

func TestScanOnceDisabledSkipsApprovalsButKeepsHousekeeping(t *testing.T) {
	cfg := models.DefaultAutoApprovalConfig()
	cfg.Enabled = false
	opts, leaves, _, subs, finder, _, _ := newMonitorFixture(cfg)
	leaves.overdue = []models.LeaveRequest{overdueLeave("l1")}

	monitor := NewAutoApprovalMonitor(opts)
	require.NoError(t, monitor.ScanOnce(context.Background()))

	assert.Empty(t, leaves.claims)
	assert.Empty(t, finder.covered)
	assert.Equal(t, 1, subs.calls)
}

func TestScanOnceLosingClaimSkipsSilently(t *testing.T) {
	opts, leaves, logs, _, finder, notifier, metrics := newMonitorFixture(models.DefaultAutoApprovalConfig())
	leaves.overdue = []models.LeaveRequest{overdueLeave("l1")}
	leaves.resolved["l1"] = true // a manual resolution landed first

	monitor := NewAutoApprovalMonitor(opts)
	require.NoError(t, monitor.ScanOnce(context.Background()))

	assert.Empty(t, logs.resolved)
	assert.Empty(t, finder.covered)
	assert.Empty(t, notifier.recipients)
	assert.Zero(t, metrics.autoApproved)
	assert.Zero(t, metrics.scanErrors)
}

func TestScanOnceIsolatesPerCandidateFailures(t *testing.T) {
	opts, leaves, _, _, finder, _, metrics := newMonitorFixture(models.DefaultAutoApprovalConfig())
	leaves.overdue = []models.LeaveRequest{overdueLeave("l1"), overdueLeave("l2")}
	leaves.claimErr = map[string]error{"l1": errors.New("connection reset")}

	monitor := NewAutoApprovalMonitor(opts)
	require.NoError(t, monitor.ScanOnce(context.Background()))

	// l1 fails and stays pending for the next scan; l2 still goes through.
	assert.Equal(t, []string{"l2"}, leaves.claims)
	assert.Equal(t, []string{"l2"}, finder.covered)
	assert.Equal(t, 1, metrics.autoApproved)
	assert.Equal(t, 1, metrics.scanErrors)
}

func TestScanOnceNotificationFlagsRespected(t *testing.T) {
	cfg := models.DefaultAutoApprovalConfig()
	cfg.NotifyTeacher = false
	opts, leaves, _, _, _, notifier, _ := newMonitorFixture(cfg)
	leaves.overdue = []models.LeaveRequest{overdueLeave("l1")}

	monitor := NewAutoApprovalMonitor(opts)
	require.NoError(t, monitor.ScanOnce(context.Background()))

	assert.Equal(t, []string{adminRecipient}, notifier.recipients)
}

func TestScanOnceFinderFailureStillApproves(t *testing.T) {
	opts, leaves, logs, _, finder, _, metrics := newMonitorFixture(models.DefaultAutoApprovalConfig())
	leaves.overdue = []models.LeaveRequest{overdueLeave("l1")}
	finder.err = errors.New("timetable unavailable")

	monitor := NewAutoApprovalMonitor(opts)
	require.NoError(t, monitor.ScanOnce(context.Background()))

	// The approval is committed even when coverage fails.
	assert.Equal(t, []string{"l1"}, leaves.claims)
	assert.Equal(t, []models.ApprovalLogStatus{models.ApprovalLogAutoApproved}, logs.statuses)
	assert.Equal(t, 1, metrics.autoApproved)
	assert.Zero(t, metrics.scanErrors)
}

func TestMonitorStartStop(t *testing.T) {
	opts, _, _, subs, _, _, _ := newMonitorFixture(models.DefaultAutoApprovalConfig())
	opts.Interval = 5 * time.Millisecond

	monitor := NewAutoApprovalMonitor(opts)
	monitor.Start(context.Background())
	monitor.Start(context.Background()) // idempotent

	time.Sleep(30 * time.Millisecond)
	monitor.Stop()
	monitor.Stop() // idempotent

	assert.GreaterOrEqual(t, subs.calls, 1)
}
