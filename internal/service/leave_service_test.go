package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolops/staff-leave-api/internal/models"
	appErrors "github.com/schoolops/staff-leave-api/pkg/errors"
)

type mockLeaveRepo struct {
	items        map[string]*models.LeaveRequest
	listResult   []models.LeaveRequest
	listTotal    int
	resolved     map[string]bool // leaves that already left pending
	resolveCalls []models.LeaveStatus
}

func (m *mockLeaveRepo) Create(ctx context.Context, leave *models.LeaveRequest) error {
	if m.items == nil {
		m.items = make(map[string]*models.LeaveRequest)
	}
	if leave.ID == "" {
		leave.ID = "generated"
	}
	cp := *leave
	m.items[leave.ID] = &cp
	return nil
}

func (m *mockLeaveRepo) FindByID(ctx context.Context, id string) (*models.LeaveRequest, error) {
	if leave, ok := m.items[id]; ok {
		cp := *leave
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLeaveRepo) List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequest, int, error) {
	return m.listResult, m.listTotal, nil
}

func (m *mockLeaveRepo) ResolveIfPending(ctx context.Context, id string, status models.LeaveStatus, approvedBy *string, approvedAt time.Time) (bool, error) {
	m.resolveCalls = append(m.resolveCalls, status)
	if m.resolved[id] {
		return false, nil
	}
	if m.resolved == nil {
		m.resolved = make(map[string]bool)
	}
	m.resolved[id] = true
	if leave, ok := m.items[id]; ok {
		leave.Status = status
		leave.ApprovedBy = approvedBy
		leave.ApprovedAt = &approvedAt
	}
	return true, nil
}

type mockApprovalLogRepo struct {
	entries  map[string]*models.LeaveApprovalLog
	resolved []models.ApprovalLogStatus
}

func (m *mockApprovalLogRepo) Create(ctx context.Context, entry *models.LeaveApprovalLog) error {
	if m.entries == nil {
		m.entries = make(map[string]*models.LeaveApprovalLog)
	}
	if entry.ID == "" {
		entry.ID = "log-" + entry.LeaveID
	}
	cp := *entry
	m.entries[entry.LeaveID] = &cp
	return nil
}

func (m *mockApprovalLogRepo) FindByLeaveID(ctx context.Context, leaveID string) (*models.LeaveApprovalLog, error) {
	if entry, ok := m.entries[leaveID]; ok {
		cp := *entry
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApprovalLogRepo) Resolve(ctx context.Context, leaveID string, status models.ApprovalLogStatus, approvalType models.ApprovalType, approvedBy *string, actualTime time.Time, notes string) error {
	m.resolved = append(m.resolved, status)
	if entry, ok := m.entries[leaveID]; ok {
		entry.Status = status
		entry.ApprovalType = approvalType
	}
	return nil
}

type mockTeacherExists struct {
	active map[string]bool
}

func (m *mockTeacherExists) ExistsActive(ctx context.Context, id string) (bool, error) {
	return m.active[id], nil
}

type staticConfigSource struct {
	cfg *models.AutoApprovalConfig
}

func (s *staticConfigSource) Current(ctx context.Context) (*models.AutoApprovalConfig, error) {
	return s.cfg, nil
}

type mockFinder struct {
	result *models.FinderResult
	calls  int
}

func (m *mockFinder) CoverAbsence(ctx context.Context, leave *models.LeaveRequest) (*models.FinderResult, error) {
	m.calls++
	if m.result != nil {
		return m.result, nil
	}
	return &models.FinderResult{}, nil
}

func newLeaveServiceFixture() (*LeaveService, *mockLeaveRepo, *mockApprovalLogRepo, *mockFinder, *recordingNotifier) {
	leaves := &mockLeaveRepo{items: map[string]*models.LeaveRequest{}, resolved: map[string]bool{}}
	logs := &mockApprovalLogRepo{entries: map[string]*models.LeaveApprovalLog{}}
	teachers := &mockTeacherExists{active: map[string]bool{"t1": true}}
	configSrc := &staticConfigSource{cfg: models.DefaultAutoApprovalConfig()}
	finder := &mockFinder{}
	notifier := &recordingNotifier{}
	svc := NewLeaveService(leaves, logs, teachers, configSrc, finder, notifier, nil, validator.New(), zap.NewNop())
	return svc, leaves, logs, finder, notifier
}

func TestLeaveServiceSubmit(t *testing.T) {
	svc, leaves, logs, _, notifier := newLeaveServiceFixture()

	result, err := svc.Submit(context.Background(), SubmitLeaveRequest{
		TeacherID: "t1",
		LeaveType: "sick",
		StartDate: "2026-03-02",
		EndDate:   "2026-03-03",
	})
	require.NoError(t, err)

	assert.Equal(t, models.LeaveStatusPending, result.Leave.Status)
	assert.Nil(t, result.Leave.ApprovedBy)
	require.NotNil(t, result.AutoApprovalDeadline)
	assert.Equal(t, result.Leave.SubmittedAt.Add(30*time.Minute), *result.AutoApprovalDeadline)

	entry := logs.entries[result.Leave.ID]
	require.NotNil(t, entry)
	assert.Equal(t, models.ApprovalLogPending, entry.Status)
	require.NotNil(t, entry.AutoApprovalDeadline)

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], AdminRecipient)
	assert.Len(t, leaves.items, 1)
}

func TestLeaveServiceSubmitInapplicableTypeHasNoDeadline(t *testing.T) {
	svc, _, logs, _, _ := newLeaveServiceFixture()

	result, err := svc.Submit(context.Background(), SubmitLeaveRequest{
		TeacherID: "t1",
		LeaveType: "maternity",
		StartDate: "2026-03-02",
		EndDate:   "2026-03-20",
	})
	require.NoError(t, err)
	assert.Nil(t, result.AutoApprovalDeadline)
	assert.Nil(t, logs.entries[result.Leave.ID].AutoApprovalDeadline)
}

func TestLeaveServiceSubmitRejectsSingleDay(t *testing.T) {
	svc, _, _, _, _ := newLeaveServiceFixture()

	_, err := svc.Submit(context.Background(), SubmitLeaveRequest{
		TeacherID: "t1",
		LeaveType: "sick",
		StartDate: "2026-03-02",
		EndDate:   "2026-03-02",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidDateRange.Code, appErrors.FromError(err).Code)
}

func TestLeaveServiceSubmitRejectsInvertedRange(t *testing.T) {
	svc, _, _, _, _ := newLeaveServiceFixture()

	_, err := svc.Submit(context.Background(), SubmitLeaveRequest{
		TeacherID: "t1",
		LeaveType: "sick",
		StartDate: "2026-03-05",
		EndDate:   "2026-03-02",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidDateRange.Code, appErrors.FromError(err).Code)
}

func TestLeaveServiceSubmitRejectsUnknownType(t *testing.T) {
	svc, _, _, _, _ := newLeaveServiceFixture()

	_, err := svc.Submit(context.Background(), SubmitLeaveRequest{
		TeacherID: "t1",
		LeaveType: "sabbatical",
		StartDate: "2026-03-02",
		EndDate:   "2026-03-03",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidLeaveType.Code, appErrors.FromError(err).Code)
}

func TestLeaveServiceSubmitRejectsUnknownTeacher(t *testing.T) {
	svc, _, _, _, _ := newLeaveServiceFixture()

	_, err := svc.Submit(context.Background(), SubmitLeaveRequest{
		TeacherID: "ghost",
		LeaveType: "sick",
		StartDate: "2026-03-02",
		EndDate:   "2026-03-03",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTeacher.Code, appErrors.FromError(err).Code)
}

func TestLeaveServiceApproveRunsFinder(t *testing.T) {
	svc, leaves, logs, finder, notifier := newLeaveServiceFixture()

	leaves.items["l1"] = &models.LeaveRequest{
		ID:        "l1",
		TeacherID: "t1",
		LeaveType: models.LeaveTypeSick,
		StartDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		Status:    models.LeaveStatusPending,
	}
	logs.entries["l1"] = &models.LeaveApprovalLog{ID: "log-l1", LeaveID: "l1", Status: models.ApprovalLogPending}
	finder.result = &models.FinderResult{
		Created: []models.Substitution{{ID: "s1"}},
		Success: true,
	}

	result, err := svc.Approve(context.Background(), "l1", "admin-1", "covered manually")
	require.NoError(t, err)

	assert.Equal(t, models.LeaveStatusApproved, result.Leave.Status)
	require.NotNil(t, result.Leave.ApprovedBy)
	assert.Equal(t, "admin-1", *result.Leave.ApprovedBy)
	assert.Equal(t, 1, finder.calls)
	require.NotNil(t, result.Finder)
	assert.True(t, result.Finder.Success)
	assert.Equal(t, []models.ApprovalLogStatus{models.ApprovalLogManualApproved}, logs.resolved)
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "t1")
}

func TestLeaveServiceApproveAlreadyResolved(t *testing.T) {
	svc, leaves, _, finder, _ := newLeaveServiceFixture()

	leaves.items["l1"] = &models.LeaveRequest{ID: "l1", TeacherID: "t1", Status: models.LeaveStatusApproved}
	leaves.resolved["l1"] = true

	_, err := svc.Approve(context.Background(), "l1", "admin-1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Zero(t, finder.calls)
}

func TestLeaveServiceRejectNeverRunsFinder(t *testing.T) {
	svc, leaves, logs, finder, _ := newLeaveServiceFixture()

	leaves.items["l1"] = &models.LeaveRequest{
		ID:        "l1",
		TeacherID: "t1",
		LeaveType: models.LeaveTypeSick,
		Status:    models.LeaveStatusPending,
	}
	logs.entries["l1"] = &models.LeaveApprovalLog{ID: "log-l1", LeaveID: "l1", Status: models.ApprovalLogPending}

	leave, err := svc.Reject(context.Background(), "l1", "admin-1", "staffing shortage")
	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusRejected, leave.Status)
	assert.Zero(t, finder.calls)
	assert.Equal(t, []models.ApprovalLogStatus{models.ApprovalLogRejected}, logs.resolved)
}

func TestLeaveServiceGetNotFound(t *testing.T) {
	svc, _, _, _, _ := newLeaveServiceFixture()

	_, _, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLeaveServiceListPagination(t *testing.T) {
	svc, leaves, _, _, _ := newLeaveServiceFixture()
	leaves.listResult = []models.LeaveRequest{{ID: "l1"}, {ID: "l2"}}
	leaves.listTotal = 12

	items, pagination, err := svc.List(context.Background(), models.LeaveFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 12, pagination.TotalCount)
}
