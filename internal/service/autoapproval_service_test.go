package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolops/staff-leave-api/internal/models"
	appErrors "github.com/schoolops/staff-leave-api/pkg/errors"
)

type mockConfigRepo struct {
	cfg     *models.AutoApprovalConfig
	upserts int
}

func (m *mockConfigRepo) Get(ctx context.Context) (*models.AutoApprovalConfig, error) {
	if m.cfg == nil {
		return nil, sql.ErrNoRows
	}
	cp := *m.cfg
	return &cp, nil
}

func (m *mockConfigRepo) Upsert(ctx context.Context, cfg *models.AutoApprovalConfig) error {
	m.upserts++
	cp := *cfg
	m.cfg = &cp
	return nil
}

type mockConfigCache struct {
	store   map[string]*models.AutoApprovalConfig
	sets    int
	deletes int
}

func (m *mockConfigCache) Get(ctx context.Context, key string, dest interface{}) error {
	cfg, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*models.AutoApprovalConfig) = *cfg
	return nil
}

func (m *mockConfigCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.sets++
	if m.store == nil {
		m.store = make(map[string]*models.AutoApprovalConfig)
	}
	cp := *value.(*models.AutoApprovalConfig)
	m.store[key] = &cp
	return nil
}

func (m *mockConfigCache) Delete(ctx context.Context, key string) error {
	m.deletes++
	delete(m.store, key)
	return nil
}

type mockCountdownLeaves struct {
	items map[string]*models.LeaveRequest
}

func (m *mockCountdownLeaves) FindByID(ctx context.Context, id string) (*models.LeaveRequest, error) {
	if leave, ok := m.items[id]; ok {
		cp := *leave
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func newAutoApprovalFixture() (*AutoApprovalService, *mockConfigRepo, *mockConfigCache, *mockCountdownLeaves) {
	repo := &mockConfigRepo{}
	cache := &mockConfigCache{store: map[string]*models.AutoApprovalConfig{}}
	leaves := &mockCountdownLeaves{items: map[string]*models.LeaveRequest{}}
	svc := NewAutoApprovalService(repo, cache, leaves, 30*time.Second, validator.New(), zap.NewNop())
	return svc, repo, cache, leaves
}

func TestAutoApprovalServiceInitializesDefaults(t *testing.T) {
	svc, repo, cache, _ := newAutoApprovalFixture()

	cfg, err := svc.Current(context.Background())
	require.NoError(t, err)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 30, cfg.TimeoutMinutes)
	assert.Equal(t, pq.StringArray{"sick", "casual", "emergency"}, cfg.ApplicableLeaveTypes)
	assert.Equal(t, 1, repo.upserts)
	assert.Equal(t, 1, cache.sets)

	// Second read is served from cache.
	_, err = svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
}

func TestAutoApprovalServicePartialUpdate(t *testing.T) {
	svc, repo, cache, _ := newAutoApprovalFixture()
	repo.cfg = models.DefaultAutoApprovalConfig()

	timeout := 90
	enabled := false
	cfg, err := svc.Update(context.Background(), UpdateAutoApprovalRequest{
		Enabled:        &enabled,
		TimeoutMinutes: &timeout,
	}, "admin-1")
	require.NoError(t, err)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, 90, cfg.TimeoutMinutes)
	// Untouched fields survive.
	assert.Equal(t, pq.StringArray{"sick", "casual", "emergency"}, cfg.ApplicableLeaveTypes)
	require.NotNil(t, cfg.UpdatedBy)
	assert.Equal(t, "admin-1", *cfg.UpdatedBy)
	assert.Equal(t, 1, cache.deletes)
}

func TestAutoApprovalServiceUpdateRejectsUnknownType(t *testing.T) {
	svc, repo, _, _ := newAutoApprovalFixture()
	repo.cfg = models.DefaultAutoApprovalConfig()

	_, err := svc.Update(context.Background(), UpdateAutoApprovalRequest{
		ApplicableLeaveTypes: []string{"sick", "sabbatical"},
	}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAutoApprovalServiceCountdownPending(t *testing.T) {
	svc, repo, _, leaves := newAutoApprovalFixture()
	repo.cfg = models.DefaultAutoApprovalConfig()

	submitted := time.Now().UTC().Add(-10 * time.Minute)
	leaves.items["l1"] = &models.LeaveRequest{
		ID:          "l1",
		LeaveType:   models.LeaveTypeSick,
		Status:      models.LeaveStatusPending,
		SubmittedAt: submitted,
	}

	countdown, err := svc.Countdown(context.Background(), "l1")
	require.NoError(t, err)
	require.NotNil(t, countdown)
	assert.Equal(t, "pending", countdown.Status)
	assert.InDelta(t, 19, countdown.MinutesRemaining, 1)
	require.NotNil(t, countdown.Deadline)
	assert.Equal(t, submitted.Add(30*time.Minute), *countdown.Deadline)
}

func TestAutoApprovalServiceCountdownOverdue(t *testing.T) {
	svc, repo, _, leaves := newAutoApprovalFixture()
	repo.cfg = models.DefaultAutoApprovalConfig()

	leaves.items["l1"] = &models.LeaveRequest{
		ID:          "l1",
		LeaveType:   models.LeaveTypeSick,
		Status:      models.LeaveStatusPending,
		SubmittedAt: time.Now().UTC().Add(-2 * time.Hour),
	}

	countdown, err := svc.Countdown(context.Background(), "l1")
	require.NoError(t, err)
	require.NotNil(t, countdown)
	assert.Equal(t, "overdue", countdown.Status)
	assert.Zero(t, countdown.MinutesRemaining)
}

func TestAutoApprovalServiceCountdownInapplicable(t *testing.T) {
	svc, repo, _, leaves := newAutoApprovalFixture()
	repo.cfg = models.DefaultAutoApprovalConfig()

	leaves.items["resolved"] = &models.LeaveRequest{
		ID:          "resolved",
		LeaveType:   models.LeaveTypeSick,
		Status:      models.LeaveStatusApproved,
		SubmittedAt: time.Now().UTC(),
	}
	leaves.items["maternity"] = &models.LeaveRequest{
		ID:          "maternity",
		LeaveType:   models.LeaveTypeMaternity,
		Status:      models.LeaveStatusPending,
		SubmittedAt: time.Now().UTC(),
	}

	countdown, err := svc.Countdown(context.Background(), "resolved")
	require.NoError(t, err)
	assert.Nil(t, countdown)

	countdown, err = svc.Countdown(context.Background(), "maternity")
	require.NoError(t, err)
	assert.Nil(t, countdown)
}

func TestAutoApprovalServiceCountdownDisabled(t *testing.T) {
	svc, repo, _, leaves := newAutoApprovalFixture()
	cfg := models.DefaultAutoApprovalConfig()
	cfg.Enabled = false
	repo.cfg = cfg

	leaves.items["l1"] = &models.LeaveRequest{
		ID:          "l1",
		LeaveType:   models.LeaveTypeSick,
		Status:      models.LeaveStatusPending,
		SubmittedAt: time.Now().UTC(),
	}

	countdown, err := svc.Countdown(context.Background(), "l1")
	require.NoError(t, err)
	assert.Nil(t, countdown)
}
