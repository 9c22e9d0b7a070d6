package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"vaxtrack/internal/calendar"
	"vaxtrack/internal/clock"
	"vaxtrack/internal/domain"
	"vaxtrack/internal/schedule"
	"vaxtrack/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSchedules 固定的国家日历
type fakeSchedules struct {
	data     map[domain.Country]domain.VaccineData
	err      error
	cleared  int
	clearErr error
}

func (f *fakeSchedules) ClearCache(context.Context) error {
	f.cleared++
	return f.clearErr
}

func (f *fakeSchedules) GetSchedule(_ context.Context, country domain.Country) (domain.Schedule, error) {
	if f.err != nil {
		return domain.Schedule{}, f.err
	}
	return f.data[country].Schedule(country), nil
}

func newFakeSchedules() *fakeSchedules {
	return &fakeSchedules{data: map[domain.Country]domain.VaccineData{
		domain.CountryUSA: {
			Mandatory: []domain.VaccineDefinition{
				{ID: "hepb", AgeInMonths: 0, Doses: 3, DoseIntervalMonths: 2},
				{ID: "mmr", AgeInMonths: 12},
			},
			Recommended: []domain.VaccineDefinition{
				{ID: "flu", AgeInMonths: 6},
			},
		},
	}}
}

type serviceEnv struct {
	clock     *clock.Fixed
	store     *store.RecordStore
	schedules *fakeSchedules
	svc       *VaccinationService
}

func setupService(t *testing.T) *serviceEnv {
	clk := clock.NewFixed(time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC))
	st := store.NewRecordStore(store.NewMemoryKV(), clk, zap.NewNop())
	schedules := newFakeSchedules()
	return &serviceEnv{
		clock:     clk,
		store:     st,
		schedules: schedules,
		svc:       NewVaccinationService(st, schedules, clk, zap.NewNop()),
	}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := schedule.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestAddChild_CreatesMandatoryRecords(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	child, records, err := env.svc.AddChild(ctx, ChildInput{
		Name:        "  Mia ",
		DateOfBirth: mustDate(t, "2023-12-01"),
		Country:     domain.CountryUSA,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, child.ID)
	assert.Equal(t, "Mia", child.Name)
	assert.Len(t, records, 4)

	stored, err := env.store.ChildRecords(ctx, child.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestAddChild_Validation(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, _, err := env.svc.AddChild(ctx, ChildInput{Name: "", DateOfBirth: mustDate(t, "2023-01-01"), Country: domain.CountryUSA})
	assert.ErrorIs(t, err, ErrInvalidChild)

	_, _, err = env.svc.AddChild(ctx, ChildInput{Name: "A", DateOfBirth: mustDate(t, "2030-01-01"), Country: domain.CountryUSA})
	assert.ErrorIs(t, err, ErrInvalidChild)

	_, _, err = env.svc.AddChild(ctx, ChildInput{Name: "A", DateOfBirth: mustDate(t, "2023-01-01"), Country: "Atlantis"})
	assert.ErrorIs(t, err, ErrInvalidChild)
}

func TestAddChild_ScheduleErrorSavesNothing(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	env.schedules.err = &calendar.LoadError{Kind: calendar.ErrNoInternetConnection, Country: domain.CountryGermany}

	_, _, err := env.svc.AddChild(ctx, ChildInput{Name: "A", DateOfBirth: mustDate(t, "2023-01-01"), Country: domain.CountryGermany})
	assert.ErrorIs(t, err, calendar.ErrNoInternetConnection)

	children, err := env.svc.ListChildren(ctx)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestSyncChildRecords_LateEnableRecommended(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	child, _, err := env.svc.AddChild(ctx, ChildInput{Name: "Leo", DateOfBirth: mustDate(t, "2023-06-15"), Country: domain.CountryUSA})
	require.NoError(t, err)

	added, err := env.svc.SyncChildRecords(ctx, child.ID)
	require.NoError(t, err)
	assert.Empty(t, added, "sync is idempotent")

	settings := domain.DefaultSettings()
	settings.ShowRecommendedVaccines = true
	_, err = env.svc.UpdateSettings(ctx, settings)
	require.NoError(t, err)

	added, err = env.svc.SyncChildRecords(ctx, child.ID)
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, "flu", added[0].VaccineID)

	_, err = env.svc.SyncChildRecords(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrChildNotFound)
}

func TestChildRecords_LiveStatusAndFilter(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	// hepb: 2023-06-15, 2023-08-15, 2023-10-15; mmr: 2024-06-15
	child, _, err := env.svc.AddChild(ctx, ChildInput{Name: "Leo", DateOfBirth: mustDate(t, "2023-06-15"), Country: domain.CountryUSA})
	require.NoError(t, err)

	all, err := env.svc.ChildRecords(ctx, child.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "2023-06-15", all[0].ScheduledDate.Format(schedule.DateLayout))

	upcoming, err := env.svc.ChildRecords(ctx, child.ID, domain.StatusUpcoming)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "mmr", upcoming[0].VaccineID)

	// 时间推进后状态实时变化
	env.clock.Set(time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC))
	overdue, err := env.svc.Overdue(ctx, child.ID)
	require.NoError(t, err)
	assert.Len(t, overdue, 4)

	_, err = env.svc.ChildRecords(ctx, "missing", "")
	assert.ErrorIs(t, err, store.ErrChildNotFound)
}

func TestUpcomingWindow(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	child, _, err := env.svc.AddChild(ctx, ChildInput{Name: "Leo", DateOfBirth: mustDate(t, "2023-06-15"), Country: domain.CountryUSA})
	require.NoError(t, err)

	upcoming, err := env.svc.Upcoming(ctx, child.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, upcoming)

	upcoming, err = env.svc.Upcoming(ctx, child.ID, 200)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "mmr", upcoming[0].VaccineID)
}

func TestMarkCompleted(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	child, records, err := env.svc.AddChild(ctx, ChildInput{Name: "Leo", DateOfBirth: mustDate(t, "2023-06-15"), Country: domain.CountryUSA})
	require.NoError(t, err)

	done, err := env.svc.MarkCompleted(ctx, records[0].ID, domain.CompletionData{
		CompletedDate: mustDate(t, "2023-06-16"),
		DoctorName:    "Dr. Smith",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	assert.Equal(t, "Dr. Smith", done.DoctorName)

	completed, err := env.svc.Completed(ctx, child.ID)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, records[0].ID, completed[0].ID)

	_, err = env.svc.MarkCompleted(ctx, records[0].ID, domain.CompletionData{})
	assert.ErrorIs(t, err, schedule.ErrAlreadyCompleted)

	_, err = env.svc.MarkCompleted(ctx, "missing", domain.CompletionData{})
	assert.ErrorIs(t, err, store.ErrRecordNotFound)

	_, err = env.svc.MarkCompleted(ctx, records[1].ID, domain.CompletionData{CompletedDate: mustDate(t, "2024-02-01")})
	assert.ErrorIs(t, err, ErrInvalidCompletion)
}

func TestOverview(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	child, records, err := env.svc.AddChild(ctx, ChildInput{Name: "Leo", DateOfBirth: mustDate(t, "2023-06-15"), Country: domain.CountryUSA})
	require.NoError(t, err)
	_, err = env.svc.MarkCompleted(ctx, records[0].ID, domain.CompletionData{})
	require.NoError(t, err)

	ov, err := env.svc.Overview(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, ov.AgeInMonths)
	assert.Equal(t, "6 months", ov.Age)
	assert.Equal(t, 1, ov.CompletedCount)
	assert.Equal(t, 2, ov.OverdueCount)
	assert.Equal(t, 1, ov.UpcomingCount)
	require.NotNil(t, ov.NextDue)
	assert.Equal(t, "mmr", ov.NextDue.VaccineID)
	require.NotNil(t, ov.NextDueInDays)
	assert.Equal(t, schedule.DaysUntil(mustDate(t, "2024-06-15"), env.clock.Now()), *ov.NextDueInDays)
}

func TestUpdateAndDeleteChild(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	child, _, err := env.svc.AddChild(ctx, ChildInput{Name: "Leo", DateOfBirth: mustDate(t, "2023-06-15"), Country: domain.CountryUSA})
	require.NoError(t, err)

	name := "Leon"
	updated, err := env.svc.UpdateChild(ctx, child.ID, domain.ChildUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Leon", updated.Name)

	empty := " "
	_, err = env.svc.UpdateChild(ctx, child.ID, domain.ChildUpdate{Name: &empty})
	assert.ErrorIs(t, err, ErrInvalidChild)

	require.NoError(t, env.svc.DeleteChild(ctx, child.ID))
	records, err := env.store.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	err = env.svc.DeleteChild(ctx, child.ID)
	assert.True(t, errors.Is(err, store.ErrChildNotFound))
}

func TestSettingsAndClearAll(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	settings, err := env.svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), settings)

	settings.ReminderDaysBefore = 40
	_, err = env.svc.UpdateSettings(ctx, settings)
	assert.ErrorIs(t, err, domain.ErrInvalidSettings)

	_, _, err = env.svc.AddChild(ctx, ChildInput{Name: "Leo", DateOfBirth: mustDate(t, "2023-06-15"), Country: domain.CountryUSA})
	require.NoError(t, err)
	require.NoError(t, env.svc.ClearAllData(ctx))

	children, err := env.svc.ListChildren(ctx)
	require.NoError(t, err)
	assert.Empty(t, children)
	assert.Equal(t, 1, env.schedules.cleared, "calendar cache cleared too")

	env.schedules.clearErr = errors.New("redis down")
	assert.Error(t, env.svc.ClearAllData(ctx))
}

// failingKV 对指定 key 的写入返回错误
type failingKV struct {
	*store.MemoryKV
	failKey string
}

func (f *failingKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if key == f.failKey {
		return errors.New("write failed")
	}
	return f.MemoryKV.Set(ctx, key, value, ttl)
}

func TestAddChild_RecordsWriteFailureRollsBackChild(t *testing.T) {
	clk := clock.NewFixed(time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC))
	st := store.NewRecordStore(&failingKV{MemoryKV: store.NewMemoryKV(), failKey: store.KeyRecords}, clk, zap.NewNop())
	svc := NewVaccinationService(st, newFakeSchedules(), clk, zap.NewNop())
	ctx := context.Background()

	_, _, err := svc.AddChild(ctx, ChildInput{Name: "Leo", DateOfBirth: mustDate(t, "2023-06-15"), Country: domain.CountryUSA})
	require.Error(t, err)

	children, err := svc.ListChildren(ctx)
	require.NoError(t, err)
	assert.Empty(t, children)
}
