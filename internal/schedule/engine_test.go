package schedule

import (
	"testing"
	"time"

	"vaxtrack/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func dates(doses []Dose) []string {
	out := make([]string, len(doses))
	for i, d := range doses {
		out[i] = d.Date.Format(DateLayout)
	}
	return out
}

// ============================================
// 日期计算
// ============================================

func TestAddMonths_ClampsToMonthEnd(t *testing.T) {
	cases := []struct {
		from   string
		months int
		want   string
	}{
		{"2024-01-31", 1, "2024-02-29"},
		{"2023-01-31", 1, "2023-02-28"},
		{"2024-03-31", 1, "2024-04-30"},
		{"2024-01-15", 0, "2024-01-15"},
		{"2023-11-30", 3, "2024-02-29"},
		{"2024-08-31", 18, "2026-02-28"},
		{"2024-03-31", -1, "2024-02-29"},
		{"2024-01-31", -13, "2022-12-31"},
	}
	for _, tc := range cases {
		got := AddMonths(day(t, tc.from), tc.months)
		assert.Equal(t, tc.want, got.Format(DateLayout), "%s %+d", tc.from, tc.months)
	}
}

func TestScheduledDate_AlwaysValid(t *testing.T) {
	dob := day(t, "2024-01-31")
	for age := 0; age <= 216; age++ {
		got := ScheduledDate(dob, age)
		// 有效日期格式化后再解析应得到同一天
		reparsed, err := ParseDate(got.Format(DateLayout))
		require.NoError(t, err)
		assert.True(t, reparsed.Equal(got))
		assert.LessOrEqual(t, got.Day(), 31)
	}
	assert.Equal(t, "2024-02-29", ScheduledDate(dob, 1).Format(DateLayout))
}

func TestScheduledDate_IgnoresTimeOfDay(t *testing.T) {
	dob := time.Date(2023, 6, 15, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "2024-06-15", ScheduledDate(dob, 12).Format(DateLayout))
	assert.Zero(t, ScheduledDate(dob, 12).Hour())
}

func TestDaysUntil(t *testing.T) {
	today := time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, 5, DaysUntil(today.AddDate(0, 0, 5), today))
	assert.Equal(t, -3, DaysUntil(today.AddDate(0, 0, -3), today))
	assert.Equal(t, 0, DaysUntil(day(t, "2025-03-10"), today))
	// 整天差，不按时长截断
	assert.Equal(t, 1, DaysUntil(time.Date(2025, 3, 11, 0, 1, 0, 0, time.UTC), today))
}

func TestAgeInMonthsAndFormatAge(t *testing.T) {
	dob := day(t, "2023-06-15")
	assert.Equal(t, 0, AgeInMonths(dob, day(t, "2023-07-14")))
	assert.Equal(t, 1, AgeInMonths(dob, day(t, "2023-07-15")))
	assert.Equal(t, 12, AgeInMonths(dob, day(t, "2024-06-15")))
	assert.Equal(t, 0, AgeInMonths(dob, day(t, "2023-01-01")))

	assert.Equal(t, "7 months", FormatAge(dob, day(t, "2024-01-20")))
	assert.Equal(t, "1 year", FormatAge(dob, day(t, "2024-06-15")))
	assert.Equal(t, "2 years 1 month", FormatAge(dob, day(t, "2025-07-16")))
	assert.Equal(t, "1 year 3 months", FormatAge(dob, day(t, "2024-09-15")))
}

// ============================================
// 剂次展开与状态
// ============================================

func TestExpandDoses(t *testing.T) {
	def := domain.VaccineDefinition{ID: "pcv", AgeInMonths: 2, Doses: 4, DoseIntervalMonths: 2}
	doses := ExpandDoses(def, day(t, "2023-01-01"))

	assert.Equal(t, []string{"2023-03-01", "2023-05-01", "2023-07-01", "2023-09-01"}, dates(doses))
	for i, d := range doses {
		assert.Equal(t, i+1, d.Number)
	}
}

func TestExpandDoses_SingleAndZeroInterval(t *testing.T) {
	dob := day(t, "2023-01-01")

	single := ExpandDoses(domain.VaccineDefinition{AgeInMonths: 6}, dob)
	assert.Equal(t, []string{"2023-07-01"}, dates(single))

	collapsed := ExpandDoses(domain.VaccineDefinition{AgeInMonths: 2, Doses: 3}, dob)
	assert.Equal(t, []string{"2023-03-01", "2023-03-01", "2023-03-01"}, dates(collapsed))
}

func TestExpandDoses_StepsClampFromBase(t *testing.T) {
	def := domain.VaccineDefinition{AgeInMonths: 0, Doses: 3, DoseIntervalMonths: 1}
	doses := ExpandDoses(def, day(t, "2024-01-31"))
	assert.Equal(t, []string{"2024-01-31", "2024-02-29", "2024-03-31"}, dates(doses))
}

func TestClassifyStatus(t *testing.T) {
	today := time.Date(2025, 5, 20, 15, 0, 0, 0, time.UTC)
	completed := day(t, "2025-01-01")

	assert.Equal(t, domain.StatusOverdue, ClassifyStatus(day(t, "2025-05-20"), nil, today), "scheduled today is overdue")
	assert.Equal(t, domain.StatusOverdue, ClassifyStatus(day(t, "2025-05-19"), nil, today))
	assert.Equal(t, domain.StatusUpcoming, ClassifyStatus(day(t, "2025-05-21"), nil, today))
	assert.Equal(t, domain.StatusCompleted, ClassifyStatus(day(t, "2030-01-01"), &completed, today))
	assert.Equal(t, domain.StatusCompleted, ClassifyStatus(day(t, "2020-01-01"), &completed, today))
}

// ============================================
// 记录生成
// ============================================

func testSchedule() domain.Schedule {
	return domain.VaccineData{
		Mandatory: []domain.VaccineDefinition{
			{ID: "bcg", AgeInMonths: 0},
			{ID: "mmr", AgeInMonths: 12},
			{ID: "dtap", AgeInMonths: 2, Doses: 3, DoseIntervalMonths: 2},
		},
		Recommended: []domain.VaccineDefinition{
			{ID: "flu", AgeInMonths: 6},
		},
	}.Schedule(domain.CountryUSA)
}

func TestCreateRecordsForChild_EndToEnd(t *testing.T) {
	child := domain.Child{ID: "c1", DateOfBirth: day(t, "2023-06-15"), Country: domain.CountryUSA}
	sched := domain.VaccineData{Mandatory: []domain.VaccineDefinition{
		{ID: "first", AgeInMonths: 0},
		{ID: "second", AgeInMonths: 12},
	}}.Schedule(domain.CountryUSA)
	now := time.Date(2023, 6, 20, 10, 0, 0, 0, time.UTC)

	records := CreateRecordsForChild(child, sched, nil, false, now)

	require.Len(t, records, 2)
	assert.Equal(t, "first", records[0].VaccineID)
	assert.Equal(t, "2023-06-15", records[0].ScheduledDate.Format(DateLayout))
	assert.Equal(t, domain.StatusOverdue, records[0].Status)
	assert.Equal(t, "second", records[1].VaccineID)
	assert.Equal(t, "2024-06-15", records[1].ScheduledDate.Format(DateLayout))
	assert.Equal(t, domain.StatusUpcoming, records[1].Status)
}

func TestCreateRecordsForChild_DosesAndLinks(t *testing.T) {
	child := domain.Child{ID: "c1", DateOfBirth: day(t, "2023-01-01")}
	now := day(t, "2023-01-02")

	records := CreateRecordsForChild(child, testSchedule(), nil, false, now)
	require.Len(t, records, 5)

	var dtap []domain.VaccinationRecord
	ids := map[string]bool{}
	for _, r := range records {
		assert.Equal(t, "c1", r.ChildID)
		assert.NotEmpty(t, r.ID)
		ids[r.ID] = true
		assert.Equal(t, now, r.CreatedAt)
		if r.VaccineID == "dtap" {
			dtap = append(dtap, r)
		}
		assert.NotEqual(t, "flu", r.VaccineID)
	}
	assert.Len(t, ids, 5)

	require.Len(t, dtap, 3)
	for i, r := range dtap {
		assert.Equal(t, i+1, r.DoseNumber)
		assert.Equal(t, 3, r.TotalDoses)
	}
	require.NotNil(t, dtap[0].NextDoseDate)
	assert.True(t, dtap[0].NextDoseDate.Equal(dtap[1].ScheduledDate))
	assert.Nil(t, dtap[2].NextDoseDate)
}

func TestCreateRecordsForChild_Idempotent(t *testing.T) {
	child := domain.Child{ID: "c1", DateOfBirth: day(t, "2023-01-01")}
	now := day(t, "2023-02-01")

	first := CreateRecordsForChild(child, testSchedule(), nil, true, now)
	second := CreateRecordsForChild(child, testSchedule(), first, true, now)

	assert.Len(t, first, 6)
	assert.Empty(t, second)
}

func TestCreateRecordsForChild_LateEnableRecommended(t *testing.T) {
	child := domain.Child{ID: "c1", DateOfBirth: day(t, "2023-01-01")}
	now := day(t, "2023-02-01")

	mandatory := CreateRecordsForChild(child, testSchedule(), nil, false, now)
	backfill := CreateRecordsForChild(child, testSchedule(), mandatory, true, now)

	require.Len(t, backfill, 1)
	assert.Equal(t, "flu", backfill[0].VaccineID)
}

func TestCreateRecordsForChild_OtherChildRecordsIgnored(t *testing.T) {
	child := domain.Child{ID: "c2", DateOfBirth: day(t, "2023-01-01")}
	other := []domain.VaccinationRecord{{ChildID: "c1", VaccineID: "bcg"}}

	records := CreateRecordsForChild(child, testSchedule(), other, false, day(t, "2023-01-01"))
	assert.Len(t, records, 5)
}

func TestMarkCompleted(t *testing.T) {
	now := time.Date(2025, 4, 2, 11, 0, 0, 0, time.UTC)
	rec := domain.VaccinationRecord{ID: "r1", ScheduledDate: day(t, "2025-04-01"), Status: domain.StatusOverdue}

	done, err := MarkCompleted(rec, domain.CompletionData{
		CompletedDate: day(t, "2025-03-30"),
		DoctorName:    "Dr. Lee",
		Location:      "City clinic",
		BatchNumber:   "B-77",
		Notes:         "no reaction",
	}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedDate)
	assert.Equal(t, "2025-03-30", done.CompletedDate.Format(DateLayout))
	assert.Equal(t, "Dr. Lee", done.DoctorName)
	assert.Equal(t, "B-77", done.BatchNumber)
	assert.Equal(t, now, done.UpdatedAt)

	_, err = MarkCompleted(done, domain.CompletionData{}, now)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestMarkCompleted_DefaultsToToday(t *testing.T) {
	now := time.Date(2025, 4, 2, 11, 0, 0, 0, time.UTC)
	done, err := MarkCompleted(domain.VaccinationRecord{}, domain.CompletionData{}, now)
	require.NoError(t, err)
	assert.Equal(t, "2025-04-02", done.CompletedDate.Format(DateLayout))
}

// ============================================
// 列表查询
// ============================================

func TestUpcomingOverdueCompleted(t *testing.T) {
	today := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	completedAt := day(t, "2025-01-05")
	earlier := day(t, "2024-12-01")
	records := []domain.VaccinationRecord{
		{ID: "today", ChildID: "c1", ScheduledDate: day(t, "2025-01-10")},
		{ID: "past", ChildID: "c1", ScheduledDate: day(t, "2024-12-01")},
		{ID: "soon", ChildID: "c1", ScheduledDate: day(t, "2025-01-20")},
		{ID: "edge", ChildID: "c1", ScheduledDate: day(t, "2025-01-17")},
		{ID: "next", ChildID: "c1", ScheduledDate: day(t, "2025-01-11")},
		{ID: "far", ChildID: "c1", ScheduledDate: day(t, "2025-03-01")},
		{ID: "done", ChildID: "c1", ScheduledDate: day(t, "2025-01-12"), CompletedDate: &completedAt},
		{ID: "done-old", ChildID: "c1", ScheduledDate: day(t, "2024-11-01"), CompletedDate: &earlier},
		{ID: "other", ChildID: "c2", ScheduledDate: day(t, "2025-01-12")},
	}

	upcoming := UpcomingWithinWindow(records, "c1", 7, today)
	require.Len(t, upcoming, 2)
	assert.Equal(t, "next", upcoming[0].ID)
	assert.Equal(t, "edge", upcoming[1].ID)

	overdue := Overdue(records, "c1", today)
	require.Len(t, overdue, 2)
	assert.Equal(t, "past", overdue[0].ID)
	assert.Equal(t, "today", overdue[1].ID)
	for _, r := range overdue {
		assert.Equal(t, domain.StatusOverdue, r.Status)
	}

	completed := Completed(records, "c1")
	require.Len(t, completed, 2)
	assert.Equal(t, "done", completed[0].ID)
	assert.Equal(t, "done-old", completed[1].ID)
}

func TestWithLiveStatus(t *testing.T) {
	records := []domain.VaccinationRecord{
		{ID: "r1", ScheduledDate: day(t, "2025-01-10"), Status: domain.StatusUpcoming},
	}

	live := WithLiveStatus(records, day(t, "2025-01-10"))
	assert.Equal(t, domain.StatusOverdue, live[0].Status)
	assert.Equal(t, domain.StatusUpcoming, records[0].Status, "input is not modified")
}
