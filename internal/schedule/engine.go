package schedule

import (
	"errors"
	"sort"
	"time"

	"vaxtrack/internal/domain"

	"github.com/google/uuid"
)

var ErrAlreadyCompleted = errors.New("vaccination already completed")

// Dose 一个剂次
type Dose struct {
	Number int       `json:"doseNumber"`
	Date   time.Time `json:"scheduledDate"`
}

// ScheduledDate 出生日期 + 接种月龄
func ScheduledDate(dob time.Time, ageInMonths int) time.Time {
	return AddMonths(DateOf(dob), ageInMonths)
}

// ExpandDoses 展开多剂次：第 k 剂为 基准日期 + k*间隔月（k 从 0 开始）
// 间隔为 0 时所有剂次落在同一天
func ExpandDoses(def domain.VaccineDefinition, dob time.Time) []Dose {
	base := ScheduledDate(dob, def.AgeInMonths)
	n := def.DoseCount()
	doses := make([]Dose, 0, n)
	for k := 0; k < n; k++ {
		doses = append(doses, Dose{Number: k + 1, Date: AddMonths(base, k*def.DoseIntervalMonths)})
	}
	return doses
}

// ClassifyStatus 已完成优先；否则计划日在今天之后为 upcoming，今天及以前为 overdue
func ClassifyStatus(scheduled time.Time, completed *time.Time, today time.Time) domain.Status {
	if completed != nil {
		return domain.StatusCompleted
	}
	if DateOf(scheduled).After(DateOf(today)) {
		return domain.StatusUpcoming
	}
	return domain.StatusOverdue
}

// CreateRecordsForChild 为儿童生成缺失的接种记录
// 已有记录的疫苗整体跳过，重复调用不会产生重复记录
func CreateRecordsForChild(child domain.Child, schedule domain.Schedule, existing []domain.VaccinationRecord, includeRecommended bool, now time.Time) []domain.VaccinationRecord {
	has := make(map[string]bool)
	for _, r := range existing {
		if r.ChildID == child.ID {
			has[r.VaccineID] = true
		}
	}

	today := DateOf(now)
	var out []domain.VaccinationRecord
	for _, def := range schedule.Vaccines {
		if !def.IsMandatory() && !includeRecommended {
			continue
		}
		if has[def.ID] {
			continue
		}
		has[def.ID] = true

		doses := ExpandDoses(def, child.DateOfBirth)
		for i, dose := range doses {
			rec := domain.VaccinationRecord{
				ID:            uuid.New().String(),
				ChildID:       child.ID,
				VaccineID:     def.ID,
				DoseNumber:    dose.Number,
				TotalDoses:    len(doses),
				ScheduledDate: dose.Date,
				Status:        ClassifyStatus(dose.Date, nil, today),
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if i+1 < len(doses) {
				next := doses[i+1].Date
				rec.NextDoseDate = &next
			}
			out = append(out, rec)
		}
	}
	return out
}

// MarkCompleted 记录完成信息；完成日期缺省为今天
func MarkCompleted(record domain.VaccinationRecord, data domain.CompletionData, now time.Time) (domain.VaccinationRecord, error) {
	if record.IsCompleted() {
		return record, ErrAlreadyCompleted
	}
	completed := DateOf(now)
	if !data.CompletedDate.IsZero() {
		completed = DateOf(data.CompletedDate)
	}
	record.CompletedDate = &completed
	record.Status = domain.StatusCompleted
	record.Notes = data.Notes
	record.DoctorName = data.DoctorName
	record.Location = data.Location
	record.BatchNumber = data.BatchNumber
	record.UpdatedAt = now
	return record, nil
}

// WithLiveStatus 按今天重新计算状态（返回副本）
func WithLiveStatus(records []domain.VaccinationRecord, today time.Time) []domain.VaccinationRecord {
	out := make([]domain.VaccinationRecord, len(records))
	for i, r := range records {
		r.Status = ClassifyStatus(r.ScheduledDate, r.CompletedDate, today)
		out[i] = r
	}
	return out
}

func sortByScheduled(records []domain.VaccinationRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ScheduledDate.Before(records[j].ScheduledDate)
	})
}

// UpcomingWithinWindow 未完成且 today < 计划日 <= today+windowDays，按日期升序
func UpcomingWithinWindow(records []domain.VaccinationRecord, childID string, windowDays int, today time.Time) []domain.VaccinationRecord {
	day := DateOf(today)
	limit := day.AddDate(0, 0, windowDays)
	out := []domain.VaccinationRecord{}
	for _, r := range records {
		if r.ChildID != childID || r.IsCompleted() {
			continue
		}
		d := DateOf(r.ScheduledDate)
		if d.After(day) && !d.After(limit) {
			r.Status = domain.StatusUpcoming
			out = append(out, r)
		}
	}
	sortByScheduled(out)
	return out
}

// Overdue 未完成且计划日不晚于今天，按日期升序
func Overdue(records []domain.VaccinationRecord, childID string, today time.Time) []domain.VaccinationRecord {
	out := []domain.VaccinationRecord{}
	for _, r := range records {
		if r.ChildID != childID {
			continue
		}
		if ClassifyStatus(r.ScheduledDate, r.CompletedDate, today) == domain.StatusOverdue {
			r.Status = domain.StatusOverdue
			out = append(out, r)
		}
	}
	sortByScheduled(out)
	return out
}

// Completed 已完成记录，最近完成的在前
func Completed(records []domain.VaccinationRecord, childID string) []domain.VaccinationRecord {
	out := []domain.VaccinationRecord{}
	for _, r := range records {
		if r.ChildID == childID && r.IsCompleted() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedDate.After(*out[j].CompletedDate)
	})
	return out
}
