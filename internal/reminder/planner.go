package reminder

import (
	"time"

	"vaxtrack/internal/domain"
	"vaxtrack/internal/schedule"

	"github.com/google/uuid"
)

// DefaultLookaheadDays 只为未来 90 天内的接种安排提醒
const DefaultLookaheadDays = 90

// Plan 为儿童即将到来的接种计算提醒
// 提醒日 = 计划日 - 提前天数；提醒日已过则跳过；通知关闭时不生成
func Plan(child domain.Child, records []domain.VaccinationRecord, settings domain.Settings, lookaheadDays int, today time.Time) []domain.Reminder {
	if !settings.NotificationsEnabled {
		return nil
	}
	if lookaheadDays <= 0 {
		lookaheadDays = DefaultLookaheadDays
	}

	day := schedule.DateOf(today)
	var out []domain.Reminder
	for _, r := range schedule.UpcomingWithinWindow(records, child.ID, lookaheadDays, day) {
		remindAt := schedule.DateOf(r.ScheduledDate).AddDate(0, 0, -settings.ReminderDaysBefore)
		if remindAt.Before(day) {
			continue
		}
		out = append(out, domain.Reminder{
			ID:             uuid.New().String(),
			ChildID:        child.ID,
			VaccineID:      r.VaccineID,
			RecordID:       r.ID,
			ReminderDate:   remindAt,
			IsEnabled:      true,
			NotificationID: child.ID + "_" + r.ID,
		})
	}
	return out
}

// Due 已到提醒日、仍启用且尚未发送的提醒
func Due(reminders []domain.Reminder, today time.Time) []domain.Reminder {
	day := schedule.DateOf(today)
	var out []domain.Reminder
	for _, r := range reminders {
		if !r.IsEnabled || r.DeliveredAt != nil {
			continue
		}
		if !schedule.DateOf(r.ReminderDate).After(day) {
			out = append(out, r)
		}
	}
	return out
}
