package domain

import "time"

// Reminder 接种提醒（由记录的计划日期减去提前天数得到）
type Reminder struct {
	ID             string     `json:"id"`
	ChildID        string     `json:"childId"`
	VaccineID      string     `json:"vaccineId"`
	RecordID       string     `json:"recordId"`
	ReminderDate   time.Time  `json:"reminderDate"`
	IsEnabled      bool       `json:"isEnabled"`
	NotificationID string     `json:"notificationId,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
}
