package reminder

import (
	"context"
	"fmt"
	"time"

	"vaxtrack/internal/clock"
	"vaxtrack/internal/domain"
	"vaxtrack/internal/schedule"
	"vaxtrack/internal/store"

	"go.uber.org/zap"
)

// VaccineLookup 按 id 查疫苗（用于消息中的疫苗名称）
type VaccineLookup interface {
	GetVaccineByID(ctx context.Context, country domain.Country, vaccineID string) (domain.VaccineDefinition, bool, error)
}

// Service 提醒服务
// - ScheduleChild / CancelChild：按记录和设置生成或停用某个儿童的提醒
// - Run：定时把到期提醒投递给 Notifier
type Service struct {
	store         *store.RecordStore
	vaccines      VaccineLookup
	notifier      Notifier
	clock         clock.Clock
	lookaheadDays int
	interval      time.Duration
	logger        *zap.Logger
}

func NewService(st *store.RecordStore, vaccines VaccineLookup, notifier Notifier, clk clock.Clock, lookaheadDays int, interval time.Duration, logger *zap.Logger) *Service {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Service{
		store:         st,
		vaccines:      vaccines,
		notifier:      notifier,
		clock:         clk,
		lookaheadDays: lookaheadDays,
		interval:      interval,
		logger:        logger,
	}
}

// ScheduleChild 重新生成某个儿童的提醒（替换旧提醒）
// 通知关闭时不生成，返回空列表
func (s *Service) ScheduleChild(ctx context.Context, childID string) ([]domain.Reminder, error) {
	child, err := s.store.GetChild(ctx, childID)
	if err != nil {
		return nil, err
	}
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.NotificationsEnabled {
		s.logger.Info("Notifications disabled, no reminders scheduled", zap.String("child_id", childID))
		return []domain.Reminder{}, nil
	}
	records, err := s.store.ChildRecords(ctx, childID)
	if err != nil {
		return nil, err
	}

	planned := Plan(child, records, settings, s.lookaheadDays, s.clock.Now())
	if planned == nil {
		planned = []domain.Reminder{}
	}
	if err := s.store.ReplaceChildReminders(ctx, childID, planned); err != nil {
		return nil, err
	}
	s.logger.Info("Reminders scheduled",
		zap.String("child_id", childID),
		zap.Int("count", len(planned)),
	)
	return planned, nil
}

// CancelChild 停用某个儿童的全部提醒，返回停用数量
func (s *Service) CancelChild(ctx context.Context, childID string) (int, error) {
	if _, err := s.store.GetChild(ctx, childID); err != nil {
		return 0, err
	}
	cancelled, err := s.store.DisableChildReminders(ctx, childID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Reminders cancelled",
		zap.String("child_id", childID),
		zap.Int("count", cancelled),
	)
	return cancelled, nil
}

// ChildReminders 某个儿童的提醒
func (s *Service) ChildReminders(ctx context.Context, childID string) ([]domain.Reminder, error) {
	all, err := s.store.Reminders(ctx)
	if err != nil {
		return nil, err
	}
	out := []domain.Reminder{}
	for _, r := range all {
		if r.ChildID == childID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Dispatch 投递所有到期提醒，返回成功数量
// 单条失败只记日志，下次轮询重试
func (s *Service) Dispatch(ctx context.Context) (int, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return 0, err
	}
	if !settings.NotificationsEnabled {
		return 0, nil
	}
	reminders, err := s.store.Reminders(ctx)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	due := Due(reminders, now)
	if len(due) == 0 {
		return 0, nil
	}

	children, err := s.store.Children(ctx)
	if err != nil {
		return 0, err
	}
	childByID := make(map[string]domain.Child, len(children))
	for _, c := range children {
		childByID[c.ID] = c
	}

	sent := 0
	for _, r := range due {
		child, ok := childByID[r.ChildID]
		if !ok {
			continue
		}
		record, err := s.store.GetRecord(ctx, r.RecordID)
		if err != nil {
			s.logger.Warn("Reminder references missing record",
				zap.String("reminder_id", r.ID),
				zap.String("record_id", r.RecordID),
			)
			continue
		}
		if record.IsCompleted() {
			continue
		}

		msg := Notification{
			NotificationID: r.NotificationID,
			ChildID:        child.ID,
			ChildName:      child.Name,
			VaccineID:      r.VaccineID,
			VaccineName:    s.vaccineName(ctx, child.Country, r.VaccineID),
			RecordID:       r.RecordID,
			ScheduledDate:  record.ScheduledDate.Format(schedule.DateLayout),
			DaysUntil:      schedule.DaysUntil(record.ScheduledDate, now),
			SentAt:         now,
		}
		if err := s.notifier.Notify(ctx, msg); err != nil {
			s.logger.Error("Failed to deliver reminder",
				zap.String("reminder_id", r.ID),
				zap.Error(err),
			)
			continue
		}

		deliveredAt := now
		if err := s.store.UpdateReminder(ctx, r.ID, func(rem *domain.Reminder) {
			rem.DeliveredAt = &deliveredAt
		}); err != nil {
			return sent, fmt.Errorf("failed to mark reminder delivered: %w", err)
		}
		sent++
	}
	return sent, nil
}

func (s *Service) vaccineName(ctx context.Context, country domain.Country, vaccineID string) string {
	def, ok, err := s.vaccines.GetVaccineByID(ctx, country, vaccineID)
	if err != nil || !ok {
		return vaccineID
	}
	return def.Name
}

// Run 定时投递，直到 ctx 取消
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Starting reminder dispatcher",
		zap.Duration("interval", s.interval),
	)

	s.dispatchOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reminder dispatcher stopped")
			return nil
		case <-ticker.C:
			s.dispatchOnce(ctx)
		}
	}
}

func (s *Service) dispatchOnce(ctx context.Context) {
	sent, err := s.Dispatch(ctx)
	if err != nil {
		s.logger.Error("Reminder dispatch failed", zap.Error(err))
		return
	}
	if sent > 0 {
		s.logger.Info("Reminders delivered", zap.Int("count", sent))
	}
}
