package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"vaxtrack/internal/clock"
	"vaxtrack/internal/domain"
	"vaxtrack/internal/schedule"
	"vaxtrack/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidChild      = errors.New("invalid child")
	ErrInvalidCompletion = errors.New("invalid completion")
)

// DefaultUpcomingWindowDays 即将接种列表的默认窗口
const DefaultUpcomingWindowDays = 30

// ScheduleSource 国家接种日历来源（ClearCache 用于清空全部数据）
type ScheduleSource interface {
	GetSchedule(ctx context.Context, country domain.Country) (domain.Schedule, error)
	ClearCache(ctx context.Context) error
}

// ChildInput 新建儿童的参数
type ChildInput struct {
	Name        string         `json:"name"`
	DateOfBirth time.Time      `json:"dateOfBirth"`
	Country     domain.Country `json:"country"`
	PhotoURI    string         `json:"photoUri,omitempty"`
}

// ChildOverview 儿童概览（年龄 + 各状态数量 + 下一针）
type ChildOverview struct {
	Child          domain.Child              `json:"child"`
	AgeInMonths    int                       `json:"ageInMonths"`
	Age            string                    `json:"age"`
	UpcomingCount  int                       `json:"upcomingCount"`
	OverdueCount   int                       `json:"overdueCount"`
	CompletedCount int                       `json:"completedCount"`
	NextDue        *domain.VaccinationRecord `json:"nextDue,omitempty"`
	NextDueInDays  *int                      `json:"nextDueInDays,omitempty"`
}

// VaccinationService 儿童与接种记录的业务编排
type VaccinationService struct {
	store     *store.RecordStore
	schedules ScheduleSource
	clock     clock.Clock
	logger    *zap.Logger
}

func NewVaccinationService(st *store.RecordStore, schedules ScheduleSource, clk clock.Clock, logger *zap.Logger) *VaccinationService {
	return &VaccinationService{
		store:     st,
		schedules: schedules,
		clock:     clk,
		logger:    logger,
	}
}

func (s *VaccinationService) today() time.Time {
	return schedule.DateOf(s.clock.Now())
}

func (s *VaccinationService) validateChild(name string, dob time.Time, country domain.Country) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidChild)
	}
	if dob.IsZero() {
		return fmt.Errorf("%w: dateOfBirth is required", ErrInvalidChild)
	}
	if schedule.DateOf(dob).After(s.today()) {
		return fmt.Errorf("%w: dateOfBirth is in the future", ErrInvalidChild)
	}
	if !country.IsValid() {
		return fmt.Errorf("%w: unknown country %q", ErrInvalidChild, country)
	}
	return nil
}

// AddChild 新建儿童并生成接种记录
// 日历加载失败时不保存儿童
func (s *VaccinationService) AddChild(ctx context.Context, in ChildInput) (domain.Child, []domain.VaccinationRecord, error) {
	if err := s.validateChild(in.Name, in.DateOfBirth, in.Country); err != nil {
		return domain.Child{}, nil, err
	}

	sched, err := s.schedules.GetSchedule(ctx, in.Country)
	if err != nil {
		return domain.Child{}, nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return domain.Child{}, nil, err
	}

	now := s.clock.Now()
	child := domain.Child{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(in.Name),
		DateOfBirth: schedule.DateOf(in.DateOfBirth),
		Country:     in.Country,
		PhotoURI:    in.PhotoURI,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.AddChild(ctx, child); err != nil {
		return domain.Child{}, nil, err
	}

	records := schedule.CreateRecordsForChild(child, sched, nil, settings.ShowRecommendedVaccines, now)
	if err := s.store.AddRecords(ctx, records); err != nil {
		// 回滚，避免留下没有记录的儿童
		if rbErr := s.store.DeleteChild(ctx, child.ID); rbErr != nil {
			s.logger.Error("Failed to roll back child after records write failed",
				zap.String("child_id", child.ID),
				zap.Error(rbErr),
			)
		}
		return domain.Child{}, nil, fmt.Errorf("failed to save records: %w", err)
	}

	s.logger.Info("Child added",
		zap.String("child_id", child.ID),
		zap.String("country", string(child.Country)),
		zap.Int("records", len(records)),
	)
	return child, records, nil
}

func (s *VaccinationService) GetChild(ctx context.Context, childID string) (domain.Child, error) {
	return s.store.GetChild(ctx, childID)
}

func (s *VaccinationService) ListChildren(ctx context.Context) ([]domain.Child, error) {
	return s.store.Children(ctx)
}

// UpdateChild 部分更新；已生成的记录不重算
func (s *VaccinationService) UpdateChild(ctx context.Context, childID string, upd domain.ChildUpdate) (domain.Child, error) {
	current, err := s.store.GetChild(ctx, childID)
	if err != nil {
		return domain.Child{}, err
	}
	if upd.DateOfBirth != nil {
		dob := schedule.DateOf(*upd.DateOfBirth)
		upd.DateOfBirth = &dob
	}
	preview := current
	upd.Apply(&preview)
	if err := s.validateChild(preview.Name, preview.DateOfBirth, preview.Country); err != nil {
		return domain.Child{}, err
	}
	return s.store.UpdateChild(ctx, childID, upd)
}

// DeleteChild 删除儿童（记录与提醒一并删除）
func (s *VaccinationService) DeleteChild(ctx context.Context, childID string) error {
	if err := s.store.DeleteChild(ctx, childID); err != nil {
		return err
	}
	s.logger.Info("Child deleted", zap.String("child_id", childID))
	return nil
}

// SyncChildRecords 按当前设置补齐缺失的记录（如后来开启推荐疫苗）
func (s *VaccinationService) SyncChildRecords(ctx context.Context, childID string) ([]domain.VaccinationRecord, error) {
	child, err := s.store.GetChild(ctx, childID)
	if err != nil {
		return nil, err
	}
	sched, err := s.schedules.GetSchedule(ctx, child.Country)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.ChildRecords(ctx, childID)
	if err != nil {
		return nil, err
	}

	added := schedule.CreateRecordsForChild(child, sched, existing, settings.ShowRecommendedVaccines, s.clock.Now())
	if err := s.store.AddRecords(ctx, added); err != nil {
		return nil, err
	}
	if len(added) > 0 {
		s.logger.Info("Child records synced",
			zap.String("child_id", childID),
			zap.Int("added", len(added)),
		)
	}
	return added, nil
}

func (s *VaccinationService) childRecords(ctx context.Context, childID string) ([]domain.VaccinationRecord, error) {
	if _, err := s.store.GetChild(ctx, childID); err != nil {
		return nil, err
	}
	return s.store.ChildRecords(ctx, childID)
}

// ChildRecords 儿童的记录（状态按今天重算，按计划日期排序）；status 为空表示全部
func (s *VaccinationService) ChildRecords(ctx context.Context, childID string, status domain.Status) ([]domain.VaccinationRecord, error) {
	records, err := s.childRecords(ctx, childID)
	if err != nil {
		return nil, err
	}
	live := schedule.WithLiveStatus(records, s.today())
	out := make([]domain.VaccinationRecord, 0, len(live))
	for _, r := range live {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledDate.Before(out[j].ScheduledDate)
	})
	return out, nil
}

func (s *VaccinationService) Upcoming(ctx context.Context, childID string, windowDays int) ([]domain.VaccinationRecord, error) {
	if windowDays <= 0 {
		windowDays = DefaultUpcomingWindowDays
	}
	records, err := s.childRecords(ctx, childID)
	if err != nil {
		return nil, err
	}
	return schedule.UpcomingWithinWindow(records, childID, windowDays, s.today()), nil
}

func (s *VaccinationService) Overdue(ctx context.Context, childID string) ([]domain.VaccinationRecord, error) {
	records, err := s.childRecords(ctx, childID)
	if err != nil {
		return nil, err
	}
	return schedule.Overdue(records, childID, s.today()), nil
}

func (s *VaccinationService) Completed(ctx context.Context, childID string) ([]domain.VaccinationRecord, error) {
	records, err := s.childRecords(ctx, childID)
	if err != nil {
		return nil, err
	}
	return schedule.Completed(records, childID), nil
}

// MarkCompleted 标记接种完成
func (s *VaccinationService) MarkCompleted(ctx context.Context, recordID string, data domain.CompletionData) (domain.VaccinationRecord, error) {
	now := s.clock.Now()
	if !data.CompletedDate.IsZero() && schedule.DateOf(data.CompletedDate).After(schedule.DateOf(now)) {
		return domain.VaccinationRecord{}, fmt.Errorf("%w: completedDate is in the future", ErrInvalidCompletion)
	}
	updated, err := s.store.UpdateRecord(ctx, recordID, func(r *domain.VaccinationRecord) error {
		done, err := schedule.MarkCompleted(*r, data, now)
		if err != nil {
			return err
		}
		*r = done
		return nil
	})
	if err != nil {
		return domain.VaccinationRecord{}, err
	}
	s.logger.Info("Vaccination marked completed",
		zap.String("record_id", recordID),
		zap.String("vaccine_id", updated.VaccineID),
		zap.Int("dose", updated.DoseNumber),
	)
	return updated, nil
}

// Overview 儿童概览
func (s *VaccinationService) Overview(ctx context.Context, childID string) (ChildOverview, error) {
	child, err := s.store.GetChild(ctx, childID)
	if err != nil {
		return ChildOverview{}, err
	}
	records, err := s.store.ChildRecords(ctx, childID)
	if err != nil {
		return ChildOverview{}, err
	}

	today := s.today()
	ov := ChildOverview{
		Child:       child,
		AgeInMonths: schedule.AgeInMonths(child.DateOfBirth, today),
		Age:         schedule.FormatAge(child.DateOfBirth, today),
	}
	var next *domain.VaccinationRecord
	for _, r := range schedule.WithLiveStatus(records, today) {
		switch r.Status {
		case domain.StatusCompleted:
			ov.CompletedCount++
		case domain.StatusOverdue:
			ov.OverdueCount++
		case domain.StatusUpcoming:
			ov.UpcomingCount++
			if next == nil || r.ScheduledDate.Before(next.ScheduledDate) {
				r := r
				next = &r
			}
		}
	}
	if next != nil {
		days := schedule.DaysUntil(next.ScheduledDate, today)
		ov.NextDue = next
		ov.NextDueInDays = &days
	}
	return ov, nil
}

func (s *VaccinationService) Settings(ctx context.Context) (domain.Settings, error) {
	return s.store.Settings(ctx)
}

func (s *VaccinationService) UpdateSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

// ClearAllData 清空儿童、记录、提醒、设置以及日历缓存（已下载列表保留）
func (s *VaccinationService) ClearAllData(ctx context.Context) error {
	if err := s.store.ClearAll(ctx); err != nil {
		return err
	}
	if err := s.schedules.ClearCache(ctx); err != nil {
		return fmt.Errorf("failed to clear calendar cache: %w", err)
	}
	s.logger.Warn("All user data cleared")
	return nil
}
