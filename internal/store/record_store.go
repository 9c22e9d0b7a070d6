package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"vaxtrack/internal/clock"
	"vaxtrack/internal/domain"

	"go.uber.org/zap"
)

// 记录存储使用的固定 key（整集合 JSON 读写）
const (
	KeyChildren  = "vaxtrack:children"
	KeyRecords   = "vaxtrack:records"
	KeyReminders = "vaxtrack:reminders"
	KeySettings  = "vaxtrack:settings"
)

var (
	ErrChildNotFound    = errors.New("child not found")
	ErrRecordNotFound   = errors.New("vaccination record not found")
	ErrReminderNotFound = errors.New("reminder not found")
)

// RecordStore 儿童 / 接种记录 / 提醒 / 设置 的持久化
// - 每个集合一个 key，写入为整体覆盖
// - key 不存在或内容损坏时按空集合（或默认设置）处理
// - mu 串行化本进程内的读改写
type RecordStore struct {
	kv     KV
	clock  clock.Clock
	logger *zap.Logger
	mu     sync.Mutex
}

func NewRecordStore(kv KV, clk clock.Clock, logger *zap.Logger) *RecordStore {
	return &RecordStore{kv: kv, clock: clk, logger: logger}
}

// loadList 读取 JSON 数组；miss / 损坏 → 空
func (s *RecordStore) loadList(ctx context.Context, key string, out any) (bool, error) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.logger.Warn("Stored collection is corrupt, treating as empty",
			zap.String("key", key),
			zap.Error(err),
		)
		return false, nil
	}
	return true, nil
}

func (s *RecordStore) saveValue(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, string(data), 0); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// ========== Children ==========

func (s *RecordStore) children(ctx context.Context) ([]domain.Child, error) {
	var list []domain.Child
	if _, err := s.loadList(ctx, KeyChildren, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Child{}
	}
	return list, nil
}

// Children 所有儿童
func (s *RecordStore) Children(ctx context.Context) ([]domain.Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.children(ctx)
}

// SaveChildren 整体覆盖儿童列表
func (s *RecordStore) SaveChildren(ctx context.Context, children []domain.Child) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveValue(ctx, KeyChildren, children)
}

func (s *RecordStore) AddChild(ctx context.Context, child domain.Child) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.children(ctx)
	if err != nil {
		return err
	}
	list = append(list, child)
	return s.saveValue(ctx, KeyChildren, list)
}

func (s *RecordStore) GetChild(ctx context.Context, childID string) (domain.Child, error) {
	list, err := s.Children(ctx)
	if err != nil {
		return domain.Child{}, err
	}
	for _, c := range list {
		if c.ID == childID {
			return c, nil
		}
	}
	return domain.Child{}, ErrChildNotFound
}

// UpdateChild 部分更新并刷新 updatedAt
func (s *RecordStore) UpdateChild(ctx context.Context, childID string, upd domain.ChildUpdate) (domain.Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.children(ctx)
	if err != nil {
		return domain.Child{}, err
	}
	for i := range list {
		if list[i].ID != childID {
			continue
		}
		upd.Apply(&list[i])
		list[i].UpdatedAt = s.clock.Now()
		if err := s.saveValue(ctx, KeyChildren, list); err != nil {
			return domain.Child{}, err
		}
		return list[i], nil
	}
	return domain.Child{}, ErrChildNotFound
}

// DeleteChild 删除儿童，并级联删除其接种记录与提醒
func (s *RecordStore) DeleteChild(ctx context.Context, childID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.children(ctx)
	if err != nil {
		return err
	}
	filtered := make([]domain.Child, 0, len(list))
	for _, c := range list {
		if c.ID != childID {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == len(list) {
		return ErrChildNotFound
	}
	if err := s.saveValue(ctx, KeyChildren, filtered); err != nil {
		return err
	}

	records, err := s.records(ctx)
	if err != nil {
		return err
	}
	keptRecords := make([]domain.VaccinationRecord, 0, len(records))
	for _, r := range records {
		if r.ChildID != childID {
			keptRecords = append(keptRecords, r)
		}
	}
	if err := s.saveValue(ctx, KeyRecords, keptRecords); err != nil {
		return err
	}

	reminders, err := s.reminders(ctx)
	if err != nil {
		return err
	}
	keptReminders := make([]domain.Reminder, 0, len(reminders))
	for _, r := range reminders {
		if r.ChildID != childID {
			keptReminders = append(keptReminders, r)
		}
	}
	return s.saveValue(ctx, KeyReminders, keptReminders)
}

// ========== Vaccination records ==========

func (s *RecordStore) records(ctx context.Context) ([]domain.VaccinationRecord, error) {
	var list []domain.VaccinationRecord
	if _, err := s.loadList(ctx, KeyRecords, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.VaccinationRecord{}
	}
	return list, nil
}

// Records 所有接种记录
func (s *RecordStore) Records(ctx context.Context) ([]domain.VaccinationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records(ctx)
}

func (s *RecordStore) SaveRecords(ctx context.Context, records []domain.VaccinationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveValue(ctx, KeyRecords, records)
}

// AddRecords 追加记录（一次写入）
func (s *RecordStore) AddRecords(ctx context.Context, newRecords []domain.VaccinationRecord) error {
	if len(newRecords) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.records(ctx)
	if err != nil {
		return err
	}
	list = append(list, newRecords...)
	return s.saveValue(ctx, KeyRecords, list)
}

// ChildRecords 某个儿童的记录
func (s *RecordStore) ChildRecords(ctx context.Context, childID string) ([]domain.VaccinationRecord, error) {
	list, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.VaccinationRecord, 0)
	for _, r := range list {
		if r.ChildID == childID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *RecordStore) GetRecord(ctx context.Context, recordID string) (domain.VaccinationRecord, error) {
	list, err := s.Records(ctx)
	if err != nil {
		return domain.VaccinationRecord{}, err
	}
	for _, r := range list {
		if r.ID == recordID {
			return r, nil
		}
	}
	return domain.VaccinationRecord{}, ErrRecordNotFound
}

// UpdateRecord 在锁内读改写单条记录；fn 返回错误时不写入
func (s *RecordStore) UpdateRecord(ctx context.Context, recordID string, fn func(*domain.VaccinationRecord) error) (domain.VaccinationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.records(ctx)
	if err != nil {
		return domain.VaccinationRecord{}, err
	}
	for i := range list {
		if list[i].ID != recordID {
			continue
		}
		updated := list[i]
		if err := fn(&updated); err != nil {
			return domain.VaccinationRecord{}, err
		}
		updated.UpdatedAt = s.clock.Now()
		list[i] = updated
		if err := s.saveValue(ctx, KeyRecords, list); err != nil {
			return domain.VaccinationRecord{}, err
		}
		return updated, nil
	}
	return domain.VaccinationRecord{}, ErrRecordNotFound
}

// ========== Reminders ==========

func (s *RecordStore) reminders(ctx context.Context) ([]domain.Reminder, error) {
	var list []domain.Reminder
	if _, err := s.loadList(ctx, KeyReminders, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Reminder{}
	}
	return list, nil
}

func (s *RecordStore) Reminders(ctx context.Context) ([]domain.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reminders(ctx)
}

func (s *RecordStore) SaveReminders(ctx context.Context, reminders []domain.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveValue(ctx, KeyReminders, reminders)
}

// ReplaceChildReminders 用新列表替换某个儿童的全部提醒
func (s *RecordStore) ReplaceChildReminders(ctx context.Context, childID string, reminders []domain.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.reminders(ctx)
	if err != nil {
		return err
	}
	kept := make([]domain.Reminder, 0, len(list)+len(reminders))
	for _, r := range list {
		if r.ChildID != childID {
			kept = append(kept, r)
		}
	}
	kept = append(kept, reminders...)
	return s.saveValue(ctx, KeyReminders, kept)
}

// DisableChildReminders 在锁内停用某个儿童的全部提醒，返回停用数量
func (s *RecordStore) DisableChildReminders(ctx context.Context, childID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.reminders(ctx)
	if err != nil {
		return 0, err
	}
	disabled := 0
	for i := range list {
		if list[i].ChildID == childID && list[i].IsEnabled {
			list[i].IsEnabled = false
			disabled++
		}
	}
	if disabled == 0 {
		return 0, nil
	}
	if err := s.saveValue(ctx, KeyReminders, list); err != nil {
		return 0, err
	}
	return disabled, nil
}

// UpdateReminder 在锁内读改写单条提醒
func (s *RecordStore) UpdateReminder(ctx context.Context, reminderID string, fn func(*domain.Reminder)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.reminders(ctx)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ID == reminderID {
			fn(&list[i])
			return s.saveValue(ctx, KeyReminders, list)
		}
	}
	return ErrReminderNotFound
}

// ========== Settings ==========

// Settings 读取设置；不存在或损坏时返回默认值
func (s *RecordStore) Settings(ctx context.Context) (domain.Settings, error) {
	raw, err := s.kv.Get(ctx, KeySettings)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return domain.DefaultSettings(), nil
		}
		return domain.Settings{}, fmt.Errorf("failed to read %s: %w", KeySettings, err)
	}
	settings := domain.DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		s.logger.Warn("Stored settings are corrupt, using defaults", zap.Error(err))
		return domain.DefaultSettings(), nil
	}
	return settings, nil
}

func (s *RecordStore) SaveSettings(ctx context.Context, settings domain.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	return s.saveValue(ctx, KeySettings, settings)
}

// ClearAll 清空全部数据
func (s *RecordStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, KeyChildren, KeyRecords, KeyReminders, KeySettings); err != nil {
		return fmt.Errorf("failed to clear data: %w", err)
	}
	return nil
}
