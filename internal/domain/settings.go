package domain

import (
	"errors"
	"fmt"
)

// Language 界面语言
type Language string

const (
	LanguageEN Language = "en"
	LanguageZH Language = "zh"
	LanguageRU Language = "ru"
	LanguageES Language = "es"
	LanguageTR Language = "tr"
	LanguageUK Language = "uk"
)

var ErrInvalidSettings = errors.New("invalid settings")

// Settings 应用设置
type Settings struct {
	Language                Language `json:"language"`
	ShowRecommendedVaccines bool     `json:"showRecommendedVaccines"`
	NotificationsEnabled    bool     `json:"notificationsEnabled"`
	ReminderDaysBefore      int      `json:"reminderDaysBefore"`
}

// DefaultSettings 无存储值时的默认设置
func DefaultSettings() Settings {
	return Settings{
		Language:                LanguageEN,
		ShowRecommendedVaccines: false,
		NotificationsEnabled:    true,
		ReminderDaysBefore:      7,
	}
}

func (s Settings) Validate() error {
	switch s.Language {
	case LanguageEN, LanguageZH, LanguageRU, LanguageES, LanguageTR, LanguageUK:
	default:
		return fmt.Errorf("%w: unsupported language %q", ErrInvalidSettings, s.Language)
	}
	if s.ReminderDaysBefore < 1 || s.ReminderDaysBefore > 30 {
		return fmt.Errorf("%w: reminderDaysBefore must be within 1..30, got %d", ErrInvalidSettings, s.ReminderDaysBefore)
	}
	return nil
}
