package calendar

import (
	"errors"
	"fmt"

	"vaxtrack/internal/domain"
)

// 日历加载错误类别（用 errors.Is 判断）
var (
	ErrUnknownCountry       = errors.New("unknown country")
	ErrFileNotFound         = errors.New("calendar file not found")
	ErrParsing              = errors.New("calendar parsing failed")
	ErrNoInternetConnection = errors.New("no internet connection")
	ErrNetwork              = errors.New("network error")
	ErrBuiltInCountry       = errors.New("built-in country cannot be removed")
)

// LoadError 日历加载失败：类别 + 国家 + 底层原因
type LoadError struct {
	Kind    error
	Country domain.Country
	Err     error
}

func newLoadError(kind error, country domain.Country, err error) *LoadError {
	return &LoadError{Kind: kind, Country: country, Err: err}
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Country, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Country, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
