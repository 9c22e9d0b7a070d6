package httpapi

import (
	"errors"
	"net/http"

	"vaxtrack/internal/calendar"
	"vaxtrack/internal/domain"
	"vaxtrack/internal/schedule"
	"vaxtrack/internal/service"
	"vaxtrack/internal/store"
)

// statusFor 业务错误 -> HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrChildNotFound),
		errors.Is(err, store.ErrRecordNotFound),
		errors.Is(err, store.ErrReminderNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidChild),
		errors.Is(err, service.ErrInvalidCompletion),
		errors.Is(err, domain.ErrInvalidSettings),
		errors.Is(err, calendar.ErrUnknownCountry),
		errors.Is(err, calendar.ErrBuiltInCountry):
		return http.StatusBadRequest
	case errors.Is(err, schedule.ErrAlreadyCompleted):
		return http.StatusConflict
	case errors.Is(err, calendar.ErrNoInternetConnection):
		return http.StatusServiceUnavailable
	case errors.Is(err, calendar.ErrNetwork),
		errors.Is(err, calendar.ErrParsing):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
