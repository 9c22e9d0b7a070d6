package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（方法 + 路径模式）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	r.mux.ServeHTTP(w, req)
	r.logger.Debug("HTTP request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// RegisterRoutes 注册 /api/v1 路由
func (r *Router) RegisterRoutes(h *Handler) {
	r.Handle("GET /healthz", h.Health)

	// countries / calendar cache
	r.Handle("GET /api/v1/countries", h.ListCountries)
	r.Handle("GET /api/v1/countries/{country}/schedule", h.GetSchedule)
	r.Handle("POST /api/v1/countries/{country}/download", h.DownloadCountry)
	r.Handle("DELETE /api/v1/countries/{country}/download", h.RemoveCountry)
	r.Handle("DELETE /api/v1/cache", h.ClearCache)

	// children
	r.Handle("GET /api/v1/children", h.ListChildren)
	r.Handle("POST /api/v1/children", h.CreateChild)
	r.Handle("GET /api/v1/children/{id}", h.GetChild)
	r.Handle("PUT /api/v1/children/{id}", h.UpdateChild)
	r.Handle("DELETE /api/v1/children/{id}", h.DeleteChild)
	r.Handle("GET /api/v1/children/{id}/overview", h.ChildOverview)
	r.Handle("GET /api/v1/children/{id}/records", h.ChildRecords)
	r.Handle("GET /api/v1/children/{id}/upcoming", h.Upcoming)
	r.Handle("GET /api/v1/children/{id}/overdue", h.Overdue)
	r.Handle("GET /api/v1/children/{id}/completed", h.Completed)
	r.Handle("POST /api/v1/children/{id}/sync", h.SyncChild)
	r.Handle("GET /api/v1/children/{id}/reminders", h.ListReminders)
	r.Handle("POST /api/v1/children/{id}/reminders", h.ScheduleReminders)
	r.Handle("DELETE /api/v1/children/{id}/reminders", h.CancelReminders)
	r.Handle("GET /api/v1/children/{id}/export", h.ExportChild)

	// records
	r.Handle("POST /api/v1/records/{id}/complete", h.CompleteRecord)

	// settings / data
	r.Handle("GET /api/v1/settings", h.GetSettings)
	r.Handle("PUT /api/v1/settings", h.UpdateSettings)
	r.Handle("DELETE /api/v1/data", h.ClearAllData)
}
