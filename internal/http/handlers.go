package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"vaxtrack/internal/calendar"
	"vaxtrack/internal/clock"
	"vaxtrack/internal/domain"
	"vaxtrack/internal/export"
	"vaxtrack/internal/reminder"
	"vaxtrack/internal/schedule"
	"vaxtrack/internal/service"

	"go.uber.org/zap"
)

// Handler /api/v1 的全部处理函数
type Handler struct {
	vaccinations *service.VaccinationService
	calendars    *calendar.Repository
	reminders    *reminder.Service
	clock        clock.Clock
	logger       *zap.Logger
}

func NewHandler(vaccinations *service.VaccinationService, calendars *calendar.Repository, reminders *reminder.Service, clk clock.Clock, logger *zap.Logger) *Handler {
	return &Handler{
		vaccinations: vaccinations,
		calendars:    calendars,
		reminders:    reminders,
		clock:        clk,
		logger:       logger,
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, Fail(err.Error()))
}

func (h *Handler) badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, Fail(message))
}

// countryParam 国家名大小写不敏感；无法识别时原样返回，由下层报 ErrUnknownCountry
func countryParam(r *http.Request) domain.Country {
	raw := r.PathValue("country")
	if c, ok := domain.ParseCountry(raw); ok {
		return c
	}
	return domain.Country(raw)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(map[string]any{"status": "ok", "time": h.clock.Now()}))
}

// ============================================
// Countries
// ============================================

func (h *Handler) ListCountries(w http.ResponseWriter, r *http.Request) {
	infos, err := h.calendars.Countries(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(infos))
}

func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := h.calendars.GetSchedule(r.Context(), countryParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(sched))
}

func (h *Handler) DownloadCountry(w http.ResponseWriter, r *http.Request) {
	sched, err := h.calendars.Download(r.Context(), countryParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(sched))
}

func (h *Handler) RemoveCountry(w http.ResponseWriter, r *http.Request) {
	country := countryParam(r)
	if err := h.calendars.Remove(r.Context(), country); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"country": country, "removed": true}))
}

func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.calendars.ClearCache(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"cleared": true}))
}

// ============================================
// Children
// ============================================

type childRequest struct {
	Name        *string `json:"name"`
	DateOfBirth *string `json:"dateOfBirth"`
	Country     *string `json:"country"`
	PhotoURI    *string `json:"photoUri"`
}

type createChildResponse struct {
	Child   domain.Child               `json:"child"`
	Records []domain.VaccinationRecord `json:"records"`
}

func (h *Handler) ListChildren(w http.ResponseWriter, r *http.Request) {
	children, err := h.vaccinations.ListChildren(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(orEmpty(children)))
}

func (h *Handler) CreateChild(w http.ResponseWriter, r *http.Request) {
	var req childRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		h.badRequest(w, "invalid body")
		return
	}
	in := service.ChildInput{}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.DateOfBirth != nil {
		dob, err := parseDay(*req.DateOfBirth)
		if err != nil {
			h.badRequest(w, "invalid dateOfBirth, expected YYYY-MM-DD")
			return
		}
		in.DateOfBirth = dob
	}
	if req.Country != nil {
		in.Country = domain.Country(*req.Country)
		if c, ok := domain.ParseCountry(*req.Country); ok {
			in.Country = c
		}
	}
	if req.PhotoURI != nil {
		in.PhotoURI = *req.PhotoURI
	}

	child, records, err := h.vaccinations.AddChild(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(createChildResponse{Child: child, Records: orEmpty(records)}))
}

func (h *Handler) GetChild(w http.ResponseWriter, r *http.Request) {
	child, err := h.vaccinations.GetChild(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(child))
}

func (h *Handler) UpdateChild(w http.ResponseWriter, r *http.Request) {
	var req childRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		h.badRequest(w, "invalid body")
		return
	}
	upd := domain.ChildUpdate{Name: req.Name, PhotoURI: req.PhotoURI}
	if req.DateOfBirth != nil {
		dob, err := parseDay(*req.DateOfBirth)
		if err != nil {
			h.badRequest(w, "invalid dateOfBirth, expected YYYY-MM-DD")
			return
		}
		upd.DateOfBirth = &dob
	}
	if req.Country != nil {
		c := domain.Country(*req.Country)
		if parsed, ok := domain.ParseCountry(*req.Country); ok {
			c = parsed
		}
		upd.Country = &c
	}

	child, err := h.vaccinations.UpdateChild(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(child))
}

func (h *Handler) DeleteChild(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.vaccinations.DeleteChild(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"id": id, "deleted": true}))
}

func (h *Handler) ChildOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.vaccinations.Overview(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(overview))
}

// ChildRecords GET /children/{id}/records?status=upcoming|overdue|completed
func (h *Handler) ChildRecords(w http.ResponseWriter, r *http.Request) {
	var status domain.Status
	if s := r.URL.Query().Get("status"); s != "" {
		parsed, ok := domain.ParseStatus(strings.ToLower(s))
		if !ok {
			h.badRequest(w, fmt.Sprintf("invalid status %q", s))
			return
		}
		status = parsed
	}
	records, err := h.vaccinations.ChildRecords(r.Context(), r.PathValue("id"), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(records))
}

func (h *Handler) Upcoming(w http.ResponseWriter, r *http.Request) {
	days := parseInt(r.URL.Query().Get("days"), service.DefaultUpcomingWindowDays)
	records, err := h.vaccinations.Upcoming(r.Context(), r.PathValue("id"), days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(orEmpty(records)))
}

func (h *Handler) Overdue(w http.ResponseWriter, r *http.Request) {
	records, err := h.vaccinations.Overdue(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(orEmpty(records)))
}

// Completed 已完成记录，最近完成的在前
func (h *Handler) Completed(w http.ResponseWriter, r *http.Request) {
	records, err := h.vaccinations.Completed(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(orEmpty(records)))
}

func (h *Handler) SyncChild(w http.ResponseWriter, r *http.Request) {
	added, err := h.vaccinations.SyncChildRecords(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(orEmpty(added)))
}

// ============================================
// Reminders
// ============================================

func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.vaccinations.GetChild(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.reminders.ChildReminders(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(list))
}

func (h *Handler) ScheduleReminders(w http.ResponseWriter, r *http.Request) {
	planned, err := h.reminders.ScheduleChild(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(orEmpty(planned)))
}

func (h *Handler) CancelReminders(w http.ResponseWriter, r *http.Request) {
	n, err := h.reminders.CancelChild(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"cancelled": n}))
}

// ============================================
// Export
// ============================================

// ExportChild GET /children/{id}/export?format=ics|xlsx
func (h *Handler) ExportChild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "ics"
	}
	if format != "ics" && format != "xlsx" {
		h.badRequest(w, fmt.Sprintf("unsupported format %q", format))
		return
	}

	child, err := h.vaccinations.GetChild(ctx, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	records, err := h.vaccinations.ChildRecords(ctx, child.ID, "")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	names := h.vaccineNames(ctx, child.Country)
	now := h.clock.Now()
	filename := fmt.Sprintf("vaccinations_%s_%s", child.ID, now.Format("20060102"))

	switch format {
	case "xlsx":
		data, err := export.WriteXLSX(child, records, names, schedule.DateOf(now))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	default:
		settings, err := h.vaccinations.Settings(ctx)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		daysBefore := 0
		if settings.NotificationsEnabled {
			daysBefore = settings.ReminderDaysBefore
		}
		var buf bytes.Buffer
		if err := export.WriteICS(&buf, child, records, names, daysBefore, now); err != nil {
			h.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ics"`, filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

// vaccineNames 日历不可用时返回空表，导出回退为疫苗 id
func (h *Handler) vaccineNames(ctx context.Context, country domain.Country) map[string]string {
	names := map[string]string{}
	sched, err := h.calendars.GetSchedule(ctx, country)
	if err != nil {
		h.logger.Warn("Schedule unavailable for export, using vaccine ids",
			zap.String("country", string(country)),
			zap.Error(err),
		)
		return names
	}
	for _, v := range sched.Vaccines {
		names[v.ID] = v.Name
	}
	return names
}

// ============================================
// Records
// ============================================

type completeRequest struct {
	CompletedDate string `json:"completedDate"`
	Notes         string `json:"notes"`
	DoctorName    string `json:"doctorName"`
	Location      string `json:"location"`
	BatchNumber   string `json:"batchNumber"`
}

func (h *Handler) CompleteRecord(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		h.badRequest(w, "invalid body")
		return
	}
	data := domain.CompletionData{
		Notes:       req.Notes,
		DoctorName:  req.DoctorName,
		Location:    req.Location,
		BatchNumber: req.BatchNumber,
	}
	if req.CompletedDate != "" {
		d, err := parseDay(req.CompletedDate)
		if err != nil {
			h.badRequest(w, "invalid completedDate, expected YYYY-MM-DD")
			return
		}
		data.CompletedDate = d
	}

	record, err := h.vaccinations.MarkCompleted(r.Context(), r.PathValue("id"), data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(record))
}

// ============================================
// Settings / data
// ============================================

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.vaccinations.Settings(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(settings))
}

// UpdateSettings PUT /settings：未提交的字段保持当前值
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.vaccinations.Settings(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := readBodyJSON(r, maxBodyBytes, &settings); err != nil {
		h.badRequest(w, "invalid body")
		return
	}
	saved, err := h.vaccinations.UpdateSettings(r.Context(), settings)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(saved))
}

func (h *Handler) ClearAllData(w http.ResponseWriter, r *http.Request) {
	if err := h.vaccinations.ClearAllData(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"cleared": true}))
}
