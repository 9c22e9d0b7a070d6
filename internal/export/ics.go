package export

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"vaxtrack/internal/domain"
	"vaxtrack/internal/schedule"
)

// ICSProductID 日历 PRODID
const ICSProductID = "-//vaxtrack//Vaccination Schedule//EN"

// icsWriter 逐行写入 ICS（CRLF 结尾），记住第一个写错误
type icsWriter struct {
	w   io.Writer
	err error
}

// icsLineLimit 每行最多 75 个八位字节（不含 CRLF）
const icsLineLimit = 75

func (iw *icsWriter) line(format string, args ...any) {
	if iw.err != nil {
		return
	}
	_, iw.err = io.WriteString(iw.w, foldLine(fmt.Sprintf(format, args...)))
}

// foldLine 按 RFC 5545 折行：超长部分以 CRLF + 空格续行，不拆开 UTF-8 字符
func foldLine(s string) string {
	var b strings.Builder
	limit := icsLineLimit
	for len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		b.WriteString(s[:cut])
		b.WriteString("\r\n ")
		s = s[cut:]
		// 续行的前导空格占一个八位字节
		limit = icsLineLimit - 1
	}
	b.WriteString(s)
	b.WriteString("\r\n")
	return b.String()
}

// escapeText 按 RFC 5545 转义 TEXT 值
func escapeText(s string) string {
	r := strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`)
	return r.Replace(s)
}

// WriteICS 导出儿童未完成的接种为全天事件
// reminderDaysBefore > 0 时为每个事件加一个 VALARM（提前 N 天）
func WriteICS(w io.Writer, child domain.Child, records []domain.VaccinationRecord, names map[string]string, reminderDaysBefore int, now time.Time) error {
	iw := &icsWriter{w: w}

	iw.line("BEGIN:VCALENDAR")
	iw.line("VERSION:2.0")
	iw.line("PRODID:%s", ICSProductID)
	iw.line("CALSCALE:GREGORIAN")
	iw.line("METHOD:PUBLISH")
	iw.line("X-WR-CALNAME:%s", escapeText("Vaccinations "+child.Name))

	stamp := now.UTC().Format("20060102T150405Z")
	for _, r := range records {
		if r.ChildID != child.ID || r.IsCompleted() {
			continue
		}
		day := schedule.DateOf(r.ScheduledDate)
		name := vaccineName(names, r.VaccineID)
		summary := name
		if r.TotalDoses > 1 {
			summary = fmt.Sprintf("%s (dose %d/%d)", name, r.DoseNumber, r.TotalDoses)
		}

		iw.line("BEGIN:VEVENT")
		iw.line("UID:%s@vaxtrack", r.ID)
		iw.line("DTSTAMP:%s", stamp)
		iw.line("DTSTART;VALUE=DATE:%s", day.Format("20060102"))
		iw.line("DTEND;VALUE=DATE:%s", day.AddDate(0, 0, 1).Format("20060102"))
		iw.line("SUMMARY:%s", escapeText(summary))
		iw.line("DESCRIPTION:%s", escapeText(fmt.Sprintf("%s for %s", summary, child.Name)))
		iw.line("CATEGORIES:VACCINATION")
		if reminderDaysBefore > 0 {
			iw.line("BEGIN:VALARM")
			iw.line("ACTION:DISPLAY")
			iw.line("DESCRIPTION:%s", escapeText("Reminder: "+summary))
			iw.line("TRIGGER:-P%dD", reminderDaysBefore)
			iw.line("END:VALARM")
		}
		iw.line("END:VEVENT")
	}

	iw.line("END:VCALENDAR")
	return iw.err
}

func vaccineName(names map[string]string, vaccineID string) string {
	if n, ok := names[vaccineID]; ok && n != "" {
		return n
	}
	return vaccineID
}
