package schedule

import (
	"fmt"
	"time"
)

// DateLayout 日期的序列化格式
const DateLayout = "2006-01-02"

// DateOf 截取到日（UTC 零点）；日程计算只比较日期
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths 按日历加月；目标月没有该日时取月末
// (2024-01-31 + 1 = 2024-02-29)
func AddMonths(date time.Time, months int) time.Time {
	y, m, d := date.Date()
	total := int(m) - 1 + months
	year := y + total/12
	idx := total % 12
	if idx < 0 {
		idx += 12
		year--
	}
	month := time.Month(idx + 1)
	if last := daysIn(year, month); d > last {
		d = last
	}
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil 计划日期与今天相差的整天数（过去为负）
func DaysUntil(scheduled, today time.Time) int {
	return int(DateOf(scheduled).Sub(DateOf(today)).Hours() / 24)
}

// AgeInMonths 到今天为止的整月龄
func AgeInMonths(dob, today time.Time) int {
	dob, today = DateOf(dob), DateOf(today)
	months := (today.Year()-dob.Year())*12 + int(today.Month()) - int(dob.Month())
	if today.Before(AddMonths(dob, months)) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// FormatAge 可读年龄，如 "7 months"、"1 year"、"2 years 3 months"
func FormatAge(dob, today time.Time) string {
	months := AgeInMonths(dob, today)
	if months < 12 {
		return fmt.Sprintf("%d months", months)
	}
	years, rest := months/12, months%12
	out := fmt.Sprintf("%d year%s", years, plural(years))
	if rest > 0 {
		out += fmt.Sprintf(" %d month%s", rest, plural(rest))
	}
	return out
}

func plural(n int) string {
	if n > 1 {
		return "s"
	}
	return ""
}
