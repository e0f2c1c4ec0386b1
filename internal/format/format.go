// Package format renders amounts, dates and reply envelopes for chat
// messages in Indonesian.
package format

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Kind selects the icon of a reply.
type Kind string

// Reply kinds.
const (
	Success Kind = "success"
	Error   Kind = "error"
	Info    Kind = "info"
	Warning Kind = "warning"
)

var icons = map[Kind]string{
	Success: "✅",
	Error:   "❌",
	Info:    "ℹ️",
	Warning: "⚠️",
}

// Icon returns the marker for k, falling back to the info icon.
func (k Kind) Icon() string {
	if icon, ok := icons[k]; ok {
		return icon
	}
	return icons[Info]
}

// Reply wraps content in the standard "{icon} *{title}*" envelope.
func Reply(title, content string, kind Kind) string {
	return fmt.Sprintf("%s *%s*\n\n%s", kind.Icon(), title, content)
}

var printer = message.NewPrinter(language.Indonesian)

// Number groups digits with the Indonesian thousands separator.
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}

// Rupiah formats a whole-rupiah amount, e.g. "Rp 25.000" or "-Rp 5.000".
func Rupiah(amount int64) string {
	if amount < 0 {
		// -MinInt64 overflows; no class cash gets near it.
		return "-Rp " + Number(-amount)
	}
	return "Rp " + Number(amount)
}

var weekdays = [...]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}

var months = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// LongDate renders t as "Sabtu, 20 September 2025".
func LongDate(t time.Time) string {
	return fmt.Sprintf("%s, %d %s %d", weekdays[t.Weekday()], t.Day(), months[t.Month()-1], t.Year())
}

// ShortDate renders t as "20/9/2025".
func ShortDate(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}

// DateTime renders t as "20/9/2025 14.05".
func DateTime(t time.Time) string {
	return fmt.Sprintf("%s %02d.%02d", ShortDate(t), t.Hour(), t.Minute())
}

// Deadline renders a YYYY-MM-DD date in long form. Unparseable input is
// returned unchanged.
func Deadline(deadline string, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02", deadline, loc)
	if err != nil {
		return deadline
	}
	return LongDate(t)
}

// Duration renders an uptime as "2 jam 5 menit 3 detik".
func Duration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	s := int((d % time.Minute) / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%d jam %d menit %d detik", h, m, s)
	case m > 0:
		return fmt.Sprintf("%d menit %d detik", m, s)
	default:
		return fmt.Sprintf("%d detik", s)
	}
}
