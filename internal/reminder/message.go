package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/classbot/internal/format"
	"github.com/Veraticus/classbot/internal/model"
	"github.com/Veraticus/classbot/internal/task"
)

// Message formats the reminder posted to a class group.
func Message(d task.Due, loc *time.Location) string {
	icon, suffix := "📅", ""
	switch {
	case d.DaysLeft == 1:
		icon, suffix = "🔴", " (URGENT!)"
	case d.DaysLeft <= 3:
		icon, suffix = "🟡", " (Mendesak)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *REMINDER TUGAS%s*\n\n", icon, suffix)
	fmt.Fprintf(&b, "📚 *Kelas:* %s\n", d.Class.Name)
	fmt.Fprintf(&b, "📝 *Tugas:* %s\n", d.Task.Title)
	fmt.Fprintf(&b, "📅 *Deadline:* %s\n", format.Deadline(d.Task.Deadline, loc))
	fmt.Fprintf(&b, "⏰ *Sisa waktu:* %d hari lagi\n", d.DaysLeft)
	if d.Task.Description != "" {
		fmt.Fprintf(&b, "📖 *Deskripsi:* %s\n", d.Task.Description)
	}
	b.WriteString("\n💡 *Jangan lupa untuk mengerjakan tugas ini!*")
	if d.DaysLeft == 1 {
		b.WriteString("\n\n🚨 *PERHATIAN: Deadline besok!*")
	}
	return b.String()
}

func testListing(class *model.Class, tasks []model.Task, r *task.Registry, now time.Time, schedules []string) string {
	var b strings.Builder
	b.WriteString("🧪 *TEST REMINDER SYSTEM*\n\n")
	fmt.Fprintf(&b, "📚 *Kelas:* %s\n", class.Name)
	fmt.Fprintf(&b, "📊 *Total Tugas:* %d\n\n", len(tasks))

	upcoming := false
	for i, t := range tasks {
		daysLeft, err := r.DaysUntil(t.Deadline, now)
		if err != nil || daysLeft < 0 {
			continue
		}
		upcoming = true
		fmt.Fprintf(&b, "%d. *%s*\n", i+1, t.Title)
		fmt.Fprintf(&b, "   📅 %s\n", format.Deadline(t.Deadline, r.Location()))
		fmt.Fprintf(&b, "   ⏰ %d hari lagi\n", daysLeft)
		fmt.Fprintf(&b, "   🔔 Reminder: %s hari sebelum\n\n", t.ReminderDays)
	}

	if !upcoming {
		b.WriteString("✅ Tidak ada tugas yang akan datang.")
	} else {
		b.WriteString("✅ Sistem reminder berjalan normal.\n")
		parts := make([]string, len(schedules))
		for i, spec := range schedules {
			parts[i] = describeSchedule(spec)
		}
		desc := strings.Join(parts, " dan ")
		if desc != "" {
			desc = strings.ToUpper(desc[:1]) + desc[1:]
		}
		fmt.Fprintf(&b, "📅 Jadwal cek: %s.", desc)
	}
	return b.String()
}

// describeSchedule renders the common five-field cron shapes in words and
// falls back to the raw expression.
func describeSchedule(spec string) string {
	f := strings.Fields(spec)
	if len(f) != 5 || f[2] != "*" || f[3] != "*" || f[4] != "*" {
		return fmt.Sprintf("cron `%s`", spec)
	}
	minute, hour := f[0], f[1]

	if m, err := strconv.Atoi(minute); err == nil {
		if h, err := strconv.Atoi(hour); err == nil {
			return fmt.Sprintf("setiap hari pukul %02d:%02d", h, m)
		}
		if n, ok := strings.CutPrefix(hour, "*/"); ok && m == 0 {
			return fmt.Sprintf("setiap %s jam", n)
		}
	}
	if n, ok := strings.CutPrefix(minute, "*/"); ok && hour == "*" {
		return fmt.Sprintf("setiap %s menit", n)
	}
	return fmt.Sprintf("cron `%s`", spec)
}
