package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/classbot/internal/common"
	"github.com/Veraticus/classbot/internal/format"
	"github.com/Veraticus/classbot/internal/model"
	"github.com/Veraticus/classbot/internal/task"
)

const tugasUsage = "📖 *Cara Penggunaan Tugas:*\n\n" +
	"🔹 *{p}tugas tambah* - Tambah tugas (Admin)\n" +
	"🔹 *{p}tugas list* - Lihat daftar tugas\n" +
	"🔹 *{p}tugas detail <id>* - Lihat detail tugas\n" +
	"🔹 *{p}tugas reminder <id>* - Lihat jadwal reminder\n\n" +
	"*Format Tambah Tugas (pilih salah satu):*\n" +
	"• Dengan quotes: {p}tugas tambah \"judul\" \"YYYY-MM-DD\" \"deskripsi\"\n" +
	"• Tanpa quotes: {p}tugas tambah judul YYYY-MM-DD deskripsi panjang\n\n" +
	"*Contoh:*\n" +
	"• {p}tugas tambah \"Makalah Pancasila\" \"2025-09-20\" \"Minimal 5 halaman\"\n" +
	"• {p}tugas tambah Tugas1 2025-09-20 Ini adalah deskripsi tugas yang panjang\n" +
	"• {p}tugas tambah \"Quiz Matematika\" \"2025-09-15\" \"Bab 1-3\" remind=3,1\n" +
	"• {p}tugas detail 1\n" +
	"• {p}tugas reminder 1"

const tugasAddUsage = "Format (pilih salah satu):\n" +
	"• Dengan quotes: {p}tugas tambah \"judul\" \"YYYY-MM-DD\" \"deskripsi\"\n" +
	"• Tanpa quotes: {p}tugas tambah judul YYYY-MM-DD deskripsi panjang\n\n" +
	"Contoh:\n" +
	"• {p}tugas tambah \"Makalah Pancasila\" \"2025-09-20\" \"Minimal 5 halaman\"\n" +
	"• {p}tugas tambah Tugas1 2025-09-20 Ini adalah deskripsi tugas yang panjang\n" +
	"• {p}tugas tambah \"Quiz Matematika\" \"2025-09-15\" \"Bab 1-3\" remind=3,1"

func (b *Bot) handleTugas(ctx context.Context, req *request) (string, error) {
	if !req.in.IsFromGroup {
		return fail("Perintah Salah", "Command ini hanya bisa digunakan di grup kelas.")
	}
	class, ok := b.roster.ClassByGroup(ctx, req.in.GroupID)
	if !ok {
		return fail("Grup Belum Diinisialisasi", "Grup ini belum diinisialisasi sebagai kelas.")
	}
	if len(req.args) < 1 {
		return fail("Parameter Kurang", b.p(tugasUsage))
	}

	sub, args := strings.ToLower(req.args[0]), req.args[1:]
	switch sub {
	case "tambah":
		return b.tugasAdd(ctx, req, class, args)
	case "list":
		return b.tugasList(ctx, class)
	case "detail":
		return b.tugasDetail(ctx, class, args)
	case "reminder":
		return b.tugasReminder(ctx, class, args)
	default:
		return fail("Subcommand Tidak Valid", b.p(tugasUsage))
	}
}

func daysLeftText(daysLeft int, suffix string) string {
	if daysLeft >= 0 {
		return fmt.Sprintf("%d hari%s", daysLeft, suffix)
	}
	return fmt.Sprintf("Terlewat %d hari", -daysLeft)
}

func (b *Bot) tugasAdd(ctx context.Context, req *request, class *model.Class, args []string) (string, error) {
	if !req.in.privileged() {
		return accessDenied("Hanya admin yang dapat menambah tugas.")
	}
	if len(args) < 2 {
		return fail("Parameter Kurang", b.p(tugasAddUsage))
	}

	parsed, ok := parseTaskArgs(args)
	if !ok {
		return fail("Parameter Kurang", b.p("Format dengan quotes: {p}tugas tambah \"judul\" \"YYYY-MM-DD\" \"deskripsi\""))
	}

	if err := validate.Struct(parsed); err != nil {
		if invalidField(err) == "Title" {
			return fail("Judul Tidak Valid", "Judul tugas minimal 3 karakter.")
		}
		return fail("Tanggal Tidak Valid", "Format tanggal harus YYYY-MM-DD (contoh: 2025-09-20)")
	}
	if err := b.tasks.ValidateDeadline(parsed.Deadline); err != nil {
		return userFailure("Tanggal Tidak Valid", err)
	}
	if _, err := model.ParseReminderDays(parsed.Remind); err != nil {
		return fail("Reminder Tidak Valid", "Format reminder harus berupa angka yang dipisah koma.\nContoh: 7,3,1")
	}

	t, err := b.tasks.AddTask(ctx, class.ID, parsed.Title, parsed.Deadline, parsed.Description, parsed.Remind)
	if err != nil {
		return userFailure("Gagal Menambah Tugas", err)
	}

	daysLeft, _ := b.tasks.DaysUntil(t.Deadline, b.now())

	var msg strings.Builder
	fmt.Fprintf(&msg, "📚 *Judul:* %s\n", t.Title)
	fmt.Fprintf(&msg, "📅 *Deadline:* %s\n", format.Deadline(t.Deadline, b.loc()))
	fmt.Fprintf(&msg, "⏰ *Hari tersisa:* %d hari\n", daysLeft)
	if t.Description != "" {
		fmt.Fprintf(&msg, "📝 *Deskripsi:* %s\n", t.Description)
	}
	fmt.Fprintf(&msg, "🔔 *Reminder:* %s hari sebelum deadline\n", t.ReminderDays)
	fmt.Fprintf(&msg, "🆔 *ID Tugas:* %d", t.ID)

	return format.Reply("Tugas Berhasil Ditambah", msg.String(), format.Success), nil
}

// userFailure renders err's user message under title, or passes err up
// when it carries none.
func userFailure(title string, err error) (string, error) {
	if msg, ok := common.UserMessage(err); ok {
		return fail(title, msg)
	}
	return "", err
}

func (b *Bot) tugasList(ctx context.Context, class *model.Class) (string, error) {
	tasks := b.tasks.TasksByClass(ctx, class.ID)
	if len(tasks) == 0 {
		return format.Reply("Tidak Ada Tugas", "Belum ada tugas yang diberikan untuk kelas ini.", format.Info), nil
	}

	now := b.now()
	var msg strings.Builder
	fmt.Fprintf(&msg, "📚 *Daftar Tugas %s*\n\n", class.Name)
	for i, t := range tasks {
		daysLeft, err := b.tasks.DaysUntil(t.Deadline, now)
		if err != nil {
			continue
		}
		fmt.Fprintf(&msg, "%d. %s *%s*\n", i+1, task.UrgencyFor(daysLeft).Icon(), t.Title)
		fmt.Fprintf(&msg, "   📅 %s\n", format.Deadline(t.Deadline, b.loc()))
		fmt.Fprintf(&msg, "   ⏰ %s\n", daysLeftText(daysLeft, " lagi"))
		fmt.Fprintf(&msg, "   🆔 ID: %d\n\n", t.ID)
	}
	msg.WriteString("💡 *Keterangan Status:*\n")
	msg.WriteString("🟢 Normal • 🟡 Mendesak • 🔴 Urgent • ❌ Terlewat\n\n")
	msg.WriteString(b.p("Gunakan *{p}tugas detail <id>* untuk melihat detail tugas."))

	return format.Reply("Daftar Tugas", msg.String(), format.Info), nil
}

// classTask resolves a task id argument within class.
func (b *Bot) classTask(ctx context.Context, class *model.Class, args []string, usage string) (*model.Task, string) {
	if len(args) == 0 {
		return nil, format.Reply("Parameter Kurang", b.p(usage), format.Error)
	}
	id, ok := parseIDArgs(args[0])
	if !ok {
		return nil, format.Reply("ID Tidak Valid", "ID tugas harus berupa angka.", format.Error)
	}
	t, found := b.tasks.TaskByID(ctx, id.ID)
	if !found || t.ClassID != class.ID {
		return nil, format.Reply("Tugas Tidak Ditemukan", "Tugas dengan ID tersebut tidak ditemukan di kelas ini.", format.Error)
	}
	return t, ""
}

func (b *Bot) tugasDetail(ctx context.Context, class *model.Class, args []string) (string, error) {
	t, reply := b.classTask(ctx, class, args, "Format: {p}tugas detail <id_tugas>\nContoh: {p}tugas detail 1")
	if t == nil {
		return reply, nil
	}

	daysLeft, err := b.tasks.DaysUntil(t.Deadline, b.now())
	if err != nil {
		return "", err
	}
	urgency := task.UrgencyFor(daysLeft)

	var msg strings.Builder
	fmt.Fprintf(&msg, "📚 *Judul:* %s\n", t.Title)
	fmt.Fprintf(&msg, "📅 *Deadline:* %s\n", format.Deadline(t.Deadline, b.loc()))
	fmt.Fprintf(&msg, "⏰ *Status:* %s %s\n", urgency.Icon(), urgency.Label())
	fmt.Fprintf(&msg, "⌛ *Hari tersisa:* %s\n", daysLeftText(daysLeft, ""))
	if t.Description != "" {
		fmt.Fprintf(&msg, "📝 *Deskripsi:* %s\n", t.Description)
	}
	fmt.Fprintf(&msg, "🔔 *Reminder:* %s hari sebelum deadline\n", t.ReminderDays)
	fmt.Fprintf(&msg, "📅 *Dibuat:* %s\n", format.ShortDate(t.CreatedAt.In(b.loc())))
	fmt.Fprintf(&msg, "🆔 *ID:* %d", t.ID)

	return format.Reply("Detail Tugas", msg.String(), format.Info), nil
}

func (b *Bot) tugasReminder(ctx context.Context, class *model.Class, args []string) (string, error) {
	t, reply := b.classTask(ctx, class, args, "Format: {p}tugas reminder <id_tugas>\nContoh: {p}tugas reminder 1")
	if t == nil {
		return reply, nil
	}

	dates, err := b.tasks.ReminderDates(*t)
	if err != nil {
		return "", err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "🔔 *Jadwal Reminder: %s*\n\n", t.Title)
	for _, d := range dates {
		fmt.Fprintf(&msg, "📅 H-%d: %s\n", d.Offset, format.LongDate(d.Date))
	}
	fmt.Fprintf(&msg, "\n📅 *Deadline:* %s", format.Deadline(t.Deadline, b.loc()))

	return format.Reply("Jadwal Reminder", msg.String(), format.Info), nil
}
