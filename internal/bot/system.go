package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/classbot/internal/format"
)

func onOff(ok bool, on, off string) string {
	if ok {
		return "✅ " + on
	}
	return "❌ " + off
}

func (b *Bot) handleTestReminder(ctx context.Context, req *request) (string, error) {
	if !req.in.privileged() {
		return accessDenied("Hanya admin yang dapat menjalankan test reminder.")
	}
	if !req.in.IsFromGroup {
		return fail("Perintah Salah", "Command ini hanya bisa digunakan di grup.")
	}

	status := b.reminders.Status()
	if !status.Running {
		return fail("Reminder System Offline", "Sistem reminder sedang tidak berjalan. Silakan restart bot.")
	}

	if err := b.reminders.TestReminder(ctx, req.in.GroupID); err != nil {
		return fail("Error Sistem", "Terjadi kesalahan saat menjalankan test reminder.")
	}

	return format.Reply("Test Reminder Completed",
		"🧪 Test reminder berhasil dijalankan.\n\n"+
			"📊 *Status Sistem:*\n"+
			fmt.Sprintf("• Reminder System: %s\n", onOff(status.Running, "Running", "Stopped"))+
			fmt.Sprintf("• Connection: %s\n", onOff(status.HasNotifier, "Connected", "Disconnected"))+
			fmt.Sprintf("• Timezone: %s\n\n", status.Timezone)+
			"📅 *Jadwal Reminder:*\n"+
			fmt.Sprintf("• %s\n", strings.Join(status.Schedules, "\n• "))+
			"\n💡 Lihat pesan di atas untuk detail tugas yang akan di-remind.",
		format.Success), nil
}

func (b *Bot) handlePing(ctx context.Context, _ *request) (string, error) {
	start := time.Now()

	classes := len(b.roster.AllClasses(ctx))
	students := b.roster.StudentCount(ctx)
	tasks := b.tasks.Count(ctx)
	status := b.reminders.Status()

	elapsed := time.Since(start)
	now := b.now()

	var msg strings.Builder
	msg.WriteString("🏓 *PONG!*\n\n")
	fmt.Fprintf(&msg, "⚡ *Response Time:* %dms\n", elapsed.Milliseconds())
	fmt.Fprintf(&msg, "🕐 *Server Time:* %s\n", format.DateTime(now.In(b.loc())))
	fmt.Fprintf(&msg, "⏱️ *Uptime:* %s\n\n", format.Duration(now.Sub(b.startedAt)))

	msg.WriteString("📊 *Data Summary:*\n")
	fmt.Fprintf(&msg, "  • Kelas: %d\n", classes)
	fmt.Fprintf(&msg, "  • Mahasiswa: %d\n", students)
	fmt.Fprintf(&msg, "  • Tugas: %d\n\n", tasks)

	fmt.Fprintf(&msg, "🔔 *Reminder System:* %s\n", onOff(status.Running, "Running", "Stopped"))
	fmt.Fprintf(&msg, "🌐 *Connection:* %s\n", onOff(status.HasNotifier, "Connected", "Disconnected"))
	fmt.Fprintf(&msg, "🌍 *Timezone:* %s\n\n", status.Timezone)

	fmt.Fprintf(&msg, "🤖 *Bot:* %s\n", b.opts.Name)
	if b.opts.Number != "" {
		fmt.Fprintf(&msg, "📱 *Bot Number:* %s\n", b.opts.Number)
	}
	msg.WriteString("\n📈 *Status:* All systems operational")

	return format.Reply("System Status", msg.String(), format.Success), nil
}

func (b *Bot) handleMenu(_ context.Context, req *request) (string, error) {
	admin := req.in.privileged()

	var msg strings.Builder
	fmt.Fprintf(&msg, "🤖 *%s*\n\n", strings.ToUpper(b.opts.Name))
	msg.WriteString("👋 Halo! Saya adalah bot untuk manajemen kelas.\n\n")

	if req.in.IsFromGroup {
		msg.WriteString("📚 *FITUR KELAS:*\n" +
			"• {p}daftarmhs <nama> - Daftar sebagai mahasiswa\n" +
			"• {p}kas cek - Cek kas sendiri\n" +
			"• {p}kas list - Lihat kas seluruh kelas\n" +
			"• {p}kas laporan - Laporan kas lengkap (dengan pengeluaran)\n" +
			"• {p}tugas list - Lihat daftar tugas\n" +
			"• {p}tugas detail <id> - Detail tugas\n" +
			"• {p}tugas reminder <id> - Lihat jadwal reminder tugas\n\n")

		msg.WriteString("💡 *INFO FITUR:*\n" +
			"• Kas laporan: Menampilkan total kas, pengeluaran, dan sisa kas\n" +
			"• Tugas reminder: Sistem otomatis mengingatkan sebelum deadline\n" +
			"• Deadline tugas: Format YYYY-MM-DD (Tahun-Bulan-Hari)\n\n")

		if admin {
			msg.WriteString("⚙️ *FITUR ADMIN:*\n" +
				"• {p}initkelas <nama> - Inisialisasi kelas\n" +
				"• {p}kas tambah @nomor jumlah - Tambah kas mahasiswa\n" +
				"• {p}kas kurang @nomor jumlah - Kurangi kas mahasiswa\n" +
				"• {p}kas keluar jumlah keterangan - Pengeluaran kas kelas\n" +
				"• {p}kas edit id keterangan - Ubah keterangan pengeluaran\n" +
				"• {p}kas hapus id - Hapus pengeluaran\n" +
				"• {p}tugas tambah - Tambah tugas (lihat detail di bawah)\n" +
				"• {p}testreminder - Test sistem reminder\n\n")

			msg.WriteString("💰 *DETAIL KAS:*\n" +
				"• {p}kas keluar: Untuk pengeluaran dari kas kelas\n" +
				"• Format: {p}kas keluar <jumlah> <keterangan>\n" +
				"• Contoh: {p}kas keluar 50000 Beli snack ulang tahun kelas\n" +
				"• Akan dicek apakah saldo kas kelas mencukupi\n\n")

			msg.WriteString("📚 *DETAIL TUGAS:*\n" +
				"Format: {p}tugas tambah judul YYYY-MM-DD deskripsi [remind=x,y,z]\n\n" +
				"🗓️ *Deadline (YYYY-MM-DD):*\n" +
				"• Format tanggal: Tahun-Bulan-Hari\n" +
				"• Contoh: 2025-09-25 (25 September 2025)\n" +
				"• Contoh: 2025-12-15 (15 Desember 2025)\n\n" +
				"🔔 *Parameter Remind (opsional):*\n" +
				"• remind=7,3,1 (reminder 7, 3, dan 1 hari sebelum deadline)\n" +
				"• remind=5,2 (reminder 5 dan 2 hari sebelum deadline)\n" +
				"• Jika tidak diisi: default remind=7,3,1\n\n" +
				"*Contoh Lengkap:*\n" +
				"• {p}tugas tambah Quiz 2025-09-25 Kuis matematika bab 1-3\n" +
				"• {p}tugas tambah Makalah 2025-10-15 Tulis makalah Pancasila remind=10,5,2\n\n")
		}
	} else {
		msg.WriteString("📱 *CHAT PRIVATE:*\n" +
			"Silakan gunakan bot di grup kelas yang sudah diinisialisasi.\n\n")
		if admin {
			msg.WriteString("⚙️ *ADMIN:* Anda memiliki akses admin.\n\n")
		}
	}

	msg.WriteString("🔧 *FITUR UMUM:*\n" +
		"• {p}menu - Tampilkan menu ini\n" +
		"• {p}ping - Cek status bot\n\n")

	msg.WriteString("📖 *PANDUAN PENGGUNAAN:*\n" +
		"1. Admin inisialisasi grup dengan {p}initkelas\n" +
		"2. Mahasiswa daftar sendiri dengan {p}daftarmhs\n" +
		"3. Admin kelola kas dan tugas\n" +
		"4. Reminder tugas otomatis\n\n")

	msg.WriteString("💡 *Tips:* Gunakan quotes untuk parameter yang mengandung spasi\n" +
		"Contoh: {p}tugas tambah \"Makalah Pancasila\" \"2025-09-20\"")

	return format.Reply("Menu Bot Kelas", b.p(msg.String()), format.Info), nil
}
