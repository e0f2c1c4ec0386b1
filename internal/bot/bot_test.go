package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/classbot/internal/ledger"
	"github.com/Veraticus/classbot/internal/reminder"
	"github.com/Veraticus/classbot/internal/roster"
	"github.com/Veraticus/classbot/internal/service"
	"github.com/Veraticus/classbot/internal/storage"
	"github.com/Veraticus/classbot/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wib = time.FixedZone("WIB", 7*3600)

type sent struct {
	destination string
	content     string
}

type testEnv struct {
	bot       *Bot
	reminders *reminder.Scheduler
	now       time.Time
	mu        sync.Mutex
	outbox    []sent
}

func (e *testEnv) clock() time.Time { return e.now }

func (e *testEnv) notifier() service.Notifier {
	return service.NotifierFunc(func(_ context.Context, destination, content string) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.outbox = append(e.outbox, sent{destination: destination, content: content})
		return nil
	})
}

func newEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{now: time.Date(2025, 9, 10, 10, 0, 0, 0, wib)}
	store := storage.NewMemoryStore()

	r := roster.New(store, env.clock)
	tasks := task.NewRegistry(store, wib, env.clock)
	env.reminders = reminder.New(store, tasks, r, reminder.DefaultOptions(), env.clock)
	env.bot = New(Deps{
		Roster:    r,
		Ledger:    ledger.NewEngine(store, env.clock),
		Tasks:     tasks,
		Reminders: env.reminders,
	}, opts, env.clock)
	return env
}

func admin(text string, mentions ...string) Input {
	return Input{
		SenderID:    "100",
		SenderPhone: "62899",
		SenderLID:   "LADMIN",
		SenderName:  "Admin",
		IsAdmin:     true,
		IsFromGroup: true,
		GroupID:     "G1",
		Text:        text,
		Mentions:    mentions,
	}
}

func student(phone, lid, text string) Input {
	return Input{
		SenderID:    phone,
		SenderPhone: phone,
		SenderLID:   lid,
		IsFromGroup: true,
		GroupID:     "G1",
		Text:        text,
	}
}

func (e *testEnv) do(t *testing.T, in Input) string {
	t.Helper()
	reply, handled := e.bot.Handle(context.Background(), in)
	require.True(t, handled, "command %q not handled", in.Text)
	return reply
}

func TestKelasAndiScenario(t *testing.T) {
	env := newEnv(t, Options{})

	reply := env.do(t, admin(".initkelas Kelas-3A"))
	assert.True(t, strings.HasPrefix(reply, "✅ *Kelas Berhasil Diinisialisasi*"), reply)
	assert.Contains(t, reply, "📚 *Nama Kelas:* Kelas-3A")

	reply = env.do(t, admin(".initkelas Kelas-3B"))
	assert.Contains(t, reply, "Grup ini sudah terdaftar sebagai kelas: Kelas-3A")

	reply = env.do(t, student("62811", "L1", ".daftarmhs Andi"))
	assert.True(t, strings.HasPrefix(reply, "✅ *Pendaftaran Berhasil*"), reply)
	assert.Contains(t, reply, "👤 *Nama:* Andi")

	reply = env.do(t, student("62811", "L1", ".daftarmhs Andi Lagi"))
	assert.True(t, strings.HasPrefix(reply, "⚠️ *Sudah Terdaftar*"), reply)

	reply = env.do(t, student("62812", "L1", ".daftarmhs Budi"))
	assert.Contains(t, reply, "LID WhatsApp sudah terdaftar")

	reply = env.do(t, admin(".kas tambah @Andi 25000", "L1"))
	assert.True(t, strings.HasPrefix(reply, "✅ *Kas Berhasil Ditambah*"), reply)
	assert.Contains(t, reply, "➕ *Ditambah:* Rp 25.000")
	assert.Contains(t, reply, "💳 *Saldo Sekarang:* Rp 25.000")

	reply = env.do(t, admin(".kas keluar 20000 snack"))
	assert.True(t, strings.HasPrefix(reply, "✅ *Pengeluaran Kas Berhasil*"), reply)
	assert.Contains(t, reply, "💳 *Sisa Kas Setelah Pengeluaran:* Rp 5.000")

	reply = env.do(t, admin(".kas keluar 10000 spidol"))
	assert.True(t, strings.HasPrefix(reply, "❌ *Saldo Tidak Mencukupi*"), reply)
	assert.Contains(t, reply, "💰 *Total Kas Mahasiswa:* Rp 25.000")
	assert.Contains(t, reply, "💸 *Total Pengeluaran:* Rp 20.000")
	assert.Contains(t, reply, "💳 *Sisa Kas:* Rp 5.000")
	assert.Contains(t, reply, "❌ Pengeluaran Rp 10.000 melebihi sisa kas kelas!")

	reply = env.do(t, student("62811", "L1", ".kas cek"))
	assert.Contains(t, reply, "💳 *Saldo:* Rp 25.000")
	assert.Contains(t, reply, "➕ Rp 25.000 - 10/9/2025")

	reply = env.do(t, admin(".kas laporan"))
	assert.Contains(t, reply, "💵 Sisa Kas: Rp 5.000")
	assert.Contains(t, reply, "1. ✅ Andi: Rp 25.000")
	assert.Contains(t, reply, "📝 snack")
}

func TestKasPermissionsAndValidation(t *testing.T) {
	env := newEnv(t, Options{})
	env.do(t, admin(".initkelas Kelas-3A"))
	env.do(t, student("62811", "L1", ".daftarmhs Andi"))

	tests := []struct {
		name string
		in   Input
		want string
	}{
		{name: "student cannot add cash", in: student("62811", "L1", ".kas tambah @62811 1000"), want: "❌ *Akses Ditolak*"},
		{name: "student cannot spend", in: student("62811", "L1", ".kas keluar 1000 snack"), want: "❌ *Akses Ditolak*"},
		{name: "missing amount", in: admin(".kas tambah @62811"), want: "❌ *Parameter Kurang*"},
		{name: "zero amount", in: admin(".kas tambah @62811 0"), want: "❌ *Jumlah Tidak Valid*"},
		{name: "non numeric amount", in: admin(".kas kurang @62811 banyak"), want: "❌ *Jumlah Tidak Valid*"},
		{name: "amount above cap", in: admin(".kas kurang @62811 9223372036854775807"), want: "❌ *Jumlah Tidak Valid*"},
		{name: "expense above cap", in: admin(".kas keluar 1000000000001 snack"), want: "❌ *Jumlah Tidak Valid*"},
		{name: "unknown mention", in: admin(".kas tambah @62800 1000"), want: "❌ *Mahasiswa Tidak Ditemukan*"},
		{name: "short description", in: admin(".kas keluar 1000 ab"), want: "❌ *Keterangan Tidak Valid*"},
		{name: "bad subcommand", in: admin(".kas bayar"), want: "❌ *Subcommand Tidak Valid*"},
		{name: "no subcommand", in: admin(".kas"), want: "❌ *Parameter Kurang*"},
		{name: "private chat", in: Input{IsAdmin: true, Text: ".kas list"}, want: "❌ *Perintah Salah*"},
		{name: "uninitialized group", in: Input{IsFromGroup: true, GroupID: "G9", Text: ".kas list"}, want: "❌ *Grup Belum Diinisialisasi*"},
		{name: "cek unregistered sender", in: student("62877", "L7", ".kas cek"), want: "❌ *Mahasiswa Tidak Ditemukan*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := env.do(t, tt.in)
			assert.True(t, strings.HasPrefix(reply, tt.want), reply)
		})
	}

	// Text mentions resolve by phone when the transport sends none.
	reply := env.do(t, admin(".kas kurang @62811 4000"))
	assert.Contains(t, reply, "💳 *Saldo Sekarang:* -Rp 4.000")

	reply = env.do(t, admin(".kas list"))
	assert.Contains(t, reply, "1. ❌ Andi\n   💳 -Rp 4.000")
}

func TestMentionByTrackedUsername(t *testing.T) {
	env := newEnv(t, Options{})
	env.do(t, admin(".initkelas Kelas-3A"))

	andi := student("62811", "uid:62811", ".daftarmhs Andi")
	andi.SenderUsername = "andi_k"
	env.do(t, andi)

	reply := env.do(t, admin(".kas tambah @andi_k 5000", "andi_k"))
	assert.Contains(t, reply, "💰 *Mahasiswa:* Andi")

	// The handle moves to another account; Andi is no longer reachable by it.
	other := student("62877", "uid:62877", ".menu")
	other.SenderUsername = "andi_k"
	env.do(t, other)

	reply = env.do(t, admin(".kas tambah @andi_k 5000", "andi_k"))
	assert.True(t, strings.HasPrefix(reply, "❌ *Mahasiswa Tidak Ditemukan*"), reply)
}

func TestKasHistoryTruncation(t *testing.T) {
	env := newEnv(t, Options{})
	env.do(t, admin(".initkelas Kelas-3A"))
	env.do(t, student("62811", "L1", ".daftarmhs Andi"))
	for i := 0; i < 7; i++ {
		env.do(t, admin(".kas tambah @Andi 1000", "L1"))
	}

	reply := env.do(t, admin(".kas cek @Andi", "L1"))
	assert.Equal(t, 5, strings.Count(reply, "➕ Rp 1.000"))
	assert.Contains(t, reply, "... dan 2 transaksi lainnya")
}

func TestKasEditAndDelete(t *testing.T) {
	env := newEnv(t, Options{})
	env.do(t, admin(".initkelas Kelas-3A"))
	env.do(t, student("62811", "L1", ".daftarmhs Andi"))
	env.do(t, admin(".kas tambah @Andi 50000", "L1"))
	env.do(t, admin(".kas keluar 20000 snack"))

	reply := env.do(t, admin(".kas edit 1 snack ulang tahun"))
	assert.True(t, strings.HasPrefix(reply, "✅ *Pengeluaran Diperbarui*"), reply)
	assert.Contains(t, reply, "📝 *Keterangan Baru:* snack ulang tahun")

	reply = env.do(t, admin(".kas edit 9 apa saja"))
	assert.True(t, strings.HasPrefix(reply, "❌ *Pengeluaran Tidak Ditemukan*"), reply)

	reply = env.do(t, admin(".kas edit x apa saja"))
	assert.True(t, strings.HasPrefix(reply, "❌ *ID Tidak Valid*"), reply)

	reply = env.do(t, student("62811", "L1", ".kas hapus 1"))
	assert.True(t, strings.HasPrefix(reply, "❌ *Akses Ditolak*"), reply)

	reply = env.do(t, admin(".kas hapus 1"))
	assert.True(t, strings.HasPrefix(reply, "✅ *Pengeluaran Dihapus*"), reply)
	assert.Contains(t, reply, "💳 *Sisa Kas Sekarang:* Rp 50.000")

	reply = env.do(t, admin(".kas laporan"))
	assert.Contains(t, reply, "💸 *PENGELUARAN:* Belum ada pengeluaran")
}

func TestTugasCommands(t *testing.T) {
	env := newEnv(t, Options{})
	env.do(t, admin(".initkelas Kelas-3A"))

	reply := env.do(t, admin(`.tugas tambah "Quiz Matematika" "2025-09-13" "Bab 1-3" remind=3,1`))
	require.True(t, strings.HasPrefix(reply, "✅ *Tugas Berhasil Ditambah*"), reply)
	assert.Contains(t, reply, "📅 *Deadline:* Sabtu, 13 September 2025")
	assert.Contains(t, reply, "⏰ *Hari tersisa:* 3 hari")
	assert.Contains(t, reply, "🔔 *Reminder:* 3,1 hari sebelum deadline")
	assert.Contains(t, reply, "🆔 *ID Tugas:* 1")

	reply = env.do(t, admin(".tugas tambah Makalah 2025-10-15 Tulis makalah Pancasila remind=10,5,2"))
	require.True(t, strings.HasPrefix(reply, "✅ *Tugas Berhasil Ditambah*"), reply)
	assert.Contains(t, reply, "📝 *Deskripsi:* Tulis makalah Pancasila")

	rejects := []struct {
		text string
		want string
	}{
		{text: ".tugas tambah Qu 2025-09-20", want: "❌ *Judul Tidak Valid*"},
		{text: ".tugas tambah Quiz 2025-09-09", want: "Tanggal deadline tidak boleh di masa lalu"},
		{text: ".tugas tambah Quiz 20-09-2025", want: "Format tanggal harus YYYY-MM-DD"},
		{text: ".tugas tambah Quiz 2025-02-30", want: "Tanggal tidak valid"},
		{text: ".tugas tambah Quiz 2025-09-20 remind=3,x", want: "❌ *Reminder Tidak Valid*"},
		{text: ".tugas tambah Quiz", want: "❌ *Parameter Kurang*"},
	}
	for _, tt := range rejects {
		t.Run(tt.text, func(t *testing.T) {
			assert.Contains(t, env.do(t, admin(tt.text)), tt.want)
		})
	}

	reply = env.do(t, student("62811", "L1", ".tugas tambah Quiz 2025-09-20"))
	assert.True(t, strings.HasPrefix(reply, "❌ *Akses Ditolak*"), reply)

	reply = env.do(t, student("62811", "L1", ".tugas list"))
	assert.Contains(t, reply, "1. 🟡 *Quiz Matematika*\n   📅 Sabtu, 13 September 2025\n   ⏰ 3 hari lagi\n   🆔 ID: 1")
	assert.Contains(t, reply, "2. 🟢 *Makalah*")

	reply = env.do(t, student("62811", "L1", ".tugas detail 1"))
	assert.Contains(t, reply, "⏰ *Status:* 🟡 Mendesak")
	assert.Contains(t, reply, "⌛ *Hari tersisa:* 3 hari")
	assert.Contains(t, reply, "📝 *Deskripsi:* Bab 1-3")

	reply = env.do(t, student("62811", "L1", ".tugas reminder 1"))
	assert.Contains(t, reply, "📅 H-3: Rabu, 10 September 2025\n📅 H-1: Jumat, 12 September 2025")

	reply = env.do(t, student("62811", "L1", ".tugas detail 99"))
	assert.True(t, strings.HasPrefix(reply, "❌ *Tugas Tidak Ditemukan*"), reply)

	reply = env.do(t, student("62811", "L1", ".tugas detail satu"))
	assert.True(t, strings.HasPrefix(reply, "❌ *ID Tidak Valid*"), reply)

	env.now = env.now.AddDate(0, 0, 5)
	reply = env.do(t, student("62811", "L1", ".tugas list"))
	assert.Contains(t, reply, "1. ❌ *Quiz Matematika*")
	assert.Contains(t, reply, "⏰ Terlewat 2 hari")
}

func TestQuizReminderThroughCommands(t *testing.T) {
	env := newEnv(t, Options{})
	env.do(t, admin(".initkelas Kelas-3A"))
	env.do(t, admin(`.tugas tambah "Quiz" "2025-09-13" "Bab 1-3" remind=3,1`))
	env.reminders.SetNotifier(env.notifier())

	base := env.now
	for offset, want := range []int{1, 0, 1} {
		env.now = base.AddDate(0, 0, offset)
		res, err := env.reminders.CheckAndSend(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, res.Sent, "day +%d", offset)
	}

	require.Len(t, env.outbox, 2)
	assert.Equal(t, "G1", env.outbox[0].destination)
	assert.Contains(t, env.outbox[0].content, "⏰ *Sisa waktu:* 3 hari lagi")
	assert.Contains(t, env.outbox[1].content, "🚨 *PERHATIAN: Deadline besok!*")
}

func TestTestReminderCommand(t *testing.T) {
	env := newEnv(t, Options{})
	env.do(t, admin(".initkelas Kelas-3A"))

	reply := env.do(t, admin(".testreminder"))
	assert.True(t, strings.HasPrefix(reply, "❌ *Reminder System Offline*"), reply)

	require.NoError(t, env.reminders.Start(env.notifier()))
	t.Cleanup(env.reminders.Stop)

	reply = env.do(t, student("62811", "L1", ".testreminder"))
	assert.True(t, strings.HasPrefix(reply, "❌ *Akses Ditolak*"), reply)

	reply = env.do(t, admin(".testreminder"))
	assert.True(t, strings.HasPrefix(reply, "✅ *Test Reminder Completed*"), reply)
	assert.Contains(t, reply, "• Reminder System: ✅ Running")
	assert.Contains(t, reply, "• Timezone: WIB")

	require.Len(t, env.outbox, 1)
	assert.Equal(t, "📝 Belum ada tugas untuk kelas ini.", env.outbox[0].content)
}

func TestDispatch(t *testing.T) {
	t.Run("non commands and unknown commands are ignored", func(t *testing.T) {
		env := newEnv(t, Options{})
		for _, text := range []string{"halo semua", ".", ".matkul", ""} {
			_, handled := env.bot.Handle(context.Background(), admin(text))
			assert.False(t, handled, text)
		}
	})

	t.Run("command names are case insensitive", func(t *testing.T) {
		env := newEnv(t, Options{})
		assert.Contains(t, env.do(t, admin(".PING")), "🏓 *PONG!*")
	})

	t.Run("custom prefix", func(t *testing.T) {
		env := newEnv(t, Options{Prefix: "!"})
		_, handled := env.bot.Handle(context.Background(), admin(".ping"))
		assert.False(t, handled)
		assert.Contains(t, env.do(t, admin("!menu")), "• !ping - Cek status bot")
	})

	t.Run("self mode serves only privileged senders", func(t *testing.T) {
		env := newEnv(t, Options{SelfMode: true})
		_, handled := env.bot.Handle(context.Background(), student("62811", "L1", ".ping"))
		assert.False(t, handled)

		owner := student("62800", "L0", ".ping")
		owner.IsOwner = true
		assert.Contains(t, env.do(t, owner), "PONG")
	})
}

func TestMenuAndPing(t *testing.T) {
	env := newEnv(t, Options{Name: "Bot Kelas V4", Number: "6283832249883"})
	env.do(t, admin(".initkelas Kelas-3A"))
	env.do(t, student("62811", "L1", ".daftarmhs Andi"))

	reply := env.do(t, student("62811", "L1", ".menu"))
	assert.True(t, strings.HasPrefix(reply, "ℹ️ *Menu Bot Kelas*\n\n🤖 *BOT KELAS V4*"), reply)
	assert.Contains(t, reply, "📚 *FITUR KELAS:*")
	assert.NotContains(t, reply, "FITUR ADMIN")
	assert.NotContains(t, reply, "matkul")

	assert.Contains(t, env.do(t, admin(".menu")), "⚙️ *FITUR ADMIN:*")

	private := Input{IsAdmin: true, Text: ".menu"}
	reply = env.do(t, private)
	assert.Contains(t, reply, "📱 *CHAT PRIVATE:*")
	assert.Contains(t, reply, "⚙️ *ADMIN:* Anda memiliki akses admin.")

	env.now = env.now.Add(90 * time.Minute)
	reply = env.do(t, admin(".ping"))
	assert.True(t, strings.HasPrefix(reply, "✅ *System Status*"), reply)
	assert.Contains(t, reply, "  • Kelas: 1\n  • Mahasiswa: 1\n  • Tugas: 0")
	assert.Contains(t, reply, "⏱️ *Uptime:* 1 jam 30 menit 0 detik")
	assert.Contains(t, reply, "🔔 *Reminder System:* ❌ Stopped")
	assert.Contains(t, reply, "📱 *Bot Number:* 6283832249883")
}

func TestCommands(t *testing.T) {
	env := newEnv(t, Options{})
	names := make([]string, 0)
	for _, c := range env.bot.Commands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"daftarmhs", "initkelas", "kas", "menu", "ping", "testreminder", "tugas"}, names)
}
