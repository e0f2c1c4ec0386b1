package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/classbot/internal/format"
	"github.com/Veraticus/classbot/internal/ledger"
	"github.com/Veraticus/classbot/internal/model"
)

const recentCount = 5

const kasUsage = "📖 *Cara Penggunaan Kas:*\n\n" +
	"👥 *MAHASISWA:*\n" +
	"🔹 *{p}kas cek* - Cek kas sendiri\n" +
	"🔹 *{p}kas cek @nomor* - Cek kas mahasiswa lain\n" +
	"🔹 *{p}kas list* - Lihat kas seluruh kelas\n" +
	"🔹 *{p}kas laporan* - Laporan kas lengkap\n\n" +
	"⚙️ *ADMIN:*\n" +
	"🔹 *{p}kas tambah @nomor jumlah* - Tambah kas mahasiswa\n" +
	"🔹 *{p}kas kurang @nomor jumlah* - Kurangi kas mahasiswa\n" +
	"🔹 *{p}kas keluar jumlah keterangan* - Pengeluaran kas kelas\n" +
	"🔹 *{p}kas edit id keterangan* - Ubah keterangan pengeluaran\n" +
	"🔹 *{p}kas hapus id* - Hapus pengeluaran\n\n" +
	"*Contoh:*\n" +
	"• {p}kas tambah @6281234567890 25000\n" +
	"• {p}kas kurang @6281234567890 5000\n" +
	"• {p}kas keluar 50000 Beli snack ulang tahun\n" +
	"• {p}kas cek @6281234567890"

const studentNotFound = "Mahasiswa yang di-mention tidak terdaftar di kelas ini.\n\n" +
	"Pastikan:\n" +
	"• Mahasiswa sudah mendaftar dengan {p}daftarmhs\n" +
	"• Anda mention dengan benar (@nama)"

func (b *Bot) handleKas(ctx context.Context, req *request) (string, error) {
	if !req.in.IsFromGroup {
		return fail("Perintah Salah", "Command ini hanya bisa digunakan di grup kelas.")
	}
	class, ok := b.roster.ClassByGroup(ctx, req.in.GroupID)
	if !ok {
		return fail("Grup Belum Diinisialisasi", "Grup ini belum diinisialisasi sebagai kelas.")
	}
	if len(req.args) < 1 {
		return fail("Parameter Kurang", b.p(kasUsage))
	}

	sub, args := strings.ToLower(req.args[0]), req.args[1:]
	switch sub {
	case "tambah":
		return b.kasAdjust(ctx, req, class, args, 1)
	case "kurang":
		return b.kasAdjust(ctx, req, class, args, -1)
	case "keluar", "pengeluaran":
		return b.kasExpense(ctx, req, class, args)
	case "edit":
		return b.kasEdit(ctx, req, class, args)
	case "hapus":
		return b.kasDelete(ctx, req, class, args)
	case "cek":
		return b.kasCheck(ctx, req, class, args)
	case "list":
		return b.kasList(ctx, class)
	case "laporan":
		return b.kasReport(ctx, class)
	default:
		return fail("Subcommand Tidak Valid", b.p(kasUsage))
	}
}

// kasAdjust handles "kas tambah" (sign 1) and "kas kurang" (sign -1).
func (b *Bot) kasAdjust(ctx context.Context, req *request, class *model.Class, args []string, sign int64) (string, error) {
	verb, title, marker, label, example := "menambah", "Kas Berhasil Ditambah", "➕", "Ditambah", "tambah @mahasiswa 25000"
	if sign < 0 {
		verb, title, marker, label, example = "mengurangi", "Kas Berhasil Dikurangi", "➖", "Dikurangi", "kurang @mahasiswa 5000"
	}

	if !req.in.privileged() {
		return accessDenied(fmt.Sprintf("Hanya admin yang dapat %s kas mahasiswa.", verb))
	}
	if len(args) < 2 {
		sub := strings.Fields(example)[0]
		return fail("Parameter Kurang", b.p(fmt.Sprintf("Format: {p}kas %s @mahasiswa jumlah\nContoh: {p}kas %s\n\n", sub, example)+
			"Cara mention: ketik @ lalu pilih kontak mahasiswa dari daftar."))
	}

	amount, ok := parseAmountArgs(args[1])
	if !ok {
		return fail("Jumlah Tidak Valid", "Jumlah kas harus berupa angka positif.")
	}

	student, ok := b.roster.FindByMention(ctx, class.ID, mentionsOf(req))
	if !ok {
		return fail("Mahasiswa Tidak Ditemukan", b.p(studentNotFound))
	}

	if _, err := b.ledger.AddCashRecord(ctx, student.ID, sign*amount.Amount); err != nil {
		return "", err
	}
	balance, err := b.ledger.Balance(ctx, student.ID)
	if err != nil {
		return "", err
	}

	return format.Reply(title,
		fmt.Sprintf("💰 *Mahasiswa:* %s\n", student.Name)+
			fmt.Sprintf("📱 *Nomor:* %s\n", student.PhoneNumber)+
			fmt.Sprintf("🆔 *LID:* %s\n", student.LID)+
			fmt.Sprintf("%s *%s:* %s\n", marker, label, format.Rupiah(amount.Amount))+
			fmt.Sprintf("💳 *Saldo Sekarang:* %s", format.Rupiah(balance)),
		format.Success), nil
}

// mentionsOf falls back to "@digits" tokens in the text when the transport
// delivered no structured mentions.
func mentionsOf(req *request) []string {
	if len(req.in.Mentions) > 0 {
		return req.in.Mentions
	}
	var out []string
	for _, a := range req.args {
		if strings.HasPrefix(a, "@") && len(a) > 1 {
			out = append(out, a)
		}
	}
	return out
}

func (b *Bot) kasExpense(ctx context.Context, req *request, class *model.Class, args []string) (string, error) {
	if !req.in.privileged() {
		return accessDenied("Hanya admin yang dapat mengeluarkan kas kelas.")
	}
	if len(args) < 2 {
		return fail("Parameter Kurang", b.p("Format: {p}kas keluar <jumlah> <keterangan>\n"+
			"Contoh: {p}kas keluar 50000 Beli snack ulang tahun kelas\n\n"+
			"Format alternatif: {p}kas pengeluaran <jumlah> <keterangan>"))
	}

	n, _ := parseAmount(args[0])
	expense := expenseArgs{Amount: n, Description: strings.TrimSpace(strings.Join(args[1:], " "))}
	if err := validate.Struct(expense); err != nil {
		if invalidField(err) == "Description" {
			return fail("Keterangan Tidak Valid", "Keterangan pengeluaran harus minimal 3 karakter.")
		}
		return fail("Jumlah Tidak Valid", "Jumlah pengeluaran harus berupa angka positif.")
	}

	res, err := b.ledger.AddExpense(ctx, class.ID, expense.Amount, expense.Description)
	var shortfall *ledger.ShortfallError
	if errors.As(err, &shortfall) {
		return fail("Saldo Tidak Mencukupi",
			fmt.Sprintf("💰 *Total Kas Mahasiswa:* %s\n", format.Rupiah(shortfall.TotalBalances))+
				fmt.Sprintf("💸 *Total Pengeluaran:* %s\n", format.Rupiah(shortfall.TotalExpenses))+
				fmt.Sprintf("💳 *Sisa Kas:* %s\n\n", format.Rupiah(shortfall.Remaining))+
				fmt.Sprintf("❌ Pengeluaran %s melebihi sisa kas kelas!", format.Rupiah(shortfall.Requested)))
	}
	if err != nil {
		return "", err
	}

	return format.Reply("Pengeluaran Kas Berhasil",
		"💸 *Pengeluaran Kas Kelas*\n\n"+
			fmt.Sprintf("🏫 *Kelas:* %s\n", class.Name)+
			fmt.Sprintf("💰 *Jumlah:* %s\n", format.Rupiah(res.Expense.Amount))+
			fmt.Sprintf("📝 *Keterangan:* %s\n", res.Expense.Description)+
			fmt.Sprintf("📅 *Tanggal:* %s\n", format.ShortDate(res.Expense.CreatedAt.In(b.loc())))+
			fmt.Sprintf("🆔 *ID Pengeluaran:* %d\n\n", res.Expense.ID)+
			fmt.Sprintf("💳 *Sisa Kas Setelah Pengeluaran:* %s", format.Rupiah(res.Remaining)),
		format.Success), nil
}

// classExpense resolves an expense id argument within class.
func (b *Bot) classExpense(ctx context.Context, class *model.Class, arg string) (*model.ClassExpense, string) {
	id, ok := parseIDArgs(arg)
	if !ok {
		return nil, format.Reply("ID Tidak Valid", "ID pengeluaran harus berupa angka.", format.Error)
	}
	expense, found := b.ledger.ExpenseByID(ctx, id.ID)
	if !found || expense.ClassID != class.ID {
		return nil, format.Reply("Pengeluaran Tidak Ditemukan", "Pengeluaran dengan ID tersebut tidak ditemukan di kelas ini.", format.Error)
	}
	return expense, ""
}

func (b *Bot) kasEdit(ctx context.Context, req *request, class *model.Class, args []string) (string, error) {
	if !req.in.privileged() {
		return accessDenied("Hanya admin yang dapat mengubah pengeluaran kas kelas.")
	}
	if len(args) < 2 {
		return fail("Parameter Kurang", b.p("Format: {p}kas edit <id> <keterangan>\nContoh: {p}kas edit 3 Beli snack dan minuman"))
	}
	expense, reply := b.classExpense(ctx, class, args[0])
	if expense == nil {
		return reply, nil
	}

	description := strings.TrimSpace(strings.Join(args[1:], " "))
	if err := validate.Var(description, "min=3"); err != nil {
		return fail("Keterangan Tidak Valid", "Keterangan pengeluaran harus minimal 3 karakter.")
	}

	found, err := b.ledger.EditExpenseDescription(ctx, expense.ID, description)
	if err != nil {
		return "", err
	}
	if !found {
		return fail("Pengeluaran Tidak Ditemukan", "Pengeluaran dengan ID tersebut tidak ditemukan di kelas ini.")
	}

	return format.Reply("Pengeluaran Diperbarui",
		fmt.Sprintf("🆔 *ID:* %d\n", expense.ID)+
			fmt.Sprintf("💰 *Jumlah:* %s\n", format.Rupiah(expense.Amount))+
			fmt.Sprintf("📝 *Keterangan Lama:* %s\n", expense.Description)+
			fmt.Sprintf("📝 *Keterangan Baru:* %s", description),
		format.Success), nil
}

func (b *Bot) kasDelete(ctx context.Context, req *request, class *model.Class, args []string) (string, error) {
	if !req.in.privileged() {
		return accessDenied("Hanya admin yang dapat menghapus pengeluaran kas kelas.")
	}
	if len(args) < 1 {
		return fail("Parameter Kurang", b.p("Format: {p}kas hapus <id>\nContoh: {p}kas hapus 3"))
	}
	expense, reply := b.classExpense(ctx, class, args[0])
	if expense == nil {
		return reply, nil
	}

	found, err := b.ledger.DeleteExpense(ctx, expense.ID)
	if err != nil {
		return "", err
	}
	if !found {
		return fail("Pengeluaran Tidak Ditemukan", "Pengeluaran dengan ID tersebut tidak ditemukan di kelas ini.")
	}

	summary, err := b.ledger.Summary(ctx, class.ID)
	if err != nil {
		return "", err
	}
	return format.Reply("Pengeluaran Dihapus",
		fmt.Sprintf("🆔 *ID:* %d\n", expense.ID)+
			fmt.Sprintf("💰 *Jumlah:* %s\n", format.Rupiah(expense.Amount))+
			fmt.Sprintf("📝 *Keterangan:* %s\n\n", expense.Description)+
			fmt.Sprintf("💳 *Sisa Kas Sekarang:* %s", format.Rupiah(summary.Remaining)),
		format.Success), nil
}

func (b *Bot) kasCheck(ctx context.Context, req *request, class *model.Class, args []string) (string, error) {
	var student *model.Student
	if len(args) > 0 {
		student, _ = b.roster.FindByMention(ctx, class.ID, mentionsOf(req))
	}
	if student == nil {
		self, ok := b.roster.StudentByPhone(ctx, req.in.SenderPhone)
		if !ok || self.ClassID != class.ID {
			return fail("Mahasiswa Tidak Ditemukan", b.p("Anda belum terdaftar sebagai mahasiswa di kelas ini.\n\n"+
				"Silakan daftar terlebih dahulu dengan:\n*{p}daftarmhs [Nama Lengkap]*"))
		}
		student = self
	}

	records := b.ledger.StudentRecords(ctx, student.ID)
	balance, err := b.ledger.Balance(ctx, student.ID)
	if err != nil {
		return "", err
	}

	var msg strings.Builder
	msg.WriteString("💰 *Info Kas Mahasiswa*\n\n")
	fmt.Fprintf(&msg, "👤 *Nama:* %s\n", student.Name)
	fmt.Fprintf(&msg, "📱 *Nomor:* %s\n", student.PhoneNumber)
	fmt.Fprintf(&msg, "🆔 *LID:* %s\n", student.LID)
	fmt.Fprintf(&msg, "💳 *Saldo:* %s\n\n", format.Rupiah(balance))

	if len(records) == 0 {
		msg.WriteString("📝 *Riwayat Transaksi:* Belum ada transaksi")
	} else {
		msg.WriteString("📝 *Riwayat Transaksi:*\n")
		recent := records
		if len(recent) > recentCount {
			recent = recent[len(recent)-recentCount:]
		}
		for _, r := range recent {
			marker, amount := "➕", r.Amount
			if !r.IsDeposit() {
				marker, amount = "➖", -r.Amount
			}
			fmt.Fprintf(&msg, "%s %s - %s\n", marker, format.Rupiah(amount), format.ShortDate(r.CreatedAt.In(b.loc())))
		}
		if len(records) > recentCount {
			fmt.Fprintf(&msg, "\n... dan %d transaksi lainnya", len(records)-recentCount)
		}
	}

	return format.Reply("Info Kas", msg.String(), format.Info), nil
}

func statusIcon(balance int64) string {
	if balance >= 0 {
		return "✅"
	}
	return "❌"
}

func (b *Bot) kasList(ctx context.Context, class *model.Class) (string, error) {
	report, err := b.ledger.Report(ctx, *class)
	if err != nil {
		return "", err
	}
	if len(report.Entries) == 0 {
		return format.Reply("Kas Kelas Kosong", "Belum ada mahasiswa yang terdaftar di kelas ini.", format.Info), nil
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "💰 *Kas Kelas %s*\n\n", class.Name)
	for i, e := range report.Entries {
		fmt.Fprintf(&msg, "%d. %s %s\n", i+1, statusIcon(e.Balance), e.Student.Name)
		fmt.Fprintf(&msg, "   💳 %s\n\n", format.Rupiah(e.Balance))
	}
	fmt.Fprintf(&msg, "💰 *Total Kas Mahasiswa:* %s\n", format.Rupiah(report.Summary.TotalBalances))
	fmt.Fprintf(&msg, "💸 *Total Pengeluaran:* %s\n", format.Rupiah(report.Summary.TotalExpenses))
	fmt.Fprintf(&msg, "💵 *Sisa Kas Kelas:* %s\n\n", format.Rupiah(report.Summary.Remaining))
	msg.WriteString(b.p("💡 *Tips:* Gunakan *{p}kas laporan* untuk melihat detail lengkap"))

	return format.Reply("Daftar Kas Kelas", msg.String(), format.Info), nil
}

func (b *Bot) kasReport(ctx context.Context, class *model.Class) (string, error) {
	report, err := b.ledger.Report(ctx, *class)
	if err != nil {
		return "", err
	}
	if len(report.Entries) == 0 {
		return format.Reply("Kas Kelas Kosong", "Belum ada mahasiswa yang terdaftar di kelas ini.", format.Info), nil
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "📊 *Laporan Kas Kelas %s*\n\n", class.Name)
	msg.WriteString("💰 *RINGKASAN KAS:*\n")
	fmt.Fprintf(&msg, "💳 Total Kas Mahasiswa: %s\n", format.Rupiah(report.Summary.TotalBalances))
	fmt.Fprintf(&msg, "💸 Total Pengeluaran: %s\n", format.Rupiah(report.Summary.TotalExpenses))
	fmt.Fprintf(&msg, "💵 Sisa Kas: %s\n\n", format.Rupiah(report.Summary.Remaining))

	if len(report.Expenses) > 0 {
		msg.WriteString("💸 *PENGELUARAN TERBARU:*\n")
		for i, x := range report.RecentExpenses(recentCount) {
			fmt.Fprintf(&msg, "%d. %s\n", i+1, format.Rupiah(x.Amount))
			fmt.Fprintf(&msg, "   📝 %s\n", x.Description)
			fmt.Fprintf(&msg, "   📅 %s\n", format.ShortDate(x.CreatedAt.In(b.loc())))
			fmt.Fprintf(&msg, "   🆔 ID: %d\n\n", x.ID)
		}
		if len(report.Expenses) > recentCount {
			fmt.Fprintf(&msg, "... dan %d pengeluaran lainnya\n\n", len(report.Expenses)-recentCount)
		}
	} else {
		msg.WriteString("💸 *PENGELUARAN:* Belum ada pengeluaran\n\n")
	}

	msg.WriteString("👥 *STATUS KAS MAHASISWA:*\n")
	for i, e := range report.Entries {
		fmt.Fprintf(&msg, "%d. %s %s: %s\n", i+1, statusIcon(e.Balance), e.Student.Name, format.Rupiah(e.Balance))
	}

	return format.Reply("Laporan Kas Kelas", strings.TrimRight(msg.String(), "\n"), format.Info), nil
}
