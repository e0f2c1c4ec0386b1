package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/classbot/internal/format"
	"github.com/Veraticus/classbot/internal/roster"
)

func (b *Bot) handleInitKelas(ctx context.Context, req *request) (string, error) {
	if !req.in.privileged() {
		return accessDenied("Hanya admin yang dapat menginisialisasi kelas.")
	}
	if !req.in.IsFromGroup {
		return fail("Perintah Salah", "Command ini hanya bisa digunakan di grup.")
	}
	if len(req.args) < 1 {
		return fail("Parameter Kurang", b.p("Command membutuhkan minimal 1 parameter\n\nContoh penggunaan:\n{p}initkelas Kelas-3A"))
	}

	args := nameArgs{Name: strings.Join(req.args, " ")}
	if err := validate.Struct(args); err != nil {
		return fail("Nama Kelas Tidak Valid", "Nama kelas minimal 2 karakter.")
	}

	class, err := b.roster.InitClass(ctx, args.Name, req.in.GroupID)
	if err != nil {
		var conflict *roster.ConflictError
		if errors.As(err, &conflict) {
			return fail("Gagal Menambah Kelas", "Grup ini sudah terdaftar sebagai kelas: "+conflict.Existing)
		}
		return "", err
	}

	return format.Reply("Kelas Berhasil Diinisialisasi",
		fmt.Sprintf("📚 *Nama Kelas:* %s\n", class.Name)+
			fmt.Sprintf("🆔 *ID Kelas:* %d\n", class.ID)+
			fmt.Sprintf("📱 *Group ID:* %s\n", class.GroupID)+
			fmt.Sprintf("📅 *Dibuat:* %s\n\n", format.DateTime(class.CreatedAt.In(b.loc())))+
			"Sekarang mahasiswa dapat mendaftar dengan command:\n"+
			b.p("*{p}daftarmhs [Nama Lengkap]*"),
		format.Success), nil
}

func (b *Bot) handleDaftarMhs(ctx context.Context, req *request) (string, error) {
	if !req.in.IsFromGroup {
		return fail("Perintah Salah", "Command ini hanya bisa digunakan di grup kelas yang sudah diinisialisasi.")
	}
	class, ok := b.roster.ClassByGroup(ctx, req.in.GroupID)
	if !ok {
		return fail("Grup Belum Diinisialisasi", b.p("Grup ini belum diinisialisasi sebagai kelas.\n\n"+
			"Silakan minta admin untuk menjalankan:\n*{p}initkelas <nama_kelas>*"))
	}
	if len(req.args) < 1 {
		return fail("Parameter Kurang", b.p("Command membutuhkan minimal 1 parameter\n\nContoh penggunaan:\n{p}daftarmhs Andi Pratama"))
	}

	args := nameArgs{Name: strings.Join(req.args, " ")}
	if err := validate.Struct(args); err != nil {
		return fail("Nama Tidak Valid", "Nama lengkap minimal 2 karakter.")
	}

	if req.in.SenderPhone == "" || req.in.SenderLID == "" {
		return fail("Error Data Pengirim", "Tidak dapat mengidentifikasi nomor telepon atau ID akun Anda.\n"+
			"Silakan coba lagi atau hubungi admin.")
	}

	if existing, found := b.roster.StudentByPhone(ctx, req.in.SenderPhone); found {
		className := "Unknown"
		if c, ok := b.roster.ClassByID(ctx, existing.ClassID); ok {
			className = c.Name
		}
		return format.Reply("Sudah Terdaftar",
			"Anda sudah terdaftar sebagai mahasiswa.\n\n"+
				fmt.Sprintf("📚 *Kelas:* %s\n", className)+
				fmt.Sprintf("👤 *Nama:* %s\n", existing.Name)+
				fmt.Sprintf("📱 *Nomor:* %s\n", existing.PhoneNumber)+
				fmt.Sprintf("🆔 *LID:* %s", existing.LID),
			format.Warning), nil
	}

	student, err := b.roster.RegisterStudent(ctx, class.ID, req.in.SenderPhone, args.Name, req.in.SenderLID)
	if err != nil {
		var conflict *roster.ConflictError
		if errors.As(err, &conflict) {
			msg := "Nomor telepon sudah terdaftar"
			if conflict.Field == "lid" {
				msg = "LID WhatsApp sudah terdaftar"
			}
			return fail("Gagal Mendaftar", msg)
		}
		return "", err
	}

	return format.Reply("Pendaftaran Berhasil",
		"Selamat! Anda berhasil terdaftar sebagai mahasiswa.\n\n"+
			fmt.Sprintf("📚 *Kelas:* %s\n", class.Name)+
			fmt.Sprintf("👤 *Nama:* %s\n", student.Name)+
			fmt.Sprintf("📱 *Nomor:* %s\n", student.PhoneNumber)+
			fmt.Sprintf("🆔 *LID:* %s\n", student.LID)+
			fmt.Sprintf("📅 *Terdaftar:* %s\n\n", format.DateTime(student.CreatedAt.In(b.loc())))+
			"Sekarang Anda dapat:\n"+
			b.p("• Mengecek kas dengan *{p}kas cek*\n")+
			b.p("• Melihat tugas dengan *{p}tugas list*\n")+
			b.p("• Melihat menu dengan *{p}menu*"),
		format.Success), nil
}
