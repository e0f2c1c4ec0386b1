// Package bot turns chat messages into roster, ledger and task operations
// and renders the Indonesian replies.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/classbot/internal/common"
	"github.com/Veraticus/classbot/internal/format"
	"github.com/Veraticus/classbot/internal/ledger"
	"github.com/Veraticus/classbot/internal/reminder"
	"github.com/Veraticus/classbot/internal/roster"
	"github.com/Veraticus/classbot/internal/service"
	"github.com/Veraticus/classbot/internal/task"
)

// Input is one incoming chat message, already normalized by a transport.
type Input struct {
	SenderID    string
	SenderPhone string
	SenderLID   string
	SenderName  string
	// SenderUsername is the sender's current chat handle, if any.
	SenderUsername string
	GroupID        string
	Text        string
	Mentions    []string
	IsAdmin     bool
	IsOwner     bool
	IsFromGroup bool
	FromSelf    bool
}

func (in Input) privileged() bool {
	return in.IsAdmin || in.IsOwner || in.FromSelf
}

// Options configures the dispatcher.
type Options struct {
	Name     string
	Number   string
	Prefix   string
	SelfMode bool
}

// Deps are the domain services commands operate on.
type Deps struct {
	Roster    *roster.Roster
	Ledger    *ledger.Engine
	Tasks     *task.Registry
	Reminders *reminder.Scheduler
}

type handlerFunc func(ctx context.Context, req *request) (string, error)

type command struct {
	handle      handlerFunc
	name        string
	description string
}

// request carries one parsed command through its handler.
type request struct {
	in   Input
	name string
	args []string
}

// Bot dispatches prefixed commands to handlers.
type Bot struct {
	roster    *roster.Roster
	ledger    *ledger.Engine
	tasks     *task.Registry
	reminders *reminder.Scheduler
	commands  map[string]command
	now       service.Clock
	startedAt time.Time
	usage     *strings.Replacer
	opts      Options
}

// New creates a dispatcher with the full command table.
func New(deps Deps, opts Options, now service.Clock) *Bot {
	if opts.Prefix == "" {
		opts.Prefix = "."
	}
	if opts.Name == "" {
		opts.Name = "Bot Kelas"
	}
	if now == nil {
		now = time.Now
	}

	b := &Bot{
		roster:    deps.Roster,
		ledger:    deps.Ledger,
		tasks:     deps.Tasks,
		reminders: deps.Reminders,
		now:       now,
		startedAt: now(),
		usage:     strings.NewReplacer("{p}", opts.Prefix),
		opts:      opts,
	}

	b.commands = make(map[string]command)
	for _, c := range []command{
		{name: "initkelas", description: "Inisialisasi grup sebagai kelas (Admin only)", handle: b.handleInitKelas},
		{name: "daftarmhs", description: "Daftarkan diri sebagai mahasiswa dalam kelas", handle: b.handleDaftarMhs},
		{name: "kas", description: "Manajemen kas kelas", handle: b.handleKas},
		{name: "tugas", description: "Manajemen tugas kelas", handle: b.handleTugas},
		{name: "testreminder", description: "Test sistem reminder tugas (Admin only)", handle: b.handleTestReminder},
		{name: "menu", description: "Tampilkan menu utama bot", handle: b.handleMenu},
		{name: "ping", description: "Cek status bot dan sistem", handle: b.handlePing},
	} {
		b.commands[c.name] = c
	}
	return b
}

// Prefix returns the command prefix.
func (b *Bot) Prefix() string { return b.opts.Prefix }

// CommandInfo describes one registered command.
type CommandInfo struct {
	Name        string
	Description string
}

// Commands lists the registered commands sorted by name.
func (b *Bot) Commands() []CommandInfo {
	out := make([]CommandInfo, 0, len(b.commands))
	for _, c := range b.commands {
		out = append(out, CommandInfo{Name: c.name, Description: c.description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Handle runs the command in in.Text and returns the reply. handled is
// false for messages that are not commands, unknown commands and senders
// filtered by self mode.
func (b *Bot) Handle(ctx context.Context, in Input) (reply string, handled bool) {
	if b.opts.SelfMode && !in.privileged() {
		return "", false
	}

	text := strings.TrimSpace(in.Text)
	if !strings.HasPrefix(text, b.opts.Prefix) {
		return "", false
	}

	fields := strings.Fields(strings.TrimPrefix(text, b.opts.Prefix))
	if len(fields) == 0 {
		return "", false
	}
	name := strings.ToLower(fields[0])
	cmd, ok := b.commands[name]
	if !ok {
		return "", false
	}

	req := &request{in: in, name: name, args: fields[1:]}
	slog.Debug("handling command", "command", name, "sender", in.SenderID, "group", in.GroupID)
	reply = b.run(ctx, cmd, req)
	b.trackUsername(ctx, in)
	return reply, true
}

// trackUsername keeps the sender's mention handle current. A failure only
// costs mention lookups, so it is logged and ignored.
func (b *Bot) trackUsername(ctx context.Context, in Input) {
	if in.SenderUsername == "" {
		return
	}
	if _, err := b.roster.SetUsername(ctx, in.SenderPhone, in.SenderUsername); err != nil {
		common.LogError(ctx, err, "failed to record username", common.Fields{"sender": in.SenderID})
	}
}

func (b *Bot) run(ctx context.Context, cmd command, req *request) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("command panicked", "command", cmd.name, "panic", fmt.Sprint(r))
			reply = systemError()
		}
	}()

	reply, err := cmd.handle(ctx, req)
	if msg, ok := common.UserMessage(err); ok {
		return format.Reply("Permintaan Tidak Valid", msg, format.Error)
	}
	if err != nil {
		slog.Error("command failed", "command", cmd.name, "sender", req.in.SenderID, "error", err)
		return systemError()
	}
	return reply
}

func systemError() string {
	return format.Reply("Error Sistem", "Terjadi kesalahan sistem. Silakan coba lagi.", format.Error)
}

func fail(title, content string) (string, error) {
	return format.Reply(title, content, format.Error), nil
}

func accessDenied(content string) (string, error) {
	return fail("Akses Ditolak", content)
}

// p substitutes the configured prefix into usage text written with "{p}".
func (b *Bot) p(s string) string {
	return b.usage.Replace(s)
}

func (b *Bot) loc() *time.Location {
	return b.tasks.Location()
}
