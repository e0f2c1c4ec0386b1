// Package telegram connects the command dispatcher to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Veraticus/classbot/internal/bot"
	"github.com/Veraticus/classbot/internal/common"
	"github.com/Veraticus/classbot/internal/service"
)

// Config holds the transport settings.
type Config struct {
	Token   string
	Owner   string
	Admins  []string
	Debug   bool
	Timeout int
}

// api is the part of *tgbotapi.BotAPI the transport uses.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChatAdministrators(config tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error)
}

// Dispatcher handles one normalized message.
type Dispatcher interface {
	Handle(ctx context.Context, in bot.Input) (string, bool)
	Prefix() string
}

// Transport receives updates, feeds them to a Dispatcher and delivers
// replies and reminders.
type Transport struct {
	api      api
	botAPI   *tgbotapi.BotAPI
	dispatch Dispatcher
	self     tgbotapi.User
	owner    string
	admins   map[string]bool
	timeout  int
	retry    service.RetryOptions
}

// New logs in with cfg.Token.
func New(cfg Config, dispatch Dispatcher) (*Transport, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: telegram token", common.ErrMissingConfig)
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	botAPI.Debug = cfg.Debug

	t := newTransport(botAPI, botAPI.Self, cfg, dispatch)
	t.botAPI = botAPI
	return t, nil
}

func newTransport(a api, self tgbotapi.User, cfg Config, dispatch Dispatcher) *Transport {
	admins := make(map[string]bool, len(cfg.Admins))
	for _, id := range cfg.Admins {
		admins[strings.TrimSpace(id)] = true
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60
	}
	return &Transport{
		api:      a,
		dispatch: dispatch,
		self:     self,
		owner:    strings.TrimSpace(cfg.Owner),
		admins:   admins,
		timeout:  timeout,
		retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2,
		},
	}
}

// Username returns the bot account's username.
func (t *Transport) Username() string { return t.self.UserName }

// Run polls for updates until ctx is cancelled.
func (t *Transport) Run(ctx context.Context) error {
	if t.botAPI == nil {
		return fmt.Errorf("%w: transport not logged in", common.ErrInvalidConfig)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.timeout
	updates := t.botAPI.GetUpdatesChan(u)
	defer t.botAPI.StopReceivingUpdates()

	slog.Info("Telegram transport started", "username", t.self.UserName)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Telegram transport stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			t.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate dispatches one update and sends the reply, if any.
func (t *Transport) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	in, ok := t.toInput(ctx, upd.Message)
	if !ok {
		return
	}

	reply, handled := t.dispatch.Handle(ctx, in)
	if !handled || reply == "" {
		return
	}
	if err := t.reply(upd.Message.Chat.ID, reply); err != nil {
		common.LogError(ctx, err, "Failed to send reply", common.Fields{
			"chat": upd.Message.Chat.ID,
		})
	}
}

// Send delivers content to the chat whose numeric id is destination.
func (t *Transport) Send(ctx context.Context, destination, content string) error {
	chatID, err := strconv.ParseInt(destination, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid chat id %q", common.ErrTransport, destination)
	}

	err = common.WithRetry(ctx, func() error {
		return t.reply(chatID, content)
	}, t.retry)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrTransport, err)
	}
	return nil
}

// reply sends text as Markdown and falls back to plain text when Telegram
// rejects the markup.
func (t *Transport) reply(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := t.api.Send(msg)
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.RetryAfter > 0:
			return common.RetryAfter(err, time.Duration(apiErr.RetryAfter)*time.Second)
		case apiErr.Code == 400:
			plain := tgbotapi.NewMessage(chatID, text)
			if _, err := t.api.Send(plain); err != nil {
				return common.Permanent(err)
			}
			return nil
		case apiErr.Code == 403:
			return common.Permanent(err)
		}
	}
	return common.RetryAfter(err, 0)
}

// toInput normalizes a Telegram message. Messages without text or sender
// are dropped.
func (t *Transport) toInput(ctx context.Context, msg *tgbotapi.Message) (bot.Input, bool) {
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return bot.Input{}, false
	}

	senderID := strconv.FormatInt(msg.From.ID, 10)
	in := bot.Input{
		SenderID:       senderID,
		SenderPhone:    senderID,
		SenderLID:      LID(msg.From),
		SenderName:     displayName(msg.From),
		SenderUsername: msg.From.UserName,
		Text:           t.normalizeCommand(msg.Text),
		Mentions:       Mentions(msg.Text, msg.Entities),
		IsFromGroup:    msg.Chat.IsGroup() || msg.Chat.IsSuperGroup(),
		FromSelf:       msg.From.ID == t.self.ID,
		IsOwner:        t.owner != "" && (t.owner == senderID || strings.EqualFold(t.owner, msg.From.UserName)),
	}
	if in.IsFromGroup {
		in.GroupID = strconv.FormatInt(msg.Chat.ID, 10)
	}

	in.IsAdmin = t.admins[senderID] || (msg.From.UserName != "" && t.admins[msg.From.UserName])
	if !in.IsAdmin && in.IsFromGroup && strings.HasPrefix(in.Text, t.dispatch.Prefix()) {
		in.IsAdmin = t.isGroupAdmin(ctx, msg.Chat.ID, msg.From.ID)
	}
	return in, true
}

func (t *Transport) isGroupAdmin(ctx context.Context, chatID, userID int64) bool {
	members, err := t.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		common.LogError(ctx, err, "Failed to fetch group administrators", common.Fields{"chat": chatID})
		return false
	}
	for _, m := range members {
		if m.User != nil && m.User.ID == userID {
			return true
		}
	}
	return false
}

// normalizeCommand rewrites "/cmd@thisbot args" to "<prefix>cmd args".
// Commands addressed to another bot are left untouched so the dispatcher
// ignores them.
func (t *Transport) normalizeCommand(text string) string {
	if !strings.HasPrefix(text, "/") {
		return text
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	name, target, addressed := strings.Cut(head, "@")
	if addressed && !strings.EqualFold(target, t.self.UserName) {
		return text
	}
	if rest != "" {
		return t.dispatch.Prefix() + name + " " + rest
	}
	return t.dispatch.Prefix() + name
}

// LID is the stable identifier a student registers with. Usernames can be
// changed and reclaimed, so only the numeric user id is used.
func LID(u *tgbotapi.User) string {
	return "uid:" + strconv.FormatInt(u.ID, 10)
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.UserName
	}
	return name
}

// Mentions extracts the mentioned users from entities. Username mentions
// yield the username without "@", which the roster matches against
// recorded handles; text mentions yield the user's LID and numeric id. Entity offsets count UTF-16 code units.
func Mentions(text string, entities []tgbotapi.MessageEntity) []string {
	if len(entities) == 0 {
		return nil
	}
	units := utf16.Encode([]rune(text))

	var out []string
	for _, e := range entities {
		switch e.Type {
		case "mention":
			if e.Offset < 0 || e.Offset+e.Length > len(units) {
				continue
			}
			name := string(utf16.Decode(units[e.Offset : e.Offset+e.Length]))
			out = append(out, strings.TrimPrefix(name, "@"))
		case "text_mention":
			if e.User == nil {
				continue
			}
			out = append(out, LID(e.User), strconv.FormatInt(e.User.ID, 10))
		}
	}
	return out
}
