package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/classbot/internal/bot"
	"github.com/Veraticus/classbot/internal/config"
	"github.com/Veraticus/classbot/internal/ledger"
	"github.com/Veraticus/classbot/internal/reminder"
	"github.com/Veraticus/classbot/internal/roster"
	"github.com/Veraticus/classbot/internal/service"
	"github.com/Veraticus/classbot/internal/storage"
	"github.com/Veraticus/classbot/internal/task"
	"github.com/Veraticus/classbot/internal/telegram"
)

// app wires the domain services around one record store.
type app struct {
	cfg       *config.Config
	store     service.RecordStore
	roster    *roster.Roster
	ledger    *ledger.Engine
	tasks     *task.Registry
	reminders *reminder.Scheduler
	bot       *bot.Bot
	loc       *time.Location
}

// openStore opens the configured record store.
func openStore(ctx context.Context, cfg *config.Config) (service.RecordStore, error) {
	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Driver, err)
	}
	slog.Debug("record store opened", "driver", cfg.Storage.Driver, "path", cfg.Storage.Path)
	return store, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		store:  store,
		loc:    loc,
		roster: roster.New(store, time.Now),
		ledger: ledger.NewEngine(store, time.Now),
		tasks:  task.NewRegistry(store, loc, time.Now),
	}
	a.reminders = reminder.New(store, a.tasks, a.roster, cfg.ReminderOptions(), time.Now)
	a.bot = bot.New(bot.Deps{
		Roster:    a.roster,
		Ledger:    a.ledger,
		Tasks:     a.tasks,
		Reminders: a.reminders,
	}, cfg.BotOptions(), time.Now)

	return a, nil
}

// telegram logs in to the Bot API with the configured token.
func (a *app) telegram() (*telegram.Transport, error) {
	return telegram.New(telegram.Config{
		Token:   a.cfg.Telegram.Token,
		Owner:   a.cfg.Bot.Owner,
		Admins:  a.cfg.Bot.Admins,
		Debug:   a.cfg.Telegram.Debug,
		Timeout: a.cfg.Telegram.Timeout,
	}, a.bot)
}

func (a *app) Close() error {
	if a.reminders.Running() {
		a.reminders.Stop()
	}
	return a.store.Close()
}
