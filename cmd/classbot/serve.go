package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/classbot/internal/cli"
)

func serveCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot on Telegram",
		Long: `Connect to Telegram with telegram.token, answer commands and post task
reminders on the configured schedules until interrupted.`,
		Example: `  CLASSBOT_TELEGRAM_TOKEN=123:abc classbot serve
  classbot serve --storage-driver sqlite --storage-path ~/.local/share/classbot/classbot.db`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cli.NewInterruptHandler(cmd.ErrOrStderr()).HandleInterrupts(cmd.Context(), "the reminder scheduler")

			a, err := newApp(ctx, o.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			transport, err := a.telegram()
			if err != nil {
				return fmt.Errorf("failed to connect to telegram: %w", err)
			}

			if err := a.reminders.Start(transport); err != nil {
				return fmt.Errorf("failed to start reminders: %w", err)
			}

			slog.Info("classbot serving",
				"bot", "@"+transport.Username(),
				"name", o.cfg.Bot.Name,
				"prefix", o.cfg.Bot.Prefix,
				"storage", o.cfg.Storage.Driver,
				"self_mode", o.cfg.Bot.SelfMode)

			return transport.Run(ctx)
		},
	}
}
