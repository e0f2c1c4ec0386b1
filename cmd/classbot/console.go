package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/classbot/internal/common"
	"github.com/Veraticus/classbot/internal/console"
	"github.com/Veraticus/classbot/internal/storage"
)

func consoleCmd(o *rootOptions) *cobra.Command {
	var (
		session console.Session
		private bool
		memory  bool
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Chat with the bot in the terminal",
		Long: `Start an interactive terminal chat that plays the part of a messaging
group. Every line is dispatched exactly as a chat message would be, and
reminders fire into the same window.

Inside the console, ":sebagai", ":admin", ":grup" and ":pribadi" change who is
talking and where.`,
		Example: `  # Try the bot without touching real data
  classbot console --memory

  # Talk as a regular student in group "kelas-3a"
  classbot console --group kelas-3a --admin=false --phone 6281234567890 --name Andi`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if memory {
				o.cfg.Storage.Driver = storage.DriverMemory
			}

			// The alt screen owns the terminal, so logs go to a file or nowhere.
			var logOut io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
				if err != nil {
					return fmt.Errorf("failed to open log file: %w", err)
				}
				defer func() { _ = f.Close() }()
				logOut = f
			}
			if err := common.SetupLogger(logOut, o.cfg.Logging.Level, o.cfg.Logging.Format); err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, o.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			notifier := &console.Notifier{}
			if err := a.reminders.Start(notifier); err != nil {
				return fmt.Errorf("failed to start reminders: %w", err)
			}

			session.InGroup = !private
			if session.LID == "" {
				session.LID = session.Phone + "@lid"
			}
			return console.Run(ctx, a.bot, session, notifier)
		},
	}

	cmd.Flags().StringVar(&session.Phone, "phone", "6281200000001", "sender phone number")
	cmd.Flags().StringVar(&session.LID, "lid", "", "sender LID (default: <phone>@lid)")
	cmd.Flags().StringVar(&session.Name, "name", "Konsol", "sender display name")
	cmd.Flags().StringVar(&session.GroupID, "group", "console-group", "group the console speaks in")
	cmd.Flags().BoolVar(&session.Admin, "admin", true, "send as a group admin")
	cmd.Flags().BoolVar(&private, "private", false, "start in a private chat instead of the group")
	cmd.Flags().BoolVar(&memory, "memory", false, "use a throwaway in-memory store")
	cmd.Flags().StringVar(&logFile, "log-file", "", "append logs to this file")

	return cmd
}
