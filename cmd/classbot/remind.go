package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/classbot/internal/cli"
	"github.com/Veraticus/classbot/internal/model"
	"github.com/Veraticus/classbot/internal/service"
	"github.com/Veraticus/classbot/internal/task"
)

func remindCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Inspect and trigger task reminders",
		Long: `Run the reminder scan outside the schedule, preview what is due, or send a
test listing to one group.`,
		Example: `  # See which reminders fire today
  classbot remind due

  # Print today's reminders instead of sending them
  classbot remind run --dry-run

  # Send the upcoming-task listing to a Telegram group
  classbot remind test -- -1001234567890`,
	}

	cmd.AddCommand(remindRunCmd(o))
	cmd.AddCommand(remindDueCmd(o))
	cmd.AddCommand(remindTestCmd(o))

	return cmd
}

// printNotifier writes messages to w instead of delivering them.
func printNotifier(w io.Writer) service.Notifier {
	return service.NotifierFunc(func(_ context.Context, destination, content string) error {
		_, err := fmt.Fprintf(w, "%s %s\n%s\n\n", cli.BellIcon, cli.BoldStyle.Render("→ "+destination), content)
		return err
	})
}

func remindRunCmd(o *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one reminder scan now",
		Long: `Run the same scan the scheduler runs and send every reminder due today.

With --dry-run the reminders are printed and nothing is recorded, so a later
real scan still sends them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dryRun {
				o.cfg.Reminder.Dedupe = false
			}

			a, err := newApp(cmd.Context(), o.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if dryRun {
				a.reminders.SetNotifier(printNotifier(cmd.OutOrStdout()))
			} else {
				transport, err := a.telegram()
				if err != nil {
					return fmt.Errorf("failed to connect to telegram: %w", err)
				}
				a.reminders.SetNotifier(transport)
			}

			res, err := a.reminders.CheckAndSend(cmd.Context())
			if err != nil {
				return fmt.Errorf("reminder scan failed: %w", err)
			}

			summary := fmt.Sprintf("%d due, %d sent, %d already sent today, %d failed",
				res.Matched, res.Sent, res.Skipped, res.Failed)
			if res.Failed > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning(summary))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(summary))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print reminders instead of sending them")

	return cmd
}

func remindDueCmd(o *rootOptions) *cobra.Command {
	var on string

	cmd := &cobra.Command{
		Use:   "due",
		Short: "List reminders due on a day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), o.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			now := time.Now()
			if on != "" {
				day, err := time.ParseInLocation(model.DeadlineLayout, on, a.loc)
				if err != nil {
					return fmt.Errorf("invalid --on date %q: %w", on, err)
				}
				now = day.Add(12 * time.Hour)
			}

			writeDue(cmd.OutOrStdout(), a.tasks.TasksNeedingReminder(cmd.Context(), now))
			return nil
		},
	}

	cmd.Flags().StringVar(&on, "on", "", "day to check, YYYY-MM-DD (default: today)")

	return cmd
}

func writeDue(out io.Writer, due []task.Due) {
	if len(due) == 0 {
		fmt.Fprintln(out, cli.SubtitleStyle.Render("No reminders due."))
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join([]string{
		cli.TableHeaderStyle.Render("ID"),
		cli.TableHeaderStyle.Render("CLASS"),
		cli.TableHeaderStyle.Render("TASK"),
		cli.TableHeaderStyle.Render("DEADLINE"),
		cli.TableHeaderStyle.Render("DAYS LEFT"),
	}, "\t"))
	for _, d := range due {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			d.Task.ID,
			d.Class.Name,
			d.Task.Title,
			d.Task.Deadline,
			task.UrgencyFor(d.DaysLeft).Icon()+" "+fmt.Sprint(d.DaysLeft))
	}
	_ = w.Flush()
}

func remindTestCmd(o *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "test <group-id>",
		Short: "Send the upcoming-task listing to a group",
		Long: `Send every upcoming task of the group's class, whether or not a reminder is
due, the same way the testreminder chat command does.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), o.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if dryRun {
				a.reminders.SetNotifier(printNotifier(cmd.OutOrStdout()))
			} else {
				transport, err := a.telegram()
				if err != nil {
					return fmt.Errorf("failed to connect to telegram: %w", err)
				}
				a.reminders.SetNotifier(transport)
			}

			if err := a.reminders.TestReminder(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("test reminder failed: %w", err)
			}
			if !dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Test reminder sent to "+args[0]))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the listing instead of sending it")

	return cmd
}
