package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/classbot/internal/cli"
	"github.com/Veraticus/classbot/internal/config"
	"github.com/Veraticus/classbot/internal/model"
	"github.com/Veraticus/classbot/internal/sheets"
)

// newReportWriter is replaced in tests.
var newReportWriter = func(ctx context.Context, cfg *config.Config) (sheets.ReportWriter, error) {
	wc, err := cfg.WriterConfig()
	if err != nil {
		return nil, err
	}
	return sheets.NewWriter(ctx, *wc, slog.Default())
}

func exportCmd(o *rootOptions) *cobra.Command {
	var groupID string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export class cash reports to Google Sheets",
		Long: `Write each class's cash report (student balances, expenses and totals) to
its own tab of a Google spreadsheet.

Authenticate with a service account (sheets.service_account_path) or with
OAuth: set sheets.client_id and sheets.client_secret and run "classbot export auth" once.`,
		Example: `  # One-time OAuth consent
  classbot export auth

  # Export every class
  classbot export

  # Export one group's class
  classbot export --group -1001234567890`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, o.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var classes []model.Class
			if groupID != "" {
				class, ok := a.roster.ClassByGroup(ctx, groupID)
				if !ok {
					return fmt.Errorf("no class is registered for group %s", groupID)
				}
				classes = []model.Class{*class}
			} else {
				classes = a.roster.AllClasses(ctx)
			}
			if len(classes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtitleStyle.Render("No classes to export."))
				return nil
			}

			writer, err := newReportWriter(ctx, o.cfg)
			if err != nil {
				return fmt.Errorf("failed to create sheets writer: %w", err)
			}

			var spreadsheetID string
			for _, class := range classes {
				report, err := a.ledger.Report(ctx, class)
				if err != nil {
					return fmt.Errorf("failed to build report for %s: %w", class.Name, err)
				}
				spreadsheetID, err = writer.Write(ctx, report)
				if err != nil {
					return fmt.Errorf("failed to export %s: %w", class.Name, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Exported "+class.Name+" to tab "+sheets.TabName(class.Name)))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s https://docs.google.com/spreadsheets/d/%s\n", cli.SheetIcon, spreadsheetID)
			return nil
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "", "export only the class of this group")
	cmd.AddCommand(exportAuthCmd(o))

	return cmd
}

func exportAuthCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize Google Sheets access with OAuth",
		Long: `Open the Google consent screen and save the resulting token to
sheets.token_file. Later exports pick up its refresh token automatically.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			oc := o.cfg.OAuth2Config()
			if oc.ClientID == "" || oc.ClientSecret == "" {
				return fmt.Errorf("sheets.client_id and sheets.client_secret must be set")
			}

			if _, err := sheets.GetOrCreateToken(cmd.Context(), oc); err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Google Sheets token saved to "+oc.TokenFile))
			return nil
		},
	}
}
