package main

import (
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/classbot/internal/cli"
	"github.com/Veraticus/classbot/internal/config"
	"github.com/Veraticus/classbot/internal/model"
	"github.com/Veraticus/classbot/internal/storage"
)

func storeCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect and migrate the record store",
		Long: `Show what the record store holds, or copy every collection to another
backend, e.g. from the JSON data directory to an SQLite database.`,
		Example: `  classbot store status

  # Move existing JSON data into SQLite
  classbot store migrate --to sqlite --to-path ~/.local/share/classbot/classbot.db`,
	}

	cmd.AddCommand(storeStatusCmd(o))
	cmd.AddCommand(storeMigrateCmd(o))

	return cmd
}

func storeStatusCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show record counts and schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, o.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatTitle("Record store"))
			fmt.Fprintf(out, "  Driver: %s\n", o.cfg.Storage.Driver)
			if o.cfg.Storage.Driver != storage.DriverMemory {
				fmt.Fprintf(out, "  Path:   %s\n", o.cfg.Storage.Path)
			}

			if sqlite, ok := store.(*storage.SQLiteStore); ok {
				current, err := sqlite.SchemaVersion(ctx)
				if err != nil {
					return fmt.Errorf("failed to read schema version: %w", err)
				}
				fmt.Fprintf(out, "  Schema: v%d (latest v%d)\n", current, storage.ExpectedSchemaVersion)
			}
			fmt.Fprintln(out)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join([]string{
				cli.TableHeaderStyle.Render("COLLECTION"),
				cli.TableHeaderStyle.Render("RECORDS"),
			}, "\t"))
			for _, c := range model.Collections() {
				records, err := store.Read(ctx, c)
				if err != nil {
					fmt.Fprintf(w, "%s\t%s\n", c, cli.ErrorStyle.Render("unreadable: "+err.Error()))
					continue
				}
				fmt.Fprintf(w, "%s\t%d\n", c, len(records))
			}
			return w.Flush()
		},
	}
}

func storeMigrateCmd(o *rootOptions) *cobra.Command {
	var (
		toDriver string
		toPath   string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy every collection to another backend",
		Long: `Copy all collections from the configured store into another one. The source
is left untouched. Point storage.driver and storage.path at the destination
afterwards.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			toPath = config.ExpandPath(toPath)

			if toDriver == o.cfg.Storage.Driver && toPath == o.cfg.Storage.Path {
				return fmt.Errorf("source and destination are the same %s store", toDriver)
			}

			src, err := openStore(ctx, o.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			dst, err := storage.Open(ctx, toDriver, toPath)
			if err != nil {
				return fmt.Errorf("failed to open destination: %w", err)
			}
			defer func() { _ = dst.Close() }()

			if !force {
				for _, c := range model.Collections() {
					records, err := dst.Read(ctx, c)
					if err != nil {
						return fmt.Errorf("failed to inspect destination: %w", err)
					}
					if len(records) > 0 {
						return fmt.Errorf("destination already holds %s records; use --force to overwrite", c)
					}
				}
			}

			slog.Info("Starting store migration",
				"from", o.cfg.Storage.Driver,
				"to", toDriver,
				"path", toPath)

			out := cmd.OutOrStdout()
			collections := model.Collections()
			bar := cli.NewProgressBar(out, len(collections), "Copying collections...")
			total := 0
			err = storage.Copy(ctx, src, dst, func(c model.Collection, n int) {
				total += n
				bar.Describe(fmt.Sprintf("[cyan][bold]Copied %s (%d)[reset]", c, n))
				_ = bar.Add(1)
			})
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Copied %d records in %d collections to %s", total, len(collections), toPath)))
			return nil
		},
	}

	cmd.Flags().StringVar(&toDriver, "to", storage.DriverSQLite, "destination driver (json, sqlite)")
	cmd.Flags().StringVar(&toPath, "to-path", "", "destination directory (json) or database file (sqlite)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite a destination that already has records")
	_ = cmd.MarkFlagRequired("to-path")

	return cmd
}
