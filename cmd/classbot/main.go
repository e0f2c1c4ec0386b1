package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/classbot/internal/common"
	"github.com/Veraticus/classbot/internal/config"
)

var version = "dev"

// rootOptions carries the flags and the loaded configuration to every
// subcommand.
type rootOptions struct {
	v       *viper.Viper
	cfg     *config.Config
	cfgFile string
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "classbot",
		Short: "🎓 Class cash and assignment reminder bot",
		Long: `classbot: a chat bot that keeps a class roster, the class cash box ("kas")
and assignment ("tugas") reminders.

Run it on Telegram with "classbot serve", or try the commands locally with
"classbot console".`,
		SilenceUsage:      true,
		PersistentPreRunE: opts.initConfig,
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default: $HOME/.config/classbot/config.yaml)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.String("storage-driver", "", "record store backend (json, sqlite, memory)")
	flags.String("storage-path", "", "data directory (json) or database file (sqlite)")

	_ = opts.v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = opts.v.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = opts.v.BindPFlag("storage.driver", flags.Lookup("storage-driver"))
	_ = opts.v.BindPFlag("storage.path", flags.Lookup("storage-path"))

	cmd.AddCommand(serveCmd(opts))
	cmd.AddCommand(consoleCmd(opts))
	cmd.AddCommand(remindCmd(opts))
	cmd.AddCommand(storeCmd(opts))
	cmd.AddCommand(checkpointCmd(opts))
	cmd.AddCommand(exportCmd(opts))
	cmd.AddCommand(versionCmd())

	return cmd
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *rootOptions) initConfig(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return err
	}

	v := o.v
	config.SetDefaults(v)
	config.BindEnv(v)

	if o.cfgFile != "" {
		v.SetConfigFile(o.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		v.AddConfigPath(fmt.Sprintf("%s/.config/classbot", home))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	o.cfg = cfg

	if err := common.SetupLogger(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	slog.Debug("configuration loaded",
		"config_file", v.ConfigFileUsed(),
		"storage", cfg.Storage.Driver,
		"timezone", cfg.Timezone)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "classbot %s\n", version)
		},
	}
}
