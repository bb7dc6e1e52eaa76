package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/davsync/internal/client/config"
	"github.com/openmined/davsync/internal/utils"
	"github.com/openmined/davsync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "DAVSYNC"

var logLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:           "davsync",
	Short:         "Synchronize address books and calendars with CardDAV/CalDAV servers",
	Version:       version.Detailed(),
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logLevel.Set(slog.LevelDebug)
		}
	},
}

func init() {
	addGlobalFlags(rootCmd)
}

func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "config file")
	cmd.PersistentFlags().StringP("datadir", "d", "", "data directory (default from config)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
}

func main() {
	slog.SetDefault(slog.New(consoleHandler(os.Stderr)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red.Render("ERROR"), err)
		stop()
		os.Exit(1)
	}
}

func consoleHandler(w *os.File) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      logLevel,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(w.Fd()),
	})
}

// attachLogFile adds a plain text log file next to the console output.
// The returned closer restores console-only logging.
func attachLogFile(logFile string) (io.Closer, error) {
	if err := utils.EnsureParent(logFile); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(consoleHandler(os.Stderr), fileHandler)))
	return closerFunc(func() error {
		slog.SetDefault(slog.New(consoleHandler(os.Stderr)))
		return file.Close()
	}), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// loadConfig reads the config file and applies overrides, in order of
// precedence: flags, DAVSYNC_* environment variables, file. The config is
// not validated so that commands editing it can work on partial files.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.BindPFlag("config", cmd.Flag("config"))
	v.BindEnv("config", envPrefix+"_CONFIG_PATH")
	v.BindPFlag("data_dir", cmd.Flag("datadir"))
	v.BindEnv("data_dir")
	v.BindEnv("log_file")
	v.BindEnv("interval")

	configPath, err := utils.ResolvePath(v.GetString("config"))
	if err != nil {
		return nil, fmt.Errorf("config path: %w", err)
	}

	cfg, err := config.Load(configPath)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("config file not found", "path", configPath)
		cfg = &config.Config{Path: configPath}
	} else if err != nil {
		return nil, err
	}

	if dataDir := v.GetString("data_dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logFile := v.GetString("log_file"); logFile != "" {
		cfg.LogFile = logFile
	}
	if v.IsSet("interval") {
		cfg.Interval = config.Duration(v.GetDuration("interval"))
	}

	return cfg, nil
}

// loadValidConfig is loadConfig plus validation, for commands that talk to
// servers or open the replica.
func loadValidConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w (config file: %s)", err, cfg.Path)
	}
	if cfg.LogFile == "" {
		cfg.LogFile = config.DefaultLogFilePath
	}
	return cfg, nil
}
