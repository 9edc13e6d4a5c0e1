// glucose-pulse shows the latest Nightscout glucose reading in status bars
// and prompts.
//
// A background daemon polls the Nightscout API, keeps the rendered
// label/tooltip in a state cache, and answers clicks over a Unix socket.
// One-shot commands ask the daemon for its state; without one, status and
// waybar poll once themselves while starship prints the cached state.
//
// Usage:
//
//	glucose-pulse daemon                 Run the background poller
//	glucose-pulse status [--cached]      Print the label
//	glucose-pulse starship               One-line prompt segment
//	glucose-pulse waybar [--watch]       Waybar custom module JSON
//	glucose-pulse bar                    Interactive terminal bar
//	glucose-pulse click left|middle|right
//	glucose-pulse service install|uninstall|print
//	glucose-pulse docs config|tokens|hosts|generate
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/config"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// globalOptions are the persistent root flags.
type globalOptions struct {
	configPath string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "glucose-pulse",
		Short:         "Nightscout glucose readings for status bars and prompts",
		SilenceUsage:  true,
		SilenceErrors: false,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (default: $XDG_CONFIG_HOME/glucose-pulse/config.toml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newDaemonCmd(opts),
		newStatusCmd(opts),
		newHealthCmd(opts),
		newStopCmd(opts),
		newStarshipCmd(opts),
		newWaybarCmd(opts),
		newBarCmd(opts),
		newClickCmd(opts),
		newServiceCmd(opts),
		newDocsCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the --config file, or searches the standard locations.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	if opts.configPath != "" {
		return config.LoadFromFile(opts.configPath)
	}
	return config.Load()
}

// loadValidConfig is loadConfig plus validation, for commands that talk to
// Nightscout.
func loadValidConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// parseLevel maps a config log level to slog. Unknown values fall back to
// info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// logMode selects where a command logs.
type logMode int

const (
	// logOneShot logs warnings to stderr so prompt output stays clean.
	logOneShot logMode = iota
	// logDaemon logs to stderr and the rotating log file.
	logDaemon
	// logInteractive logs only to the rotating log file; stderr belongs to
	// the terminal UI.
	logInteractive
)

// newLogger builds the process logger for mode.
func newLogger(cfg *config.Config, opts *globalOptions, mode logMode) (*slog.Logger, io.Closer) {
	level := parseLevel(cfg.General.LogLevel)
	if mode == logOneShot && level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	if opts.verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if mode != logOneShot && cfg.General.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.General.LogFile,
			MaxSize:    cfg.General.LogMaxSizeMB,
			MaxBackups: cfg.General.LogMaxBackups,
			Compress:   true,
		}
		closer = lj
		w = lj
		if mode == logDaemon {
			w = io.MultiWriter(os.Stderr, lj)
		}
	} else if mode == logInteractive {
		w = io.Discard
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
