package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/actions"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/app"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cache"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/config"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/daemon"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/docs"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/platform"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/starship"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/waybar"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/widget"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/widgets"
)

var (
	errNoState  = errors.New("no glucose state available")
	errNoDaemon = errors.New("daemon is not running")
)

// oneShotTimeout bounds a direct poll made by a one-shot command.
const oneShotTimeout = 15 * time.Second

func newDaemonCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Poll Nightscout in the background and serve the state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadValidConfig(opts)
			if err != nil {
				return err
			}
			logger, closer := newLogger(cfg, opts, logDaemon)
			defer closer.Close()

			d, err := daemon.New(daemon.Options{
				Config:  cfg,
				Logger:  logger,
				Version: version,
			})
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return d.Run(ctx)
		},
	}
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	var cached, tooltip, asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current glucose label",
		Long: "Print the label from the running daemon, or poll Nightscout directly when none runs.\n" +
			"With --cached only the state cache is read and nothing is printed when it is empty.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, closer := newLogger(cfg, opts, logOneShot)
			defer closer.Close()

			var st widget.RenderedState
			if cached {
				stored, ok := readCachedState(cfg)
				if !ok {
					return nil
				}
				st = rerenderCached(cfg, logger, stored)
				logger.Debug("status", "source", sourceCache)
			} else {
				ctx, cancel := context.WithTimeout(cmd.Context(), oneShotTimeout)
				defer cancel()
				var src string
				st, src, err = currentState(ctx, cfg, logger, cacheOnReading(cfg, logger))
				if err != nil && src == "" {
					return err
				}
				logger.Debug("status", "source", src)
			}
			return printState(cmd.OutOrStdout(), st, tooltip, asJSON)
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "read only the state cache (never blocks on the network)")
	cmd.Flags().BoolVar(&tooltip, "tooltip", false, "also print the tooltip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full state as JSON")
	return cmd
}

func printState(out io.Writer, st widget.RenderedState, tooltip, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	fmt.Fprintln(out, st.PlainLabel())
	if tooltip {
		fmt.Fprintln(out, st.PlainTooltip())
	}
	return nil
}

// cacheOnReading writes locally polled states to the state cache so later
// one-shot commands can reuse them. States without a reading are not
// cached; they would hide the next poll until the entry expires.
func cacheOnReading(cfg *config.Config, logger *slog.Logger) widget.Option {
	store, err := cache.NewStore(cache.StoreConfig{Dir: cfg.General.CacheDir, DefaultTTL: cfg.StateTTL()})
	if err != nil {
		logger.Debug("state cache unavailable", "error", err)
		return func(*widget.Widget) {}
	}
	return widget.WithOnChange(func(st widget.RenderedState) {
		if !st.HasReading() {
			return
		}
		if err := widget.SaveState(store, st, cfg.StateTTL()); err != nil {
			logger.Debug("write state cache", "error", err)
		}
	})
}

func newHealthCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print the daemon health report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			var h *daemon.HealthStatus
			if client, ok := daemonClient(cfg); ok {
				h = &daemon.HealthStatus{}
				if err := client.Call(daemon.CmdHealth, h); err != nil {
					return err
				}
			} else {
				// The file outlives the daemon; report what it last saw.
				if h, err = daemon.ReadHealthFile(cfg.HealthPath()); err != nil {
					return fmt.Errorf("%w (no health file: %v)", errNoDaemon, err)
				}
			}
			data, err := json.MarshalIndent(h, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newStopCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask the running daemon to exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			client, ok := daemonClient(cfg)
			if !ok {
				return errNoDaemon
			}
			return client.Call(daemon.CmdQuit, nil)
		},
	}
}

func newStarshipCmd(opts *globalOptions) *cobra.Command {
	var (
		maxWidth  int
		maxAge    time.Duration
		showAge   bool
		showError bool
		color     string
	)
	cmd := &cobra.Command{
		Use:   "starship",
		Short: "Print a one-line starship prompt segment from the cached state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			profile, err := colorProfile(color, os.Stdout.Fd(), os.Getenv)
			if err != nil {
				return err
			}
			line := starship.Render(starship.Config{
				CacheDir:   cfg.General.CacheDir,
				MaxWidth:   maxWidth,
				MaxAge:     maxAge,
				StaleAfter: cfg.Glucose.StaleAfter.Duration,
				ShowAge:    showAge,
				ShowError:  showError,
				Profile:    profile,
			})
			if line != "" {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxWidth, "max-width", 40, "maximum visible width")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "print nothing when the cached state is older than this (0 uses the cache TTL)")
	cmd.Flags().BoolVar(&showAge, "show-age", false, "append minutes since the reading")
	cmd.Flags().BoolVar(&showError, "show-error", true, "append a marker when the last poll failed")
	cmd.Flags().StringVar(&color, "color", "auto", "color mode: auto, always, never")
	return cmd
}

// colorProfile resolves --color. Starship captures module output through a
// pipe, so auto also enables color when STARSHIP_SHELL is set.
func colorProfile(mode string, fd uintptr, getenv func(string) string) (termenv.Profile, error) {
	switch strings.ToLower(mode) {
	case "never":
		return termenv.Ascii, nil
	case "always":
		return termenv.ANSI256, nil
	case "auto", "":
		if getenv("NO_COLOR") != "" {
			return termenv.Ascii, nil
		}
		if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) || getenv("STARSHIP_SHELL") != "" {
			return termenv.ANSI256, nil
		}
		return termenv.Ascii, nil
	}
	return termenv.Ascii, fmt.Errorf("unknown color mode %q (want auto, always or never)", mode)
}

func newWaybarCmd(opts *globalOptions) *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "waybar",
		Short: "Print waybar custom module JSON",
		Long: "Print one JSON object for a waybar custom module. With --watch, stream one line\n" +
			"per change (use with waybar's default continuous exec mode).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			cfg, err := loadConfig(opts)
			if err != nil {
				return waybar.Encode(out, waybarError(err))
			}
			if watch {
				return runWaybarWatch(cmd.Context(), cfg, opts, interval, out)
			}

			logger, closer := newLogger(cfg, opts, logOneShot)
			defer closer.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), oneShotTimeout)
			defer cancel()
			st, src, err := currentState(ctx, cfg, logger, cacheOnReading(cfg, logger))
			if src == "" {
				return waybar.Encode(out, waybarError(err))
			}
			return waybar.Encode(out, waybar.FromState(st, time.Now(), cfg.Glucose.StaleAfter.Duration))
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "stream updates instead of printing once")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "how often --watch checks for changes")
	return cmd
}

// waybarError is printed when there is no state to show at all.
func waybarError(err error) waybar.Output {
	out := waybar.Placeholder("🩸--")
	if err != nil {
		out.Tooltip = err.Error()
		out.Class = widget.ClassError
		out.Alt = widget.ClassError
	}
	return out
}

func runWaybarWatch(parent context.Context, cfg *config.Config, opts *globalOptions, interval time.Duration, out io.Writer) error {
	logger, closer := newLogger(cfg, opts, logInteractive)
	defer closer.Close()

	ctx, cancel := signalContext(parent)
	defer cancel()

	var src waybar.Source
	if client, ok := daemonClient(cfg); ok {
		logger.Info("waybar: following daemon", "socket", cfg.SocketPath())
		src = func(context.Context) (widget.RenderedState, bool) {
			var st widget.RenderedState
			if err := client.Call(daemon.CmdStatus, &st); err != nil {
				logger.Warn("daemon status", "error", err)
				return st, false
			}
			return st, true
		}
	} else {
		logger.Info("waybar: no daemon, polling in-process")
		w, err := newLocalWidget(cfg, logger, cacheOnReading(cfg, logger))
		if err != nil {
			return waybar.Encode(out, waybarError(err))
		}
		poller, err := startLocalPoller(ctx, w)
		if err != nil {
			return err
		}
		defer poller.Stop()
		src = func(context.Context) (widget.RenderedState, bool) {
			return w.Tick(), true
		}
	}
	return waybar.Watch(ctx, src, interval, cfg.Glucose.StaleAfter.Duration, waybar.NewWriter(out))
}

func newBarCmd(opts *globalOptions) *cobra.Command {
	var refresh time.Duration
	cmd := &cobra.Command{
		Use:   "bar",
		Short: "Run the interactive terminal bar (click to act)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, closer := newLogger(cfg, opts, logInteractive)
			defer closer.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			var backend app.Backend
			if client, ok := daemonClient(cfg); ok {
				backend = app.DaemonBackend{Client: client}
			} else {
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid config: %w", err)
				}
				w, err := newLocalWidget(cfg, logger, cacheOnReading(cfg, logger))
				if err != nil {
					return err
				}
				poller, err := startLocalPoller(ctx, w)
				if err != nil {
					return err
				}
				defer poller.Stop()
				backend = app.LocalBackend{Widget: w}
			}

			appCfg := app.DefaultConfig()
			if refresh > 0 {
				appCfg.RefreshInterval = refresh
			}
			model := app.NewAppModel(appCfg, backend, widgets.NewGlucoseWidget(backend))
			defer model.Close()

			p := tea.NewProgram(model,
				tea.WithContext(ctx),
				tea.WithMouseCellMotion(),
			)
			_, err = p.Run()
			if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&refresh, "refresh", 0, "how often the bar redraws from its source (default 2s)")
	return cmd
}

func newClickCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "click left|middle|right",
		Short:     "Send a mouse click to the widget",
		Long:      "Forward a click to the running daemon, or dispatch it locally when no daemon runs.\nButtons may also be given as X11 numbers 1-3.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"left", "middle", "right"},
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := actions.ParseButton(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, closer := newLogger(cfg, opts, logOneShot)
			defer closer.Close()

			a, err := dispatchClick(cmd.Context(), cfg, logger, b)
			if err != nil {
				return err
			}
			if opts.verbose && a != "" {
				fmt.Fprintln(cmd.OutOrStdout(), a)
			}
			return nil
		},
	}
}

// dispatchClick sends b to the daemon, or runs it on a local widget.
func dispatchClick(ctx context.Context, cfg *config.Config, logger *slog.Logger, b actions.Button, opts ...widget.Option) (actions.Action, error) {
	if client, ok := daemonClient(cfg); ok {
		return app.DaemonBackend{Client: client}.Click(ctx, b)
	}
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("invalid config: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, oneShotTimeout)
	defer cancel()

	opts = append([]widget.Option{cacheOnReading(cfg, logger)}, opts...)
	w, err := newLocalWidget(cfg, logger, opts...)
	if err != nil {
		return "", err
	}
	return w.OnClick(ctx, b)
}

func newServiceCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the daemon as a systemd or launchd user service",
	}

	serviceConfig := func() (platform.ServiceConfig, error) {
		cfg, err := loadConfig(opts)
		if err != nil {
			return platform.ServiceConfig{}, err
		}
		exe, err := os.Executable()
		if err != nil {
			return platform.ServiceConfig{}, err
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		cfgPath := cfg.Path()
		if cfgPath != "" {
			if abs, err := filepath.Abs(cfgPath); err == nil {
				cfgPath = abs
			}
		}
		return platform.ServiceConfig{
			BinaryPath: exe,
			ConfigPath: cfgPath,
			LogPath:    filepath.Join(cfg.General.CacheDir, "service.log"),
		}, nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "install",
			Short: "Install and start the service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				sc, err := serviceConfig()
				if err != nil {
					return err
				}
				if err := os.MkdirAll(filepath.Dir(sc.LogPath), 0o755); err != nil {
					return err
				}
				path, err := platform.InstallService(sc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "installed %s\n", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "uninstall",
			Short: "Stop and remove the service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return platform.UninstallService()
			},
		},
		&cobra.Command{
			Use:   "print",
			Short: "Print the service definition without installing it",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				sc, err := serviceConfig()
				if err != nil {
					return err
				}
				home, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				path, content, err := platform.ServiceFile(platform.Current(), home, sc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, content)
				return nil
			},
		},
	)
	return cmd
}

func newDocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Print reference documentation",
	}
	printer := func(use, short string, render func() string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprint(cmd.OutOrStdout(), render())
			},
		}
	}

	var outDir string
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Write every document as Markdown into a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := docs.Default(outDir).Generate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", outDir)
			return nil
		},
	}
	generate.Flags().StringVarP(&outDir, "out", "o", "docs", "output directory")

	cmd.AddCommand(
		printer("config", "Configuration reference", docs.ConfigMarkdown),
		printer("tokens", "Label and tooltip template tokens", docs.TokenMarkdown),
		printer("hosts", "Status bar integration guide", docs.HostMarkdown),
		generate,
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "glucose-pulse %s (%s) built %s\n", version, commit, date)
		},
	}
}
