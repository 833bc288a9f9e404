package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	logging "github.com/ipfs/go-log/v2"

	"github.com/smileynet/envdash"
	"github.com/smileynet/envdash/internal/config"
	"github.com/smileynet/envdash/internal/dashboard"
	"github.com/smileynet/envdash/internal/orchestrator"
	"github.com/smileynet/envdash/internal/source"
	"github.com/smileynet/envdash/internal/tui"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var log = logging.Logger("envdash")

// CLI is the top-level command structure for envdash.
type CLI struct {
	Version   kong.VersionFlag `help:"Show version." short:"V"`
	Dashboard DashboardCmd     `cmd:"" help:"Open interactive dashboard TUI."`
	Watch     WatchCmd         `cmd:"" help:"Poll the backend and print state changes."`
	Fetch     FetchCmd         `cmd:"" help:"Fetch dashboard data once and print it as JSON."`
	Refresh   RefreshCmd       `cmd:"" help:"Ask the backend to re-collect one data source."`
	Config    ConfigCmd        `cmd:"" help:"Manage the envdash config file."`
}

// SourceFlags are the connection overrides shared by every backend command.
// Zero values leave the configured setting untouched.
type SourceFlags struct {
	BaseURL string `help:"Backend API base URL." name:"base-url" placeholder:"URL"`
	Hours   int    `help:"Dashboard window in hours." short:"H"`
}

// PollFlags are the refresh cycle overrides for long-running commands.
type PollFlags struct {
	Interval time.Duration `help:"Time between background refreshes." short:"i"`
}

// loadConfig loads layered config from user and project paths with env overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadLayered(
		os.ExpandEnv("$HOME/.config/envdash/config.yaml"),
		".envdash/config.yaml",
	)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply copies set flags over cfg.
func (f SourceFlags) apply(cfg *config.Config) {
	if f.BaseURL != "" {
		cfg.Source.BaseURL = f.BaseURL
	}
	if f.Hours != 0 {
		cfg.Source.WindowHours = f.Hours
	}
}

func (f PollFlags) apply(cfg *config.Config) {
	if f.Interval != 0 {
		cfg.Poll.Interval = f.Interval
	}
}

// setupLogging configures go-log from cfg. An empty file logs plain text to
// stderr; otherwise JSON lines are appended to file so a full-screen UI is
// not disturbed.
func setupLogging(cfg config.Log, file string) error {
	lvl, err := logging.LevelFromString(cfg.Level)
	if err != nil {
		return fmt.Errorf("log level %q: %w", cfg.Level, err)
	}
	lc := logging.Config{
		Format: logging.PlaintextOutput,
		Level:  lvl,
		Stderr: true,
	}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		lc.Format = logging.JSONOutput
		lc.Stderr = false
		lc.File = file
	}
	logging.SetupLogging(lc)
	return nil
}

// newSource builds the HTTP client for the configured backend.
func newSource(cfg *config.Config) (*source.Client, error) {
	return source.New(cfg.Source.BaseURL,
		source.WithTimeout(cfg.Source.Timeout),
		source.WithTriggerRetries(cfg.Source.TriggerRetries),
	)
}

// newOrchestrator builds an orchestrator over src from cfg.
func newOrchestrator(cfg *config.Config, src orchestrator.Source) *orchestrator.Orchestrator {
	opts := []orchestrator.Option{
		orchestrator.WithWindowHours(cfg.Source.WindowHours),
		orchestrator.WithTTL(cfg.Cache.TTL),
		orchestrator.WithRetryBudgets(cfg.Poll.InitialRetryBudget, cfg.Poll.PollRetryBudget),
		orchestrator.WithSettleDelay(cfg.Poll.SettleDelay),
	}
	if d := cfg.Poll.RetryDelay; d > 0 {
		opts = append(opts, orchestrator.WithBackoff(func(int) time.Duration { return d }))
	}
	return orchestrator.New(src, opts...)
}

// prepare loads config, applies flag overrides, validates, and sets up
// logging. logToFile sends logs to the configured log file instead of stderr.
func prepare(cmd string, logToFile bool, overrides ...func(*config.Config)) (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	logFile := ""
	if logToFile {
		logFile = cfg.Log.File
	}
	if err := setupLogging(cfg.Log, logFile); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	return cfg, nil
}

// watcher abstracts the orchestrator lifecycle for testing.
type watcher interface {
	Start(ctx context.Context, interval time.Duration) error
	Stop()
	Subscribe(fn orchestrator.Observer) func()
}

// --- Dashboard command ---

// DashboardCmd opens the interactive dashboard TUI.
type DashboardCmd struct {
	SourceFlags `embed:""`
	PollFlags   `embed:""`
}

// teaRunner abstracts Bubble Tea program execution for testing.
type teaRunner interface {
	Run() (tea.Model, error)
}

// Run builds real dependencies and launches the dashboard TUI.
func (d *DashboardCmd) Run() error {
	if !tui.IsTerminal(os.Stdout) {
		return errors.New("dashboard: requires a terminal (TTY)")
	}

	cfg, err := prepare("dashboard", true, d.SourceFlags.apply, d.PollFlags.apply)
	if err != nil {
		return err
	}
	src, err := newSource(cfg)
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	orch := newOrchestrator(cfg, src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridge := tui.NewBridge()
	m := dashboard.NewModel(orch, bridge.Events(),
		dashboard.WithContext(ctx),
		dashboard.WithWindow(cfg.Source.WindowHours),
	)
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	return d.run(ctx, true, orch, bridge, prog, cfg.Poll.Interval)
}

// run starts polling, runs the tea program, and stops polling when it exits,
// enabling testable wiring.
func (d *DashboardCmd) run(ctx context.Context, isTTY bool, orch watcher, bridge *tui.Bridge, prog teaRunner, interval time.Duration) error {
	if !isTTY {
		return errors.New("dashboard: requires a terminal (TTY)")
	}

	unsubscribe := orch.Subscribe(bridge.Observe)
	defer unsubscribe()

	if err := orch.Start(ctx, interval); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	defer orch.Stop()
	log.Infow("dashboard started", "interval", interval)

	final, err := prog.Run()
	bridge.Done()
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	if m, ok := final.(dashboard.Model); ok && m.Err() != nil {
		return fmt.Errorf("dashboard: %w", m.Err())
	}
	return nil
}

// --- Watch command ---

// WatchCmd polls the backend and renders each state change until interrupted.
type WatchCmd struct {
	SourceFlags `embed:""`
	PollFlags   `embed:""`
	NoTUI       bool `help:"Force plain text output even if stdout is a TTY." default:"false"`
}

// Run executes the watch command.
func (w *WatchCmd) Run() error {
	cfg, err := prepare("watch", false, w.SourceFlags.apply, w.PollFlags.apply)
	if err != nil {
		return err
	}
	src, err := newSource(cfg)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	orch := newOrchestrator(cfg, src)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bridge := tui.NewBridge()
	display := tui.NewDisplay(tui.DisplayOptions{
		Writer:     os.Stdout,
		ForcePlain: w.NoTUI,
		Target:     src.BaseURL(),
		Window:     cfg.Source.WindowHours,
		CancelFunc: stop,
	})
	return w.run(ctx, orch, display, bridge, cfg.Poll.Interval)
}

// run wires the orchestrator to the display and blocks until the display
// finishes, enabling testable wiring. Cancelling ctx ends the watch normally.
func (w *WatchCmd) run(ctx context.Context, orch watcher, display tui.Display, bridge *tui.Bridge, interval time.Duration) error {
	unsubscribe := orch.Subscribe(bridge.Observe)
	defer unsubscribe()

	if err := orch.Start(ctx, interval); err != nil {
		bridge.Error(err)
		_ = display.Run(ctx, bridge.Events())
		return fmt.Errorf("watch: %w", err)
	}
	defer orch.Stop()

	// Let the display drain and exit on its own once ctx ends.
	release := context.AfterFunc(ctx, bridge.Done)
	defer release()

	err := display.Run(ctx, bridge.Events())
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch: %w", err)
	}
	log.Debugw("watch ended")
	return nil
}

// --- Fetch command ---

// FetchCmd reads dashboard data once through the cache and prints it.
type FetchCmd struct {
	SourceFlags `embed:""`
	Summary     bool `help:"Print section counts instead of the JSON payload."`
}

// dashboardGetter abstracts orchestrator.Get for testing.
type dashboardGetter interface {
	Get(ctx context.Context, windowHours int) (*source.Dashboard, error)
}

// Run executes the fetch command.
func (f *FetchCmd) Run() error {
	cfg, err := prepare("fetch", false, f.SourceFlags.apply)
	if err != nil {
		return err
	}
	src, err := newSource(cfg)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	orch := newOrchestrator(cfg, src)
	defer orch.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return f.run(ctx, os.Stdout, orch, cfg.Source.WindowHours)
}

// run fetches one snapshot and writes it to w, enabling testable wiring.
func (f *FetchCmd) run(ctx context.Context, w io.Writer, g dashboardGetter, hours int) error {
	d, err := g.Get(ctx, hours)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	if f.Summary {
		for _, s := range d.Sections() {
			_, _ = fmt.Fprintf(w, "%-12s %d\n", s.Name, s.Count)
		}
		return nil
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("fetch: encoding: %w", err)
	}
	return nil
}

// --- Refresh command ---

// RefreshCmd asks the backend to re-collect one data source.
type RefreshCmd struct {
	Source      string `arg:"" help:"Data source to refresh (weather, meteo, marine, airquality, fire)."`
	SourceFlags `embed:""`
}

// sourceTrigger abstracts source.Client.RefreshDataSource for testing.
type sourceTrigger interface {
	RefreshDataSource(ctx context.Context, sourceID string) (string, error)
}

// Run executes the refresh command.
func (r *RefreshCmd) Run() error {
	cfg, err := prepare("refresh", false, r.SourceFlags.apply)
	if err != nil {
		return err
	}
	src, err := newSource(cfg)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return r.run(ctx, os.Stdout, src)
}

// run triggers the refresh and prints the backend acknowledgement, enabling
// testable wiring.
func (r *RefreshCmd) run(ctx context.Context, w io.Writer, t sourceTrigger) error {
	ack, err := t.RefreshDataSource(ctx, r.Source)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	if ack == "" {
		ack = "Refresh initiated for " + r.Source
	}
	_, _ = fmt.Fprintln(w, ack)
	return nil
}

// --- Config command ---

// ConfigCmd groups config file subcommands.
type ConfigCmd struct {
	Init ConfigInitCmd `cmd:"" help:"Write the documented default config file."`
}

// ConfigInitCmd writes the embedded default config.
type ConfigInitCmd struct {
	Path  string `help:"Destination file." default:".envdash/config.yaml" type:"path"`
	Force bool   `help:"Overwrite an existing file."`
}

// Run executes the config init command.
func (c *ConfigInitCmd) Run() error {
	return c.run(os.Stdout, envdash.DefaultConfig())
}

// run writes data to c.Path, enabling testable wiring.
func (c *ConfigInitCmd) run(w io.Writer, data []byte) error {
	if !c.Force {
		if _, err := os.Stat(c.Path); err == nil {
			return fmt.Errorf("config init: %s already exists (use --force to overwrite)", c.Path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return fmt.Errorf("config init: %w", err)
	}
	if err := os.WriteFile(c.Path, data, 0o644); err != nil {
		return fmt.Errorf("config init: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Wrote %s\n", c.Path)
	return nil
}

// Exit codes.
const (
	exitSuccess = 0
	exitBackend = 1
	exitSetup   = 2
)

// exitCode maps an error to the appropriate exit code. Failures talking to
// the backend exit 1; configuration and usage problems exit 2.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var (
		te *source.TransportError
		ue *source.UpstreamError
		de *source.DecodeError
		re *orchestrator.RefreshError
	)
	if errors.As(err, &te) || errors.As(err, &ue) || errors.As(err, &de) || errors.As(err, &re) {
		return exitBackend
	}
	return exitSetup
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("envdash"),
		kong.Description("Environmental dashboard client."),
		kong.Vars{"version": version + " " + commit + " " + date},
	)
	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}
