package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mindloom/nudged/internal/bridge"
	"github.com/mindloom/nudged/internal/config"
	"github.com/mindloom/nudged/internal/engine"
	"github.com/mindloom/nudged/internal/notify"
	"github.com/mindloom/nudged/internal/planner"
	"github.com/mindloom/nudged/internal/store"
	"github.com/mindloom/nudged/internal/update"
)

var (
	flagConfig  string
	flagDB      string
	flagPlanURL string
	flagDesktop bool
	flagSocket  string
	flagLogFile string
)

func main() {
	root := &cobra.Command{
		Use:   "nudged",
		Short: "Gentle reminders that keep a work session moving",
		Long: "nudged runs a terminal session that watches your current task and\n" +
			"nudges you with momentum, check-in, and completion reminders.",
		SilenceUsage: true,
		RunE:         run,
	}

	root.Flags().StringVar(&flagConfig, "config", "", "path to a YAML config file")
	root.Flags().StringVar(&flagDB, "db", "", "path to the state database")
	root.Flags().StringVar(&flagPlanURL, "plan-url", "", "base URL of the plan service")
	root.Flags().BoolVar(&flagDesktop, "desktop", true, "send desktop notifications when available")
	root.Flags().StringVar(&flagSocket, "socket", "", "unix socket for notification action callbacks")
	root.Flags().StringVar(&flagLogFile, "log-file", "", "write logs to this file")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "nudged failed: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logger.Sync()

	backend := openBackend(cfg.DBPath, logger)
	st := store.New(backend, logger, nil)
	defer st.Close()

	execNotifier := notify.NewExecNotifier(cfg.SocketPath)
	dispatcher := notify.NewDispatcher(execNotifier, logger, nil)
	dispatcher.SetEnabled(cfg.DesktopNotifications)

	controller := engine.New(st, engine.Config{
		Logger:  logger,
		Presets: cfg.Presets,
	})

	var plan planner.Client
	if cfg.PlanBaseURL != "" {
		plan = planner.NewHTTPClient(cfg.PlanBaseURL)
	}

	actions := bridge.New(cfg.SocketPath, cfg.BridgeBuffer, logger)
	if err := actions.Start(); err != nil {
		logger.Warn("action bridge unavailable, notification clicks will not arrive", zap.Error(err))
	} else {
		execNotifier.MarkReady()
		dispatcher.FlushReady()
		defer actions.Stop()
	}

	model := update.NewModel(update.Deps{
		Controller: controller,
		Dispatcher: dispatcher,
		Bridge:     actions,
		Planner:    plan,
		Logger:     logger,
	})

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus())
	_, runErr := program.Run()

	controller.SessionEnded()
	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()

	path := flagConfig
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.FromFile(cfg, path)
	if err != nil {
		return cfg, err
	}
	cfg = config.FromEnv(cfg)

	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	if flagPlanURL != "" {
		cfg.PlanBaseURL = flagPlanURL
	}
	if cmd.Flags().Changed("desktop") {
		cfg.DesktopNotifications = flagDesktop
	}
	if flagSocket != "" {
		cfg.SocketPath = flagSocket
	}
	if flagLogFile != "" {
		cfg.LogFile = flagLogFile
	}
	return cfg, nil
}

// newLogger writes structured logs to a file. Logging to the terminal would
// corrupt the TUI, so an empty path disables logging entirely.
func newLogger(path string) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{path}
	zcfg.ErrorOutputPaths = []string{path}
	return zcfg.Build()
}

// openBackend prefers SQLite and degrades to an in-memory store so a broken
// database path never blocks a session; reminders just lose persistence.
func openBackend(dbPath string, logger *zap.Logger) store.Backend {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		logger.Warn("create data dir failed, state will not persist", zap.Error(err))
		return store.NewMemoryBackend()
	}
	backend, err := store.OpenSQLite(dbPath)
	if err != nil {
		logger.Warn("open database failed, state will not persist",
			zap.String("path", dbPath), zap.Error(err))
		return store.NewMemoryBackend()
	}
	return backend
}
