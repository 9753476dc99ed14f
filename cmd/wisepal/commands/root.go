package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Shanky048/WisePal/internal/api"
	"github.com/Shanky048/WisePal/internal/config"
	"github.com/Shanky048/WisePal/internal/db"
	"github.com/Shanky048/WisePal/internal/session"
	"github.com/Shanky048/WisePal/internal/store"
	"github.com/Shanky048/WisePal/internal/telemetry"
	"github.com/Shanky048/WisePal/internal/tui"
)

// Version is set at build time
var Version = "dev"

var (
	configPath string
	apiURL     string
	debugMode  bool
)

// application holds everything the commands share. It is built once per
// invocation before the command runs.
type application struct {
	cfg        *config.Config
	logger     *zap.Logger
	client     *api.Client
	database   *sql.DB
	session    *session.Store
	transcript *store.Transcript
	cleanups   []func()
}

var app *application

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wisepal",
		Short: "Chat with WisePal AI from your terminal",
		Long: `wisepal is a terminal client for the WisePal AI chat service.
Without a subcommand it opens the interactive chat, asking you to sign in
first if no session is stored.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		RunE:              runTUI,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.wisepal/config.toml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL (overrides WISEPAL_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Write debug-level logs")

	rootCmd.AddCommand(NewRegisterCommand())
	rootCmd.AddCommand(NewLoginCommand())
	rootCmd.AddCommand(NewLogoutCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewHistoryCommand())
	rootCmd.AddCommand(NewAskCommand())
	rootCmd.AddCommand(NewShowCommand())
	rootCmd.AddCommand(NewDebugCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCommand()
	err := rootCmd.Execute()
	shutdown()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" {
		return nil
	}

	cfg, err := config.Load(configPath, func(c *config.Config) {
		if apiURL != "" {
			c.APIURL = apiURL
		}
	})
	if err != nil {
		return err
	}

	a := &application{cfg: cfg}
	app = a

	logger, closeLog, err := telemetry.NewLogger(cfg.Log, debugMode)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	a.logger = logger
	a.cleanups = append(a.cleanups, closeLog)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	providers := telemetry.Noop()
	if cfg.Telemetry.Enabled {
		p, shutdownTelemetry, err := telemetry.InitTelemetry(ctx, filepath.Dir(cfg.Log.File), Version, logger)
		if err != nil {
			logger.Warn("telemetry disabled", zap.Error(err))
		} else {
			providers = p
			a.cleanups = append(a.cleanups, shutdownTelemetry)
		}
	}

	database, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open local state: %w", err)
	}
	a.database = database
	a.cleanups = append(a.cleanups, func() { database.Close() })

	a.session = session.NewStore(store.NewKV(database), logger)
	if err := a.session.Rehydrate(ctx); err != nil {
		logger.Warn("starting without a stored session", zap.Error(err))
	}
	a.transcript = store.NewTranscript(database)

	a.client = api.NewClient(cfg.APIURL,
		api.WithTimeout(cfg.HTTPTimeout()),
		api.WithRateLimit(cfg.RequestsPerSecond),
		api.WithLogger(logger),
		api.WithTelemetry(providers),
	)

	logger.Debug("wisepal started",
		zap.String("command", cmd.CommandPath()),
		zap.String("api_url", cfg.APIURL),
		zap.String("state_dir", cfg.StateDir))
	return nil
}

// shutdown releases resources in reverse order of acquisition
func shutdown() {
	if app == nil {
		return
	}
	for i := len(app.cleanups) - 1; i >= 0; i-- {
		app.cleanups[i]()
	}
	app = nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	return tui.Run(cmd.Context(), tui.Options{
		Backend:        app.client,
		Session:        app.session,
		Recorder:       app.transcript,
		Logger:         app.logger,
		RenderMarkdown: app.cfg.UI.RenderMarkdown,
	})
}
