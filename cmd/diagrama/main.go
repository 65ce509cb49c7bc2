package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/naveenspark/diagrama/internal/browser"
	"github.com/naveenspark/diagrama/internal/config"
	"github.com/naveenspark/diagrama/internal/diagram"
	"github.com/naveenspark/diagrama/internal/export"
	"github.com/naveenspark/diagrama/internal/session"
	"github.com/naveenspark/diagrama/internal/source"
	"github.com/naveenspark/diagrama/internal/tui"
	"github.com/naveenspark/diagrama/pkg/client"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "diagrama",
		Short: "Generate diagrams from JSON descriptions",
		Long: `diagrama sends a JSON description of a diagram to the diagram service
and shows the generated image. Run it without arguments for the
interactive editor, or use the subcommands from scripts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), g)
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file path (default ~/.diagrama/config.yml)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newRegisterCmd(g),
		newLoginCmd(g),
		newLogoutCmd(g),
		newVerifyCmd(g),
		newGenerateCmd(g),
		newConfigCmd(g),
		newVersionCmd(),
	)
	return root
}

// env is everything a command needs, built from the loaded configuration.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *client.Client
	store    *session.Store
	holder   *session.Holder
	loader   *source.Loader
	service  *diagram.Service
	exporter *export.Exporter
	closeLog func() error
}

func (g *globalFlags) resolveConfigPath() (string, error) {
	if g.configPath != "" {
		return g.configPath, nil
	}
	return config.DefaultPath()
}

func (g *globalFlags) loadConfig() (*config.Config, error) {
	path, err := g.resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setup loads config and wires the client, session and services. Logs go to
// cfg.LogFile; the terminal belongs to the TUI and the command output.
func (g *globalFlags) setup() (*env, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := newLogger(cfg.LogFile, g.verbose)
	if err != nil {
		return nil, err
	}

	c := client.New(cfg.APIURL, cfg.DiagramURL, cfg.RequestTimeout).WithLogger(logger)
	store := session.NewStore(cfg.SessionFile)
	holder, err := session.Restore(store)
	if err != nil {
		// A corrupt session file means signed out, not a dead CLI.
		logger.Warn("restore session", "path", store.Path(), "error", err)
	}

	return &env{
		cfg:      cfg,
		logger:   logger,
		client:   c,
		store:    store,
		holder:   holder,
		loader:   source.NewLoader(c),
		service:  diagram.NewService(c, store, logger),
		exporter: export.New(c, cfg.ExportDir, cfg.DecodeTimeout, logger),
		closeLog: closeLog,
	}, nil
}

// newLogger opens path for append and returns a JSON slog logger writing to
// it. An empty path discards logs.
func newLogger(path string, verbose bool) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if path == "" {
		return slog.New(slog.DiscardHandler), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return newJSONLogger(f, level), f.Close, nil
}

func newJSONLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func runTUI(ctx context.Context, g *globalFlags) error {
	e, err := g.setup()
	if err != nil {
		return err
	}
	defer e.closeLog() //nolint:errcheck

	if ctx == nil {
		ctx = context.Background()
	}
	if e.cfg.VerifyOnStart && e.holder.Authenticated() {
		// Only auth failures sign the user out; a transient error keeps the
		// stored token.
		if ok, err := e.holder.Verify(ctx, e.client); err != nil {
			e.logger.Warn("verify stored token", "error", err)
		} else if !ok {
			e.logger.Info("stored token rejected, signed out")
		}
	}

	e.logger.Info("starting tui", "version", version, "authenticated", e.holder.Authenticated())
	app := tui.NewApp(tui.Deps{
		Session:  e.holder,
		Auth:     e.client,
		Diagrams: e.service,
		Sources:  e.loader,
		Exporter: e.exporter,
		Open:     browser.Open,
		Logger:   e.logger,
	}, version)

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of diagrama",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "diagrama %s\n", version)
		},
	}
}
