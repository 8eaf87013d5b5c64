// Package cli wires configuration, storage and the API client into the
// commands of the taskflow binary.
package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/tgienger/taskflow/internal/api"
	"github.com/tgienger/taskflow/internal/config"
	"github.com/tgienger/taskflow/internal/db"
	"github.com/tgienger/taskflow/internal/session"
	"github.com/tgienger/taskflow/internal/ui"
)

// BuildInfo is set via ldflags in main
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

type options struct {
	configPath string
	serverURL  string
	timeout    time.Duration
	logFile    string
	dataDir    string
}

// NewRootCommand builds the command tree
func NewRootCommand(info BuildInfo) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "taskflow",
		Short: "Terminal client for the taskflow task service",
		Long: `taskflow signs in to a task service and lets you list, add, edit and
complete tasks from the terminal. The session is kept between runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUI(cmd.Context(), opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/taskflow/config.yaml)")
	flags.StringVar(&opts.serverURL, "server", "", "API base URL, e.g. http://localhost:5000/api")
	flags.DurationVar(&opts.timeout, "timeout", 0, "timeout of each API request")
	flags.StringVar(&opts.logFile, "log-file", "", "write the debug log to this file")
	flags.StringVar(&opts.dataDir, "data-dir", "", "directory of the local database")

	root.AddCommand(newVersionCommand(info), newLogoutCommand(opts))
	return root
}

// Execute runs the root command
func Execute(info BuildInfo) error {
	if err := NewRootCommand(info).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// loadConfig reads the config file and applies the flags that were set
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.serverURL != "" {
		cfg.ServerURL = opts.serverURL
	}
	if opts.timeout > 0 {
		cfg.RequestTimeout = opts.timeout
	}
	if opts.logFile != "" {
		cfg.LogFile = opts.logFile
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	return cfg, cfg.Validate()
}

// setupLogging sends the log to cfg.LogFile; stderr belongs to the UI
func setupLogging(cfg *config.Config) (io.Closer, error) {
	if cfg.LogFile == "" {
		log.SetOutput(io.Discard)
		return io.NopCloser(nil), nil
	}
	f, err := tea.LogToFile(cfg.LogFile, "taskflow")
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func runUI(ctx context.Context, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logs, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer logs.Close()

	database, err := db.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer database.Close()

	client := api.New(cfg.ServerURL, cfg.RequestTimeout)
	store := session.New(database, client)
	authed := client.WithTokenSource(store)
	log.Printf("[cli] starting against %s", cfg.ServerURL)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app := ui.NewApp(ctx, ui.Deps{
		Store:        store,
		Tasks:        authed,
		Stats:        authed,
		Snapshots:    database,
		FetchTimeout: cfg.RequestTimeout,
	})
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	app.SetSender(p.Send)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running application: %w", err)
	}
	return nil
}

func newVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "taskflow %s (commit: %s, built: %s)\n", info.Version, info.Commit, info.Date)
		},
	}
}

func newLogoutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session without starting the UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logs, err := setupLogging(cfg)
			if err != nil {
				return err
			}
			defer logs.Close()

			database, err := db.New(cfg.DataDir)
			if err != nil {
				return fmt.Errorf("initializing database: %w", err)
			}
			defer database.Close()

			store := session.New(database, api.New(cfg.ServerURL, cfg.RequestTimeout))
			if err := store.SignOut(cmd.Context()); err != nil {
				return err
			}
			if err := database.DeleteTasks(cmd.Context()); err != nil {
				return fmt.Errorf("clear task snapshot: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}
