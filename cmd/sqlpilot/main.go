package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pheller/sqlpilot/internal/app"
	"github.com/pheller/sqlpilot/internal/audit"
	"github.com/pheller/sqlpilot/internal/config"
	"github.com/pheller/sqlpilot/internal/conn"
	"github.com/pheller/sqlpilot/internal/driver"
	"github.com/pheller/sqlpilot/internal/history"
	"github.com/pheller/sqlpilot/internal/session"
	"github.com/pheller/sqlpilot/internal/theme"
	"github.com/pheller/sqlpilot/internal/ui/results"

	// Register database drivers
	_ "github.com/pheller/sqlpilot/internal/driver/duckdb"
	_ "github.com/pheller/sqlpilot/internal/driver/mysql"
	_ "github.com/pheller/sqlpilot/internal/driver/postgres"
	_ "github.com/pheller/sqlpilot/internal/driver/sqlite"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var (
		configFlag   string
		themeFlag    string
		driverFlag   string
		hostFlag     string
		portFlag     int
		userFlag     string
		passwordFlag string
		databaseFlag string
		fileFlag     string
		dsnFlag      string
	)

	rootCmd := &cobra.Command{
		Use:   "sqlpilot [connection]",
		Short: "An interactive terminal SQL client",
		Long: `sqlpilot is an interactive terminal SQL client with a modal,
vim-style query editor, a lazy schema explorer, and schema-aware
autocompletion. It supports PostgreSQL, MySQL, SQLite, and DuckDB.

Examples:
  sqlpilot                                  # open the connection picker
  sqlpilot prod                             # connect to the saved connection "prod"
  sqlpilot --driver sqlite --file ./app.db  # ad hoc SQLite connection
  sqlpilot --driver postgres -H db -u app -d orders`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
				cfg = config.DefaultConfig()
			}
			if themeFlag != "" {
				cfg.Theme = themeFlag
			}
			th := theme.Get(cfg.Theme)

			var hist *history.Store
			if cfg.History.Enabled {
				hist, err = history.OpenDefault(cfg.History.MaxEntries)
				if err != nil {
					fmt.Fprintf(os.Stderr, "warning: could not open history: %v\n", err)
				}
			}
			if hist != nil {
				defer hist.Close()
			}

			aud, err := openAudit(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: could not open audit log: %v\n", err)
			}
			if aud != nil {
				defer aud.Close()
			}

			sess := session.New(conn.NewManager(conn.Options{
				QueryTimeout:   cfg.Timeouts.Query.Std(),
				ConnectTimeout: cfg.Timeouts.Probe.Std(),
				MaxRows:        cfg.Results.MaxRows,
			}))
			model := app.New(cfg, th, sess, hist, aud)

			adhoc := config.SavedConnection{
				Driver:   driverFlag,
				Host:     hostFlag,
				Port:     portFlag,
				User:     userFlag,
				Password: passwordFlag,
				Database: databaseFlag,
				File:     fileFlag,
				DSN:      dsnFlag,
			}

			var initCmd tea.Cmd
			switch {
			case len(args) > 0:
				initCmd = model.InitialConnect(args[0])
			case adhoc.Driver != "":
				if _, ok := driver.Lookup(adhoc.Driver); !ok {
					return fmt.Errorf("unknown driver %q (available: %s)", adhoc.Driver, driverNames())
				}
				adhoc.Name = "cli"
				initCmd = model.ConnectTo(adhoc)
			default:
				model.ShowConnections()
			}

			p := tea.NewProgram(model, tea.WithAltScreen())
			if initCmd != nil {
				go func() { p.Send(initCmd()) }()
			}

			if _, err := p.Run(); err != nil {
				return fmt.Errorf("run: %w", err)
			}
			return sess.Manager().Disconnect()
		},
	}

	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "config file path")
	rootCmd.Flags().StringVar(&themeFlag, "theme", "", "color theme (default, light, monokai)")
	rootCmd.Flags().StringVar(&driverFlag, "driver", "", "database driver (postgres, mysql, sqlite, duckdb)")
	rootCmd.Flags().StringVarP(&hostFlag, "host", "H", "", "database host")
	rootCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "database port")
	rootCmd.Flags().StringVarP(&userFlag, "user", "u", "", "database user")
	rootCmd.Flags().StringVarP(&passwordFlag, "password", "P", "", "database password")
	rootCmd.Flags().StringVarP(&databaseFlag, "database", "d", "", "database name")
	rootCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "database file (sqlite, duckdb)")
	rootCmd.Flags().StringVar(&dsnFlag, "dsn", "", "full connection string")

	rootCmd.AddCommand(execCommand(), versionCommand())
	return rootCmd
}

// execCommand runs one query non-interactively and writes the result to
// stdout or a file, for scripting and pipelines.
func execCommand() *cobra.Command {
	var (
		configFlag     string
		connectionFlag string
		queryFlag      string
		fileFlag       string
		formatFlag     string
		outputFlag     string
	)

	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Execute a query and print the result",
		Long: `Execute a single query against a saved connection without the TUI.

Examples:
  sqlpilot exec -C prod -q "SELECT * FROM users LIMIT 10"
  sqlpilot exec -C prod -f report.sql --format json -o report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}

			saved, ok := cfg.Connection(connectionFlag)
			if !ok {
				return fmt.Errorf("no saved connection named %q", connectionFlag)
			}

			query := queryFlag
			if query == "" && fileFlag != "" {
				data, err := os.ReadFile(fileFlag)
				if err != nil {
					return fmt.Errorf("read query file: %w", err)
				}
				query = string(data)
			}
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("no query: pass -q or -f")
			}

			mgr := conn.NewManager(conn.Options{
				QueryTimeout:   cfg.Timeouts.Query.Std(),
				ConnectTimeout: cfg.Timeouts.Probe.Std(),
				MaxRows:        cfg.Results.MaxRows,
			})
			ctx := context.Background()
			if err := mgr.Connect(ctx, saved.Driver, saved.Target()); err != nil {
				return fmt.Errorf("connect: %s", conn.Scrub(err.Error()))
			}
			defer mgr.Disconnect()

			exec, err := mgr.Execute(ctx, query)
			if err != nil {
				return fmt.Errorf("execute: %s", conn.Scrub(err.Error()))
			}
			res := exec.Result

			out := os.Stdout
			if outputFlag != "" {
				f, err := os.Create(outputFlag)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			if !res.IsSelect {
				fmt.Fprintln(out, res.Message)
				return nil
			}

			switch strings.ToLower(formatFlag) {
			case "csv":
				_, err = results.WriteCSV(out, res.Columns, res.Rows)
			case "json":
				_, err = results.WriteJSON(out, res.Columns, res.Rows)
			default:
				return fmt.Errorf("unknown format %q (csv, json)", formatFlag)
			}
			if err != nil {
				return err
			}
			if res.Truncated {
				fmt.Fprintf(os.Stderr, "warning: result truncated at %d rows\n", len(res.Rows))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "config file path")
	cmd.Flags().StringVarP(&connectionFlag, "connection", "C", "", "saved connection name")
	cmd.Flags().StringVarP(&queryFlag, "query", "q", "", "query text")
	cmd.Flags().StringVarP(&fileFlag, "file", "f", "", "file holding the query")
	cmd.Flags().StringVar(&formatFlag, "format", "csv", "output format (csv, json)")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "output path (default stdout)")
	cmd.MarkFlagRequired("connection")
	return cmd
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sqlpilot %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Printf("drivers: %s\n", driverNames())
		},
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}

func openAudit(cfg *config.Config) (*audit.Logger, error) {
	if !cfg.Audit.Enabled {
		return nil, nil
	}
	path := cfg.Audit.Path
	if path == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return nil, err
		}
		path = dir + "/audit.jsonl"
	}
	return audit.New(path, cfg.Audit.MaxSizeMB)
}

func driverNames() string {
	var names []string
	for name := range driver.Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
