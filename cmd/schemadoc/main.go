package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sadopc/schemadoc/internal/adapter"
	"github.com/sadopc/schemadoc/internal/adapter/mssql"
	"github.com/sadopc/schemadoc/internal/adapter/mysql"
	"github.com/sadopc/schemadoc/internal/app"
	"github.com/sadopc/schemadoc/internal/audit"
	"github.com/sadopc/schemadoc/internal/config"
	"github.com/sadopc/schemadoc/internal/console"
	"github.com/sadopc/schemadoc/internal/docs"
	"github.com/sadopc/schemadoc/internal/extract"
	"github.com/sadopc/schemadoc/internal/highlight"
	"github.com/sadopc/schemadoc/internal/history"
	"github.com/sadopc/schemadoc/internal/theme"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// flags holds the command-line values that override the config file.
type flags struct {
	configPath      string
	engine          string
	host            string
	port            int
	user            string
	password        string
	trusted         bool
	output          string
	databases       []string
	restrictionList string
	excludeSystem   bool
	pruneColumns    bool
	auditLog        string
	history         string
	noHistory       bool
	verbose         bool
	theme           string
}

func main() {
	root := newRootCmd(os.Stdout)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, console.Format(console.LevelCritical, err.Error()))
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	var f flags

	rootCmd := &cobra.Command{
		Use:   "schemadoc",
		Short: "Extract database schemas into JSON, SQL scripts and documentation",
		Long: `schemadoc reads the catalog of every database on a MySQL, MariaDB or
SQL Server instance and writes, per database:

  <output>/<db>/<db>_schema.json    normalized schema
  <output>/<db>/<category>/*.sql    one DDL script per object
  <output>/<db>/Documentation.json  descriptions, kept in sync with the schema

Examples:
  schemadoc --engine mysql -H localhost -u root -P secret -o ./docs
  schemadoc --engine mssql -H sql01 --trusted --databases sales,hr
  schemadoc --config ./schemadoc.yaml --restriction-list ./skip.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), stdout, cfg, f.verbose)
		},
	}

	fl := rootCmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "Config file path")
	fl.StringVarP(&f.engine, "engine", "e", "", "Database engine (mysql, mariadb, mssql)")
	fl.StringVar(&f.engine, "db-type", "", "Alias for --engine")
	fl.StringVarP(&f.host, "host", "H", "", "Database host")
	fl.IntVarP(&f.port, "port", "p", 0, "Database port (default: engine port)")
	fl.StringVarP(&f.user, "user", "u", "", "Database user")
	fl.StringVarP(&f.password, "password", "P", "", "Database password")
	fl.BoolVar(&f.trusted, "trusted", false, "Use integrated authentication (SQL Server)")
	fl.StringVarP(&f.output, "output", "o", "", "Output root directory")
	fl.StringSliceVarP(&f.databases, "databases", "d", nil, "Databases to extract (default: all)")
	fl.StringVar(&f.restrictionList, "restriction-list", "", "JSON or YAML array of databases to skip")
	fl.BoolVar(&f.excludeSystem, "exclude-system-databases", true, "Skip the engine's system databases")
	fl.BoolVar(&f.pruneColumns, "prune-columns", false, "Remove documented columns that no longer exist")
	fl.StringVar(&f.auditLog, "audit-log", "", "Write a JSON line per database to this file")
	fl.StringVar(&f.history, "history", "", "Run history database path")
	fl.BoolVar(&f.noHistory, "no-history", false, "Do not record run history")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Print debug messages")
	fl.StringVar(&f.theme, "theme", "", "Console theme (default, light, monokai)")
	_ = fl.MarkHidden("db-type")

	rootCmd.AddCommand(newVersionCmd(stdout), newHistoryCmd(stdout, &f), newShowCmd(stdout, &f))
	return rootCmd
}

// loadConfig reads the config file and applies every flag the user set.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.Load(f.configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("engine") || changed("db-type") {
		cfg.Engine = f.engine
	}
	if changed("host") {
		cfg.Host = f.host
	}
	if changed("port") {
		cfg.Port = f.port
	}
	if changed("user") {
		cfg.User = f.user
	}
	if changed("password") {
		cfg.Password = f.password
	}
	if changed("trusted") {
		cfg.Trusted = f.trusted
	}
	if changed("output") {
		cfg.Output = f.output
	}
	if changed("databases") {
		cfg.Databases = f.databases
	}
	if changed("restriction-list") {
		cfg.RestrictionList = f.restrictionList
	}
	if changed("exclude-system-databases") {
		cfg.ExcludeSystemDatabases = f.excludeSystem
	}
	if changed("prune-columns") {
		cfg.PruneColumns = f.pruneColumns
	}
	if changed("audit-log") {
		cfg.AuditLog = f.auditLog
	}
	if changed("history") {
		cfg.History = f.history
	}
	if changed("no-history") {
		cfg.NoHistory = f.noHistory
	}
	if changed("theme") {
		cfg.Theme = f.theme
	}

	if err := cfg.LoadRestrictions(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, stdout io.Writer, cfg *config.Config, verbose bool) error {
	p := console.NewPrinter(stdout, theme.Get(cfg.Theme), verbose)

	ex, err := extract.New(cfg.Engine, cfg.ConnectOptions(), cfg.Databases)
	if err != nil {
		return err
	}

	r := &app.Runner{
		Source:     ex,
		Output:     cfg.Output,
		Restricted: cfg.Restrictions(ex.SystemDatabases()),
		Docs:       docs.Options{PruneColumns: cfg.PruneColumns},
		Printer:    p,
		Host:       cfg.Host,
		DSN:        serverDSN(ex.Engine(), ex.Options()),
	}

	if cfg.AuditLog != "" {
		al, err := audit.New(cfg.AuditLog, 0)
		if err != nil {
			p.Warning("could not open audit log: %v", err)
		} else {
			defer al.Close()
			r.Audit = al
		}
	}

	if path, err := cfg.HistoryPath(); err != nil {
		p.Warning("could not locate history: %v", err)
	} else if path != "" {
		h, err := history.Open(path)
		if err != nil {
			p.Warning("could not open history: %v", err)
		} else {
			defer h.Close()
			r.History = h
		}
	}

	sum, err := r.Run(ctx)
	if err != nil {
		return err
	}
	if len(sum.Failed) > 0 {
		p.Warning("failed databases: %s", strings.Join(sum.Failed, ", "))
	}
	return nil
}

// serverDSN renders the server-scoped DSN recorded in the audit log.
func serverDSN(engine string, opts adapter.ConnectOptions) string {
	switch engine {
	case "mssql":
		return mssql.BuildDSN(opts)
	case "mysql":
		return mysql.BuildDSN(opts)
	}
	return ""
}

// ---------------------------------------------------------------------------
// Subcommands
// ---------------------------------------------------------------------------

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "schemadoc %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Fprintln(stdout, "\nSupported engines:")
			for _, name := range adapter.Names() {
				fmt.Fprintf(stdout, "  - %s\n", name)
			}
		},
	}
}

func newHistoryCmd(stdout io.Writer, f *flags) *cobra.Command {
	var (
		limit    int
		search   string
		clearAll bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent per-database run outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadHistoryConfig(f)
			if err != nil {
				return err
			}
			path, err := cfg.HistoryPath()
			if err != nil {
				return err
			}
			if path == "" {
				return errors.New("history is disabled")
			}
			h, err := history.Open(path)
			if err != nil {
				return err
			}
			defer h.Close()

			if clearAll {
				return h.Clear()
			}

			var entries []history.Entry
			if search != "" {
				entries, err = h.Search(search, limit)
			} else {
				entries, err = h.Recent(limit)
			}
			if err != nil {
				return err
			}
			return printHistory(stdout, entries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only show databases matching this LIKE pattern")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete all recorded history")
	cmd.Flags().StringVar(&f.history, "history", "", "Run history database path")
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Config file path")
	return cmd
}

func loadHistoryConfig(f *flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.Load(f.configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if f.history != "" {
		cfg.History = f.history
		cfg.NoHistory = false
	}
	return cfg, nil
}

func printHistory(w io.Writer, entries []history.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No history recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tENGINE\tHOST\tDATABASE\tSTATUS\tOBJECTS\tDURATION\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%dms\t%s\n",
			e.ExecutedAt.Local().Format("2006-01-02 15:04:05"),
			e.Engine, e.Host, e.DatabaseName, e.Status, e.ObjectCount, e.DurationMS, e.Message)
	}
	return tw.Flush()
}

func newShowCmd(stdout io.Writer, f *flags) *cobra.Command {
	var lexer, engine string
	cmd := &cobra.Command{
		Use:   "show <file.sql>",
		Short: "Print an extracted SQL script with syntax highlighting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("show: %w", err)
			}
			script := string(data)

			name := lexer
			if name == "" && engine != "" {
				name = highlight.LexerFor(engine)
			}
			if name == "" {
				name = highlight.Detect(script)
			}

			out := highlight.New(name).Highlight(script, theme.Get(f.theme))
			if !strings.HasSuffix(out, "\n") {
				out += "\n"
			}
			_, err = io.WriteString(stdout, out)
			return err
		},
	}
	cmd.Flags().StringVarP(&lexer, "lexer", "l", "", "Chroma lexer name (tsql, mysql, sql)")
	cmd.Flags().StringVarP(&engine, "engine", "e", "", "Pick the lexer for this engine")
	cmd.Flags().StringVar(&f.theme, "theme", "", "Console theme (default, light, monokai)")
	return cmd
}
