package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"

	"github.com/roach88/qsearch/internal/config"
	"github.com/roach88/qsearch/internal/observability"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Settings are resolved from flags and QSEARCH_* variables before
	// any subcommand runs.
	Settings config.Settings
	Logger   *slog.Logger

	viper    *viper.Viper
	shutdown func(context.Context) error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the qsearch CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{viper: config.NewViper()}

	cmd := &cobra.Command{
		Use:   "qsearch",
		Short: "qsearch - search forms to queries",
		Long:  "Compose filter, sort and pagination requests into queries over SQLite, PostgreSQL or in-memory data.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd.ErrOrStderr())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.shutdown != nil {
				return opts.shutdown(cmd.Context())
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.String("db", "qsearch.db", "SQLite database path")
	flags.String("dialect", "sqlite", "SQL dialect (sqlite|postgres|sqlserver)")
	flags.String("postgres-dsn", "", "PostgreSQL connection string, used with --dialect postgres")
	flags.String("culture", "", "culture for localized keywords, e.g. da or en-US")
	for _, name := range []string{"verbose", "format", "db", "dialect", "culture"} {
		_ = opts.viper.BindPFlag(name, flags.Lookup(name))
	}
	_ = opts.viper.BindPFlag("postgres_dsn", flags.Lookup("postgres-dsn"))

	// Add subcommands
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewIndexCommand(opts))
	cmd.AddCommand(NewSQLCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolve loads the settings and sets up logging and tracing.
func (o *RootOptions) resolve(stderr io.Writer) error {
	settings, err := config.LoadSettings(o.viper)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return NewExitError(ExitCommandError, err.Error())
	}
	if !isValidFormat(settings.Format) {
		msg := fmt.Sprintf("invalid format %q: must be one of %v", settings.Format, ValidFormats)
		fmt.Fprintf(stderr, "Error: %s\n", msg)
		return NewExitError(ExitCommandError, msg)
	}
	o.Settings = settings
	o.Format = settings.Format
	o.Verbose = settings.Verbose
	o.Logger = newLogger(stderr, settings.Verbose)

	if settings.Verbose {
		tp := observability.NewTracerProvider(o.Logger)
		otel.SetTracerProvider(tp)
		o.shutdown = tp.Shutdown
	}
	return nil
}

// logger returns the resolved logger, or a discarding one when the
// command runs without the root command, as in tests.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
