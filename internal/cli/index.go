package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/qsearch/internal/store"
)

// IndexOptions holds the index command flags.
type IndexOptions struct {
	Name string
	List bool
}

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexOptions{}

	cmd := &cobra.Command{
		Use:   "index [<definitions>]",
		Short: "Create or rebuild full-text indexes",
		Long: `Create the SQLite FTS5 index for a provider with full_text settings,
keep it in sync with the entity table through triggers, and rebuild it.
Running it again rebuilds the index.

With --list, print the indexes recorded in the database instead.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runIndex(cmd, rootOpts, opts, path)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "provider name, required when the definition holds several")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded indexes")
	return cmd
}

func runIndex(cmd *cobra.Command, rootOpts *RootOptions, opts *IndexOptions, path string) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}
	if !opts.List && path == "" {
		return formatter.Fail(NewExitError(ExitCommandError, "a definition path is required unless --list is given"))
	}

	ctx := cmd.Context()
	st, err := openStore(ctx, rootOpts)
	if err != nil {
		return formatter.FailDatabase("open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			rootOpts.logger().Error("error closing database", "error", closeErr)
		}
	}()

	if opts.List {
		infos, err := st.FullTextIndexes(ctx)
		if err != nil {
			return formatter.FailDatabase("list indexes", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(infos)
		}
		if len(infos) == 0 {
			fmt.Fprintln(formatter.Writer, "no full-text indexes")
		}
		for _, info := range infos {
			writeIndexInfo(formatter, info)
		}
		return nil
	}

	def, err := loadNamedDefinition(path, opts.Name)
	if err != nil {
		return formatter.Fail(err)
	}
	if def.FullText == nil {
		return formatter.Fail(NewExitError(ExitCommandError, fmt.Sprintf("provider %s has no full_text settings", def.Name)))
	}

	formatter.VerboseLog("Indexing %s into %s", def.Table, def.FullText.Table.Index)
	info, err := st.EnsureFullTextIndex(ctx, def.FullText.Table)
	if err != nil {
		return formatter.Fail(err)
	}
	if formatter.Format == "json" {
		return formatter.Success(info)
	}
	fmt.Fprint(formatter.Writer, "✓ ")
	writeIndexInfo(formatter, info)
	return nil
}

func writeIndexInfo(formatter *OutputFormatter, info store.IndexInfo) {
	fmt.Fprintf(formatter.Writer, "%s on %s(%s) key %s, build %s at %s\n",
		info.Index, info.Table, strings.Join(info.Columns, ", "), info.Key,
		info.BuildID, info.RebuiltAt.UTC().Format(time.RFC3339))
}
