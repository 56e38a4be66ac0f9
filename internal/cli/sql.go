package cli

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qsearch/internal/config"
	"github.com/roach88/qsearch/internal/queryir"
	"github.com/roach88/qsearch/internal/querysql"
)

// StatementOutput is one rendered statement.
type StatementOutput struct {
	Text string         `json:"text"`
	Args map[string]any `json:"args,omitempty"`
}

// SQLResult holds the statements a search would run.
type SQLResult struct {
	Provider string          `json:"provider"`
	Dialect  string          `json:"dialect"`
	Count    StatementOutput `json:"count"`
	List     StatementOutput `json:"list"`
	Skip     int             `json:"skip"`
	Take     int             `json:"take"`
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FormOptions{}

	cmd := &cobra.Command{
		Use:   "sql --provider <definition> [form flags]",
		Short: "Print the statements a search would run",
		Long: `Compose a search form into the filtered count and list statements
for the configured dialect and print them with their parameters, without
touching a database.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(cmd, rootOpts, opts)
		},
	}
	opts.register(cmd)
	return cmd
}

func runSQL(cmd *cobra.Command, rootOpts *RootOptions, opts *FormOptions) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	def, err := loadDefinition(opts)
	if err != nil {
		return formatter.Fail(err)
	}
	form, err := opts.Form(cmd)
	if err != nil {
		return formatter.Fail(err)
	}

	dialect := rootOpts.Settings.SQLDialect()
	provider, err := def.Provider(dialect)
	if err != nil {
		return formatter.Fail(err)
	}

	ctx := searchContext(cmd.Context(), rootOpts)
	filtered, err := provider.ApplyWhere(ctx, def.Query(nil, dialect), form)
	if err != nil {
		return formatter.Fail(err)
	}
	window, err := provider.ApplyPagination(ctx, filtered, form)
	if err != nil {
		return formatter.Fail(err)
	}

	result := SQLResult{Provider: def.Name, Dialect: dialect.Name(), Skip: window.Skip, Take: window.Take}
	if result.Count, err = countStatement(filtered); err != nil {
		return formatter.Fail(err)
	}
	if result.List, err = listStatement(window.Query); err != nil {
		return formatter.Fail(err)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	for _, s := range []struct {
		label string
		stmt  StatementOutput
	}{{"count", result.Count}, {"list", result.List}} {
		fmt.Fprintf(formatter.Writer, "-- %s\n%s\n", s.label, s.stmt.Text)
		for name, v := range s.stmt.Args {
			fmt.Fprintf(formatter.Writer, "-- @%s = %#v\n", name, v)
		}
		fmt.Fprintln(formatter.Writer)
	}
	return nil
}

func countStatement(q queryir.Queryable[config.Entity]) (StatementOutput, error) {
	cq, ok := q.(*querysql.Query[config.Entity])
	if !ok {
		return StatementOutput{}, fmt.Errorf("query %T has no count statement", q)
	}
	stmt, err := cq.CountStatement()
	if err != nil {
		return StatementOutput{}, err
	}
	return statementOutput(stmt), nil
}

func listStatement(q queryir.Queryable[config.Entity]) (StatementOutput, error) {
	lq, ok := q.(*querysql.Query[config.Entity])
	if !ok {
		return StatementOutput{}, fmt.Errorf("query %T cannot be rendered", q)
	}
	stmt, err := lq.Render()
	if err != nil {
		return StatementOutput{}, err
	}
	return statementOutput(stmt), nil
}

// statementOutput names the arguments. Positional arguments, as the
// PostgreSQL dialect binds them, are named by position.
func statementOutput(stmt queryir.Statement) StatementOutput {
	out := StatementOutput{Text: stmt.Text}
	if len(stmt.Args) == 0 {
		return out
	}
	out.Args = make(map[string]any, len(stmt.Args))
	for i, a := range stmt.Args {
		if na, ok := a.(sql.NamedArg); ok {
			out.Args[na.Name] = na.Value
			continue
		}
		out.Args[fmt.Sprintf("%d", i+1)] = a
	}
	return out
}
