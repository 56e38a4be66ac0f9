package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/qsearch/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // rewrite golden traces
	Filter string // glob over scenario names
}

// Golden trace states of a scenario.
const (
	GoldenNone     = ""
	GoldenMatched  = "matched"
	GoldenUpdated  = "updated"
	GoldenMismatch = "mismatch"
)

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name             string                 `json:"name"`
	Pass             bool                   `json:"pass"`
	Backends         []string               `json:"backends,omitempty"`
	Steps            int                    `json:"steps"`
	Assertions       int                    `json:"assertions"`
	FailedAssertions int                    `json:"failed_assertions"`
	Disagreements    []harness.Disagreement `json:"disagreements,omitempty"`
	Golden           string                 `json:"golden,omitempty"`
	Errors           []string               `json:"errors,omitempty"`
}

// TestResult aggregates every scenario of a run.
type TestResult struct {
	Scenarios     []ScenarioResult `json:"scenarios"`
	Passed        int              `json:"passed"`
	Failed        int              `json:"failed"`
	Total         int              `json:"total"`
	Steps         int              `json:"steps"`
	Disagreements int              `json:"disagreements"`
}

func (r *TestResult) add(s ScenarioResult) {
	r.Scenarios = append(r.Scenarios, s)
	r.Total++
	r.Steps += s.Steps * max(len(s.Backends), 1)
	r.Disagreements += len(s.Disagreements)
	if s.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run search scenarios on every backend",
		Long: `Run scenario files against the in-memory and SQLite backends.

Each scenario seeds a provider's table and runs its search steps on every
backend. A scenario fails when a step misses its expectation, an assertion
does not hold, or a backend returns a different page than the first one.
When <scenarios-dir>/golden/<name>.golden exists the primary trace must
match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  qsearch test ./scenarios
  qsearch test ./scenarios --filter "notes_*"
  qsearch test ./scenarios --update
  qsearch test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden traces from this run")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose name matches this glob")

	return cmd
}

func runTests(cmd *cobra.Command, opts *TestOptions, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("finding scenarios: %v", err))
	}

	result := TestResult{Scenarios: []ScenarioResult{}}
	for _, file := range files {
		result.add(runScenario(cmd.Context(), file, opts.Update))
	}

	if opts.Format == "json" {
		return writeTestJSON(cmd.OutOrStdout(), result)
	}
	return writeTestText(cmd.OutOrStdout(), result)
}

// findScenarioFiles returns the .yaml and .yml files under dir whose
// name matches filter. Golden directories are skipped.
func findScenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// runScenario loads and runs one scenario file, then checks or rewrites
// its golden trace.
func runScenario(ctx context.Context, file string, update bool) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{Name: filepath.Base(file), Errors: []string{fmt.Sprintf("load: %v", err)}}
	}
	run, err := harness.Run(ctx, scenario)
	if err != nil {
		return ScenarioResult{Name: scenario.Name, Errors: []string{fmt.Sprintf("run: %v", err)}}
	}

	res := ScenarioResult{
		Name:             scenario.Name,
		Pass:             run.Pass,
		Backends:         run.Backends,
		Steps:            run.Steps,
		Assertions:       run.Assertions,
		FailedAssertions: run.FailedAssertions,
		Disagreements:    run.Disagreements,
		Errors:           run.Errors,
	}

	golden, err := checkGolden(goldenFilePath(file), scenario, run, update)
	if err != nil {
		res.Pass = false
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	res.Golden = golden
	if golden == GoldenMismatch {
		res.Pass = false
		res.Errors = append(res.Errors, "trace differs from golden file (run with --update to regenerate)")
	}
	return res
}

// goldenFilePath returns <dir>/golden/<name>.golden for a scenario file.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	return filepath.Join(filepath.Dir(scenarioFile), "golden", strings.TrimSuffix(base, filepath.Ext(base))+".golden")
}

// checkGolden compares the run's trace with the golden file at path, or
// rewrites it when update is set. A missing golden file is not checked.
func checkGolden(path string, scenario *harness.Scenario, run *harness.Result, update bool) (string, error) {
	data, err := harness.Snapshot(scenario, run)
	if err != nil {
		return GoldenNone, fmt.Errorf("snapshot: %w", err)
	}

	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return GoldenNone, fmt.Errorf("golden directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return GoldenNone, fmt.Errorf("write golden: %w", err)
		}
		return GoldenUpdated, nil
	}

	want, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return GoldenNone, nil
	case err != nil:
		return GoldenNone, fmt.Errorf("read golden: %w", err)
	case bytes.Equal(want, data):
		return GoldenMatched, nil
	}
	return GoldenMismatch, nil
}

func writeTestJSON(w io.Writer, result TestResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		resp.Status = "error"
		resp.Error = &CLIError{Code: ErrCodeTestFailed, Message: fmt.Sprintf("%d scenario(s) failed", result.Failed)}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, resp.Error.Message)
	}
	return nil
}

func writeTestText(w io.Writer, result TestResult) error {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	for _, s := range result.Scenarios {
		mark := "✓"
		if !s.Pass {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s", mark, s.Name)
		if len(s.Backends) > 0 {
			fmt.Fprintf(w, ": %d step(s), %d/%d assertion(s) on %s",
				s.Steps, s.Assertions-s.FailedAssertions, s.Assertions, strings.Join(s.Backends, ", "))
		}
		if s.Golden != GoldenNone {
			fmt.Fprintf(w, " (golden %s)", s.Golden)
		}
		fmt.Fprintln(w)

		for _, d := range s.Disagreements {
			fmt.Fprintf(w, "  %s disagrees with %s on %s\n", d.Backend, s.Backends[0], d)
		}
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	fmt.Fprintf(w, "%d search(es) run, %d backend disagreement(s)\n", result.Steps, result.Disagreements)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
