package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qsearch/internal/harness"
)

var harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// copyScenario lays out a scenario and its definitions the way the
// scenario's relative definitions path expects.
func copyScenario(t *testing.T, name string) string {
	t.Helper()
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	definitions := filepath.Join(root, "definitions")
	require.NoError(t, os.MkdirAll(scenarios, 0755))
	require.NoError(t, os.MkdirAll(definitions, 0755))

	src, err := os.ReadFile(filepath.Join(harnessScenarios, name+".yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(scenarios, name+".yaml"), src, 0644))

	defs, err := os.ReadFile(filepath.Join(harnessScenarios, "..", "definitions", "library.cue"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(definitions, "library.cue"), defs, 0644))
	return scenarios
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCommand(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := runTestCommand(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := runTestCommand(t, "json", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandRunsScenarios(t *testing.T) {
	out, err := runTestCommand(t, "text", harnessScenarios)
	require.NoError(t, err, out)

	assert.Contains(t, out, "✓ notes_paging: 8 step(s), 3/3 assertion(s) on memory, sqlite\n")
	assert.Contains(t, out, "✓ books_keywords: 14 step(s), 2/2 assertion(s) on memory, sqlite\n")
	assert.Contains(t, out, "✓ articles_fulltext: 5 step(s), 2/2 assertion(s) on sqlite\n")
	assert.Contains(t, out, "Test Summary: 3 passed, 0 failed, 3 total")
	assert.Contains(t, out, "49 search(es) run, 0 backend disagreement(s)")
}

func TestTestCommandFilterJSON(t *testing.T) {
	out, err := runTestCommand(t, "json", harnessScenarios, "--filter", "notes_*")
	require.NoError(t, err, out)

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, 1, response.Data.Total)
	require.Len(t, response.Data.Scenarios, 1)
	got := response.Data.Scenarios[0]
	assert.Equal(t, "notes_paging", got.Name)
	assert.True(t, got.Pass)
	assert.Equal(t, []string{"memory", "sqlite"}, got.Backends)
	assert.Equal(t, 8, got.Steps)
	assert.Equal(t, 3, got.Assertions)
	assert.Zero(t, got.FailedAssertions)
	assert.Empty(t, got.Disagreements)
	assert.Equal(t, GoldenNone, got.Golden)
	assert.Equal(t, 16, response.Data.Steps)
}

func TestTestCommandGoldenRoundTrip(t *testing.T) {
	dir := copyScenario(t, "notes_paging")

	out, err := runTestCommand(t, "text", dir, "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ notes_paging: 8 step(s), 3/3 assertion(s) on memory, sqlite (golden updated)")

	golden := filepath.Join(dir, "golden", "notes_paging.golden")
	require.FileExists(t, golden)

	out, err = runTestCommand(t, "text", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ notes_paging: 8 step(s), 3/3 assertion(s) on memory, sqlite (golden matched)\n")

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0644))
	out, err = runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ notes_paging: 8 step(s), 3/3 assertion(s) on memory, sqlite (golden mismatch)")
	assert.Contains(t, out, "  trace differs from golden file")
}

func TestWriteTestTextReportsBackends(t *testing.T) {
	result := TestResult{}
	result.add(ScenarioResult{
		Name:             "books_keywords",
		Backends:         []string{"memory", "sqlite"},
		Steps:            3,
		Assertions:       2,
		FailedAssertions: 1,
		Disagreements: []harness.Disagreement{
			{Backend: "sqlite", Step: "by_title", Detail: "result full=3 filtered=3 skip=0 take=20 keys=[1 2] vs full=3 filtered=3 skip=0 take=20 keys=[2 1]"},
			{Backend: "sqlite", Step: "paged"},
		},
		Errors: []string{"ordered_by: expected by_title items ascending by Title"},
	})
	result.add(ScenarioResult{Name: "broken.yaml", Errors: []string{"load: no steps"}})

	buf := &bytes.Buffer{}
	err := writeTestText(buf, result)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Equal(t, `✗ books_keywords: 3 step(s), 1/2 assertion(s) on memory, sqlite
  sqlite disagrees with memory on step by_title: result full=3 filtered=3 skip=0 take=20 keys=[1 2] vs full=3 filtered=3 skip=0 take=20 keys=[2 1]
  sqlite disagrees with memory on step paged missing
  ordered_by: expected by_title items ascending by Title
✗ broken.yaml
  load: no steps

Test Summary: 0 passed, 2 failed, 2 total
6 search(es) run, 2 backend disagreement(s)
`, buf.String())
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	out, err := runTestCommand(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "error", response.Status)
	assert.Equal(t, 1, response.Data.Failed)
	require.NotNil(t, response.Error)
	assert.Equal(t, ErrCodeTestFailed, response.Error.Code)
}

func TestTestHelpText(t *testing.T) {
	out, err := runTestCommand(t, "text", "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "backend")
	assert.Contains(t, out, "--update")
	assert.Contains(t, out, "--filter")
	assert.Contains(t, out, "scenarios-dir")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	// Create scenario files
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test1.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test2.yml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ignore.txt"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "books-paging.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "books-keywords.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes-paging.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "books-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	for _, f := range files {
		assert.Regexp(t, `books-[a-z]+\.yaml$`, f)
	}
}

func TestFindScenarioFilesSkipsGolden(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	goldenDir := filepath.Join(tmpDir, "golden")
	require.NoError(t, os.MkdirAll(subDir, 0755))
	require.NoError(t, os.MkdirAll(goldenDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "sub.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "stray.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestGoldenFilePath(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"/path/to/scenario.yaml", "/path/to/golden/scenario.golden"},
		{"/path/to/scenario.yml", "/path/to/golden/scenario.golden"},
		{"scenarios/test.yaml", "scenarios/golden/test.golden"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, goldenFilePath(tc.input))
	}
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, err := runTestCommand(t, "text", harnessScenarios, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid filter pattern")
}
