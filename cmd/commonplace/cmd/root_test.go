package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI with the given args against an isolated data
// directory and returns captured stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setupDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("COMMONPLACE_DATA_DIR", dir)
	return dir
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"add", "search", "similar", "stats", "reindex", "config", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestAddThenSearch(t *testing.T) {
	setupDataDir(t)

	out, err := run(t, "add", "The unexamined life is not worth living.", "--author", "Socrates")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed ")

	out, err = run(t, "search", "unexamined")
	require.NoError(t, err)
	assert.Contains(t, out, "Socrates")
	assert.Contains(t, out, "unexamined")
}

func TestSearch_NoResults(t *testing.T) {
	setupDataDir(t)

	out, err := run(t, "search", "nonexistent")
	require.NoError(t, err)
	assert.Contains(t, out, "No results.")
}

func TestStats(t *testing.T) {
	setupDataDir(t)

	_, err := run(t, "add", "Know thyself.", "--author", "Socrates")
	require.NoError(t, err)

	out, err := run(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents:      1")
}

func TestReindex(t *testing.T) {
	setupDataDir(t)

	_, err := run(t, "add", "Time discovers truth.", "--author", "Seneca")
	require.NoError(t, err)

	out, err := run(t, "reindex", "--optimize")
	require.NoError(t, err)
	assert.Contains(t, out, "Rebuilt indices for 1 documents")

	out, err = run(t, "search", "truth")
	require.NoError(t, err)
	assert.Contains(t, out, "Seneca")
}

func TestConfigInit(t *testing.T) {
	setupDataDir(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote ")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "chunking:")

	// A second init without --force refuses to overwrite.
	_, err = run(t, "config", "init", path)
	require.Error(t, err)

	_, err = run(t, "config", "init", path, "--force")
	require.NoError(t, err)
}

func TestAdd_RejectsEmptyText(t *testing.T) {
	setupDataDir(t)

	_, err := run(t, "add", "   ")
	require.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "commonplace")
}
