package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mschirtzinger/lifedeck/internal/remote"
	"github.com/mschirtzinger/lifedeck/internal/store"
)

// resetFlags restores every flag to its default; commands are package
// state shared by all runs in a test binary.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfgFile = ""

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "lifedeck %s", strings.Join(args, " "))
	return out
}

func exportSnapshot(t *testing.T, args ...string) store.Snapshot {
	t.Helper()
	out := mustRun(t, append(args, "export")...)
	var snap store.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	return snap
}

func TestLocalWorkflow(t *testing.T) {
	t.Setenv("LIFEDECK_DATA_DIR", t.TempDir())
	t.Setenv("LIFEDECK_REMOTE_URL", "")

	out := mustRun(t, "task", "add", "Draft", "report", "--priority", "p2", "--tag", "work")
	assert.Contains(t, out, "added task")
	mustRun(t, "task", "add", "Gym", "--day", "mon", "--period", "morning")

	out = mustRun(t, "task", "list")
	assert.Contains(t, out, "P2 Draft report #work")
	assert.Contains(t, out, "Mon morning")

	snap := exportSnapshot(t)
	require.Len(t, snap.Tasks, 2)
	var draftID string
	for _, task := range snap.Tasks {
		if task.Title == "Draft report" {
			draftID = task.ID
		}
	}
	require.NotEmpty(t, draftID)

	mustRun(t, "task", "done", draftID[:8])
	out = mustRun(t, "task", "list")
	assert.NotContains(t, out, "Draft report")
	out = mustRun(t, "task", "list", "--all")
	assert.Contains(t, out, "[x] P2 Draft report")

	mustRun(t, "habit", "add", "Read")
	habitID := exportSnapshot(t).Habits[0].ID
	mustRun(t, "habit", "check", habitID)
	out = mustRun(t, "habit", "list")
	assert.Contains(t, out, "● Read")

	mustRun(t, "folder", "add", "Work")
	mustRun(t, "note", "add", "Ideas", "--content", "Try the new cafe", "--folder", "work")
	out = mustRun(t, "note", "list")
	assert.Contains(t, out, "Ideas Work")

	out = mustRun(t, "settings", "set", "--theme", "dark", "--week-start", "sun")
	assert.Contains(t, out, "dark")
	assert.Contains(t, out, "Sun")

	_, err := run(t, "sync")
	assert.ErrorContains(t, err, "no remote configured")

	_, err = run(t, "task", "rm", "nope")
	assert.ErrorContains(t, err, "no task matches")
}

func TestExportFormats(t *testing.T) {
	t.Setenv("LIFEDECK_DATA_DIR", t.TempDir())
	t.Setenv("LIFEDECK_REMOTE_URL", "")
	mustRun(t, "task", "add", "Draft report")

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(mustRun(t, "export", "--format", "yaml")), &doc))
	assert.Len(t, doc["tasks"], 1)

	tdoc := map[string]any{}
	_, err := toml.Decode(mustRun(t, "export", "--format", "toml"), &tdoc)
	require.NoError(t, err)
	assert.Len(t, tdoc["tasks"], 1)

	_, err = run(t, "export", "--format", "xml")
	assert.Error(t, err)
}

func TestRemoteWorkflow(t *testing.T) {
	mem := remote.NewMemory()
	srv := httptest.NewServer(remote.NewHandler(mem, mem))
	defer srv.Close()

	t.Setenv("LIFEDECK_DATA_DIR", t.TempDir())
	t.Setenv("LIFEDECK_REMOTE_URL", srv.URL)

	out := mustRun(t, "login", "--identity", "bob@example.com", "--token", "tok")
	assert.Contains(t, out, "logged in as bob@example.com")
	assert.Contains(t, out, "No cloud backup found.")

	mustRun(t, "task", "add", "Draft report")
	data, ok := mem.Blob(remote.BackupName("bob@example.com"))
	require.True(t, ok, "task add should flush the backup on exit")
	var backup store.Snapshot
	require.NoError(t, json.Unmarshal(data, &backup))
	assert.Len(t, backup.Tasks, 1)
	assert.Len(t, mem.Documents("tasks"), 1)

	out = mustRun(t, "sync")
	assert.Contains(t, out, "synced")

	out = mustRun(t, "status")
	assert.Contains(t, out, "bob@example.com")
	assert.Contains(t, out, "remote reachable")

	out = mustRun(t, "pull")
	assert.Contains(t, out, "restored")

	out = mustRun(t, "logout")
	assert.Contains(t, out, "logged out bob@example.com")
	_, err := run(t, "sync")
	assert.ErrorContains(t, err, "not logged in")
}
