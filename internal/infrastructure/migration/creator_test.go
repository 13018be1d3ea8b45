package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add_extract_index", "add_extract_index"},
		{"Add Extract Index", "add_extract_index"},
		{"add--history  table", "add_history_table"},
		{"ACN lookup!", "acn_lookup"},
		{"trailing_", "trailing"},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "Add checkpoints", "projector checkpoints")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_add_checkpoints.up.sql"), first.UpPath)
	assert.FileExists(t, first.DownPath)

	up, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "Description: projector checkpoints")

	second, err := CreateMigration(dir, "history index", "")
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)
}

func TestCreateMigration_ContinuesAfterExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000007_events.up.sql"), nil, 0o644))

	mf, err := CreateMigration(filepath.Join(dir), "next", "")
	require.NoError(t, err)
	assert.Equal(t, uint(8), mf.Version)
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "???", "")
	assert.Error(t, err)
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(dir, "init", "")
	require.NoError(t, err)
	assert.DirExists(t, dir)
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000002_entity_history.up.sql",
		"000002_entity_history.down.sql",
		"000001_event_store.up.sql",
		"000001_event_store.down.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "000003_dir.up.sql"), 0o755))

	files, err := ListMigrations(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, uint(1), files[0].Version)
	assert.Equal(t, "event_store", files[0].Name)
	assert.Equal(t, uint(2), files[1].Version)
	assert.Equal(t, filepath.Join(dir, "000002_entity_history.down.sql"), files[1].DownPath)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	files, err := ListMigrations(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, files)
}
