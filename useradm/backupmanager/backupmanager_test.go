package backupmanager

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsforge/useradm/logger"
	"github.com/opsforge/useradm/useradm/commandmanager"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "backups")
	return &Manager{
		CommandManager: &commandmanager.UnixCommandManager{Hostname: "localhost"},
		Root:           root,
		Logger:         logger.New(io.Discard, false),
	}, root
}

func writeSourceFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	var sources []string
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(name+" contents\n"), 0o644))
		sources = append(sources, path)
	}
	return sources
}

func TestSnapshotCopiesIdentityFiles(t *testing.T) {
	mgr, root := newTestManager(t)
	mgr.Sources = writeSourceFiles(t, "passwd", "shadow", "group", "gshadow")

	snapshot, err := mgr.Snapshot(context.Background())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(snapshot.Dir, root))
	require.Len(t, snapshot.Files, 4)

	for _, file := range snapshot.Files {
		assert.True(t, strings.HasSuffix(file, ".bak"))
		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Contains(t, string(data), "contents")
	}
}

func TestSnapshotFailureLeavesNoPartialState(t *testing.T) {
	mgr, root := newTestManager(t)
	sources := writeSourceFiles(t, "passwd", "group")
	mgr.Sources = append(sources, filepath.Join(t.TempDir(), "missing-shadow"))

	_, err := mgr.Snapshot(context.Background())
	require.ErrorIs(t, err, ErrBackupFailed)

	entries, readErr := os.ReadDir(root)
	if readErr == nil {
		assert.Empty(t, entries, "incomplete snapshot directory must be removed")
	}
}

func TestArchiveHomeProducesTarball(t *testing.T) {
	mgr, root := newTestManager(t)
	require.NoError(t, os.MkdirAll(root, 0o755))

	home := filepath.Join(t.TempDir(), "jdoe")
	require.NoError(t, os.MkdirAll(home, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "notes.txt"), []byte("keep me\n"), 0o644))

	path, err := mgr.ArchiveHome(context.Background(), "jdoe", home)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(filepath.Base(path), "home_jdoe_"))
	assert.True(t, strings.HasSuffix(path, ".tar.gz"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestArchiveHomeMissingDirSkipped(t *testing.T) {
	mgr, _ := newTestManager(t)

	path, err := mgr.ArchiveHome(context.Background(), "ghost", filepath.Join(t.TempDir(), "nohome"))

	assert.NoError(t, err, "a missing home directory is not an error")
	assert.Empty(t, path)
}

// unreachableCommandManager fails every call before the command runs,
// the way a dead SSH transport does.
type unreachableCommandManager struct{}

func (unreachableCommandManager) Run(ctx context.Context, config commandmanager.CommandConfig) (commandmanager.CommandResult, error) {
	return commandmanager.CommandResult{}, errors.New("ssh: dial tcp: connection refused")
}

func (u unreachableCommandManager) RunLocal(ctx context.Context, config commandmanager.CommandConfig) (commandmanager.CommandResult, error) {
	return u.Run(ctx, config)
}

func (u unreachableCommandManager) RunRemote(ctx context.Context, config commandmanager.CommandConfig) (commandmanager.CommandResult, error) {
	return u.Run(ctx, config)
}

func TestArchiveHomeTransportFailureIsError(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.CommandManager = unreachableCommandManager{}

	path, err := mgr.ArchiveHome(context.Background(), "jdoe", "/home/jdoe")

	assert.ErrorIs(t, err, ErrArchiveFailed, "an unverifiable home directory must not be treated as missing")
	assert.Empty(t, path)
}

func TestArchiveHomeEmptyHomeDirSkipped(t *testing.T) {
	mgr, _ := newTestManager(t)

	path, err := mgr.ArchiveHome(context.Background(), "nohome", "")

	assert.NoError(t, err)
	assert.Empty(t, path)
}
