// Package backupmanager snapshots the identity databases before any
// mutating operation and archives home directories on demand.
package backupmanager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/opsforge/useradm/logger"
	"github.com/opsforge/useradm/useradm/commandmanager"
)

var (
	// ErrBackupFailed aborts the whole invocation; no mutation may
	// proceed without a complete snapshot.
	ErrBackupFailed = errors.New("identity database backup failed")

	// ErrArchiveFailed aborts only the removal that requested the archive.
	ErrArchiveFailed = errors.New("home directory archive failed")
)

// identityFiles are the platform databases copied on every snapshot.
var identityFiles = []string{
	"/etc/passwd",
	"/etc/shadow",
	"/etc/group",
	"/etc/gshadow",
}

const timestampLayout = "20060102_150405"

// Snapshot records one pre-flight copy of the identity databases.
type Snapshot struct {
	Timestamp time.Time
	Dir       string
	Files     []string
}

type Manager struct {
	CommandManager commandmanager.CommandManager
	Root           string
	Sudo           bool
	Logger         logger.Logger

	// Sources overrides the identity file list; empty means the
	// platform defaults.
	Sources []string
}

func (m *Manager) sources() []string {
	if len(m.Sources) > 0 {
		return m.Sources
	}
	return identityFiles
}

// Snapshot copies the identity databases into a fresh timestamped
// directory under the backup root. There is no partial-snapshot state:
// any failure removes the incomplete directory and the whole snapshot
// fails.
func (m *Manager) Snapshot(ctx context.Context) (Snapshot, error) {
	now := time.Now().UTC()
	dir := filepath.Join(m.Root, now.Format(timestampLayout))

	if _, err := m.CommandManager.Run(ctx, commandmanager.CommandConfig{
		Command: "mkdir",
		Args:    []string{"-p", dir},
		Sudo:    m.Sudo,
	}); err != nil {
		return Snapshot{}, fmt.Errorf("%w: creating %s: %v", ErrBackupFailed, dir, err)
	}

	var errs *multierror.Error
	var copied []string
	for _, src := range m.sources() {
		dst := filepath.Join(dir, filepath.Base(src)+".bak")
		result, err := m.CommandManager.Run(ctx, commandmanager.CommandConfig{
			Command: "cp",
			Args:    []string{"-p", src, dst},
			Sudo:    m.Sudo,
		})
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("copying %s: %v (%s)", src, err, result.STDERR))
			continue
		}
		copied = append(copied, dst)
	}

	if err := errs.ErrorOrNil(); err != nil {
		// Never leave a half-written snapshot behind.
		m.CommandManager.Run(ctx, commandmanager.CommandConfig{
			Command: "rm",
			Args:    []string{"-rf", dir},
			Sudo:    m.Sudo,
		})
		return Snapshot{}, fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}

	m.Logger.Info("identity databases backed up", "dir", dir, "files", len(copied))

	return Snapshot{Timestamp: now, Dir: dir, Files: copied}, nil
}

// ArchiveHome compresses an account's home directory into the backup
// root before removal. A missing home directory is not an error; the
// caller proceeds without an archive.
func (m *Manager) ArchiveHome(ctx context.Context, username, homeDir string) (string, error) {
	if homeDir == "" {
		return "", nil
	}

	result, err := m.CommandManager.Run(ctx, commandmanager.CommandConfig{
		Command: "test",
		Args:    []string{"-d", homeDir},
		Sudo:    m.Sudo,
	})
	// A non-zero exit means the check ran and the directory is absent.
	// An error without an exit code means the check itself never ran
	// (transport, exec); deleting without an archive is not safe then.
	if err != nil && result.ExitCode == 0 {
		return "", fmt.Errorf("%w: checking %s: %v (%s)", ErrArchiveFailed, homeDir, err, result.STDERR)
	}
	if result.ExitCode != 0 {
		m.Logger.Warn("home directory missing, skipping archive", "username", username, "home", homeDir)
		return "", nil
	}

	name := fmt.Sprintf("home_%s_%s.tar.gz", username, time.Now().UTC().Format(timestampLayout))
	dest := filepath.Join(m.Root, name)

	result, err = m.CommandManager.Run(ctx, commandmanager.CommandConfig{
		Command: "tar",
		Args:    []string{"-czf", dest, "-C", filepath.Dir(homeDir), filepath.Base(homeDir)},
		Sudo:    m.Sudo,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v (%s)", ErrArchiveFailed, err, result.STDERR)
	}

	m.Logger.Info("home directory archived", "username", username, "archive", dest)
	return dest, nil
}
