package accountmanager

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/opsforge/useradm/logger"
	cm "github.com/opsforge/useradm/useradm/commandmanager"
	"github.com/opsforge/useradm/useradm/validation"
)

// passwordLength is the size of every generated temporary secret.
const passwordLength = 16

// getent exits with 2 when the key is absent from the database.
const getentNotFound = 2

type LinuxAccountManager struct {
	CommandManager cm.CommandManager
	Secrets        SecretSource
	Store          CredentialRecorder
	Archiver       HomeArchiver
	Logger         logger.Logger
	Sudo           bool
}

func (l *LinuxAccountManager) run(ctx context.Context, command string, args ...string) (cm.CommandResult, error) {
	return l.CommandManager.Run(ctx, cm.CommandConfig{
		Command: command,
		Args:    args,
		Sudo:    l.Sudo,
	})
}

func commandErr(result cm.CommandResult, err error) error {
	if err != nil {
		if stderr := strings.TrimSpace(result.STDERR); stderr != "" {
			return fmt.Errorf("%v: %s", err, stderr)
		}
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("exit code %d: %s", result.ExitCode, strings.TrimSpace(result.STDERR))
	}
	return nil
}

func (l *LinuxAccountManager) GetAccount(ctx context.Context, username string) (Account, error) {
	result, err := l.run(ctx, "getent", "passwd", username)
	if result.ExitCode == getentNotFound {
		return Account{}, fmt.Errorf("%w: %s", ErrNotFound, username)
	}
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrPrimitiveFailed, err)
	}

	account, err := parsePasswdLine(strings.TrimSpace(result.STDOUT))
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrPrimitiveFailed, err)
	}

	// Lock state lives in the shadow database; unreadable shadow just
	// leaves Locked unset.
	if shadow, err := l.run(ctx, "getent", "shadow", username); err == nil {
		fields := strings.Split(strings.TrimSpace(shadow.STDOUT), ":")
		if len(fields) > 1 && strings.HasPrefix(fields[1], "!") {
			account.Locked = true
		}
	}

	return account, nil
}

func (l *LinuxAccountManager) AccountExists(ctx context.Context, username string) (bool, error) {
	result, err := l.run(ctx, "getent", "passwd", username)
	if result.ExitCode == getentNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPrimitiveFailed, err)
	}
	return true, nil
}

func (l *LinuxAccountManager) CreateAccount(ctx context.Context, opts CreateOptions) error {
	if err := validation.ValidateUsername(opts.Username); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUsername, err)
	}

	exists, err := l.AccountExists(ctx, opts.Username)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, opts.Username)
	}

	secret, err := l.Secrets.Generate(passwordLength)
	if err != nil {
		return fmt.Errorf("%w: generating secret: %v", ErrPasswordOpFailed, err)
	}

	result, err := l.run(ctx, "useradd", opts.args()...)
	if err := commandErr(result, err); err != nil {
		return fmt.Errorf("%w: useradd: %v", ErrPrimitiveFailed, err)
	}

	if err := l.assignPassword(ctx, opts.Username, secret); err != nil {
		// The account exists but has no usable password; surface the
		// intermediate failure instead of pretending atomicity.
		return fmt.Errorf("account %s created but credential setup failed: %w", opts.Username, err)
	}

	l.Logger.Success("account created", "username", opts.Username, "temporary_password", secret)
	return nil
}

// assignPassword sets a temporary secret, forces a change at next
// login and records exactly one credential entry.
func (l *LinuxAccountManager) assignPassword(ctx context.Context, username, secret string) error {
	result, err := l.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "chpasswd",
		Sudo:    l.Sudo,
		Stdin:   fmt.Sprintf("%s:%s\n", username, secret),
	})
	if err := commandErr(result, err); err != nil {
		return fmt.Errorf("%w: chpasswd: %v", ErrPasswordOpFailed, err)
	}

	result, err = l.run(ctx, "chage", "-d", "0", username)
	if err := commandErr(result, err); err != nil {
		return fmt.Errorf("%w: forcing password change: %v", ErrPasswordOpFailed, err)
	}

	if err := l.Store.Record(username, secret); err != nil {
		return fmt.Errorf("%w: recording credential: %v", ErrPasswordOpFailed, err)
	}
	return nil
}

func (l *LinuxAccountManager) ModifyAccount(ctx context.Context, username string, action ModifyAction) error {
	exists, err := l.AccountExists(ctx, username)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, username)
	}

	switch a := action.(type) {
	case AddGroup:
		result, err := l.run(ctx, "gpasswd", "-a", username, a.Group)
		if err := commandErr(result, err); err != nil {
			return fmt.Errorf("%w: adding %s to %s: %v", ErrGroupOpFailed, username, a.Group, err)
		}
		l.Logger.Success("group membership added", "username", username, "group", a.Group)

	case RemoveGroup:
		result, err := l.run(ctx, "gpasswd", "-d", username, a.Group)
		if err := commandErr(result, err); err != nil {
			return fmt.Errorf("%w: removing %s from %s: %v", ErrGroupOpFailed, username, a.Group, err)
		}
		l.Logger.Success("group membership removed", "username", username, "group", a.Group)

	case ChangeShell:
		result, err := l.run(ctx, "usermod", "-s", a.Shell, username)
		if err := commandErr(result, err); err != nil {
			return fmt.Errorf("%w: setting shell for %s: %v", ErrShellOpFailed, username, err)
		}
		l.Logger.Success("login shell changed", "username", username, "shell", a.Shell)

	case Lock:
		result, err := l.run(ctx, "usermod", "-L", username)
		if err := commandErr(result, err); err != nil {
			return fmt.Errorf("%w: locking %s: %v", ErrLockOpFailed, username, err)
		}
		l.Logger.Success("account locked", "username", username)

	case Unlock:
		result, err := l.run(ctx, "usermod", "-U", username)
		if err := commandErr(result, err); err != nil {
			return fmt.Errorf("%w: unlocking %s: %v", ErrLockOpFailed, username, err)
		}
		l.Logger.Success("account unlocked", "username", username)

	case ResetPassword:
		secret, err := l.Secrets.Generate(passwordLength)
		if err != nil {
			return fmt.Errorf("%w: generating secret: %v", ErrPasswordOpFailed, err)
		}
		if err := l.assignPassword(ctx, username, secret); err != nil {
			return err
		}
		l.Logger.Success("password reset", "username", username, "temporary_password", secret)

	default:
		return fmt.Errorf("unsupported modify action %T", action)
	}

	return nil
}

func (l *LinuxAccountManager) RemoveAccount(ctx context.Context, username string, opts RemoveOptions) error {
	account, err := l.GetAccount(ctx, username)
	if err != nil {
		return err
	}

	if opts.BackupHome {
		// A failed archive blocks removal; only an explicit opt-out
		// lets deletion proceed without one.
		if _, err := l.Archiver.ArchiveHome(ctx, username, account.HomeDir); err != nil {
			return err
		}
	}

	args := []string{}
	if opts.RemoveHome {
		args = append(args, "-r")
	}
	args = append(args, username)

	result, err := l.run(ctx, "userdel", args...)
	if err := commandErr(result, err); err != nil {
		return fmt.Errorf("%w: userdel: %v", ErrPrimitiveFailed, err)
	}

	// Residual processes owned by the removed identity are terminated
	// best-effort; nothing to kill is the common case.
	if _, err := l.run(ctx, "pkill", "-u", username); err != nil {
		l.Logger.Debug("no residual processes terminated", "username", username)
	}

	l.Logger.Success("account removed", "username", username, "home_removed", opts.RemoveHome)
	return nil
}

func (l *LinuxAccountManager) ListAccounts(ctx context.Context) ([]Account, error) {
	result, err := l.run(ctx, "getent", "passwd")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrimitiveFailed, err)
	}

	accounts := []Account{}
	for _, line := range strings.Split(result.STDOUT, "\n") {
		account, err := parsePasswdLine(line)
		if err != nil {
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func parsePasswdLine(line string) (Account, error) {
	parts := strings.Split(line, ":")
	if len(parts) < 7 {
		return Account{}, fmt.Errorf("unexpected passwd entry format")
	}

	uid, _ := strconv.Atoi(parts[2])
	gid, _ := strconv.Atoi(parts[3])

	return Account{
		Username: parts[0],
		UID:      uid,
		GID:      gid,
		Comment:  parts[4],
		HomeDir:  parts[5],
		Shell:    parts[6],
	}, nil
}
