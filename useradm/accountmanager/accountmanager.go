package accountmanager

import (
	"context"
	"strings"
)

// Account represents an individual identity account on the system.
type Account struct {
	Username string // login name
	UID      int    // user ID, assigned by the platform
	GID      int    // primary group ID
	Comment  string // full name or comment
	HomeDir  string // home directory
	Shell    string // login shell
	Locked   bool   // password-locked state, when readable
}

// CreateOptions is the typed request for account creation; the argv
// passed to the platform primitive is always built from it, never
// assembled free-form.
type CreateOptions struct {
	Username   string
	Comment    string
	Groups     []string
	Shell      string
	CreateHome bool
}

func (o CreateOptions) args() []string {
	var args []string
	if o.CreateHome {
		args = append(args, "-m")
	}
	if o.Comment != "" {
		args = append(args, "-c", o.Comment)
	}
	if o.Shell != "" {
		args = append(args, "-s", o.Shell)
	}
	if len(o.Groups) > 0 {
		args = append(args, "-G", strings.Join(o.Groups, ","))
	}
	return append(args, o.Username)
}

// RemoveOptions controls account removal.
type RemoveOptions struct {
	RemoveHome bool
	BackupHome bool
}

// AccountManager encompasses lifecycle operations on identity accounts.
type AccountManager interface {
	// GetAccount fetches the details of an account by username.
	GetAccount(ctx context.Context, username string) (Account, error)

	// AccountExists reports whether the account is present in the
	// platform database.
	AccountExists(ctx context.Context, username string) (bool, error)

	// CreateAccount provisions a new account with a generated
	// temporary credential that must be changed at next login.
	CreateAccount(ctx context.Context, opts CreateOptions) error

	// ModifyAccount applies one ModifyAction to an existing account.
	ModifyAccount(ctx context.Context, username string, action ModifyAction) error

	// RemoveAccount deletes an account, optionally archiving and
	// removing its home directory.
	RemoveAccount(ctx context.Context, username string, opts RemoveOptions) error

	// ListAccounts lists all accounts known to the platform.
	ListAccounts(ctx context.Context) ([]Account, error)
}

// SecretSource produces temporary passwords.
type SecretSource interface {
	Generate(length int) (string, error)
}

// CredentialRecorder persists generated secrets to the audit artifact.
type CredentialRecorder interface {
	Record(username, secret string) error
}

// HomeArchiver archives a home directory before a destructive removal.
type HomeArchiver interface {
	ArchiveHome(ctx context.Context, username, homeDir string) (string, error)
}
