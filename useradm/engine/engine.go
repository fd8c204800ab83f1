// Package engine is the composition root. It wires the managers
// together and enforces the invariants that span them: a complete
// identity-database snapshot before the first mutating platform call,
// and exactly one dispatch per invocation.
//
// The engine takes no inter-process locks. Two concurrent invocations
// can both pass an existence check before either mutates; operators
// are assumed to have exclusive access.
package engine

import (
	"context"
	"io"
	"strings"

	"github.com/opsforge/useradm/common"
	"github.com/opsforge/useradm/logger"
	"github.com/opsforge/useradm/useradm/accountmanager"
	"github.com/opsforge/useradm/useradm/backupmanager"
	"github.com/opsforge/useradm/useradm/bulkimport"
	"github.com/opsforge/useradm/useradm/commandmanager"
	"github.com/opsforge/useradm/useradm/config"
	"github.com/opsforge/useradm/useradm/credentials"
	"github.com/opsforge/useradm/useradm/reportmanager"
)

// Snapshotter is the backup dependency as the engine sees it.
type Snapshotter interface {
	Snapshot(ctx context.Context) (backupmanager.Snapshot, error)
}

// ReportBuilder is the audit dependency as the engine sees it.
type ReportBuilder interface {
	Build(ctx context.Context) (reportmanager.Report, error)
	Write(w io.Writer, report reportmanager.Report) error
}

type Engine struct {
	cfg      config.Config
	log      logger.Logger
	cmd      commandmanager.CommandManager
	accounts accountmanager.AccountManager
	backups  Snapshotter
	reports  ReportBuilder
	imports  *bulkimport.Pipeline
}

// New wires the default Linux managers for the configured host.
// Options replace individual managers, mainly for tests. They run
// before the defaults are constructed, so a replacement command
// manager propagates into every default manager.
func New(cfg config.Config, creds common.Credentials, log logger.Logger, options ...Option) *Engine {
	e := &Engine{
		cfg: cfg,
		log: log,
		cmd: &commandmanager.UnixCommandManager{
			Hostname:    cfg.Hostname,
			SSHClient:   commandmanager.NetSSHDialer{},
			Credentials: creds,
		},
	}

	for _, option := range options {
		option(e)
	}

	backups := &backupmanager.Manager{
		CommandManager: e.cmd,
		Root:           cfg.BackupRoot,
		Sudo:           cfg.Sudo,
		Logger:         log,
	}
	if e.backups == nil {
		e.backups = backups
	}

	if e.accounts == nil {
		var archiver accountmanager.HomeArchiver = backups
		if a, ok := e.backups.(accountmanager.HomeArchiver); ok {
			archiver = a
		}
		e.accounts = &accountmanager.LinuxAccountManager{
			CommandManager: e.cmd,
			Secrets:        credentials.Generator{},
			Store:          &credentials.Store{Dir: cfg.CredentialDir},
			Archiver:       archiver,
			Logger:         log,
			Sudo:           cfg.Sudo,
		}
	}

	if e.reports == nil {
		e.reports = &reportmanager.Manager{
			CommandManager: e.cmd,
			UIDThreshold:   cfg.UIDThreshold,
			Sudo:           cfg.Sudo,
			Logger:         log,
		}
	}

	e.imports = &bulkimport.Pipeline{
		Accounts:      e.accounts,
		DefaultGroups: cfg.DefaultGroups,
		DefaultShell:  cfg.DefaultShell,
		CreateHome:    cfg.CreateHome,
		Logger:        log,
	}

	return e
}

// preMutate takes the mandatory snapshot. It must complete before any
// mutating platform call of the invocation begins; its failure aborts
// the invocation.
func (e *Engine) preMutate(ctx context.Context) error {
	_, err := e.backups.Snapshot(ctx)
	return err
}

func (e *Engine) CreateAccount(ctx context.Context, opts accountmanager.CreateOptions) error {
	if err := e.preMutate(ctx); err != nil {
		return err
	}
	return e.accounts.CreateAccount(ctx, opts)
}

func (e *Engine) ModifyAccount(ctx context.Context, username string, action accountmanager.ModifyAction) error {
	if err := e.preMutate(ctx); err != nil {
		return err
	}
	return e.accounts.ModifyAccount(ctx, username, action)
}

func (e *Engine) RemoveAccount(ctx context.Context, username string, opts accountmanager.RemoveOptions) error {
	if err := e.preMutate(ctx); err != nil {
		return err
	}
	return e.accounts.RemoveAccount(ctx, username, opts)
}

// BulkImport snapshots once for the whole job; rows succeed or fail
// independently afterwards.
func (e *Engine) BulkImport(ctx context.Context, path string) (bulkimport.Result, error) {
	if err := e.preMutate(ctx); err != nil {
		return bulkimport.Result{}, err
	}
	return e.imports.RunFile(ctx, path)
}

// ListAccounts is read-only and takes no snapshot. A non-empty filter
// keeps only usernames containing it.
func (e *Engine) ListAccounts(ctx context.Context, filter string) ([]accountmanager.Account, error) {
	accounts, err := e.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return accounts, nil
	}

	filtered := []accountmanager.Account{}
	for _, a := range accounts {
		if strings.Contains(a.Username, filter) {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

// Report builds and writes the audit document. Read-only, no snapshot.
func (e *Engine) Report(ctx context.Context, w io.Writer) error {
	report, err := e.reports.Build(ctx)
	if err != nil {
		return err
	}
	return e.reports.Write(w, report)
}
