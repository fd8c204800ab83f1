package engine

import (
	"github.com/opsforge/useradm/useradm/accountmanager"
	"github.com/opsforge/useradm/useradm/commandmanager"
)

type Option func(*Engine)

// WithAccountManager returns an Option that replaces the account manager.
func WithAccountManager(am accountmanager.AccountManager) Option {
	return func(e *Engine) {
		e.accounts = am
	}
}

// WithSnapshotter returns an Option that replaces the backup manager.
func WithSnapshotter(s Snapshotter) Option {
	return func(e *Engine) {
		e.backups = s
	}
}

// WithCommandManager returns an Option that replaces the command
// manager every default manager runs its platform commands through.
func WithCommandManager(cm commandmanager.CommandManager) Option {
	return func(e *Engine) {
		e.cmd = cm
	}
}

// WithReportBuilder returns an Option that replaces the report manager.
func WithReportBuilder(r ReportBuilder) Option {
	return func(e *Engine) {
		e.reports = r
	}
}
