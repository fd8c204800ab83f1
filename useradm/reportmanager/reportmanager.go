// Package reportmanager aggregates current account and group state
// into a read-only audit document.
package reportmanager

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/opsforge/useradm/logger"
	"github.com/opsforge/useradm/useradm/accountmanager"
	cm "github.com/opsforge/useradm/useradm/commandmanager"
)

// Report is a point-in-time audit composite. Nothing in it is ever
// written back to the platform.
type Report struct {
	GeneratedAt        time.Time
	Accounts           []accountmanager.Account
	RecentLogins       []string
	LockedAccounts     []string
	NoPasswordAccounts []string
	Groups             map[string][]string
}

type Manager struct {
	CommandManager cm.CommandManager
	UIDThreshold   int
	Sudo           bool
	Logger         logger.Logger
}

func (m *Manager) run(ctx context.Context, command string, args ...string) (cm.CommandResult, error) {
	return m.CommandManager.Run(ctx, cm.CommandConfig{
		Command: command,
		Args:    args,
		Sudo:    m.Sudo,
	})
}

// Build collects the report sections. Shadow and lastlog data are
// privileged; sections that cannot be read are left empty rather than
// failing the whole report.
func (m *Manager) Build(ctx context.Context) (Report, error) {
	report := Report{
		GeneratedAt: time.Now().UTC(),
		Groups:      map[string][]string{},
	}

	passwd, err := m.run(ctx, "getent", "passwd")
	if err != nil {
		return Report{}, fmt.Errorf("reading account database: %w", err)
	}
	for _, line := range strings.Split(passwd.STDOUT, "\n") {
		parts := strings.Split(line, ":")
		if len(parts) < 7 {
			continue
		}
		account, perr := parseAccount(parts)
		if perr != nil {
			continue
		}
		if account.UID >= m.UIDThreshold {
			report.Accounts = append(report.Accounts, account)
		}
	}

	if lastlog, err := m.run(ctx, "lastlog"); err == nil {
		lines := strings.Split(strings.TrimRight(lastlog.STDOUT, "\n"), "\n")
		if len(lines) > 1 {
			report.RecentLogins = lines[1:] // drop the column header
		}
	} else {
		m.Logger.Warn("last login data unavailable", "error", err)
	}

	if shadow, err := m.run(ctx, "getent", "shadow"); err == nil {
		for _, line := range strings.Split(shadow.STDOUT, "\n") {
			parts := strings.Split(line, ":")
			if len(parts) < 2 {
				continue
			}
			switch {
			case strings.HasPrefix(parts[1], "!"):
				report.LockedAccounts = append(report.LockedAccounts, parts[0])
			case parts[1] == "":
				report.NoPasswordAccounts = append(report.NoPasswordAccounts, parts[0])
			}
		}
	} else {
		m.Logger.Warn("shadow database unavailable", "error", err)
	}

	groups, err := m.run(ctx, "getent", "group")
	if err != nil {
		return Report{}, fmt.Errorf("reading group database: %w", err)
	}
	for _, line := range strings.Split(groups.STDOUT, "\n") {
		parts := strings.Split(line, ":")
		if len(parts) < 4 {
			continue
		}
		members := []string{}
		if parts[3] != "" {
			members = strings.Split(parts[3], ",")
		}
		report.Groups[parts[0]] = members
	}

	return report, nil
}

// Write renders the report. Failure here is limited to I/O errors on
// the destination.
func (m *Manager) Write(w io.Writer, report Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Account audit report generated at %s\n\n", report.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(&b, "== Accounts (uid >= %d) ==\n", m.UIDThreshold)
	fmt.Fprintf(&b, "%-20s %-6s %-24s %s\n", "Username", "UID", "Shell", "Home")
	for _, a := range report.Accounts {
		fmt.Fprintf(&b, "%-20s %-6d %-24s %s\n", a.Username, a.UID, a.Shell, a.HomeDir)
	}

	fmt.Fprintf(&b, "\n== Recent logins ==\n")
	for _, line := range report.RecentLogins {
		fmt.Fprintln(&b, line)
	}

	fmt.Fprintf(&b, "\n== Locked accounts ==\n")
	for _, name := range report.LockedAccounts {
		fmt.Fprintln(&b, name)
	}

	fmt.Fprintf(&b, "\n== Accounts without a password ==\n")
	for _, name := range report.NoPasswordAccounts {
		fmt.Fprintln(&b, name)
	}

	fmt.Fprintf(&b, "\n== Groups ==\n")
	names := make([]string, 0, len(report.Groups))
	for name := range report.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%-20s %s\n", name, strings.Join(report.Groups[name], ", "))
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func parseAccount(parts []string) (accountmanager.Account, error) {
	uid, err := strconv.Atoi(parts[2])
	if err != nil {
		return accountmanager.Account{}, fmt.Errorf("parsing uid: %w", err)
	}
	gid, _ := strconv.Atoi(parts[3])

	return accountmanager.Account{
		Username: parts[0],
		UID:      uid,
		GID:      gid,
		Comment:  parts[4],
		HomeDir:  parts[5],
		Shell:    parts[6],
	}, nil
}
