// Package config holds the engine configuration. The struct is passed
// explicitly to every component; there is no process-wide mutable path
// state.
package config

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

type Config struct {
	// Hostname of the managed system; localhost means direct execution.
	Hostname string

	// Sudo runs every platform primitive through sudo.
	Sudo bool

	BackupRoot    string
	CredentialDir string
	LogFile       string

	// Defaults substituted for empty fields during bulk import and
	// create.
	DefaultShell  string
	DefaultGroups []string
	CreateHome    bool

	// UIDThreshold separates system accounts from regular accounts in
	// audit reports.
	UIDThreshold int
}

func Default() Config {
	return Config{
		Hostname:      "localhost",
		BackupRoot:    "/var/backups/useradm",
		CredentialDir: "/var/lib/useradm",
		LogFile:       "/var/log/useradm.log",
		DefaultShell:  "/bin/bash",
		DefaultGroups: []string{"users"},
		CreateHome:    true,
		UIDThreshold:  1000,
	}
}

// Load reads an INI file over the defaults. Missing keys keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("loading config %s: %w", path, err)
	}

	host := f.Section("host")
	cfg.Hostname = host.Key("hostname").MustString(cfg.Hostname)
	cfg.Sudo = host.Key("sudo").MustBool(cfg.Sudo)

	paths := f.Section("paths")
	cfg.BackupRoot = paths.Key("backup_root").MustString(cfg.BackupRoot)
	cfg.CredentialDir = paths.Key("credential_dir").MustString(cfg.CredentialDir)
	cfg.LogFile = paths.Key("log_file").MustString(cfg.LogFile)

	defaults := f.Section("defaults")
	cfg.DefaultShell = defaults.Key("shell").MustString(cfg.DefaultShell)
	if groups := defaults.Key("groups").String(); groups != "" {
		cfg.DefaultGroups = nil
		for _, g := range strings.Split(groups, ",") {
			if g = strings.TrimSpace(g); g != "" {
				cfg.DefaultGroups = append(cfg.DefaultGroups, g)
			}
		}
	}
	cfg.CreateHome = defaults.Key("create_home").MustBool(cfg.CreateHome)

	report := f.Section("report")
	cfg.UIDThreshold = report.Key("uid_threshold").MustInt(cfg.UIDThreshold)

	return cfg, nil
}
