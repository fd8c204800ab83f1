package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/opsforge/useradm/common"
	"github.com/opsforge/useradm/logger"
	"github.com/opsforge/useradm/useradm/accountmanager"
	"github.com/opsforge/useradm/useradm/config"
	"github.com/opsforge/useradm/useradm/engine"
)

const usageText = `Usage: useradm <command> [flags]

Commands:
  create    create an account with a temporary password
  modify    modify an account (groups, shell, lock state, password)
  remove    remove an account, optionally archiving its home
  list      list accounts, optionally filtered by substring
  bulk      create accounts from a CSV batch file
  report    write an audit report

Run 'useradm <command> -h' for command flags.
`

type commonFlags struct {
	ConfigPath     string
	Debug          bool
	Hostname       string
	Username       string
	PasswordPrompt bool
	KeyPassPrompt  bool
	SudoPrompt     bool
}

func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVar(&f.ConfigPath, "config", "", "Path to INI configuration file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug log level")
	fs.StringVar(&f.Hostname, "hostname", "", "Target host (default localhost)")
	fs.StringVar(&f.Username, "ssh-user", "", "Username for SSH connection")
	fs.BoolVar(&f.PasswordPrompt, "password", false, "Prompt for an SSH password")
	fs.BoolVar(&f.KeyPassPrompt, "keypass", false, "Prompt for an SSH key passphrase")
	fs.BoolVar(&f.SudoPrompt, "sudo", false, "Run platform commands through sudo (prompts for the sudo password)")
}

func promptSecret(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", label, err)
	}
	return string(secret), nil
}

// setup resolves config, credentials and the logger from parsed common
// flags, and enforces the privilege requirement for mutating commands.
func setup(f *commonFlags, mutating bool) (*engine.Engine, config.Config, logger.Logger, func(), error) {
	cfg := config.Default()
	if f.ConfigPath != "" {
		loaded, err := config.Load(f.ConfigPath)
		if err != nil {
			return nil, cfg, nil, nil, err
		}
		cfg = loaded
	}
	if f.Hostname != "" {
		cfg.Hostname = f.Hostname
	}
	if f.SudoPrompt {
		cfg.Sudo = true
	}

	creds := common.Credentials{User: f.Username}
	var err error
	if f.PasswordPrompt {
		if creds.Password, err = promptSecret("SSH password"); err != nil {
			return nil, cfg, nil, nil, err
		}
	}
	if f.KeyPassPrompt {
		if creds.KeyPassphrase, err = promptSecret("SSH key passphrase"); err != nil {
			return nil, cfg, nil, nil, err
		}
	}
	if f.SudoPrompt {
		if creds.SudoPassword, err = promptSecret("sudo password"); err != nil {
			return nil, cfg, nil, nil, err
		}
	}

	local := cfg.Hostname == "" || cfg.Hostname == "localhost" || cfg.Hostname == "127.0.0.1"
	if mutating && local && os.Geteuid() != 0 && !cfg.Sudo {
		return nil, cfg, nil, nil, fmt.Errorf("mutating commands require root; re-run as root or with -sudo")
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, cfg, nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	cleanup := func() { logFile.Close() }

	// Operators read events from stderr; the shared log file keeps the
	// durable trail.
	log := logger.New(io.MultiWriter(os.Stderr, logFile), f.Debug)

	return engine.New(cfg, creds, log), cfg, log, cleanup, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usageText)
		return 2
	}

	ctx := context.Background()
	var err error

	switch args[0] {
	case "create":
		err = runCreate(ctx, args[1:])
	case "modify":
		err = runModify(ctx, args[1:])
	case "remove":
		err = runRemove(ctx, args[1:])
	case "list":
		err = runList(ctx, args[1:])
	case "bulk":
		err = runBulk(ctx, args[1:])
	case "report":
		err = runReport(ctx, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usageText)
		return 2
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "useradm: %v\n", err)
		return 1
	}
	return 0
}

func runCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	var cf commonFlags
	addCommonFlags(fs, &cf)
	username := fs.String("username", "", "Login name for the new account (required)")
	fullName := fs.String("fullname", "", "Full name for the account comment field")
	groups := fs.String("groups", "", "Comma-separated supplementary groups")
	shell := fs.String("shell", "", "Login shell (default from config)")
	noHome := fs.Bool("no-home", false, "Do not create a home directory")
	fs.Parse(args)

	if *username == "" {
		return fmt.Errorf("create: -username is required")
	}

	eng, cfg, _, cleanup, err := setup(&cf, true)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := accountmanager.CreateOptions{
		Username:   *username,
		Comment:    *fullName,
		Shell:      *shell,
		CreateHome: cfg.CreateHome && !*noHome,
	}
	if opts.Shell == "" {
		opts.Shell = cfg.DefaultShell
	}
	if *groups != "" {
		opts.Groups = splitList(*groups)
	} else {
		opts.Groups = cfg.DefaultGroups
	}

	return eng.CreateAccount(ctx, opts)
}

func runModify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("modify", flag.ExitOnError)
	var cf commonFlags
	addCommonFlags(fs, &cf)
	username := fs.String("username", "", "Account to modify (required)")
	action := fs.String("action", "", "One of add_group, remove_group, change_shell, lock, unlock, reset_password")
	group := fs.String("group", "", "Group name for add_group/remove_group")
	shell := fs.String("shell", "", "Shell path for change_shell")
	fs.Parse(args)

	if *username == "" {
		return fmt.Errorf("modify: -username is required")
	}

	modify, err := parseModifyAction(*action, *group, *shell)
	if err != nil {
		return err
	}

	eng, _, _, cleanup, err := setup(&cf, true)
	if err != nil {
		return err
	}
	defer cleanup()

	return eng.ModifyAccount(ctx, *username, modify)
}

func parseModifyAction(action, group, shell string) (accountmanager.ModifyAction, error) {
	switch action {
	case "add_group":
		if group == "" {
			return nil, fmt.Errorf("modify: add_group requires -group")
		}
		return accountmanager.AddGroup{Group: group}, nil
	case "remove_group":
		if group == "" {
			return nil, fmt.Errorf("modify: remove_group requires -group")
		}
		return accountmanager.RemoveGroup{Group: group}, nil
	case "change_shell":
		if shell == "" {
			return nil, fmt.Errorf("modify: change_shell requires -shell")
		}
		return accountmanager.ChangeShell{Shell: shell}, nil
	case "lock":
		return accountmanager.Lock{}, nil
	case "unlock":
		return accountmanager.Unlock{}, nil
	case "reset_password":
		return accountmanager.ResetPassword{}, nil
	case "":
		return nil, fmt.Errorf("modify: -action is required")
	default:
		return nil, fmt.Errorf("modify: unknown action %q", action)
	}
}

func runRemove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	var cf commonFlags
	addCommonFlags(fs, &cf)
	username := fs.String("username", "", "Account to remove (required)")
	removeHome := fs.Bool("remove-home", false, "Also remove the home directory")
	noBackup := fs.Bool("no-backup-home", false, "Skip archiving the home directory")
	fs.Parse(args)

	if *username == "" {
		return fmt.Errorf("remove: -username is required")
	}

	eng, _, _, cleanup, err := setup(&cf, true)
	if err != nil {
		return err
	}
	defer cleanup()

	return eng.RemoveAccount(ctx, *username, accountmanager.RemoveOptions{
		RemoveHome: *removeHome,
		BackupHome: !*noBackup,
	})
}

func runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	var cf commonFlags
	addCommonFlags(fs, &cf)
	fs.Parse(args)

	filter := ""
	if fs.NArg() > 0 {
		filter = fs.Arg(0)
	}

	eng, _, _, cleanup, err := setup(&cf, false)
	if err != nil {
		return err
	}
	defer cleanup()

	accounts, err := eng.ListAccounts(ctx, filter)
	if err != nil {
		return err
	}

	fmt.Printf("%-20s %-6s %-6s %-24s %s\n", "Username", "UID", "GID", "Shell", "Home")
	for _, a := range accounts {
		fmt.Printf("%-20s %-6d %-6d %-24s %s\n", a.Username, a.UID, a.GID, a.Shell, a.HomeDir)
	}
	return nil
}

func runBulk(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bulk", flag.ExitOnError)
	var cf commonFlags
	addCommonFlags(fs, &cf)
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("bulk: path to the batch file is required")
	}

	eng, _, log, cleanup, err := setup(&cf, true)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := eng.BulkImport(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	log.Info("bulk import summary",
		"total", result.Total, "succeeded", result.Succeeded, "failed", result.Failed)
	fmt.Printf("total=%d succeeded=%d failed=%d\n", result.Total, result.Succeeded, result.Failed)
	return nil
}

func runReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	var cf commonFlags
	addCommonFlags(fs, &cf)
	fs.Parse(args)

	path := ""
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	eng, _, _, cleanup, err := setup(&cf, false)
	if err != nil {
		return err
	}
	defer cleanup()

	w, closeOutput, err := openReportOutput(path)
	if err != nil {
		return err
	}
	defer closeOutput()

	return eng.Report(ctx, w)
}

// openReportOutput resolves the optional positional report path; an
// empty path means stdout.
func openReportOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating report file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
