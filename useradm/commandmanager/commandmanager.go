package commandmanager

import (
	"context"
	"time"
)

// CommandConfig describes a single platform command invocation.
type CommandConfig struct {
	Command string
	Args    []string
	Sudo    bool
	// Stdin is fed to the command's standard input, after the sudo
	// password line when Sudo is set.
	Stdin string
}

// CommandResult encapsulates the results from a command execution.
type CommandResult struct {
	Command   string
	STDOUT    string
	STDERR    string
	ExitCode  int
	Duration  time.Duration
	Timestamp time.Time
}

// CommandManager provides methods to execute commands, both locally and
// remotely.
type CommandManager interface {
	// RunLocal executes a command on the local system.
	RunLocal(ctx context.Context, config CommandConfig) (CommandResult, error)

	// RunRemote executes a command on a remote system via SSH.
	RunRemote(ctx context.Context, config CommandConfig) (CommandResult, error)

	// Run picks local or remote execution based on the configured hostname.
	Run(ctx context.Context, config CommandConfig) (CommandResult, error)
}
