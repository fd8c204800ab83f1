package reportmanager

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsforge/useradm/logger"
	cm "github.com/opsforge/useradm/useradm/commandmanager"
)

// MockCommandManager answers by command plus first argument, so the
// getent database variants can return different outputs.
type MockCommandManager struct {
	Outputs map[string]string
}

func (m *MockCommandManager) key(config cm.CommandConfig) string {
	if len(config.Args) > 0 {
		return config.Command + " " + config.Args[0]
	}
	return config.Command
}

func (m *MockCommandManager) Run(ctx context.Context, config cm.CommandConfig) (cm.CommandResult, error) {
	return cm.CommandResult{STDOUT: m.Outputs[m.key(config)]}, nil
}

func (m *MockCommandManager) RunLocal(ctx context.Context, config cm.CommandConfig) (cm.CommandResult, error) {
	return m.Run(ctx, config)
}

func (m *MockCommandManager) RunRemote(ctx context.Context, config cm.CommandConfig) (cm.CommandResult, error) {
	return m.Run(ctx, config)
}

func newTestManager() *Manager {
	return &Manager{
		CommandManager: &MockCommandManager{Outputs: map[string]string{
			"getent passwd": "root:x:0:0:root:/root:/bin/bash\n" +
				"daemon:x:1:1:daemon:/usr/sbin:/usr/sbin/nologin\n" +
				"jdoe:x:1001:1001:John Doe:/home/jdoe:/bin/bash\n" +
				"asmith:x:1002:1002:Alice Smith:/home/asmith:/bin/zsh\n",
			"getent shadow": "root:$6$hash:19000:0:99999:7:::\n" +
				"jdoe:!$6$hash:19000:0:99999:7:::\n" +
				"asmith::19000:0:99999:7:::\n",
			"getent group": "users:x:100:jdoe,asmith\n" +
				"dev:x:200:jdoe\n" +
				"empty:x:300:\n",
			"lastlog": "Username         Port     From             Latest\n" +
				"jdoe             pts/0    10.0.0.5         Mon Aug 31 09:00:00 +0000 2026\n",
		}},
		UIDThreshold: 1000,
		Logger:       logger.New(io.Discard, false),
	}
}

func TestBuildFiltersByUIDThreshold(t *testing.T) {
	mgr := newTestManager()

	report, err := mgr.Build(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Accounts, 2)
	assert.Equal(t, "jdoe", report.Accounts[0].Username)
	assert.Equal(t, "asmith", report.Accounts[1].Username)
}

func TestBuildClassifiesShadowEntries(t *testing.T) {
	mgr := newTestManager()

	report, err := mgr.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"jdoe"}, report.LockedAccounts)
	assert.Equal(t, []string{"asmith"}, report.NoPasswordAccounts)
}

func TestBuildGroupMembership(t *testing.T) {
	mgr := newTestManager()

	report, err := mgr.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"jdoe", "asmith"}, report.Groups["users"])
	assert.Equal(t, []string{"jdoe"}, report.Groups["dev"])
	assert.Empty(t, report.Groups["empty"])
}

func TestBuildDropsLastlogHeader(t *testing.T) {
	mgr := newTestManager()

	report, err := mgr.Build(context.Background())
	require.NoError(t, err)

	require.Len(t, report.RecentLogins, 1)
	assert.Contains(t, report.RecentLogins[0], "jdoe")
}

func TestWriteRendersSections(t *testing.T) {
	mgr := newTestManager()

	report, err := mgr.Build(context.Background())
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, mgr.Write(&buf, report))

	out := buf.String()
	assert.Contains(t, out, "Account audit report generated at")
	assert.Contains(t, out, "== Accounts (uid >= 1000) ==")
	assert.Contains(t, out, "== Locked accounts ==")
	assert.Contains(t, out, "== Groups ==")
	assert.Contains(t, out, "jdoe")
}

func TestWriteGroupsSorted(t *testing.T) {
	mgr := newTestManager()
	report := Report{Groups: map[string][]string{
		"zeta":  {"jdoe"},
		"alpha": {"asmith"},
		"mid":   nil,
	}}

	var buf strings.Builder
	require.NoError(t, mgr.Write(&buf, report))

	out := buf.String()
	assert.Less(t, strings.Index(out, "alpha"), strings.Index(out, "mid"))
	assert.Less(t, strings.Index(out, "mid"), strings.Index(out, "zeta"))
}
