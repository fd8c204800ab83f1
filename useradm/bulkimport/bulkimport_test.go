package bulkimport

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsforge/useradm/logger"
	"github.com/opsforge/useradm/useradm/accountmanager"
	"github.com/opsforge/useradm/useradm/validation"
)

// fakeCreator validates usernames like the real account manager and
// records every attempt.
type fakeCreator struct {
	calls []accountmanager.CreateOptions
}

func (f *fakeCreator) CreateAccount(ctx context.Context, opts accountmanager.CreateOptions) error {
	f.calls = append(f.calls, opts)
	if err := validation.ValidateUsername(opts.Username); err != nil {
		return err
	}
	return nil
}

func newPipeline() (*Pipeline, *fakeCreator) {
	creator := &fakeCreator{}
	return &Pipeline{
		Accounts:      creator,
		DefaultGroups: []string{"users"},
		DefaultShell:  "/bin/bash",
		CreateHome:    true,
		Logger:        logger.New(io.Discard, false),
	}, creator
}

func TestRunCountsOutcomes(t *testing.T) {
	pipeline, creator := newPipeline()

	input := strings.Join([]string{
		"username,full_name,groups,shell",
		"jdoe,John Doe,users,/bin/bash",
		"invalid_UP,Bad Name,users,/bin/bash",
	}, "\n")

	result, err := pipeline.Run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, creator.calls, 2, "every data row must be attempted")
	assert.Equal(t, "jdoe", creator.calls[0].Username)
}

func TestRunSkipsHeaderOnlyWhenFirst(t *testing.T) {
	pipeline, creator := newPipeline()

	input := strings.Join([]string{
		"jdoe,John Doe,users,/bin/bash",
		"username,full_name,groups,shell",
	}, "\n")

	result, err := pipeline.Run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total, "a non-leading header line is treated as a data row")
	require.Len(t, creator.calls, 2)
	assert.Equal(t, "username", creator.calls[1].Username)
}

func TestRunAppliesDefaults(t *testing.T) {
	pipeline, creator := newPipeline()

	input := "jdoe,John Doe,,\n"

	result, err := pipeline.Run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 1, result.Succeeded)

	opts := creator.calls[0]
	assert.Equal(t, []string{"users"}, opts.Groups)
	assert.Equal(t, "/bin/bash", opts.Shell)
	assert.True(t, opts.CreateHome)
}

func TestRunTrimsAndSplitsGroups(t *testing.T) {
	pipeline, creator := newPipeline()

	input := "  jdoe , John Doe , dev; ops ,  /bin/zsh \n"

	result, err := pipeline.Run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 1, result.Succeeded)

	opts := creator.calls[0]
	assert.Equal(t, "jdoe", opts.Username)
	assert.Equal(t, "John Doe", opts.Comment)
	assert.Equal(t, []string{"dev", "ops"}, opts.Groups)
	assert.Equal(t, "/bin/zsh", opts.Shell)
}

func TestRunContinuesPastFailures(t *testing.T) {
	pipeline, creator := newPipeline()

	input := strings.Join([]string{
		"username,full_name,groups,shell",
		"Invalid,Bad,users,/bin/bash",
		"1bad,Worse,users,/bin/bash",
		"good,Fine,users,/bin/bash",
	}, "\n")

	result, err := pipeline.Run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	assert.Len(t, creator.calls, 3)
	require.NotNil(t, result.Errors)
	assert.Len(t, result.Errors.Errors, 2)
}

func TestRunMalformedRowFails(t *testing.T) {
	pipeline, creator := newPipeline()

	input := strings.Join([]string{
		"username,full_name,groups,shell",
		"loner",
		"jdoe,John Doe,users,/bin/bash",
	}, "\n")

	result, err := pipeline.Run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, creator.calls, 1, "a malformed row is never attempted against the platform")
}

func TestRunFileUnreadable(t *testing.T) {
	pipeline, _ := newPipeline()

	_, err := pipeline.RunFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err, "unreadable input fails the whole job")
}

func TestRunFile(t *testing.T) {
	pipeline, _ := newPipeline()

	path := filepath.Join(t.TempDir(), "batch.csv")
	content := "username,full_name,groups,shell\njdoe,John Doe,users,/bin/bash\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	result, err := pipeline.RunFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
}
