//go:build !windows

package launcher_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrouesnel/sibling-launcher/pkg/launcher"
	"go.uber.org/zap"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "action.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func run(t *testing.T, cfg launcher.Config) launcher.Outcome {
	t.Helper()
	cfg.Logger = zap.NewNop()
	l, err := launcher.New(cfg)
	require.NoError(t, err)
	return l.Run()
}

func TestRunForwardsExitStatus(t *testing.T) {
	for _, code := range []int{0, 1, 2, 42, 126, 127, 128, 255} {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			outcome := run(t, launcher.Config{Path: writeScript(t, fmt.Sprintf("exit %d", code))})
			require.True(t, outcome.Completed())
			assert.True(t, outcome.StatusKnown)
			assert.Equal(t, code, outcome.Status)
			assert.Equal(t, code, outcome.ExitCode())
		})
	}
}

func TestRunSignalledChildExitsOne(t *testing.T) {
	outcome := run(t, launcher.Config{Path: writeScript(t, "kill -9 $$")})
	require.True(t, outcome.Completed())
	assert.False(t, outcome.StatusKnown)
	assert.Equal(t, 1, outcome.ExitCode())
}

func TestRunMissingExecutable(t *testing.T) {
	outcome := run(t, launcher.Config{Path: filepath.Join(t.TempDir(), "missing.sh")})
	require.False(t, outcome.Completed())
	assert.True(t, outcome.Err.Missing)
	assert.Contains(t, outcome.Err.Error(), "missing.sh")
	assert.Equal(t, launcher.ExitCodeNotFound, outcome.ExitCode())
}

func TestRunNonExecutableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "action.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o644))

	outcome := run(t, launcher.Config{Path: path})
	require.False(t, outcome.Completed())
	assert.Equal(t, launcher.ExitCodeCannotExecute, outcome.ExitCode())
}

func TestRunMissingInterpreter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "action.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/nonexistent/interp\nexit 0\n"), 0o755))

	outcome := run(t, launcher.Config{Path: path})
	require.False(t, outcome.Completed())
	assert.False(t, outcome.Err.Missing)
	assert.Contains(t, outcome.Err.Error(), "interpreter not found")
	assert.Equal(t, launcher.ExitCodeCannotExecute, outcome.ExitCode())
}

func TestRunDirectoryIsLaunchFailure(t *testing.T) {
	outcome := run(t, launcher.Config{Path: t.TempDir()})
	require.False(t, outcome.Completed())
	assert.NotZero(t, outcome.ExitCode())
}

func TestRunForwardsStreamsVerbatim(t *testing.T) {
	script := writeScript(t, strings.Join([]string{
		`printf 'first\n'`,
		`printf 'oops\n' >&2`,
		`printf 'second\000binary'`,
		`cat`,
		`printf 'tail' >&2`,
	}, "\n"))

	var stdout, stderr bytes.Buffer
	outcome := run(t, launcher.Config{
		Path:   script,
		Env:    map[string]string{"PATH": os.Getenv("PATH")},
		Stdin:  strings.NewReader("from stdin\n"),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	assert.Equal(t, 0, outcome.ExitCode())
	assert.Equal(t, "first\nsecond\x00binaryfrom stdin\n", stdout.String())
	assert.Equal(t, "oops\ntail", stderr.String())
}

func TestRunPassesEnvironmentSnapshot(t *testing.T) {
	var stdout bytes.Buffer
	outcome := run(t, launcher.Config{
		Path:   writeScript(t, `printf '%s|%s' "$FOO" "${UNSET_IN_SNAPSHOT-unset}"`),
		Env:    map[string]string{"FOO": "bar"},
		Stdout: &stdout,
	})
	assert.Equal(t, 0, outcome.ExitCode())
	assert.Equal(t, "bar|unset", stdout.String())
}
