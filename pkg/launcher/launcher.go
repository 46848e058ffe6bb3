// Package launcher runs a single child executable with the caller's streams and
// environment, and reports how it finished.
package launcher

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/wrouesnel/sibling-launcher/pkg/envutil"
	"go.uber.org/zap"
)

const (
	// ExitCodeUnknownStatus is returned when the child finished without a numeric status.
	ExitCodeUnknownStatus = 1
	// ExitCodeNotFound is returned when the child executable does not exist.
	ExitCodeNotFound = 127
	// ExitCodeCannotExecute is returned for any other start failure.
	ExitCodeCannotExecute = 126
)

type LauncherConfigError struct {
	msg string
}

func (l LauncherConfigError) Error() string {
	return fmt.Sprintf("LauncherConfigError: %s", l.msg)
}

// SpawnError means the child process could not be started at all.
type SpawnError struct {
	Path string
	Err  error
	// Missing is set when Path itself does not exist. A start failure reporting
	// ENOENT for an existing file means its interpreter is missing.
	Missing bool
}

func newSpawnError(path string, err error) *SpawnError {
	spawnErr := &SpawnError{Path: path, Err: err}
	if errors.Is(err, fs.ErrNotExist) {
		if _, statErr := os.Stat(path); statErr != nil {
			spawnErr.Missing = true
		}
	}
	return spawnErr
}

func (s *SpawnError) Error() string {
	if !s.Missing && errors.Is(s.Err, fs.ErrNotExist) {
		return fmt.Sprintf("SpawnError: could not launch %s: interpreter not found: %s", s.Path, s.Err)
	}
	return fmt.Sprintf("SpawnError: could not launch %s: %s", s.Path, s.Err)
}

func (s *SpawnError) Unwrap() error {
	return s.Err
}

// ExitCode maps the start failure onto shell conventions.
func (s *SpawnError) ExitCode() int {
	if s.Missing {
		return ExitCodeNotFound
	}
	return ExitCodeCannotExecute
}

// Outcome is the result of a single Run. Either Err is set and the child never
// started, or the child completed and Status holds its exit status when StatusKnown.
type Outcome struct {
	Err         *SpawnError
	Status      int
	StatusKnown bool
}

// Completed is true if the child was started and has exited.
func (o Outcome) Completed() bool {
	return o.Err == nil
}

// ExitCode is the status the launcher should exit with.
func (o Outcome) ExitCode() int {
	switch {
	case o.Err != nil:
		return o.Err.ExitCode()
	case o.StatusKnown:
		return o.Status
	default:
		return ExitCodeUnknownStatus
	}
}

// ResolveSibling returns the path of name relative to the directory containing
// executable. Absolute names are returned unchanged. The result always contains a
// directory component so it is never looked up on PATH.
func ResolveSibling(executable string, name string) (string, error) {
	if name == "" {
		return "", &LauncherConfigError{msg: "no script name given"}
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	if executable == "" {
		return "", &LauncherConfigError{msg: "launcher executable path is unknown"}
	}

	dir := filepath.Dir(executable)
	resolved := filepath.Join(dir, name)
	if dir == "." {
		// filepath.Join drops the leading "./", which would turn this into a PATH search.
		resolved = "." + string(filepath.Separator) + resolved
	}
	return resolved, nil
}

type Config struct {
	// Path of the executable to run. It is passed to os/exec as-is.
	Path string
	// Env is the complete environment of the child.
	Env map[string]string

	// Stdin may be nil, in which case the child reads from the null device.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Logger *zap.Logger
}

type Launcher struct {
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config) (*Launcher, error) {
	if cfg.Path == "" {
		return nil, &LauncherConfigError{msg: "no executable path given"}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.L()
	}

	return &Launcher{
		cfg:    cfg,
		logger: logger.With(zap.String("executable", cfg.Path)),
	}, nil
}

// Run starts the child and blocks until it exits. There is no timeout.
func (l *Launcher) Run() Outcome {
	cmd := &exec.Cmd{
		Path:   l.cfg.Path,
		Args:   []string{l.cfg.Path},
		Env:    envutil.ToEnvironment(l.cfg.Env),
		Stdin:  l.cfg.Stdin,
		Stdout: l.cfg.Stdout,
		Stderr: l.cfg.Stderr,
	}

	l.logger.Debug("Starting child process")
	if err := cmd.Start(); err != nil {
		return Outcome{Err: newSpawnError(l.cfg.Path, err)}
	}
	logger := l.logger.With(zap.Int("pid", cmd.Process.Pid))
	logger.Debug("Child process started")

	err := cmd.Wait()
	state := cmd.ProcessState
	if state == nil {
		logger.Warn("Child process status unavailable", zap.Error(err))
		return Outcome{}
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// The child exited but copying one of the non-file streams failed.
		logger.Warn("Error forwarding child process streams", zap.Error(err))
	}

	code := state.ExitCode()
	if code < 0 {
		logger.Warn("Child process exited without a status", zap.String("state", state.String()))
		return Outcome{}
	}

	logger.Debug("Child process exited", zap.Int("status", code))
	return Outcome{Status: code, StatusKnown: true}
}
