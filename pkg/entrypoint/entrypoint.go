package entrypoint

import (
	"fmt"
	"io"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/wrouesnel/sibling-launcher/pkg/envdump"
	"github.com/wrouesnel/sibling-launcher/pkg/launcher"
	"github.com/wrouesnel/sibling-launcher/version"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultScript is the name of the executable launched from the launcher's directory.
const DefaultScript = "action.sh"

type Options struct {
	Logging struct {
		Level  string `help:"logging level" default:"warn"`
		Format string `help:"logging format (${enum})" enum:"console,json" default:"console"`
	} `embed:"" prefix:"logging."`

	Version bool `help:"Print the version and exit"`

	Script string         `help:"executable to launch, relative to the launcher's directory" default:"${default_script}"`
	Dump   envdump.Config `embed:"" prefix:"dump."`
}

type LaunchArgs struct {
	StdIn  io.Reader
	StdOut io.Writer
	StdErr io.Writer
	Env    map[string]string
	Args   []string
	// Executable is the path of the running launcher binary, used to find the script.
	Executable string
}

// Entrypoint implements the actual functionality of the program so it can be called inline from testing.
// env is normally passed the environment variable array.
//nolint:funlen
func Entrypoint(args LaunchArgs) int {
	var err error
	options := Options{}

	deferredLogs := []string{}

	exited := false
	exitCode := 0

	// Command line parsing can now happen
	parser := lo.Must(kong.New(&options,
		kong.Name(version.Name),
		kong.Description(version.Description),
		kong.Vars{"default_script": DefaultScript},
		kong.DefaultEnvars(version.EnvPrefix),
		kong.Writers(args.StdOut, args.StdErr),
		kong.Exit(func(code int) {
			exited = true
			exitCode = code
		}),
	))
	_, err = parser.Parse(args.Args)
	if exited {
		// --help was handled by the parser
		return exitCode
	}
	if err != nil {
		_, _ = fmt.Fprintf(args.StdErr, "Argument error: %s\n", err.Error())
		return 1
	}

	// Initialize logging as soon as possible
	logConfig := zap.NewProductionConfig()
	if err := logConfig.Level.UnmarshalText([]byte(options.Logging.Level)); err != nil {
		deferredLogs = append(deferredLogs, err.Error())
	}
	logConfig.Encoding = options.Logging.Format

	logger, err := buildLogger(logConfig, args.StdErr)
	if err != nil {
		// Error unhandled since this is a very early failure
		for _, line := range deferredLogs {
			_, _ = io.WriteString(args.StdErr, line)
		}
		_, _ = io.WriteString(args.StdErr, "Failure while building logger")
		return 1
	}
	for _, line := range deferredLogs {
		logger.Warn("Logging configuration problem", zap.String("detail", line))
	}

	// Install as the global logger
	zap.ReplaceGlobals(logger)

	if options.Version {
		lo.Must(fmt.Fprintf(args.StdOut, "%s", version.Version))
		return 0
	}

	if err := envdump.Write(args.StdOut, args.Env, options.Dump); err != nil {
		reportFailure(logger, args.StdErr, "Could not write environment", err)
		return 1
	}

	scriptPath, err := launcher.ResolveSibling(args.Executable, options.Script)
	if err != nil {
		reportFailure(logger, args.StdErr, "Could not resolve launch script", err)
		return 1
	}

	l, err := launcher.New(launcher.Config{
		Path:   scriptPath,
		Env:    args.Env,
		Stdin:  args.StdIn,
		Stdout: args.StdOut,
		Stderr: args.StdErr,
		Logger: logger,
	})
	if err != nil {
		reportFailure(logger, args.StdErr, "Could not configure launcher", err)
		return 1
	}

	outcome := l.Run()
	if !outcome.Completed() {
		reportFailure(logger, args.StdErr, "Could not launch child process", outcome.Err)
		return outcome.ExitCode()
	}

	logger.Info("Child process finished", zap.Int("exit_code", outcome.ExitCode()), zap.Bool("status_known", outcome.StatusKnown))
	return outcome.ExitCode()
}

// reportFailure logs a failure that ends the run. If the configured level hides
// errors the message is written to w directly, so a failing run is never silent.
func reportFailure(logger *zap.Logger, w io.Writer, msg string, err error) {
	if logger.Core().Enabled(zapcore.ErrorLevel) {
		logger.Error(msg, zap.Error(err))
		_ = logger.Sync()
		return
	}
	_, _ = fmt.Fprintf(w, "%s: %s: %s\n", version.Name, msg, err.Error())
}

// buildLogger builds a logger from logConfig whose output goes to w rather than
// the paths named in the config.
func buildLogger(logConfig zap.Config, w io.Writer) (*zap.Logger, error) {
	var encoder zapcore.Encoder
	switch logConfig.Encoding {
	case "console":
		encoder = zapcore.NewConsoleEncoder(logConfig.EncoderConfig)
	case "json":
		encoder = zapcore.NewJSONEncoder(logConfig.EncoderConfig)
	default:
		return nil, errors.Errorf("unknown log encoding: %s", logConfig.Encoding)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), logConfig.Level)
	return zap.New(core, zap.ErrorOutput(zapcore.Lock(zapcore.AddSync(w)))), nil
}
