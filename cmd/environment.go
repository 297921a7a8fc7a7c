package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ngld/unitbuild/pkg/config"
	"github.com/ngld/unitbuild/pkg/jobs"
)

// environment bundles everything a subcommand needs to run commands.
type environment struct {
	cfg     *config.Config
	logger  *zerolog.Logger
	ctx     context.Context
	cleanup []func()
}

func (e *environment) Close() {
	for idx := len(e.cleanup) - 1; idx >= 0; idx-- {
		e.cleanup[idx]()
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	configFile, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}

	files := []string{}
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, eris.Wrapf(err, "failed to open config file %s", configFile)
		}
		files = append(files, configFile)
	}

	cfg, loader := config.Loader(files...)
	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "failed to load configuration")
	}

	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}
	if flags.Changed("progress") {
		cfg.Progress, _ = flags.GetString("progress")
	}
	if flags.Changed("jobs") {
		cfg.Jobs, _ = flags.GetInt("jobs")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zerolog.Logger, func(), error) {
	var out io.Writer = NewConsoleWriter(os.Stderr)
	if cfg.Log.JSON {
		out = os.Stderr
	}

	cleanup := func() {}
	if cfg.Log.File != "" {
		hdl, err := os.OpenFile(cfg.Log.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0660)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "failed to open log file %s", cfg.Log.File)
		}

		out = zerolog.MultiLevelWriter(out, hdl)
		cleanup = func() { hdl.Close() }
	}

	logger := zerolog.New(out).Level(cfg.LogLevel()).With().Timestamp().Logger()
	return &logger, cleanup, nil
}

// setup loads the configuration and prepares the logger and a context that is cancelled
// on SIGINT.
func setup(cmd *cobra.Command) (*environment, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	ctx := jobs.WithLogger(context.Background(), logger)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)

	return &environment{
		cfg:     cfg,
		logger:  logger,
		ctx:     ctx,
		cleanup: []func(){closeLog, stop},
	}, nil
}

var posixBuiltins = map[string]bool{
	"mv":    true,
	"rm":    true,
	"mkdir": true,
}

// rewriteBuiltins routes mv, rm and mkdir to our own implementation so they behave the
// same on every platform.
func rewriteBuiltins(self string) func([]string) []string {
	return func(args []string) []string {
		if len(args) > 0 && posixBuiltins[args[0]] {
			return append([]string{self}, args...)
		}
		return args
	}
}

// newScheduler creates a scheduler that runs commands in dir.
func (e *environment) newScheduler(dir string) (*jobs.Scheduler, error) {
	reporter, err := jobs.NewReporter(e.cfg.Progress, os.Stderr)
	if err != nil {
		return nil, err
	}

	self, err := os.Executable()
	if err != nil {
		return nil, eris.Wrap(err, "failed to determine the path of unitbuild")
	}

	tempDir := e.cfg.TempDir
	if tempDir != "" {
		tempDir, err = filepath.Abs(tempDir)
		if err != nil {
			return nil, err
		}
		if err = os.MkdirAll(tempDir, 0770); err != nil {
			return nil, eris.Wrapf(err, "failed to create %s", tempDir)
		}
	}

	launcher := &jobs.ProcessLauncher{
		Dir:     dir,
		TempDir: tempDir,
		Rewrite: rewriteBuiltins(self),
	}

	sched := jobs.New(
		jobs.Limit(e.cfg.Jobs),
		jobs.PollInterval(e.cfg.PollInterval),
		jobs.UseLauncher(launcher),
		jobs.UseReporter(reporter),
		jobs.Logger(e.logger),
	)

	e.logger.Debug().Int("limit", sched.Limit()).Msg("scheduler ready")
	return sched, nil
}
