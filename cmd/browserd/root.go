package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/entrhq/browserd/pkg/config"
	"github.com/entrhq/browserd/pkg/engine"
	"github.com/entrhq/browserd/pkg/logging"
	"github.com/entrhq/browserd/pkg/sandbox"
	"github.com/entrhq/browserd/pkg/security/environ"
	"github.com/entrhq/browserd/pkg/security/workspace"
	"github.com/entrhq/browserd/pkg/session"
	"github.com/entrhq/browserd/pkg/worker"
)

const version = "0.1.0"

// Process exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var errMissingSkillDir = errors.New("missing required --skill-dir")

type cliOptions struct {
	skillDir   string
	configFile string
	logLevel   string
	logFile    string
}

func newRootCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browserd [--skill-dir] <path>",
		Short: "Persistent browser automation worker",
		Long: `browserd keeps one browser, context and page alive across requests.
It reads one JSON request per line on stdin and writes one JSON response per
line on stdout. Diagnostics go to stderr.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.skillDir == "" && len(args) == 1 {
				opts.skillDir = args[0]
			}
			if opts.skillDir == "" {
				return errMissingSkillDir
			}
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().AddFlagSet(flagSet(opts))
	return cmd
}

func flagSet(opts *cliOptions) *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.StringVar(&opts.skillDir, "skill-dir", "", "working directory for scripts, modules and screenshots")
	flags.StringVar(&opts.configFile, "config", "", "path to a YAML configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFile, "log-file", "", "also write logs to this file")
	return flags
}

func execute(args []string) int {
	opts := &cliOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(os.Stderr)
	cmd.SetErr(os.Stderr)

	err := cmd.ExecuteContext(context.Background())
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errMissingSkillDir):
		fmt.Fprintf(os.Stderr, "Error: %v\n\n%s", err, cmd.UsageString())
		return exitUsage
	default:
		fmt.Fprintf(os.Stderr, "browserd: %v\n", err)
		return exitFailure
	}
}

//nolint:funlen
func run(ctx context.Context, opts *cliOptions) error {
	cfg, err := config.Load(config.LoadOptions{
		SkillDir:   opts.skillDir,
		ConfigFile: opts.configFile,
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFile != "" {
		cfg.Logging.File = opts.logFile
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.Setup(logging.Options{Level: cfg.Logging.Level, File: cfg.Logging.File}); err != nil {
		return err
	}
	defer logging.Close() //nolint:errcheck
	logger := logging.NewLogger("main")

	if err := os.Chdir(cfg.SkillDir); err != nil {
		return fmt.Errorf("failed to enter skill directory: %w", err)
	}

	blocklist, err := environ.NewBlocklist(cfg.Sandbox.BlockedEnvPatterns)
	if err != nil {
		return fmt.Errorf("invalid sandbox configuration: %w", err)
	}
	env := environ.New(blocklist)

	guard, err := workspace.NewGuard(cfg.SkillDir)
	if err != nil {
		return fmt.Errorf("failed to set up workspace guard: %w", err)
	}

	driver := engine.New(engine.Options{
		DriverDirectory: cfg.Engine.DriverDirectory,
		BrowserType:     cfg.Engine.BrowserType,
		AutoInstall:     cfg.Engine.AutoInstall,
	})
	if err := driver.Bootstrap(); err != nil {
		// Not fatal: the first exec reports the failure to the caller.
		logger.Warnf("playwright is not ready: %v", err)
	}

	manager := session.NewManager(driver, env, session.Options{
		BrowserType: cfg.Engine.BrowserType,
		Headless:    cfg.Engine.Headless,
	})
	sb := sandbox.New(manager, driver, env, guard)
	w := worker.New(manager, sb, os.Stdout)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("browserd %s serving %s", version, cfg.SkillDir)
	err = w.Serve(ctx, os.Stdin)

	time.Sleep(cfg.ShutdownGrace)
	return err
}
