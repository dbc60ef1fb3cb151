package main

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"bootenvtool/internal/arena"
	"bootenvtool/internal/config"
	"bootenvtool/internal/grammar"
	"bootenvtool/internal/script"
)

var appversion = "0.3.0"

// app carries the command line state shared by every command.
type app struct {
	configPath string
	logLevel   string
	capacity   int
	env        config.EnvConfig
	probe      config.ProbeConfig

	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "bootenvtool",
		Short:             "Inspect partitions and script the U-Boot environment",
		Version:           appversion,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", config.DefaultPath, "Path to the configuration file")
	flags.StringVar(&a.logLevel, "log-level", "warning", "Log messages above specified level (trace, debug, info, warn, error, fatal or panic)")
	flags.IntVar(&a.capacity, "arena-capacity", arena.DefaultCapacity, "Bytes available to each script evaluation")
	flags.StringVar(&a.env.Path, "env-path", "", "Device or image holding the U-Boot environment")
	flags.IntVar(&a.env.Start, "env-start", 0, "First 512-byte block of the environment")
	flags.IntVar(&a.env.Count, "env-count", 0, "Number of 512-byte blocks in the environment")
	flags.StringVar(&a.probe.SysBlockDir, "sys-block-dir", "/sys/block", "Kernel block device registry")
	flags.StringVar(&a.probe.DevDir, "dev-dir", "/dev", "Directory holding device nodes")

	root.AddCommand(
		a.newRunCommand(),
		a.newEvalCommand(),
		a.newShellCommand(),
		a.newPartitionsCommand(),
		a.newResolveCommand(),
		a.newBackupCommand(),
		a.newRestoreCommand(),
		a.newBrowseCommand(),
		a.newConfigCommand(),
	)
	return root
}

// setup loads the configuration and applies the flags given on the command
// line over it.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	cfg, err := config.Load(a.configPath, flags.Changed("config"))
	if err != nil {
		return err
	}
	a.override(flags, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetOutput(cmd.ErrOrStderr())
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	a.cfg = cfg
	return nil
}

// override copies the flags that were set explicitly into cfg.
func (a *app) override(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("arena-capacity") {
		cfg.Arena.Capacity = a.capacity
	}
	if flags.Changed("env-path") {
		cfg.Env.Path = a.env.Path
	}
	if flags.Changed("env-start") {
		cfg.Env.Start = a.env.Start
	}
	if flags.Changed("env-count") {
		cfg.Env.Count = a.env.Count
	}
	if flags.Changed("sys-block-dir") {
		cfg.Probe.SysBlockDir = a.probe.SysBlockDir
	}
	if flags.Changed("dev-dir") {
		cfg.Probe.DevDir = a.probe.DevDir
	}
}

// exitError carries a process exit status.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func permissionDenied(err error, device string) error {
	if os.IsPermission(errors.Cause(err)) {
		return &exitError{code: 13, err: errors.Errorf("no permission to access %s, try with elevated privileges", device)}
	}
	return err
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	var exhausted *arena.ExhaustedError
	if errors.As(err, &exhausted) {
		return 2
	}
	return 1
}

// printError reports err in red. Syntax errors already carry their own
// prefix.
func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	var syntax *grammar.SyntaxError
	if errors.As(err, &syntax) {
		red.Fprintln(w, err)
		return
	}
	red.Fprintf(w, "Error: %v\n", err)
}

// newSession creates an interpreter writing to out with the configured
// environment location already bound.
func (a *app) newSession(out io.Writer) *script.Session {
	s := script.New(
		script.WithOutput(out),
		script.WithCapacity(a.cfg.Arena.Capacity),
		script.WithLogger(logrus.WithField("component", "script")),
	)
	if a.cfg.Env.Path != "" {
		s.SetString(script.VarEnvPath, a.cfg.Env.Path)
		s.SetNumber(script.VarEnvStart, int32(a.cfg.Env.Start))
		s.SetNumber(script.VarEnvCount, int32(a.cfg.Env.Count))
	}
	return s
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
