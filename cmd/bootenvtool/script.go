package main

import (
	"io"
	"strings"

	"github.com/chzyer/readline"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bootenvtool/internal/arena"
)

// fatal reports whether err must stop further evaluation.
func fatal(err error) bool {
	var exhausted *arena.ExhaustedError
	return errors.As(err, &exhausted)
}

func (a *app) newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run FILE...",
		Short: "Run script files in one session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.newSession(cmd.OutOrStdout())
			var result *multierror.Error
			for _, path := range args {
				if err := s.EvalFile(path); err != nil {
					if fatal(err) {
						return err
					}
					logrus.WithError(err).Errorf("Running %s", path)
					result = multierror.Append(result, errors.Wrapf(err, "%s", path))
				}
			}
			return result.ErrorOrNil()
		},
	}
}

func (a *app) newEvalCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "eval EXPR...",
		Short: "Evaluate a script given on the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.newSession(cmd.OutOrStdout()).EvalString(strings.Join(args, " "))
		},
	}
}

func (a *app) newShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Evaluate statements interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rl, err := readline.NewEx(&readline.Config{
				Prompt:          a.cfg.Shell.Prompt,
				HistoryFile:     a.cfg.Shell.HistoryFile,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
				Stdin:           io.NopCloser(cmd.InOrStdin()),
				Stdout:          cmd.OutOrStdout(),
				Stderr:          cmd.ErrOrStderr(),
			})
			if err != nil {
				return errors.Wrap(err, "starting line editor")
			}
			defer rl.Close()

			return a.repl(rl, rl.Stdout(), rl.Stderr())
		},
	}
}

// lineReader is the part of readline.Instance the shell needs.
type lineReader interface {
	Readline() (string, error)
}

// repl evaluates one line at a time until end of input. Errors are
// reported and the session continues, except for arena exhaustion.
func (a *app) repl(rl lineReader, out, errOut io.Writer) error {
	s := a.newSession(out)
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if line == "" {
				return nil
			}
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := s.EvalString(line); err != nil {
			if fatal(err) {
				return err
			}
			printError(errOut, err)
		}
	}
}
