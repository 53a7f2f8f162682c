// Package command assembles the pkgpress command tree and maps the
// outcome of an invocation to a process exit code.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pkgpress.run/cmd/pkgpress/command/addcmd"
	"pkgpress.run/cmd/pkgpress/command/closecmd"
	"pkgpress.run/cmd/pkgpress/command/cmdutil"
	"pkgpress.run/cmd/pkgpress/command/generatecmd"
	"pkgpress.run/cmd/pkgpress/command/importcmd"
	"pkgpress.run/cmd/pkgpress/command/includecmd"
	"pkgpress.run/cmd/pkgpress/command/opencmd"
	"pkgpress.run/cmd/pkgpress/command/publishcmd"
	"pkgpress.run/cmd/pkgpress/command/repocmd"
	"pkgpress.run/internal/version"
)

// Exit codes as observed by shell callers.
const (
	// ReturnCodeSuccess is passed to os.Exit() when the invocation succeeded.
	ReturnCodeSuccess = 0
	// ReturnCodeError is passed to os.Exit() when an operation failed.
	ReturnCodeError = 1
	// ReturnCodeBadOptions is passed to os.Exit() on invalid arguments.
	ReturnCodeBadOptions = 2
	// ReturnCodePartial is passed to os.Exit() when only part of the
	// requested actions were carried out.
	ReturnCodePartial = 3
	// ReturnCodeFatal is passed to os.Exit() on internal errors.
	ReturnCodeFatal = 99
)

const (
	repoUse    = "destination repository URI, overrides $PKG_REPO"
	verboseUse = "enable verbose logging on standard error"
)

// Run executes one pkgpress invocation. Environment access goes
// through lookupEnv so tests can run hermetically.
func Run(
	ctx context.Context, lookupEnv func(string) (string, bool),
	inReader io.Reader, outWriter, errWriter io.Writer, args []string,
) (code int) {
	defer func() {
		if v := recover(); v != nil {
			fmt.Fprintf(errWriter, "pkgpress: internal error: %v\n", v)
			code = ReturnCodeFatal
		}
	}()

	cmd := CobraRoot(lookupEnv, errWriter)
	cmd.SetIn(inReader)
	cmd.SetOut(outWriter)
	cmd.SetErr(errWriter)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		switch {
		case errors.Is(err, cmdutil.ErrPartialPublication):
			return ReturnCodePartial
		case errors.Is(err, cmdutil.ErrInvalidArgs):
			return ReturnCodeBadOptions
		default:
			return ReturnCodeError
		}
	}

	return ReturnCodeSuccess
}

// CobraRoot builds the pkgpress command tree.
func CobraRoot(lookupEnv func(string) (string, bool), errWriter io.Writer) *cobra.Command {
	cfg := &cmdutil.Config{LookupEnv: lookupEnv}

	cmd := &cobra.Command{
		Use:          "pkgpress",
		Version:      version.Get().Version,
		SilenceUsage: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: unknown subcommand %q", cmdutil.ErrInvalidArgs, args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return fmt.Errorf("%w: no subcommand specified", cmdutil.ErrInvalidArgs)
		},
	}

	var verbose bool
	pf := cmd.PersistentFlags()
	pf.StringVarP(&cfg.RepoFlag, "repo", "s", "", repoUse)
	pf.BoolVar(&verbose, "verbose", false, verboseUse)

	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level := zapcore.ErrorLevel
		if verbose {
			level = zapcore.DebugLevel
		}
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.AddSync(errWriter),
			zap.NewAtomicLevelAt(level),
		)
		log := zapr.NewLogger(zap.New(core))
		cmd.SetContext(logr.NewContext(cmd.Context(), log))
	}

	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %s", cmdutil.ErrInvalidArgs, err)
	})

	cmd.AddCommand(
		opencmd.New(cfg).CobraCommand(),
		opencmd.NewAppend(cfg).CobraCommand(),
		addcmd.New(cfg).CobraCommand(),
		closecmd.New(cfg).CobraCommand(),
		publishcmd.New(cfg).CobraCommand(),
		includecmd.New(cfg).CobraCommand(),
		importcmd.New(cfg).CobraCommand(),
		generatecmd.New().CobraCommand(),
		repocmd.NewCreate(cfg).CobraCommand(),
		repocmd.NewRefresh(cfg).CobraCommand(),
	)

	return cmd
}
