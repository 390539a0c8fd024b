package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/hotwatch/internal/compiler"
	"github.com/conneroisu/hotwatch/internal/config"
	"github.com/conneroisu/hotwatch/internal/executor"
	"github.com/conneroisu/hotwatch/internal/herrors"
	"github.com/conneroisu/hotwatch/internal/hotcontrol"
	"github.com/conneroisu/hotwatch/internal/importgraph"
	"github.com/conneroisu/hotwatch/internal/interfaces"
	"github.com/conneroisu/hotwatch/internal/logging"
	"github.com/conneroisu/hotwatch/internal/postprocess"
	"github.com/conneroisu/hotwatch/internal/project"
	"github.com/conneroisu/hotwatch/internal/reporter"
	"github.com/conneroisu/hotwatch/internal/version"
	"github.com/conneroisu/hotwatch/internal/watcher"
	"github.com/conneroisu/hotwatch/internal/wsserver"
)

// hotCmd runs the long-lived watch-and-hot-reload session. Per spec.md §6
// it accepts no compile-mode flags; --debug/--optimize are make-only and a
// hot invocation that receives them is an UnexpectedFlags error.
var hotCmd = &cobra.Command{
	Use:   "hot [project-config-files...] [-- target-substrings...]",
	Short: "Watch sources and serve hot-reloading compiled output to connected browsers",
	RunE:  runHot,
}

func init() {
	hotCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return herrors.New(herrors.ErrorTypeConfig, herrors.CodeUnexpectedFlags, err.Error(), err)
	})
	rootCmd.AddCommand(hotCmd)
}

func runHot(cmd *cobra.Command, args []string) error {
	configPaths := args
	var targetSubstrings []string
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		configPaths = args[:dash]
		targetSubstrings = args[dash:]
	}
	if len(configPaths) == 0 {
		configPaths = []string{"hotwatch.yaml"}
	}
	if len(configPaths) != 1 {
		return herrors.New(herrors.ErrorTypeConfig, herrors.CodeUnexpectedFlags,
			"hot accepts exactly one project-config file", nil)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logging.NewLogger(logging.DefaultConfig())
	rep := reporter.New(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	invoker := compiler.New(cfg.Build.CompilerCommand)
	walker := importgraph.New(cfg.Build.WalkerWorkers)
	clock := interfaces.RealClock{}

	var pool *postprocess.Pool
	var ws *wsserver.Server

	for {
		projects, err := project.LoadProjects(configPaths, targetSubstrings)
		if err != nil {
			return err
		}
		proj := projects[0]

		if pool == nil {
			pool = postprocess.New(cfg.Build.MaxParallel)
		}
		if ws == nil {
			ws = wsserver.New()
		}

		watch, err := watcher.New(cfg.DebounceDuration())
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}

		exec := executor.New(invoker, walker, pool, clock, []string{proj.Root}, cfg.Server.Port, cfg.Development.Debug)

		controller := hotcontrol.New(
			proj, exec, pool, watch, ws, rep, clock, log,
			proj.ScratchStatePath,
			cfg.Build.MaxParallel,
			cfg.WorkerLimitTimeout(),
			cfg.OpenEditorTimeout(),
			version.GetShortVersion(),
			os.Getenv("HOTWATCH_EDITOR"),
		)

		result, err := controller.Run(ctx)
		if err != nil {
			return err
		}

		switch result.Kind {
		case hotcontrol.RunExited:
			return nil
		case hotcontrol.RunFatal:
			rep.ReportFatal(result.FatalErr)
			os.Exit(1)
		case hotcontrol.RunRestart:
			if result.WatchConfigChanged {
				ws = nil
				pool = nil
			}
			if ctx.Err() != nil {
				return nil
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
	}
}
