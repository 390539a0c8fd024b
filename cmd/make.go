package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/hotwatch/internal/batch"
	"github.com/conneroisu/hotwatch/internal/compiler"
	"github.com/conneroisu/hotwatch/internal/config"
	"github.com/conneroisu/hotwatch/internal/executor"
	"github.com/conneroisu/hotwatch/internal/herrors"
	"github.com/conneroisu/hotwatch/internal/importgraph"
	"github.com/conneroisu/hotwatch/internal/interfaces"
	"github.com/conneroisu/hotwatch/internal/logging"
	"github.com/conneroisu/hotwatch/internal/postprocess"
	"github.com/conneroisu/hotwatch/internal/project"
	"github.com/conneroisu/hotwatch/internal/reporter"
	"github.com/conneroisu/hotwatch/internal/types"
)

var (
	makeDebug    bool
	makeOptimize bool
)

// makeCmd is the one-shot batch driver named in spec.md §6. Positional
// arguments name project-config files; trailing substrings after "--"
// restrict which targets run.
var makeCmd = &cobra.Command{
	Use:   "make [project-config-files...] [-- target-substrings...]",
	Short: "Compile every target once and exit",
	Long: `make compiles every enabled target in the given project-config files to
completion and exits. --debug and --optimize are passed through to the
compiler the same way the external compiler's own flags work; combining
them, or passing either to "hot", is an UnexpectedFlags error.`,
	RunE: runMake,
}

func init() {
	rootCmd.AddCommand(makeCmd)

	makeCmd.Flags().BoolVar(&makeDebug, "debug", false, "compile in debug mode")
	makeCmd.Flags().BoolVar(&makeOptimize, "optimize", false, "compile in optimize mode")
}

func runMake(cmd *cobra.Command, args []string) error {
	if makeDebug && makeOptimize {
		return herrors.New(herrors.ErrorTypeConfig, herrors.CodeUnexpectedFlags,
			"--debug and --optimize cannot be combined", nil)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	configPaths := args
	var targetSubstrings []string
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		configPaths = args[:dash]
		targetSubstrings = args[dash:]
	}
	if len(configPaths) == 0 {
		configPaths = []string{"hotwatch.yaml"}
	}

	projects, err := project.LoadProjects(configPaths, targetSubstrings)
	if err != nil {
		return err
	}

	mode := types.ModeStandard
	switch {
	case makeDebug:
		mode = types.ModeDebug
	case makeOptimize:
		mode = types.ModeOptimize
	}
	for _, p := range projects {
		for _, id := range p.TargetOrder {
			p.Targets[id].CompilationMode = mode
		}
	}

	log := logging.NewLogger(logging.DefaultConfig())
	rep := reporter.New(log)

	invoker := compiler.New(cfg.Build.CompilerCommand)
	walker := importgraph.New(cfg.Build.WalkerWorkers)
	pool := postprocess.New(cfg.Build.MaxParallel)
	clock := interfaces.RealClock{}

	ctx := context.Background()
	exitCode := 0
	for _, p := range projects {
		exec := executor.New(invoker, walker, pool, clock, []string{p.Root}, cfg.Server.Port, cfg.Development.Debug)
		driver := batch.New(exec, rep, cfg.Build.MaxParallel)
		result := driver.Run(ctx, p)
		if code := result.ExitCode(); code > exitCode {
			exitCode = code
		}
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	fmt.Fprintln(os.Stderr, "hotwatch make: done")
	return nil
}
