// Package compiler spawns the external single-shot compiler (component B)
// in build or typecheck-only mode and reports a structured result.
package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"github.com/conneroisu/hotwatch/internal/interfaces"
	"github.com/conneroisu/hotwatch/internal/types"
	"github.com/conneroisu/hotwatch/internal/validation"
)

// jsonReport is the compiler's own structured error shape. The exact
// schema is owned by the compiler, not this core; only the tag and the
// per-file path/message pairs are relied upon.
type jsonReport struct {
	Tag    string `json:"tag"`
	Errors []struct {
		Path    string `json:"path"`
		Message string `json:"message"`
	} `json:"errors"`
	Message string `json:"message"`
}

// Invoker runs the configured compiler binary with security-validated
// arguments before exec.CommandContext.
type Invoker struct {
	command        string
	allowedCommands map[string]bool
}

// New builds an Invoker for the named compiler binary (e.g. "elm"-alike),
// restricted to an explicit allowlist as the only entries ValidateCommand
// will accept.
func New(command string) *Invoker {
	return &Invoker{
		command:         command,
		allowedCommands: map[string]bool{command: true},
	}
}

var _ interfaces.Compiler = (*Invoker)(nil)

// Make implements interfaces.Compiler. mode=typecheck is signalled by a nil
// outputPath, matching §4.H's "typecheck-only ... null artifact target".
func (inv *Invoker) Make(ctx context.Context, inputs []types.InputPath, mode types.CompilationMode, outputPath *types.OutputPath, env map[string]string) (interfaces.CompileResult, error) {
	if err := validation.ValidateCommand(inv.command, inv.allowedCommands); err != nil {
		return interfaces.CompileResult{}, fmt.Errorf("compiler command rejected: %w", err)
	}

	args, err := inv.buildArgs(inputs, mode, outputPath)
	if err != nil {
		return interfaces.CompileResult{}, err
	}
	for _, a := range args {
		if err := validation.ValidateArgument(a); err != nil {
			return interfaces.CompileResult{}, fmt.Errorf("compiler argument rejected %q: %w", a, err)
		}
	}

	cmd := exec.CommandContext(ctx, inv.command, args...)
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if ctx.Err() != nil {
		return interfaces.CompileResult{Kind: interfaces.CompileResultKilled}, nil
	}

	if runErr != nil {
		var execErr *exec.Error
		if errors.As(runErr, &execErr) {
			return interfaces.CompileResult{Kind: interfaces.CompileResultSpawnNotFound, Err: runErr}, nil
		}
	}

	if runErr != nil && stderr.Len() == 0 && stdout.Len() == 0 {
		return interfaces.CompileResult{Kind: interfaces.CompileResultSpawnOther, Err: runErr}, nil
	}

	if stderr.Len() == 0 {
		if runErr == nil {
			return interfaces.CompileResult{Kind: interfaces.CompileResultSuccess}, nil
		}
		return interfaces.CompileResult{Kind: interfaces.CompileResultUnexpectedOutput, Err: runErr}, nil
	}

	var report jsonReport
	if err := json.Unmarshal(stderr.Bytes(), &report); err != nil {
		return interfaces.CompileResult{Kind: interfaces.CompileResultUnexpectedOutput, Err: fmt.Errorf("parsing compiler JSON report: %w", err)}, nil
	}

	if len(report.Errors) > 0 {
		perFile := make([]interfaces.CompileFileError, 0, len(report.Errors))
		for _, e := range report.Errors {
			perFile = append(perFile, interfaces.CompileFileError{Path: e.Path, Message: e.Message})
		}
		return interfaces.CompileResult{Kind: interfaces.CompileResultCompileErrors, PerFileErrors: perFile}, nil
	}

	return interfaces.CompileResult{Kind: interfaces.CompileResultGeneralError, GeneralErrorJSON: stderr.Bytes(), Err: errors.New(report.Message)}, nil
}

func (inv *Invoker) buildArgs(inputs []types.InputPath, mode types.CompilationMode, outputPath *types.OutputPath) ([]string, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("compiler invocation requires at least one input")
	}
	args := make([]string, 0, len(inputs)+4)
	args = append(args, "make")
	for _, in := range inputs {
		args = append(args, string(in))
	}
	switch mode {
	case types.ModeDebug:
		args = append(args, "--debug")
	case types.ModeOptimize:
		args = append(args, "--optimize")
	}
	args = append(args, "--report=json")
	if outputPath != nil {
		args = append(args, "--output="+outputPath.Absolute)
	} else {
		args = append(args, "--output=/dev/null")
	}
	return args, nil
}
