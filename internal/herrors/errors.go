// Package herrors provides the structured error taxonomy used across the
// compilation scheduler: per-target terminal errors, fatal run errors, and
// the helpers that decide whether an error is recoverable.
package herrors

import (
	"errors"
	"fmt"
)

// ErrorType categorizes an error for logging and recovery decisions.
type ErrorType string

const (
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeSpawn     ErrorType = "spawn"
	ErrorTypeCompiler  ErrorType = "compiler"
	ErrorTypePostproc  ErrorType = "postprocess"
	ErrorTypeIO        ErrorType = "io"
	ErrorTypeWalker    ErrorType = "walker"
	ErrorTypeWatcher   ErrorType = "watcher"
	ErrorTypeWebSocket ErrorType = "websocket"
	ErrorTypeInternal  ErrorType = "internal"
)

// Code enumerates every distinct failure kind named in the specification's
// error taxonomy (roughly 20 terminal per-target kinds plus fatal kinds).
type Code string

const (
	// Configuration errors (fatal before any build begins).
	CodeProjectConfigNotFound      Code = "PROJECT_CONFIG_NOT_FOUND"
	CodeProjectConfigDecodeError   Code = "PROJECT_CONFIG_DECODE_ERROR"
	CodeDuplicateInputsOrOutputs   Code = "DUPLICATE_INPUTS_OR_OUTPUTS"
	CodeUnknownTargetsSubstrings   Code = "UNKNOWN_TARGETS_SUBSTRINGS"
	CodeNoCommonWatchRoot          Code = "NO_COMMON_WATCH_ROOT"
	CodeUnexpectedFlags            Code = "UNEXPECTED_FLAGS"

	// Dependency-install errors.
	CodeDependencyInstallError Code = "DEPENDENCY_INSTALL_ERROR"

	// Compiler spawn errors.
	CodeCompilerNotFound   Code = "COMPILER_NOT_FOUND"
	CodeCompilerSpawnOther Code = "COMPILER_SPAWN_OTHER"
	CodeCompilerKilled     Code = "COMPILER_KILLED"

	// Compiler output errors.
	CodeCompilerJSONParseFailure Code = "COMPILER_JSON_PARSE_FAILURE"
	CodeCompilerGeneralError     Code = "COMPILER_GENERAL_ERROR"
	CodeCompilerCompileErrors    Code = "COMPILER_COMPILE_ERRORS"

	// Post-process errors.
	CodePostprocessMissingScript      Code = "POSTPROCESS_MISSING_SCRIPT"
	CodePostprocessImportError        Code = "POSTPROCESS_IMPORT_ERROR"
	CodePostprocessNotAFunction       Code = "POSTPROCESS_NOT_A_FUNCTION"
	CodePostprocessRunError           Code = "POSTPROCESS_RUN_ERROR"
	CodePostprocessBadReturnValue     Code = "POSTPROCESS_BAD_RETURN_VALUE"
	CodePostprocessNonZeroExit        Code = "POSTPROCESS_NON_ZERO_EXIT"

	// I/O errors on the artifact.
	CodeReadOutputError      Code = "READ_OUTPUT_ERROR"
	CodeWriteOutputError     Code = "WRITE_OUTPUT_ERROR"
	CodeWriteProxyOutputError Code = "WRITE_PROXY_OUTPUT_ERROR"
	CodeInjectError          Code = "INJECT_ERROR"

	// Walker errors.
	CodeWalkerIOError            Code = "WALKER_IO_ERROR"
	CodeWalkerProjectConfigError Code = "WALKER_PROJECT_CONFIG_ERROR"

	// Fatal, run-ending errors.
	CodeWatcherFatal       Code = "WATCHER_FATAL"
	CodePortConflict       Code = "PORT_CONFLICT"
	CodeStuckInProgress    Code = "STUCK_IN_PROGRESS"
)

// WriteOutputReason distinguishes the two situations in which writing the
// compiled artifact can fail, per spec.md §3.
type WriteOutputReason string

const (
	WriteReasonInjectWebSocketClient WriteOutputReason = "inject_websocket_client"
	WriteReasonPostprocess           WriteOutputReason = "postprocess"
)

// FileErrorDetail is one per-file entry of a structured compiler error
// report, carried on HotwatchError when Code == CodeCompilerCompileErrors.
type FileErrorDetail struct {
	Path    string
	Message string
}

// HotwatchError is the structured error type carried on OutputStatus error
// variants and on fatal run results.
type HotwatchError struct {
	Type        ErrorType
	Code        Code
	Message     string
	Cause       error
	Target      string
	FilePath    string
	Recoverable bool

	// WriteReason is only set when Code == CodeWriteOutputError.
	WriteReason WriteOutputReason

	// PerFileErrors is only set when Code == CodeCompilerCompileErrors.
	PerFileErrors []FileErrorDetail
}

func (e *HotwatchError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Target != "" {
		msg = fmt.Sprintf("%s (target=%s)", msg, e.Target)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *HotwatchError) Unwrap() error { return e.Cause }

func (e *HotwatchError) Is(target error) bool {
	var t *HotwatchError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithTarget attaches the owning target identifier.
func (e *HotwatchError) WithTarget(target string) *HotwatchError {
	e.Target = target
	return e
}

// New constructs a HotwatchError for a per-target terminal error.
func New(typ ErrorType, code Code, message string, cause error) *HotwatchError {
	return &HotwatchError{
		Type:        typ,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: typ != ErrorTypeWatcher && code != CodePortConflict,
	}
}

// NewWriteOutputError constructs the one error kind that carries a reason.
func NewWriteOutputError(reason WriteOutputReason, cause error) *HotwatchError {
	return &HotwatchError{
		Type:        ErrorTypeIO,
		Code:        CodeWriteOutputError,
		Message:     "failed to write compiled output",
		Cause:       cause,
		WriteReason: reason,
		Recoverable: true,
	}
}

// IsRecoverable reports whether the next dirty+compile cycle clears err.
func IsRecoverable(err error) bool {
	var e *HotwatchError
	if errors.As(err, &e) {
		return e.Recoverable
	}
	return false
}

// IsFatal reports whether err should end the run rather than stay scoped to
// one target.
func IsFatal(err error) bool {
	var e *HotwatchError
	if errors.As(err, &e) {
		switch e.Code {
		case CodeWatcherFatal, CodePortConflict, CodeProjectConfigNotFound,
			CodeProjectConfigDecodeError, CodeDuplicateInputsOrOutputs,
			CodeUnknownTargetsSubstrings, CodeNoCommonWatchRoot:
			return true
		}
	}
	return false
}
