// editor.go implements the PressedOpenEditor command: a guarded exec of the
// user's $HOTWATCH_EDITOR (or EditorCommand) against a file+line+column the
// browser reported, per spec.md §4.I's OpenEditor command.
package hotcontrol

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/conneroisu/hotwatch/internal/validation"
	"github.com/conneroisu/hotwatch/internal/wsserver"
)

// openEditor runs the configured editor command against cmd.File, reporting
// any failure back to the requesting client as an OpenEditorFailed frame.
func (c *Controller) openEditor(ctx context.Context, cmd Cmd) {
	reason, err := c.runEditor(ctx, cmd)
	if err == nil {
		return
	}
	c.Log.Warn(ctx, err, "open editor failed", "file", cmd.File)

	frame, _ := wsserver.EncodeServerFrame(wsserver.ServerFrame{
		Tag:   wsserver.TagOpenEditorFailed,
		Error: reason,
	})
	c.send(ctx, cmd.Conn, frame)
}

func (c *Controller) runEditor(ctx context.Context, cmd Cmd) (string, error) {
	editorCmd := c.EditorCommand
	if editorCmd == "" {
		editorCmd = os.Getenv("HOTWATCH_EDITOR")
	}
	if editorCmd == "" {
		editorCmd = os.Getenv("EDITOR")
	}
	if editorCmd == "" {
		return "no editor configured: set HOTWATCH_EDITOR or EDITOR", fmt.Errorf("no editor command configured")
	}

	absFile, err := filepath.Abs(cmd.File)
	if err != nil {
		return "invalid file path", fmt.Errorf("resolving editor target path: %w", err)
	}
	root := c.Project.Root
	rel, err := filepath.Rel(root, absFile)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "file is outside the project", fmt.Errorf("editor target %s escapes project root %s", absFile, root)
	}
	if err := validation.ValidatePath(absFile); err != nil {
		return "file path rejected", fmt.Errorf("validating editor target: %w", err)
	}

	argv := substitutePlaceholders(editorCmd, absFile, cmd.Line, cmd.Column)
	if len(argv) == 0 {
		return "empty editor command", fmt.Errorf("editor command resolved to no arguments")
	}

	timeout := c.OpenEditorTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execCmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	if err := execCmd.Run(); err != nil {
		return "editor command failed", fmt.Errorf("running editor: %w", err)
	}
	return "", nil
}

// substitutePlaceholders splits editorCmd on whitespace and replaces
// %file, %line, %col placeholders, appending the bare file path when the
// command names no placeholder at all.
func substitutePlaceholders(editorCmd, file string, line, col int) []string {
	fields := strings.Fields(editorCmd)
	lineStr := strconv.Itoa(line)
	colStr := strconv.Itoa(col)

	sawPlaceholder := false
	out := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		replaced := strings.NewReplacer("%file", file, "%line", lineStr, "%col", colStr).Replace(f)
		if replaced != f {
			sawPlaceholder = true
		}
		out = append(out, replaced)
	}
	if !sawPlaceholder {
		out = append(out, file)
	}
	return out
}
