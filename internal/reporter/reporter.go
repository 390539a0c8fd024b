// Package reporter consumes per-target status transitions and run-ending
// fatal errors for logging (component K), adapting the project's
// slog-backed Logger to the interfaces.Reporter boundary the controller and
// batch driver depend on.
package reporter

import (
	"context"
	"fmt"
	"strings"

	"github.com/conneroisu/hotwatch/internal/herrors"
	"github.com/conneroisu/hotwatch/internal/interfaces"
	"github.com/conneroisu/hotwatch/internal/logging"
	"github.com/conneroisu/hotwatch/internal/types"
)

// ConsoleReporter implements interfaces.Reporter on top of a
// logging.Logger, colorizing nothing itself (NO_COLOR-style plain text is
// the logger's job) but choosing level and fields per status kind.
type ConsoleReporter struct {
	log logging.Logger
}

// New builds a ConsoleReporter logging through log.
func New(log logging.Logger) *ConsoleReporter {
	return &ConsoleReporter{log: log.WithComponent("reporter")}
}

var _ interfaces.Reporter = (*ConsoleReporter)(nil)

// ReportStatus logs one target's status transition at a level appropriate
// to its kind: errors are logged at error level (plus one line per file
// error), terminal success is info, and interruptions and transient
// statuses are debug-level progress noise.
func (r *ConsoleReporter) ReportStatus(target types.TargetID, status types.Status) {
	ctx := context.Background()

	switch status.Kind {
	case types.StatusError:
		r.log.Error(ctx, status.Err, "compile failed", "target", string(target))
		if he, ok := status.Err.(*herrors.HotwatchError); ok {
			for _, fe := range he.PerFileErrors {
				r.log.Error(ctx, nil, "  "+fe.Message, "target", string(target), "path", fe.Path)
			}
		}
	case types.StatusInterrupted:
		r.log.Debug(ctx, "build interrupted by a newer change", "target", string(target))
	case types.StatusSuccess:
		r.log.Info(ctx, "compiled successfully", "target", string(target),
			"artifact_bytes", status.ArtifactSize, "postprocess_bytes", status.PostprocessSize)
	default:
		r.log.Debug(ctx, "status changed", "target", string(target), "status", status.Kind.String())
	}
}

// ReportTimeline logs a one-line summary of the events that led to the just
// finished compiling pass, matching the controller's "clear latest_events,
// log a timeline" behavior at the end of a Compiling batch.
func (r *ConsoleReporter) ReportTimeline(events []types.Event) {
	if len(events) == 0 {
		return
	}
	var b strings.Builder
	for i, e := range events {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(describeEvent(e))
	}
	r.log.Info(context.Background(), "compiled because of "+b.String())
}

func describeEvent(e types.Event) string {
	switch e.Kind {
	case types.EventWatcher:
		return fmt.Sprintf("%s %s", watcherVerb(e.WatcherKind), e.Path)
	case types.EventWebSocketConnectedNeedingCompilation:
		return fmt.Sprintf("browser connected to %s needing a compile", e.Target)
	case types.EventWebSocketConnectedNoAction:
		return fmt.Sprintf("browser connected to %s, already up to date", e.Target)
	case types.EventWebSocketConnectedWithErrors:
		return fmt.Sprintf("browser connected to %s with existing errors", e.Target)
	case types.EventWebSocketClosed:
		return fmt.Sprintf("browser disconnected from %s", e.Target)
	case types.EventWebSocketChangedCompilationMode:
		return fmt.Sprintf("%s changed compilation mode", e.Target)
	case types.EventWebSocketChangedBrowserUiPosition:
		return fmt.Sprintf("%s changed UI position", e.Target)
	case types.EventWorkersLimitedAfterWebSocketClosed:
		return "worker pool resized after disconnect"
	default:
		return "unknown event"
	}
}

func watcherVerb(k types.WatcherEventKind) string {
	switch k {
	case types.WatcherAdded:
		return "added"
	case types.WatcherRemoved:
		return "removed"
	default:
		return "changed"
	}
}

// ReportFatal logs a run-ending error at fatal severity.
func (r *ConsoleReporter) ReportFatal(err error) {
	r.log.Fatal(context.Background(), err, "hotwatch stopped")
}
