package executor

import (
	"bytes"
	"fmt"
	"regexp"
	"time"

	"github.com/conneroisu/hotwatch/internal/types"
)

// prologueHeader is the recognizable versioned header spec.md §4.H refers
// to when deciding whether a proxy artifact needs to be (re)written.
const prologueHeader = "/* hotwatch:client v1 */"

// recordFieldPattern is the opaque heuristic for extracting the artifact's
// current record-field names, used only for inter-compile change
// detection (spec.md §4.H); it never needs to understand the compiler's
// actual output format, only to be stable across runs of the same code.
var recordFieldPattern = regexp.MustCompile(`"([A-Za-z_][A-Za-z0-9_]*)"\s*:`)

// Inject prepends the generated client prologue to compiled code and
// extracts the current record-field set, per spec.md §4.H's OnSuccess
// "hot, *" branch. outputPath is accepted for parity with the
// inject(outputPath, code) signature named in the spec; this
// implementation needs only the code bytes.
func Inject(outputPath *types.OutputPath, code []byte, target types.TargetID, wsPort int, mode types.CompilationMode, compiledTimestamp time.Time, debug bool) ([]byte, map[string]bool, error) {
	prologue := buildPrologue(target, wsPort, mode, compiledTimestamp, debug)

	var buf bytes.Buffer
	buf.WriteString(prologue)
	buf.Write(code)

	return buf.Bytes(), extractRecordFields(code), nil
}

func buildPrologue(target types.TargetID, wsPort int, mode types.CompilationMode, compiledTimestamp time.Time, debug bool) string {
	return fmt.Sprintf(
		"%s\n/* target=%s mode=%s ws_port=%d compiled_timestamp=%d debug=%t */\n",
		prologueHeader, target, mode, wsPort, compiledTimestamp.UnixMilli(), debug,
	)
}

// HasRecognizableHeader reports whether existing on-disk content already
// starts with a versioned prologue, used to decide whether a proxy
// artifact write is needed for a not-yet-compiled target.
func HasRecognizableHeader(existing []byte) bool {
	return bytes.HasPrefix(existing, []byte(prologueHeader))
}

func extractRecordFields(code []byte) map[string]bool {
	fields := make(map[string]bool)
	for _, m := range recordFieldPattern.FindAllSubmatch(code, -1) {
		fields[string(m[1])] = true
	}
	return fields
}
