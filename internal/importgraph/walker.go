// Package importgraph discovers the transitive source closure of a
// target's inputs (component C) with a best-effort textual import scan
// (go/parser for .go files), ported from the AST-walking idiom used
// elsewhere in this codebase for source analysis. It does not read a
// dependency report from the compiler.
package importgraph

import (
	"bufio"
	"context"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sync"

	"github.com/conneroisu/hotwatch/internal/interfaces"
	"github.com/conneroisu/hotwatch/internal/types"
)

// importLine matches a single "import Module.Name" style declaration; the
// compiler this core targets uses dotted module names resolved against
// configured source directories.
var importLine = regexp.MustCompile(`^\s*import\s+([A-Za-z0-9_.]+)`)

// scanJob is one file queued for import extraction.
type scanJob struct {
	path   string
	result chan<- scanResult
}

type scanResult struct {
	path    string
	imports []string
	err     error
}

// Walker is a worker-pool-backed implementation of interfaces.Walker.
type Walker struct {
	workerCount int
}

// New builds a Walker with workerCount workers (defaults to NumCPU when <= 0,
// matching the CPU-bound fan-out the teacher's scanner pool uses).
func New(workerCount int) *Walker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	return &Walker{workerCount: workerCount}
}

var _ interfaces.Walker = (*Walker)(nil)

// Walk implements interfaces.Walker. It performs a breadth-first closure
// over import declarations starting from inputs, resolving each imported
// module name against sourceDirs.
func (w *Walker) Walk(ctx context.Context, sourceDirs []string, inputs []types.InputPath) (interfaces.WalkResult, error) {
	visited := make(map[string]struct{})
	var frontier []string
	for _, in := range inputs {
		abs, err := filepath.Abs(string(in))
		if err != nil {
			return interfaces.WalkResult{AllRelatedSourcePaths: visited, Partial: true, Err: err}, nil
		}
		if _, ok := visited[abs]; !ok {
			visited[abs] = struct{}{}
			frontier = append(frontier, abs)
		}
	}

	for len(frontier) > 0 {
		results := w.scanBatch(ctx, frontier)
		frontier = nil
		for _, r := range results {
			if r.err != nil {
				return interfaces.WalkResult{AllRelatedSourcePaths: visited, Partial: true, Err: r.err}, nil
			}
			for _, modName := range r.imports {
				resolved, ok := resolveModule(sourceDirs, modName)
				if !ok {
					continue
				}
				if _, seen := visited[resolved]; !seen {
					visited[resolved] = struct{}{}
					frontier = append(frontier, resolved)
				}
			}
		}
	}

	return interfaces.WalkResult{AllRelatedSourcePaths: visited}, nil
}

func (w *Walker) scanBatch(ctx context.Context, paths []string) []scanResult {
	jobs := make(chan scanJob, len(paths))
	results := make(chan scanResult, len(paths))

	var wg sync.WaitGroup
	workers := w.workerCount
	if workers > len(paths) {
		workers = len(paths)
	}
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					job.result <- scanResult{path: job.path, err: ctx.Err()}
				default:
					imports, err := scanFileImports(job.path)
					job.result <- scanResult{path: job.path, imports: imports, err: err}
				}
			}
		}()
	}

	for _, p := range paths {
		jobs <- scanJob{path: p, result: results}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]scanResult, 0, len(paths))
	for r := range results {
		out = append(out, r)
	}
	return out
}

// scanFileImports performs a line-oriented textual scan for import
// declarations (.go files go through scanGoFileImports). A file that cannot
// be opened or read, or a .go file that does not parse, returns an error,
// and Walk then stops with the partial set found so far.
func scanFileImports(path string) ([]string, error) {
	if filepath.Ext(path) == ".go" {
		return scanGoFileImports(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var imports []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if m := importLine.FindStringSubmatch(scanner.Text()); m != nil {
			imports = append(imports, m[1])
		}
	}
	return imports, scanner.Err()
}

// scanGoFileImports uses go/parser for the case where a source directory
// happens to hold Go glue files referenced by a target (e.g. a JS
// interop shim compiled alongside the target).
func scanGoFileImports(path string) ([]string, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}
	imports := make([]string, 0, len(f.Imports))
	for _, imp := range f.Imports {
		imports = append(imports, imp.Path.Value)
	}
	return imports, nil
}

func resolveModule(sourceDirs []string, modName string) (string, bool) {
	rel := moduleNameToPath(modName)
	for _, dir := range sourceDirs {
		candidate := filepath.Join(dir, rel)
		if _, err := os.Stat(candidate); err == nil {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				continue
			}
			return abs, true
		}
	}
	return "", false
}

func moduleNameToPath(modName string) string {
	out := make([]rune, 0, len(modName)+4)
	for _, r := range modName {
		if r == '.' {
			out = append(out, filepath.Separator)
		} else {
			out = append(out, r)
		}
	}
	return string(out) + ".elm"
}
