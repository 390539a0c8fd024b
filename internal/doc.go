// Package internal contains the core implementation packages for hotwatch.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the hotwatch CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - project: project-config loading and in-memory Project/OutputState model
//   - planner: per-target output-action planning under concurrency limits
//   - executor: per-target build orchestration (compile, inject, postprocess)
//   - compiler: external single-shot compiler invocation
//   - importgraph: transitive source-file closure walking
//   - postprocess: elastic worker pool running user post-process scripts
//   - watcher: file system monitoring with internal debouncing
//   - wsserver: browser client WebSocket transport and wire protocol
//   - hotcontrol: the watch-and-hot-reload event loop and its interpreter
//   - batch: the one-shot "make" driver sharing the planner and executor
//   - scratchstate: persisted port/token/per-target UI settings
//   - config: configuration loading, defaults, and validation
//   - logging: structured logging
//   - reporter: console reporting of status transitions and fatal errors
//   - herrors: the tagged error taxonomy shared across components
//   - validation: input and command validation shared across components
//
// # Design Principles
//
//   - Security by default with input validation and sanitization
//   - Concurrent safety with proper mutex usage and single-writer discipline
//   - Testability through interfaces decoupling components from I/O
package internal
