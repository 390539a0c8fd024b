// Package scratchstate persists the chosen WebSocket port, security token,
// and per-target UI settings across restarts (spec.md §6's scratch state
// file). It is safe to delete: Load returns a fresh zero-value state and the
// caller picks a new port and default settings.
package scratchstate

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/hotwatch/internal/types"
)

// TargetSettings is one target's persisted UI state.
type TargetSettings struct {
	CompilationMode   string `json:"compilationMode"`
	BrowserUIPosition string `json:"browserUiPosition"`
	OpenErrorOverlay  bool   `json:"openErrorOverlay"`
}

// State is the on-disk JSON shape, matching spec.md §6 exactly.
type State struct {
	Port           int                       `json:"port"`
	WebSocketToken string                    `json:"webSocketToken"`
	Targets        map[string]TargetSettings `json:"targets"`
}

// New builds an empty state ready to be populated and written.
func New() *State {
	return &State{Targets: make(map[string]TargetSettings)}
}

// Load reads path, returning a fresh empty State if the file does not exist
// (per spec.md §6, "it is safe to delete"). A malformed file is a genuine
// decode error since an operator would expect corruption to surface.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("reading scratch state %s: %w", path, err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding scratch state %s: %w", path, err)
	}
	if s.Targets == nil {
		s.Targets = make(map[string]TargetSettings)
	}
	return &s, nil
}

// Write atomically persists s to path, creating parent directories as
// needed. Called after every change to per-target UI settings and once the
// WebSocket port has been finalised (spec.md §6).
func Write(path string, s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding scratch state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating scratch state directory %s: %w", dir, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing scratch state temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming scratch state into place: %w", err)
	}
	return nil
}

// ApplyTarget copies one OutputState's mutable UI fields into the scratch
// state, creating its entry if needed.
func (s *State) ApplyTarget(target types.TargetID, mode types.CompilationMode, pos types.BrowserUIPosition, overlay bool) {
	if s.Targets == nil {
		s.Targets = make(map[string]TargetSettings)
	}
	s.Targets[string(target)] = TargetSettings{
		CompilationMode:   string(mode),
		BrowserUIPosition: string(pos),
		OpenErrorOverlay:  overlay,
	}
}

// NewWebSocketToken generates a cryptographically secure opaque hex token
// for the "webSocketToken" field, checked with constant-time equality on
// every client connect attempt.
func NewWebSocketToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating websocket token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// TargetOrDefault returns the persisted settings for target, or the
// standard-mode default if none were ever recorded.
func (s *State) TargetOrDefault(target types.TargetID) TargetSettings {
	if ts, ok := s.Targets[string(target)]; ok {
		return ts
	}
	return TargetSettings{CompilationMode: string(types.ModeStandard)}
}
