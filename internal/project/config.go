// Package project loads one or more project-config files into the in-memory
// Project/OutputState model (component A), and runs the fatal configuration
// checks that must pass before any build begins (spec.md §7 taxonomy #1):
// missing or undecodable project-config, duplicate inputs/outputs, unknown
// target-name substrings, and targets with no common watch root.
package project

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/hotwatch/internal/herrors"
	"github.com/conneroisu/hotwatch/internal/types"
)

// FileConfig is the decoded shape of one project-config YAML file. Unknown
// keys are rejected so typos surface as CodeProjectConfigDecodeError instead
// of silently doing nothing.
type FileConfig struct {
	Postprocess []string               `yaml:"postprocess"`
	Targets     map[string]TargetEntry `yaml:"targets"`
}

// TargetEntry is one target's configuration within a project-config file.
type TargetEntry struct {
	Inputs []string `yaml:"inputs"`
	Output string   `yaml:"output"`

	// ProjectConfig optionally names a project-config file distinct from
	// the watch-config file itself, letting targets in one watch-config
	// file fall into separate I2 mutual-exclusion groups.
	ProjectConfig string `yaml:"projectConfig"`
}

// LoadFileConfig reads and strictly decodes one project-config file.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, herrors.New(herrors.ErrorTypeConfig, herrors.CodeProjectConfigNotFound,
				fmt.Sprintf("project-config file not found: %s", path), err)
		}
		return nil, herrors.New(herrors.ErrorTypeConfig, herrors.CodeProjectConfigNotFound,
			fmt.Sprintf("cannot read project-config file %s", path), err)
	}

	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, herrors.New(herrors.ErrorTypeConfig, herrors.CodeProjectConfigDecodeError,
			fmt.Sprintf("invalid project-config YAML in %s", path), err)
	}

	return &cfg, nil
}

// BuildProject converts a decoded FileConfig into the in-memory Project,
// rooted at the directory containing configPath. enabledSubstrings holds
// the target-name substrings the CLI was invoked with (empty means "all
// targets enabled").
func BuildProject(configPath string, cfg *FileConfig, enabledSubstrings []string) (*types.Project, error) {
	root := filepath.Dir(configPath)
	p := types.NewProject(configPath, root)
	p.WatchConfigPath = configPath
	p.ScratchStatePath = filepath.Join(root, ".hotwatch", "state.json")

	names := make([]string, 0, len(cfg.Targets))
	for name := range cfg.Targets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entry := cfg.Targets[name]
		inputs := make([]types.InputPath, 0, len(entry.Inputs))
		for _, in := range entry.Inputs {
			inputs = append(inputs, types.InputPath(filepath.Join(root, in)))
		}
		state := types.NewOutputState(types.TargetID(name), inputs)
		if entry.Output != "" {
			abs := filepath.Join(root, entry.Output)
			state.Output = types.OutputPath{
				Absolute:    abs,
				Original:    entry.Output,
				TempSibling: abs + ".tmp",
			}
		}
		if entry.ProjectConfig != "" {
			state.GroupKey = filepath.Join(root, entry.ProjectConfig)
		} else {
			state.GroupKey = configPath
		}
		p.AddTarget(state)

		if !targetEnabled(name, enabledSubstrings) {
			p.DisabledTargets[types.TargetID(name)] = true
		}
	}

	if len(cfg.Postprocess) > 0 {
		p.Postprocess = types.PostprocessConfig{Enabled: true, Argv: cfg.Postprocess}
	}

	if err := checkDuplicateInputsAndOutputs(cfg); err != nil {
		return nil, err
	}
	if err := checkUnknownTargetSubstrings(names, enabledSubstrings); err != nil {
		return nil, err
	}
	if err := checkCommonWatchRoot(root, cfg); err != nil {
		return nil, err
	}

	return p, nil
}

// targetEnabled reports whether name matches at least one requested
// substring, or all targets are enabled when substrings is empty.
func targetEnabled(name string, substrings []string) bool {
	if len(substrings) == 0 {
		return true
	}
	for _, s := range substrings {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

// checkUnknownTargetSubstrings verifies every CLI-supplied substring matches
// at least one configured target, per spec.md §6's UnknownTargetsSubstrings.
func checkUnknownTargetSubstrings(targetNames, substrings []string) error {
	for _, s := range substrings {
		matched := false
		for _, name := range targetNames {
			if strings.Contains(name, s) {
				matched = true
				break
			}
		}
		if !matched {
			return herrors.New(herrors.ErrorTypeConfig, herrors.CodeUnknownTargetsSubstrings,
				fmt.Sprintf("no target name contains %q", s), nil)
		}
	}
	return nil
}

// checkDuplicateInputsAndOutputs rejects a project-config file where two
// targets share an input path or an output path.
func checkDuplicateInputsAndOutputs(cfg *FileConfig) error {
	seenInputs := make(map[string]string)
	seenOutputs := make(map[string]string)

	names := make([]string, 0, len(cfg.Targets))
	for name := range cfg.Targets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entry := cfg.Targets[name]
		for _, in := range entry.Inputs {
			if owner, ok := seenInputs[in]; ok {
				return herrors.New(herrors.ErrorTypeConfig, herrors.CodeDuplicateInputsOrOutputs,
					fmt.Sprintf("input %q is used by both %q and %q", in, owner, name), nil)
			}
			seenInputs[in] = name
		}
		if entry.Output == "" {
			continue
		}
		if owner, ok := seenOutputs[entry.Output]; ok {
			return herrors.New(herrors.ErrorTypeConfig, herrors.CodeDuplicateInputsOrOutputs,
				fmt.Sprintf("output %q is used by both %q and %q", entry.Output, owner, name), nil)
		}
		seenOutputs[entry.Output] = name
	}
	return nil
}

// checkCommonWatchRoot verifies every target's inputs resolve to a path
// under root, so the watcher has a single directory to recurse from.
func checkCommonWatchRoot(root string, cfg *FileConfig) error {
	for name, entry := range cfg.Targets {
		for _, in := range entry.Inputs {
			resolved := filepath.Join(root, in)
			rel, err := filepath.Rel(root, resolved)
			if err != nil || strings.HasPrefix(rel, "..") {
				return herrors.New(herrors.ErrorTypeConfig, herrors.CodeNoCommonWatchRoot,
					fmt.Sprintf("target %q input %q falls outside the project watch root %q", name, in, root), nil)
			}
		}
	}
	return nil
}
