package project

import (
	"fmt"

	"github.com/conneroisu/hotwatch/internal/types"
)

// LoadProjects reads every project-config file in paths and returns one
// types.Project per file, in the order given. A single run may cover several
// independent project-config groups; the planner and executor treat each
// returned Project as its own mutual-exclusion domain (I2/P2).
func LoadProjects(paths []string, enabledSubstrings []string) ([]*types.Project, error) {
	projects := make([]*types.Project, 0, len(paths))
	for _, path := range paths {
		cfg, err := LoadFileConfig(path)
		if err != nil {
			return nil, err
		}
		p, err := BuildProject(path, cfg, enabledSubstrings)
		if err != nil {
			return nil, fmt.Errorf("project-config %s: %w", path, err)
		}
		projects = append(projects, p)
	}
	return projects, nil
}
