package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/depwalk/pkg/pep508"
	"github.com/matzehuels/depwalk/pkg/pyenv"
)

// pyprojectFile models the PEP 621 fields of a pyproject.toml.
type pyprojectFile struct {
	Project struct {
		Name                 string              `toml:"name"`
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
}

// pyprojectPackages extracts the names of a project's declared
// dependencies, including optional extras. The project itself is
// included so the resulting graph shows what depends on what from the
// project's point of view. Environment markers are not applied here;
// discovery filters against the probed interpreter.
func pyprojectPackages(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file pyprojectFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var names []string
	if file.Project.Name != "" {
		names = append(names, pyenv.NormalizeName(file.Project.Name))
	}

	deps := slices.Clone(file.Project.Dependencies)
	for _, extra := range file.Project.OptionalDependencies {
		deps = append(deps, extra...)
	}

	for _, raw := range deps {
		req, err := pep508.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		names = append(names, pyenv.NormalizeName(req.Name))
	}

	slices.Sort(names)
	return slices.Compact(names), nil
}
