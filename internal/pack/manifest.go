// Package pack manages pack lifecycle state (Dormant, Active, Suspended,
// Completed) and projects active packs' verb constraints into the
// intersection/union that dispatch (the daemon's compile handler) checks
// against; the execution gate does not consult it.
package pack

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProgressSignal names one signal a pack waits on before it can complete.
type ProgressSignal struct {
	Signal string `yaml:"signal"`
}

// Manifest is the immutable definition of one pack, loaded from a YAML
// document at session start.
type Manifest struct {
	ID              string           `yaml:"id"`
	Name            string           `yaml:"name"`
	AllowedVerbs    []string         `yaml:"allowed_verbs"`
	ForbiddenVerbs  []string         `yaml:"forbidden_verbs"`
	ProgressSignals []ProgressSignal `yaml:"progress_signals"`
	RequiredQuestions []string       `yaml:"required_questions"`
	StopRules       []string         `yaml:"stop_rules"`
}

// LoadManifest parses one pack manifest document from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pack: read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("pack: parse manifest %s: %w", path, err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("pack: manifest %s missing id", path)
	}
	return &m, nil
}

// LoadManifests parses every manifest document found at the given paths.
func LoadManifests(paths []string) ([]*Manifest, error) {
	out := make([]*Manifest, 0, len(paths))
	for _, p := range paths {
		m, err := LoadManifest(p)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
