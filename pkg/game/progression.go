package game

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed progression.yaml
var defaultProgression []byte

type ArtifactGrant struct {
	Key string `yaml:"key"`
	Qty int    `yaml:"qty"`
}

// PuzzleEffects are applied once, when the puzzle first becomes solved.
type PuzzleEffects struct {
	Key       string          `yaml:"key"`
	Artifacts []ArtifactGrant `yaml:"artifacts"`
	Doors     []string        `yaml:"doors"`
	AirBonus  int             `yaml:"air_bonus"`
}

// ProgressionGraph maps puzzle solves to their rewards and names the steps
// that gate the start and the end of a run.
type ProgressionGraph struct {
	StartStep               string          `yaml:"start_step"`
	RitualStep              string          `yaml:"ritual_step"`
	FinalKey                string          `yaml:"final_key"`
	CooperativePrerequisite string          `yaml:"cooperative_prerequisite"`
	SoloPrerequisites       []string        `yaml:"solo_prerequisites"`
	Doors                   []string        `yaml:"doors"`
	Puzzles                 []PuzzleEffects `yaml:"puzzles"`

	byKey map[string]PuzzleEffects
}

// LoadProgressionGraph parses and validates a YAML progression graph.
func LoadProgressionGraph(b []byte) (*ProgressionGraph, error) {
	g := &ProgressionGraph{}
	if err := yaml.Unmarshal(b, g); err != nil {
		return nil, fmt.Errorf("failed to parse progression: %v", err)
	}
	if err := g.index(); err != nil {
		return nil, fmt.Errorf("invalid progression: %v", err)
	}
	return g, nil
}

// DefaultProgressionGraph returns the built-in pyramid progression.
func DefaultProgressionGraph() (*ProgressionGraph, error) {
	return LoadProgressionGraph(defaultProgression)
}

func (g *ProgressionGraph) index() error {
	if g.StartStep == "" || g.RitualStep == "" || g.FinalKey == "" {
		return fmt.Errorf("start_step, ritual_step and final_key are required")
	}
	if g.StartStep == g.RitualStep {
		return fmt.Errorf("start_step and ritual_step must differ")
	}
	if g.CooperativePrerequisite == "" || len(g.SoloPrerequisites) == 0 {
		return fmt.Errorf("ending prerequisites are required")
	}

	doors := make(map[string]bool, len(g.Doors))
	for _, d := range g.Doors {
		if d == "" {
			return fmt.Errorf("empty door key")
		}
		if doors[d] {
			return fmt.Errorf("duplicate door %s", d)
		}
		doors[d] = true
	}

	g.byKey = make(map[string]PuzzleEffects, len(g.Puzzles))
	for _, p := range g.Puzzles {
		if p.Key == "" {
			return fmt.Errorf("empty puzzle key")
		}
		if p.Key == g.FinalKey {
			return fmt.Errorf("puzzle %s collides with the final key", p.Key)
		}
		if _, ok := g.byKey[p.Key]; ok {
			return fmt.Errorf("duplicate puzzle %s", p.Key)
		}
		if p.AirBonus < 0 {
			return fmt.Errorf("puzzle %s has a negative air bonus", p.Key)
		}
		for _, a := range p.Artifacts {
			if a.Key == "" || a.Qty <= 0 {
				return fmt.Errorf("puzzle %s has an invalid artifact grant", p.Key)
			}
		}
		for _, d := range p.Doors {
			if !doors[d] {
				return fmt.Errorf("puzzle %s unlocks undeclared door %s", p.Key, d)
			}
		}
		g.byKey[p.Key] = p
	}
	return nil
}

// Puzzle returns the effects configured for key.
func (g *ProgressionGraph) Puzzle(key string) (PuzzleEffects, bool) {
	p, ok := g.byKey[key]
	return p, ok
}

// IsSoloPrerequisite reports whether item can be used for the solo ending.
func (g *ProgressionGraph) IsSoloPrerequisite(item string) bool {
	for _, p := range g.SoloPrerequisites {
		if p == item {
			return true
		}
	}
	return false
}
