// Package plants holds local per-plant configuration layered over the plant
// list reported by the telemetry source.
package plants

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/levenlabs/go-lflag"
	"github.com/plantwatch/plantwatch/pkg/types"
	"gopkg.in/yaml.v3"
)

// Config is the YAML layout of the registry file.
type Config struct {
	Defaults Defaults `yaml:"defaults"`
	Plants   []Entry  `yaml:"plants"`
}

// Defaults apply to plants without an override.
type Defaults struct {
	Threshold string `yaml:"threshold"`
}

// Entry overrides the display name, default threshold or visibility of one
// plant. PriceControl seeds the plant's settings until they are first saved.
type Entry struct {
	ID           int                 `yaml:"id"`
	Name         string              `yaml:"name"`
	Threshold    string              `yaml:"threshold"`
	Hidden       bool                `yaml:"hidden"`
	PriceControl types.PlantSettings `yaml:"price_control"`
}

type entry struct {
	name      string
	threshold types.Threshold
	hidden    bool
	settings  types.PlantSettings
}

// Registry answers per-plant configuration questions. The zero value is an
// empty registry.
type Registry struct {
	defaultThreshold types.Threshold
	plants           map[int]entry
}

// Configured loads the registry named by the plants-config flag.
func Configured() *Registry {
	path := lflag.String("plants-config", "", "Path to the plant registry YAML file")
	defaultThreshold := lflag.String("default-threshold", "", "Deviation threshold for plants without one configured (2.5, 5, 10, low)")

	r := &Registry{}
	lflag.Do(func() {
		loaded, err := Load(*path)
		if err != nil {
			panic(fmt.Sprintf("failed to load plant registry: %v", err))
		}
		if loaded.defaultThreshold == types.ThresholdNone && *defaultThreshold != "" {
			th, err := types.ParseThreshold(*defaultThreshold)
			if err != nil {
				panic(fmt.Sprintf("invalid default-threshold: %v", err))
			}
			loaded.defaultThreshold = th
		}
		*r = *loaded
	})
	return r
}

// Load reads the registry from path. An empty path or a missing file gives an
// empty registry.
func Load(path string) (*Registry, error) {
	if path == "" {
		return &Registry{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Registry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a registry from YAML.
func Parse(data []byte) (*Registry, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse plant registry: %w", err)
	}
	return New(cfg)
}

// New validates cfg and builds a registry from it.
func New(cfg Config) (*Registry, error) {
	def, err := types.ParseThreshold(cfg.Defaults.Threshold)
	if err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}
	r := &Registry{
		defaultThreshold: def,
		plants:           make(map[int]entry, len(cfg.Plants)),
	}
	for _, p := range cfg.Plants {
		if p.ID <= 0 {
			return nil, fmt.Errorf("plant entry with invalid id %d", p.ID)
		}
		if _, ok := r.plants[p.ID]; ok {
			return nil, fmt.Errorf("plant %d listed twice", p.ID)
		}
		th, err := types.ParseThreshold(p.Threshold)
		if err != nil {
			return nil, fmt.Errorf("plant %d: %w", p.ID, err)
		}
		if err := p.PriceControl.Validate(); err != nil {
			return nil, fmt.Errorf("plant %d price_control: %w", p.ID, err)
		}
		r.plants[p.ID] = entry{name: p.Name, threshold: th, hidden: p.Hidden, settings: p.PriceControl}
	}
	return r, nil
}

// Threshold returns the plant's configured threshold, falling back to the
// default and then to none.
func (r *Registry) Threshold(plantID int) types.Threshold {
	if r == nil {
		return types.ThresholdNone
	}
	if e, ok := r.plants[plantID]; ok && e.threshold != types.ThresholdNone {
		return e.threshold
	}
	return r.defaultThreshold
}

// Settings returns the plant's configured default settings.
func (r *Registry) Settings(plantID int) types.PlantSettings {
	if r == nil {
		return types.PlantSettings{}
	}
	return r.plants[plantID].settings
}

// Hidden reports whether the plant is hidden from listings.
func (r *Registry) Hidden(plantID int) bool {
	if r == nil {
		return false
	}
	return r.plants[plantID].hidden
}

// Merge applies the configured names to the source's plant list, keeping
// its order. Plants unknown to the registry are kept as is and hidden ones
// are removed.
func (r *Registry) Merge(source []types.Plant) []types.Plant {
	out := make([]types.Plant, 0, len(source))
	for _, p := range source {
		if r != nil {
			if e, ok := r.plants[p.ID]; ok {
				if e.hidden {
					continue
				}
				if e.name != "" {
					p.Name = e.name
				}
			}
		}
		out = append(out, p)
	}
	return out
}
