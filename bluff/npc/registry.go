package npc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// PersonaRegistry holds all persona definitions.
type PersonaRegistry struct {
	mu       sync.RWMutex
	personas map[string]*NPCPersona
}

// NewRegistry creates a registry seeded with DefaultPersona.
func NewRegistry() *PersonaRegistry {
	r := &PersonaRegistry{
		personas: make(map[string]*NPCPersona),
	}
	r.personas[DefaultPersonaID] = DefaultPersona()
	return r
}

// LoadFromFile loads personas from a JSON or YAML file, chosen by extension.
func (r *PersonaRegistry) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read personas file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return r.LoadFromYAML(data)
	default:
		return r.LoadFromJSON(data)
	}
}

// LoadFromJSON loads personas from raw JSON bytes.
func (r *PersonaRegistry) LoadFromJSON(data []byte) error {
	var list []*NPCPersona
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parse personas JSON: %w", err)
	}
	r.add(list)
	return nil
}

// LoadFromYAML loads personas from raw YAML bytes.
func (r *PersonaRegistry) LoadFromYAML(data []byte) error {
	var list []*NPCPersona
	if err := yaml.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parse personas YAML: %w", err)
	}
	r.add(list)
	return nil
}

func (r *PersonaRegistry) add(list []*NPCPersona) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range list {
		if p == nil || p.ID == "" {
			continue
		}
		p.Brain = p.Brain.clamped()
		r.personas[p.ID] = p
	}
}

// Get returns a persona by ID, or nil.
func (r *PersonaRegistry) Get(id string) *NPCPersona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.personas[id]
}

// GetOrDefault returns the persona for id, falling back to the default one.
func (r *PersonaRegistry) GetOrDefault(id string) *NPCPersona {
	if p := r.Get(id); p != nil {
		return p
	}
	if p := r.Get(DefaultPersonaID); p != nil {
		return p
	}
	return DefaultPersona()
}

// All returns every persona sorted by ID.
func (r *PersonaRegistry) All() []*NPCPersona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*NPCPersona, 0, len(r.personas))
	for _, p := range r.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByTier returns all personas of the given tier.
func (r *PersonaRegistry) ByTier(tier int) []*NPCPersona {
	var out []*NPCPersona
	for _, p := range r.All() {
		if p.Tier == tier {
			out = append(out, p)
		}
	}
	return out
}

// Count returns the total number of registered personas.
func (r *PersonaRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.personas)
}
