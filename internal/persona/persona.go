// Package persona manages the roster of orchestrated personas: their
// immutable base prompts, mutable instruction overlays, and tool grants.
package persona

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownPersona is returned when a persona ID is not in the registry.
var ErrUnknownPersona = errors.New("unknown persona")

// ErrDuplicatePersona is returned when creating a persona whose ID already exists.
var ErrDuplicatePersona = errors.New("persona already exists")

// Persona is a single orchestrated identity. BasePrompt never changes after
// registration; Overlay holds runtime instruction updates layered on top.
type Persona struct {
	ID             string   `yaml:"id" json:"id"`
	Name           string   `yaml:"name" json:"name"`
	Role           string   `yaml:"role,omitempty" json:"role,omitempty"`
	BasePrompt     string   `yaml:"base_prompt" json:"base_prompt"`
	Overlay        string   `yaml:"overlay,omitempty" json:"overlay,omitempty"`
	ModelRef       string   `yaml:"model,omitempty" json:"model,omitempty"`
	VoiceID        string   `yaml:"voice,omitempty" json:"voice,omitempty"`
	Color          string   `yaml:"color,omitempty" json:"color,omitempty"`
	BroadcastOnly  bool     `yaml:"broadcast_only,omitempty" json:"broadcast_only,omitempty"`
	Lead           bool     `yaml:"lead,omitempty" json:"lead,omitempty"`
	Omniscient     bool     `yaml:"omniscient,omitempty" json:"omniscient,omitempty"`
	Mailroom       bool     `yaml:"mailroom,omitempty" json:"mailroom,omitempty"`
	PermittedTools []string `yaml:"tools,omitempty" json:"tools,omitempty"`
}

// Permits reports whether the persona may invoke the named tool.
// An empty grant list permits nothing.
func (p *Persona) Permits(tool string) bool {
	for _, t := range p.PermittedTools {
		if t == tool {
			return true
		}
	}
	return false
}

// Registry holds the live persona set. Lookups and mutations are safe for
// concurrent use; snapshots copy persona values so callers never hold
// references into the registry's own state.
type Registry struct {
	mu       sync.RWMutex
	personas map[string]*Persona
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{personas: make(map[string]*Persona)}
}

// Register adds a persona. Re-registering an existing ID keeps the live
// overlay and replaces everything else, so roster reloads do not wipe
// runtime instruction updates.
func (r *Registry) Register(p Persona) error {
	if err := validateID(p.ID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.personas[p.ID]; ok {
		if p.Overlay == "" {
			p.Overlay = prev.Overlay
		}
	} else {
		r.order = append(r.order, p.ID)
	}
	cp := p
	r.personas[p.ID] = &cp
	return nil
}

// Create adds a brand-new persona at runtime. Unlike Register it refuses
// to overwrite an existing ID.
func (r *Registry) Create(p Persona) error {
	if err := validateID(p.ID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.personas[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePersona, p.ID)
	}
	cp := p
	r.personas[p.ID] = &cp
	r.order = append(r.order, p.ID)
	return nil
}

// Replace swaps the whole roster wholesale, dropping personas absent
// from the new set. Invalid IDs are skipped.
func (r *Registry) Replace(personas []Persona) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.personas = make(map[string]*Persona, len(personas))
	r.order = r.order[:0]
	for _, p := range personas {
		if validateID(p.ID) != nil {
			continue
		}
		if _, ok := r.personas[p.ID]; ok {
			continue
		}
		cp := p
		r.personas[p.ID] = &cp
		r.order = append(r.order, p.ID)
	}
}

// Get returns a copy of the persona, or ErrUnknownPersona.
func (r *Registry) Get(id string) (Persona, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.personas[id]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %s", ErrUnknownPersona, id)
	}
	return *p, nil
}

// List returns copies of all personas in registration order.
func (r *Registry) List() []Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Persona, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.personas[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// IDs returns all persona IDs sorted lexically.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.personas))
	for id := range r.personas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetOverlay replaces the persona's instruction overlay. The base prompt
// is never touched.
func (r *Registry) SetOverlay(id, overlay string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.personas[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPersona, id)
	}
	p.Overlay = overlay
	return nil
}

// Overlays returns the current overlay text per persona ID, omitting
// personas with no overlay set.
func (r *Registry) Overlays() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string)
	for id, p := range r.personas {
		if p.Overlay != "" {
			out[id] = p.Overlay
		}
	}
	return out
}

// RestoreOverlays applies a saved overlay map wholesale: personas present
// in the map get that overlay, all others are cleared.
func (r *Registry) RestoreOverlays(overlays map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.personas {
		p.Overlay = overlays[id]
	}
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("persona id is required")
	}
	if strings.ContainsAny(id, " \t\n") {
		return fmt.Errorf("persona id %q contains whitespace", id)
	}
	return nil
}
