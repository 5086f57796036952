// Package persona implements the Persona Registry (C7): the static
// catalog of agent slots and their modes that the Intent Router (C6)
// scores against and the Request Handler (C5) ultimately dispatches to.
// Grounded on spec.md §9's "arena + stable indices" design note: a single
// owning Registry holds all slots by value in one slice, each slot holding
// its modes by value, and every cross-reference elsewhere in the system (the Router, the
// Specialist Pool) is a SlotID/ModeID integer rather than a pointer,
// mirroring the teacher's registry package's read-mostly catalog style
// (runtime/registry) without the network-service split that package adds.
package persona

import (
	"errors"
	"sync"

	"github.com/agentfleet/orchestrator/router"
)

// SlotID is a stable index into the Registry's slot arena.
type SlotID int

// ModeID is a stable index into one slot's mode list.
type ModeID int

// Mode is one behavior profile of an agent (spec.md §3 AgentMode).
type Mode struct {
	Slug       string
	Name       string
	Description string
	WhenToUse  string
	ToolGroups []string
	IsInternal bool
}

// Slot is one enabled-or-not persona instance in the registry (spec.md §3
// AgentSlot).
type Slot struct {
	ID               SlotID
	Name             string
	Description      string
	DefaultModeSlug  string
	Modes            []Mode
	Enabled          bool
	BoundExtensions  []string
}

// ErrSlotNotFound is returned when a SlotID or slot name has no match.
var ErrSlotNotFound = errors.New("persona: slot not found")

// Registry is the arena owning every slot. All mutation goes through its
// methods; reads may proceed concurrently with each other but are
// exclusive with writes (spec.md §5 "read-mostly, rare writes").
type Registry struct {
	mu    sync.RWMutex
	slots []Slot
}

// New constructs a Registry from an initial static slot list, assigning
// stable SlotIDs in slice order.
func New(initial []Slot) *Registry {
	r := &Registry{}
	for _, s := range initial {
		r.AddSlot(s)
	}
	return r
}

// AddSlot appends a new slot, assigning it the next stable SlotID.
func (r *Registry) AddSlot(s Slot) SlotID {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = SlotID(len(r.slots))
	r.slots = append(r.slots, s)
	return s.ID
}

// RemoveSlot retires the slot with the given ID: the slot stays in the
// arena but is disabled and its name and modes are cleared. Slot(id) still
// returns the retired entry. Remaining slots keep their existing IDs and
// the arena never recompacts IDs, so a stale reference never aliases
// another slot.
func (r *Registry) RemoveSlot(id SlotID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		if r.slots[i].ID == id {
			r.slots[i].Enabled = false
			r.slots[i].Name = ""
			r.slots[i].Modes = nil
			return nil
		}
	}
	return ErrSlotNotFound
}

// SetEnabled toggles whether a slot participates in routing.
func (r *Registry) SetEnabled(id SlotID, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		if r.slots[i].ID == id {
			r.slots[i].Enabled = enabled
			return nil
		}
	}
	return ErrSlotNotFound
}

// SetBoundExtensions replaces the extension bindings for a slot.
func (r *Registry) SetBoundExtensions(id SlotID, extensions []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		if r.slots[i].ID == id {
			r.slots[i].BoundExtensions = extensions
			return nil
		}
	}
	return ErrSlotNotFound
}

// Slot returns a copy of the slot with the given ID.
func (r *Registry) Slot(id SlotID) (Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.slots {
		if s.ID == id {
			return s, nil
		}
	}
	return Slot{}, ErrSlotNotFound
}

// Slots returns a snapshot copy of every slot, in arena order, including
// disabled ones.
func (r *Registry) Slots() []Slot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Slot, len(r.slots))
	copy(out, r.slots)
	return out
}

// ToAgentModes returns the routable (slug, mode) pairs for a slot,
// matching the teacher-style "expose public view, hide storage" pattern.
func (s Slot) ToAgentModes() []Mode {
	out := make([]Mode, len(s.Modes))
	copy(out, s.Modes)
	return out
}

// RoutableSlots projects every slot in the Registry, disabled ones
// included with their Enabled flag, into the router package's scoring view. Internal modes are still included here — they
// remain routable per spec.md §4.7, only capability listings exclude them.
func (r *Registry) RoutableSlots() []router.Slot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]router.Slot, 0, len(r.slots))
	for _, s := range r.slots {
		modes := make([]router.Mode, len(s.Modes))
		for i, m := range s.Modes {
			modes[i] = router.Mode{Slug: m.Slug, Name: m.Name, Description: m.Description, WhenToUse: m.WhenToUse, IsInternal: m.IsInternal}
		}
		out = append(out, router.Slot{
			Name: s.Name, Description: s.Description, DefaultModeSlug: s.DefaultModeSlug,
			Enabled: s.Enabled, Modes: modes,
		})
	}
	return out
}

// Skill is the public skill-identity projection for the Agent Card
// (spec.md §6 "skill_id = slug(agent_name) + '.' + mode.slug").
type Skill struct {
	ID          string
	AgentName   string
	ModeSlug    string
	Name        string
	Description string
}

// PublicSkills lists every non-internal mode of every enabled slot as a
// Skill, for the Agent Card's capability manifest (spec.md §4.7, §6).
func (r *Registry) PublicSkills() []Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Skill
	for _, s := range r.slots {
		if !s.Enabled {
			continue
		}
		for _, m := range s.Modes {
			if m.IsInternal {
				continue
			}
			out = append(out, Skill{
				ID:          slug(s.Name) + "." + m.Slug,
				AgentName:   s.Name,
				ModeSlug:    m.Slug,
				Name:        m.Name,
				Description: m.Description,
			})
		}
	}
	return out
}

func slug(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ' || r == '_' || r == '-':
			out = append(out, '-')
		}
	}
	return string(out)
}
