package persona_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentfleet/orchestrator/persona"
)

func sampleSlots() []persona.Slot {
	return []persona.Slot{
		{Name: "Developer Agent", DefaultModeSlug: "code", Enabled: true, Modes: []persona.Mode{
			{Slug: "code", Name: "code", IsInternal: false},
			{Slug: "debug", Name: "debug", IsInternal: true},
		}},
		{Name: "Security Agent", DefaultModeSlug: "audit", Enabled: false, Modes: []persona.Mode{
			{Slug: "audit", Name: "audit"},
		}},
	}
}

func TestRegistry_AddSlotAssignsStableIDs(t *testing.T) {
	r := persona.New(sampleSlots())
	slots := r.Slots()
	require.Len(t, slots, 2)
	require.Equal(t, persona.SlotID(0), slots[0].ID)
	require.Equal(t, persona.SlotID(1), slots[1].ID)
}

func TestRegistry_SetEnabled(t *testing.T) {
	r := persona.New(sampleSlots())
	require.NoError(t, r.SetEnabled(1, true))
	s, err := r.Slot(1)
	require.NoError(t, err)
	require.True(t, s.Enabled)
}

func TestRegistry_SetEnabled_UnknownSlot(t *testing.T) {
	r := persona.New(sampleSlots())
	require.ErrorIs(t, r.SetEnabled(99, true), persona.ErrSlotNotFound)
}

func TestRegistry_PublicSkillsExcludesInternalModes(t *testing.T) {
	r := persona.New(sampleSlots())
	skills := r.PublicSkills()
	require.Len(t, skills, 1)
	require.Equal(t, "developer-agent.code", skills[0].ID)
}

func TestRegistry_RoutableSlotsIncludesInternalModes(t *testing.T) {
	r := persona.New(sampleSlots())
	routable := r.RoutableSlots()
	require.Len(t, routable[0].Modes, 2)
}

func TestRegistry_RemoveSlotDisablesWithoutReusingID(t *testing.T) {
	r := persona.New(sampleSlots())
	require.NoError(t, r.RemoveSlot(0))
	s, err := r.Slot(0)
	require.NoError(t, err)
	require.False(t, s.Enabled)
	require.Empty(t, s.Modes)

	newID := r.AddSlot(persona.Slot{Name: "New Agent", Enabled: true})
	require.Equal(t, persona.SlotID(2), newID)
}

func TestLoadCatalog_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `
slots:
  - name: Developer Agent
    description: writes code
    default_mode_slug: code
    enabled: true
    modes:
      - slug: code
        name: code
        description: implement features
        when_to_use: implement a feature
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	slots, err := persona.LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	require.Equal(t, "Developer Agent", slots[0].Name)
	require.Len(t, slots[0].Modes, 1)
}

func TestRegistry_ReloadReplacesArena(t *testing.T) {
	r := persona.New(sampleSlots())
	r.Reload([]persona.Slot{{Name: "Only Agent", Enabled: true}})
	slots := r.Slots()
	require.Len(t, slots, 1)
	require.Equal(t, "Only Agent", slots[0].Name)
}
