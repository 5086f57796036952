package persona

import (
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/agentfleet/orchestrator/telemetry"
)

// catalogFile is the on-disk YAML shape for a slot catalog. Supplemental
// to the distilled spec (which only describes a construction-literal
// catalog): original_source loads persona catalogs from editable files,
// so this mirrors that with a teacher-style fsnotify watch instead of a
// restart-to-reload cycle.
type catalogFile struct {
	Slots []catalogSlot `yaml:"slots"`
}

type catalogSlot struct {
	Name            string         `yaml:"name"`
	Description     string         `yaml:"description"`
	DefaultModeSlug string         `yaml:"default_mode_slug"`
	Enabled         bool           `yaml:"enabled"`
	BoundExtensions []string       `yaml:"bound_extensions"`
	Modes           []catalogMode  `yaml:"modes"`
}

type catalogMode struct {
	Slug        string   `yaml:"slug"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	WhenToUse   string   `yaml:"when_to_use"`
	ToolGroups  []string `yaml:"tool_groups"`
	IsInternal  bool     `yaml:"is_internal"`
}

// LoadCatalog parses a slot catalog YAML file into a slice of Slots
// suitable for New or Reload.
func LoadCatalog(path string) ([]Slot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: read catalog %s: %w", path, err)
	}
	var cf catalogFile
	if err := yaml.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("persona: parse catalog %s: %w", path, err)
	}
	out := make([]Slot, 0, len(cf.Slots))
	for _, cs := range cf.Slots {
		modes := make([]Mode, 0, len(cs.Modes))
		for _, cm := range cs.Modes {
			modes = append(modes, Mode{
				Slug: cm.Slug, Name: cm.Name, Description: cm.Description,
				WhenToUse: cm.WhenToUse, ToolGroups: cm.ToolGroups, IsInternal: cm.IsInternal,
			})
		}
		out = append(out, Slot{
			Name: cs.Name, Description: cs.Description, DefaultModeSlug: cs.DefaultModeSlug,
			Enabled: cs.Enabled, BoundExtensions: cs.BoundExtensions, Modes: modes,
		})
	}
	return out, nil
}

// Reload replaces the Registry's entire slot arena from a freshly loaded
// catalog. SlotIDs are reassigned in file order; callers holding a stale
// SlotID across a Reload must re-resolve it by name.
func (r *Registry) Reload(slots []Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots = r.slots[:0]
	for _, s := range slots {
		s.ID = SlotID(len(r.slots))
		r.slots = append(r.slots, s)
	}
}

// WatchCatalog watches path for changes and calls Reload with the
// freshly parsed catalog on every write event, until ctx is done. Parse
// errors are logged and skipped, keeping the last-good catalog live.
func WatchCatalog(ctx context.Context, r *Registry, path string, logger telemetry.Logger) error {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("persona: create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("persona: watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				slots, err := LoadCatalog(path)
				if err != nil {
					logger.Warn(ctx, "persona: catalog reload failed, keeping previous catalog", "path", path, "error", err.Error())
					continue
				}
				r.Reload(slots)
				logger.Info(ctx, "persona: catalog reloaded", "path", path, "slots", len(slots))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn(ctx, "persona: catalog watcher error", "error", err.Error())
			}
		}
	}()
	return nil
}
