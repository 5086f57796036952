// Package workflow implements the Workflow Engine (C9): a DAG scheduler
// that launches graphs of specialist agents with dependency ordering,
// retry, cancellation, and artifact tracking (spec.md §4.9). Grounded on
// the teacher's exact runtime/agent/engine split (one Engine interface,
// two interchangeable backends: workflow/engine/inmem and
// workflow/engine/temporal), generalized from a single-agent plan/tool
// loop engine to a multi-task DAG scheduler since that's what this
// module's domain needs the engine abstraction for.
package workflow

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentfleet/orchestrator/specialist"
)

// Task is one node of a WorkflowTemplate (spec.md §3 WorkflowTask).
type Task struct {
	Name               string
	Role               specialist.Role
	Description        string
	Dependencies       []string
	EstimatedDuration  time.Duration
	Priority           int
	RequiredSkills     []string
	ValidationCriteria []string
}

// Complexity is a template's coarse difficulty rating, for display
// purposes only (spec.md §9 canonical-key design note).
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Template is a named, reusable workflow shape (spec.md §3 WorkflowTemplate).
// Key is the canonical short slug (`fullstack_webapp`); DisplayName is
// UI-only (spec.md §9).
type Template struct {
	Key               string
	DisplayName       string
	Category          string
	Complexity        Complexity
	EstimatedDuration time.Duration
	Tasks             []Task
}

// Catalog is the compile-time registry of WorkflowTemplates, keyed by
// short slug. Read-mostly; safe for concurrent reads once built.
type Catalog struct {
	templates map[string]Template
}

// NewCatalog builds a Catalog from a fixed template list.
func NewCatalog(templates []Template) *Catalog {
	c := &Catalog{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		c.templates[t.Key] = t
	}
	return c
}

// ErrUnknownTemplate is returned when a template key has no catalog entry.
var ErrUnknownTemplate = fmt.Errorf("workflow: unknown template")

// Lookup returns the template for key, or ErrUnknownTemplate.
func (c *Catalog) Lookup(key string) (Template, error) {
	t, ok := c.templates[key]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, key)
	}
	return t, nil
}

// List returns every template key paired with its display name (spec.md
// §6 CLI `list`), in no particular order — callers that need a stable
// order should sort the result themselves.
func (c *Catalog) List() map[string]string {
	out := make(map[string]string, len(c.templates))
	for k, t := range c.templates {
		out[k] = t.DisplayName
	}
	return out
}

// DefaultTemplates returns the built-in catalog entries named in spec.md
// §4.9 ("fullstack_webapp", "microservice", "comprehensive_testing").
func DefaultTemplates() []Template {
	return []Template{
		{
			Key: "fullstack_webapp", DisplayName: "Full-Stack Web Application",
			Category: "webapp", Complexity: ComplexityComplex, EstimatedDuration: 4 * time.Hour,
			Tasks: []Task{
				{Name: "design_api", Role: specialist.RoleCode, Description: "design the REST API surface", EstimatedDuration: 20 * time.Minute, Priority: 1},
				{Name: "implement_backend", Role: specialist.RoleCode, Description: "implement backend handlers", Dependencies: []string{"design_api"}, EstimatedDuration: time.Hour, Priority: 1},
				{Name: "implement_frontend", Role: specialist.RoleCode, Description: "implement frontend views", Dependencies: []string{"design_api"}, EstimatedDuration: time.Hour, Priority: 2},
				{Name: "write_tests", Role: specialist.RoleTest, Description: "write integration tests", Dependencies: []string{"implement_backend", "implement_frontend"}, EstimatedDuration: 45 * time.Minute, Priority: 1},
				{Name: "security_review", Role: specialist.RoleSecurity, Description: "review for common vulnerabilities", Dependencies: []string{"implement_backend"}, EstimatedDuration: 30 * time.Minute, Priority: 3},
				{Name: "write_docs", Role: specialist.RoleDocs, Description: "document the API and setup", Dependencies: []string{"implement_backend"}, EstimatedDuration: 20 * time.Minute, Priority: 3},
				{Name: "deploy", Role: specialist.RoleDeploy, Description: "deploy to the target environment", Dependencies: []string{"write_tests", "security_review"}, EstimatedDuration: 15 * time.Minute, Priority: 1},
			},
		},
		{
			Key: "microservice", DisplayName: "Microservice",
			Category: "service", Complexity: ComplexityModerate, EstimatedDuration: 2 * time.Hour,
			Tasks: []Task{
				{Name: "implement_service", Role: specialist.RoleCode, Description: "implement the service", EstimatedDuration: 45 * time.Minute, Priority: 1},
				{Name: "write_tests", Role: specialist.RoleTest, Description: "write unit and contract tests", Dependencies: []string{"implement_service"}, EstimatedDuration: 30 * time.Minute, Priority: 1},
				{Name: "deploy", Role: specialist.RoleDeploy, Description: "deploy the service", Dependencies: []string{"write_tests"}, EstimatedDuration: 15 * time.Minute, Priority: 1},
			},
		},
		{
			Key: "comprehensive_testing", DisplayName: "Comprehensive Testing Pass",
			Category: "quality", Complexity: ComplexityModerate, EstimatedDuration: time.Hour,
			Tasks: []Task{
				{Name: "unit_tests", Role: specialist.RoleTest, Description: "run/extend the unit test suite", EstimatedDuration: 20 * time.Minute, Priority: 1},
				{Name: "integration_tests", Role: specialist.RoleTest, Description: "run/extend integration tests", EstimatedDuration: 20 * time.Minute, Priority: 1},
				{Name: "security_scan", Role: specialist.RoleSecurity, Description: "scan for known vulnerability patterns", EstimatedDuration: 20 * time.Minute, Priority: 2},
			},
		},
	}
}

// yamlCatalog is the on-disk shape for a loadable template catalog,
// supplemental to the distilled spec (which only describes a
// construction-literal catalog); mirrors persona.LoadCatalog's YAML
// loading convention.
type yamlCatalog struct {
	Templates []yamlTemplate `yaml:"templates"`
}

type yamlTemplate struct {
	Key               string       `yaml:"key"`
	DisplayName       string       `yaml:"display_name"`
	Category          string       `yaml:"category"`
	Complexity        string       `yaml:"complexity"`
	EstimatedDuration string       `yaml:"estimated_duration"`
	Tasks             []yamlTask   `yaml:"tasks"`
}

type yamlTask struct {
	Name               string   `yaml:"name"`
	Role               string   `yaml:"role"`
	Description        string   `yaml:"description"`
	Dependencies       []string `yaml:"dependencies"`
	EstimatedDuration  string   `yaml:"estimated_duration"`
	Priority           int      `yaml:"priority"`
	RequiredSkills     []string `yaml:"required_skills"`
	ValidationCriteria []string `yaml:"validation_criteria"`
}

// LoadCatalogFile parses a YAML template catalog from path.
func LoadCatalogFile(path string) ([]Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read catalog %s: %w", path, err)
	}
	var yc yamlCatalog
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return nil, fmt.Errorf("workflow: parse catalog %s: %w", path, err)
	}
	out := make([]Template, 0, len(yc.Templates))
	for _, yt := range yc.Templates {
		dur, err := time.ParseDuration(yt.EstimatedDuration)
		if err != nil && yt.EstimatedDuration != "" {
			return nil, fmt.Errorf("workflow: template %q: %w", yt.Key, err)
		}
		tasks := make([]Task, 0, len(yt.Tasks))
		for _, ytask := range yt.Tasks {
			tdur, err := time.ParseDuration(ytask.EstimatedDuration)
			if err != nil && ytask.EstimatedDuration != "" {
				return nil, fmt.Errorf("workflow: template %q task %q: %w", yt.Key, ytask.Name, err)
			}
			tasks = append(tasks, Task{
				Name: ytask.Name, Role: specialist.Role(ytask.Role), Description: ytask.Description,
				Dependencies: ytask.Dependencies, EstimatedDuration: tdur, Priority: ytask.Priority,
				RequiredSkills: ytask.RequiredSkills, ValidationCriteria: ytask.ValidationCriteria,
			})
		}
		out = append(out, Template{
			Key: yt.Key, DisplayName: yt.DisplayName, Category: yt.Category,
			Complexity: Complexity(yt.Complexity), EstimatedDuration: dur, Tasks: tasks,
		})
	}
	return out, nil
}
