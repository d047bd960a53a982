package agentdsl

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/htnql-engine/htnql/errs"
	"github.com/htnql-engine/htnql/htn"
)

// Catalog is an in-memory method catalog: task name -> methods, tried in
// registration order. It implements htn.Catalog.
type Catalog struct {
	tasks map[string][]htn.Method
}

// MethodsFor implements htn.Catalog.
func (c *Catalog) MethodsFor(task string) ([]htn.Method, bool) {
	methods, ok := c.tasks[task]
	return methods, ok
}

// Builder assembles a Catalog programmatically, used by the built-in
// agents (agentdsl/builtin.go) so they don't round-trip through YAML.
type Builder struct {
	tasks map[string][]htn.Method
}

// NewBuilder starts an empty catalog.
func NewBuilder() *Builder {
	return &Builder{tasks: make(map[string][]htn.Method)}
}

// Method appends a method to task's list, in call order.
func (b *Builder) Method(task, name string, guard []Predicate, steps ...htn.Step) *Builder {
	m := htn.Method{Name: name, Steps: steps}
	for _, p := range guard {
		m.Guard = append(m.Guard, p)
	}
	b.tasks[task] = append(b.tasks[task], m)
	return b
}

// Build finalizes the catalog.
func (b *Builder) Build() *Catalog {
	return &Catalog{tasks: b.tasks}
}

// T builds a compound-recursion step.
func T(task string) htn.Step { return htn.Step{Task: task} }

// P builds a primitive-reference step.
func P(primitive string) htn.Step { return htn.Step{Primitive: primitive} }

// --- YAML loading -----------------------------------------------------

type yamlConfig struct {
	Tasks map[string]struct {
		Methods []yamlMethod `yaml:"methods"`
	} `yaml:"tasks"`
}

type yamlMethod struct {
	Name  string          `yaml:"name"`
	When  []yamlPredicate `yaml:"when"`
	Steps []yamlStep      `yaml:"steps"`
}

type yamlPredicate struct {
	Field string `yaml:"field"`
	Op    string `yaml:"op"`
	Value any    `yaml:"value"`
}

type yamlStep struct {
	Task      string `yaml:"task"`
	Primitive string `yaml:"primitive"`
}

// ParseYAML parses an agent's `{tasks: {name: {methods: [...]}}}` record
// from YAML, validating that every referenced primitive exists in
// registry. Unknown compound task names are left unresolved, per §4.E —
// they are only checked at plan time by the kernel.
func ParseYAML(data []byte, registry htn.Registry) (*Catalog, error) {
	var cfg yamlConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Agent(fmt.Sprintf("invalid agent YAML: %v", err))
	}
	b := NewBuilder()
	for taskName, taskCfg := range cfg.Tasks {
		for _, m := range taskCfg.Methods {
			if m.Name == "" {
				return nil, errs.Agent("method missing a name", taskName)
			}
			guard, err := buildGuard(m.When)
			if err != nil {
				return nil, err
			}
			steps, err := buildSteps(m.Steps, registry)
			if err != nil {
				return nil, err
			}
			b.Method(taskName, m.Name, guard, steps...)
		}
	}
	return b.Build(), nil
}

func buildGuard(when []yamlPredicate) ([]Predicate, error) {
	guard := make([]Predicate, 0, len(when))
	for _, w := range when {
		kind := Kind(w.Op)
		if !validKinds[kind] {
			return nil, errs.Agent("unknown guard predicate operator", w.Op)
		}
		guard = append(guard, Predicate{Field: w.Field, Kind: kind, Value: normalizeYAMLValue(w.Value)})
	}
	return guard, nil
}

func normalizeYAMLValue(v any) any {
	if list, ok := v.([]any); ok {
		return list
	}
	return v
}

func buildSteps(raw []yamlStep, registry htn.Registry) ([]htn.Step, error) {
	steps := make([]htn.Step, 0, len(raw))
	for _, s := range raw {
		switch {
		case s.Task != "" && s.Primitive != "":
			return nil, errs.Agent("step names both a task and a primitive", s.Task)
		case s.Task != "":
			steps = append(steps, T(s.Task))
		case s.Primitive != "":
			if _, ok := registry[s.Primitive]; !ok {
				return nil, errs.Agent("unknown primitive referenced from a method step", s.Primitive)
			}
			steps = append(steps, P(s.Primitive))
		default:
			return nil, errs.Agent("step names neither a task nor a primitive", "")
		}
	}
	return steps, nil
}
