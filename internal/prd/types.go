// Package prd defines the PRD document structure consumed and produced by
// the refinement pipeline, along with loading, parsing and writing.
package prd

// Document is a structured task specification: phases containing tasks,
// plus optional testing, configuration, dependency and schema sections.
type Document struct {
	ID           string         `json:"id" yaml:"id"`
	Title        string         `json:"title" yaml:"title"`
	Version      string         `json:"version" yaml:"version"`
	Description  string         `json:"description,omitempty" yaml:"description,omitempty"`
	IDPattern    string         `json:"idPattern,omitempty" yaml:"idPattern,omitempty"` // e.g. "REQ-{id}"
	Phases       []Phase        `json:"phases" yaml:"phases"`
	Testing      *Testing       `json:"testing,omitempty" yaml:"testing,omitempty"`
	Config       *FeatureConfig `json:"config,omitempty" yaml:"config,omitempty"`
	Dependencies *Dependencies  `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Schema       *Schema        `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// Phase groups related tasks.
type Phase struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Tasks       []Task `json:"tasks" yaml:"tasks"`
}

// Task is a single unit of work for the execution engine.
type Task struct {
	ID                 string   `json:"id" yaml:"id"`
	Title              string   `json:"title" yaml:"title"`
	Description        string   `json:"description" yaml:"description"`
	AcceptanceCriteria []string `json:"acceptanceCriteria,omitempty" yaml:"acceptanceCriteria,omitempty"`
	Priority           int      `json:"priority,omitempty" yaml:"priority,omitempty"`
	DependsOn          []string `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"` // task ids, or "<docID>:<taskID>"
	Passes             bool     `json:"passes" yaml:"passes"`
}

// Testing describes how the work is verified.
type Testing struct {
	Framework string     `json:"framework" yaml:"framework"`
	Command   string     `json:"command" yaml:"command"`
	Coverage  int        `json:"coverage,omitempty" yaml:"coverage,omitempty"` // minimum percent
	Cases     []TestCase `json:"cases,omitempty" yaml:"cases,omitempty"`
}

// TestCase is a planned test tied to a task.
type TestCase struct {
	ID          string `json:"id" yaml:"id"`
	TaskID      string `json:"taskId" yaml:"taskId"`
	Description string `json:"description" yaml:"description"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"` // unit, integration, e2e
}

// FeatureConfig is the configuration overlay: feature flags and settings.
type FeatureConfig struct {
	Flags    []FeatureFlag     `json:"flags,omitempty" yaml:"flags,omitempty"`
	Settings map[string]string `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// FeatureFlag toggles a capability delivered by the document.
type FeatureFlag struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Default     bool   `json:"default" yaml:"default"`
}

// Dependencies declares relations to other documents in a PRD set.
type Dependencies struct {
	DependsOn []string `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	Blocks    []string `json:"blocks,omitempty" yaml:"blocks,omitempty"`
}

// Schema is the data model added by the schema enhancement phase.
type Schema struct {
	Entities []Entity `json:"entities" yaml:"entities"`
}

// Entity is a persisted data type.
type Entity struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []Field `json:"fields" yaml:"fields"`
}

// Field is an attribute of an Entity.
type Field struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// TaskCount returns the number of tasks across all phases.
func (d *Document) TaskCount() int {
	n := 0
	for _, p := range d.Phases {
		n += len(p.Tasks)
	}
	return n
}

// TaskIDs returns all task ids in phase order.
func (d *Document) TaskIDs() []string {
	ids := make([]string, 0, d.TaskCount())
	for _, p := range d.Phases {
		for _, t := range p.Tasks {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// FindTask returns the task with the given id, or nil.
func (d *Document) FindTask(id string) *Task {
	for i := range d.Phases {
		for j := range d.Phases[i].Tasks {
			if d.Phases[i].Tasks[j].ID == id {
				return &d.Phases[i].Tasks[j]
			}
		}
	}
	return nil
}

// DependsOn returns the document ids this document depends on.
func (d *Document) DependsOn() []string {
	if d.Dependencies == nil {
		return nil
	}
	return d.Dependencies.DependsOn
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Phases = make([]Phase, len(d.Phases))
	for i, p := range d.Phases {
		c.Phases[i] = p
		c.Phases[i].Tasks = make([]Task, len(p.Tasks))
		for j, t := range p.Tasks {
			t.AcceptanceCriteria = cloneStrings(t.AcceptanceCriteria)
			t.DependsOn = cloneStrings(t.DependsOn)
			c.Phases[i].Tasks[j] = t
		}
	}
	if d.Testing != nil {
		tst := *d.Testing
		tst.Cases = append([]TestCase(nil), d.Testing.Cases...)
		c.Testing = &tst
	}
	if d.Config != nil {
		cfg := FeatureConfig{Flags: append([]FeatureFlag(nil), d.Config.Flags...)}
		if d.Config.Settings != nil {
			cfg.Settings = make(map[string]string, len(d.Config.Settings))
			for k, v := range d.Config.Settings {
				cfg.Settings[k] = v
			}
		}
		c.Config = &cfg
	}
	if d.Dependencies != nil {
		c.Dependencies = &Dependencies{
			DependsOn: cloneStrings(d.Dependencies.DependsOn),
			Blocks:    cloneStrings(d.Dependencies.Blocks),
		}
	}
	if d.Schema != nil {
		s := Schema{Entities: make([]Entity, len(d.Schema.Entities))}
		for i, e := range d.Schema.Entities {
			e.Fields = append([]Field(nil), e.Fields...)
			s.Entities[i] = e
		}
		c.Schema = &s
	}
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
