package models

import "context"

// Args are the per-story input values.
type Args map[string]interface{}

// Globals are the process-wide input values shared by every render.
type Globals map[string]interface{}

// Parameters are static, per-story metadata merged from project, component and story.
type Parameters map[string]interface{}

// Clone returns a shallow copy of a.
func (a Args) Clone() Args {
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of g.
func (g Globals) Clone() Globals {
	out := make(Globals, len(g))
	for k, v := range g {
		out[k] = v
	}
	return out
}

// Bool returns a boolean parameter, false if missing.
func (p Parameters) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

// SBType describes the value type of an arg.
type SBType struct {
	Name     string `json:"name" yaml:"name" mapstructure:"name"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty" mapstructure:"required"`
}

// ArgType annotates a single arg or global.
type ArgType struct {
	Name         string        `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Description  string        `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Type         *SBType       `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Options      []interface{} `json:"options,omitempty" yaml:"options,omitempty" mapstructure:"options"`
	DefaultValue interface{}   `json:"defaultValue,omitempty" yaml:"default_value,omitempty" mapstructure:"default_value"`
}

// ArgTypes maps arg names to their annotations.
type ArgTypes map[string]ArgType

// PlayFunc drives a story after it is mounted, for interaction demos.
type PlayFunc func(ctx context.Context, sc *StoryContext) error

// ComponentAnnotations is the default export of a story module.
type ComponentAnnotations struct {
	ID         string     `json:"id,omitempty" yaml:"id,omitempty" mapstructure:"id"`
	Title      string     `json:"title" yaml:"title" mapstructure:"title"`
	Component  string     `json:"component,omitempty" yaml:"component,omitempty" mapstructure:"component"`
	Parameters Parameters `json:"parameters,omitempty" yaml:"parameters,omitempty" mapstructure:"parameters"`
	Args       Args       `json:"args,omitempty" yaml:"args,omitempty" mapstructure:"args"`
	ArgTypes   ArgTypes   `json:"argTypes,omitempty" yaml:"arg_types,omitempty" mapstructure:"arg_types"`
}

// StoryAnnotations is one named export of a story module.
type StoryAnnotations struct {
	ExportName string     `json:"exportName" yaml:"export" mapstructure:"export"`
	Name       string     `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Parameters Parameters `json:"parameters,omitempty" yaml:"parameters,omitempty" mapstructure:"parameters"`
	Args       Args       `json:"args,omitempty" yaml:"args,omitempty" mapstructure:"args"`
	ArgTypes   ArgTypes   `json:"argTypes,omitempty" yaml:"arg_types,omitempty" mapstructure:"arg_types"`
	Play       PlayFunc   `json:"-" yaml:"-" mapstructure:"-"`
}

// CSFFile is a loaded story module. Loaders return the same pointer for an
// unchanged module so processed stories can be reused across reloads.
type CSFFile struct {
	ImportPath string               `json:"importPath"`
	Hash       string               `json:"hash,omitempty"`
	Meta       ComponentAnnotations `json:"meta"`
	Stories    []StoryAnnotations   `json:"stories"`
}

// ProjectAnnotations are the project-wide defaults applied to every story.
type ProjectAnnotations struct {
	Parameters  Parameters `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Args        Args       `json:"args,omitempty" yaml:"args,omitempty"`
	ArgTypes    ArgTypes   `json:"argTypes,omitempty" yaml:"arg_types,omitempty"`
	Globals     Globals    `json:"globals,omitempty" yaml:"globals,omitempty"`
	GlobalTypes ArgTypes   `json:"globalTypes,omitempty" yaml:"global_types,omitempty"`
}

// Story is a fully processed story: annotations merged from project, component and story.
// Stories are compared by identity; a new pointer for the same id means the
// implementation changed.
type Story struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Name        string     `json:"name"`
	ImportPath  string     `json:"importPath"`
	ComponentID string     `json:"componentId"`
	Component   string     `json:"component,omitempty"`
	Parameters  Parameters `json:"parameters"`
	InitialArgs Args       `json:"initialArgs"`
	ArgTypes    ArgTypes   `json:"argTypes"`
	Play        PlayFunc   `json:"-"`
}

// DocsOnly reports whether the story only exists to carry a docs page.
func (s *Story) DocsOnly() bool {
	return s.Parameters.Bool("docsOnly")
}

// StoryContext is everything a render adapter needs for one render.
type StoryContext struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Name        string     `json:"name"`
	Component   string     `json:"component,omitempty"`
	ViewMode    ViewMode   `json:"viewMode"`
	Parameters  Parameters `json:"parameters"`
	InitialArgs Args       `json:"initialArgs"`
	ArgTypes    ArgTypes   `json:"argTypes"`
	Args        Args       `json:"args"`
	Globals     Globals    `json:"globals"`
}
