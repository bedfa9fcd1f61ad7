// Package prompt renders the router's model prompts from embedded YAML
// templates and keeps the registry-derived vocabulary those prompts list.
package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"a2a-router/internal/domain"
)

// Template names.
const (
	Classify        = "classify"
	ExtractEntities = "extract_entities"
	SelectSkills    = "select_skills"
	Plan            = "plan"
	ExtractContext  = "extract_context"
	Aggregate       = "aggregate"
	Help            = "help"
	Introduce       = "introduce"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Spec is one prompt definition as written in YAML.
type Spec struct {
	System      string  `yaml:"system"`
	User        string  `yaml:"user"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	JSON        bool    `yaml:"json"`
}

// Rendered is a prompt ready for the understanding capability.
type Rendered struct {
	System  string
	User    string
	Options domain.UnderstandOptions
}

type compiled struct {
	spec   Spec
	system *template.Template
	user   *template.Template
}

// Library holds compiled templates by name.
type Library struct {
	prompts map[string]compiled
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}

// Default parses the embedded templates.
func Default() (*Library, error) {
	return Parse(defaultPrompts)
}

// LoadFile parses a template file, falling back to the embedded set for any
// template the file does not define.
func LoadFile(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts %q: %w", path, err)
	}
	lib, err := Default()
	if err != nil {
		return nil, err
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for name, c := range override.prompts {
		lib.prompts[name] = c
	}
	return lib, nil
}

// Parse compiles a YAML document of prompt specs.
func Parse(data []byte) (*Library, error) {
	var specs map[string]Spec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	lib := &Library{prompts: make(map[string]compiled, len(specs))}
	for name, spec := range specs {
		sys, err := template.New(name + ".system").Funcs(funcs).Option("missingkey=error").Parse(spec.System)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: system: %w", name, err)
		}
		usr, err := template.New(name + ".user").Funcs(funcs).Option("missingkey=error").Parse(spec.User)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: user: %w", name, err)
		}
		lib.prompts[name] = compiled{spec: spec, system: sys, user: usr}
	}
	return lib, nil
}

// Has reports whether name is defined.
func (l *Library) Has(name string) bool {
	_, ok := l.prompts[name]
	return ok
}

// Render executes the named prompt with data.
func (l *Library) Render(name string, data any) (Rendered, error) {
	c, ok := l.prompts[name]
	if !ok {
		return Rendered{}, fmt.Errorf("prompt %q: %w", name, domain.ErrNotFound)
	}
	var sys, usr bytes.Buffer
	if err := c.system.Execute(&sys, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s system: %w", name, err)
	}
	if err := c.user.Execute(&usr, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s user: %w", name, err)
	}
	return Rendered{
		System: strings.TrimSpace(sys.String()),
		User:   strings.TrimSpace(usr.String()),
		Options: domain.UnderstandOptions{
			MaxTokens:   c.spec.MaxTokens,
			Temperature: c.spec.Temperature,
			JSON:        c.spec.JSON,
		},
	}, nil
}
