// Package env parses environment code blocks and renders them through
// registered templates.
//
// An environment is a named rewrite rule for fenced code blocks whose info
// string starts with the environment name:
//
//	```theorem "Fermat's Last Theorem"
//	No three positive integers satisfy a^n + b^n = c^n for n > 2.
//	```
//
// Templates are text/template text rendered against a map with the keys
// name, has_arg, args, body and counter. Environments that share a counter id
// number consecutively.
package env

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"text/template"

	"golang.org/x/net/html"

	"github.com/conneroisu/mdbook-env/internal/counter"
	enverrors "github.com/conneroisu/mdbook-env/internal/errors"
)

// MinHasArg is the guaranteed length of the has_arg presence vector, so
// templates can always test the first ten positions.
const MinHasArg = 10

// Origin records where an environment definition came from.
type Origin string

const (
	OriginBuiltin Origin = "builtin"
	OriginConfig  Origin = "config"
)

// Environment is a registered template definition. CounterID is empty for
// unnumbered environments.
type Environment struct {
	Name      string
	Template  string
	CounterID string
	Origin    Origin
}

// Registry maps environment names to templates. It is filled once at startup
// and then shared read-only by document passes.
type Registry struct {
	envs      map[string]*Environment
	templates map[string]*template.Template
	mutex     sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		envs:      make(map[string]*Environment),
		templates: make(map[string]*template.Template),
	}
}

// Register compiles tmpl and stores it under name, replacing any previous
// definition. A malformed template is rejected here, never at render time.
func (r *Registry) Register(name, tmpl, counterID string) error {
	return r.register(&Environment{
		Name:      name,
		Template:  tmpl,
		CounterID: counterID,
		Origin:    OriginConfig,
	})
}

func (r *Registry) register(e *Environment) error {
	compiled, err := compile(e.Name, e.Template)
	if err != nil {
		return enverrors.NewTemplateSyntaxError(e.Name, err)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.envs[e.Name] = e
	r.templates[e.Name] = compiled
	return nil
}

// Get looks up an environment by name.
func (r *Registry) Get(name string) (*Environment, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	e, ok := r.envs[name]
	return e, ok
}

// GetAll returns every environment sorted by name.
func (r *Registry) GetAll() []*Environment {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*Environment, 0, len(r.envs))
	for _, e := range r.envs {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Count returns the number of registered environments.
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.envs)
}

// CounterIDs returns the distinct counter ids declared by registered
// environments, sorted.
func (r *Registry) CounterIDs() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	seen := make(map[string]struct{})
	var ids []string
	for _, e := range r.envs {
		if e.CounterID == "" {
			continue
		}
		if _, ok := seen[e.CounterID]; ok {
			continue
		}
		seen[e.CounterID] = struct{}{}
		ids = append(ids, e.CounterID)
	}
	sort.Strings(ids)
	return ids
}

// Counters returns a fresh default counter for every counter id. Each
// document pass needs its own set.
func (r *Registry) Counters() counter.Set {
	return counter.NewSet(r.CounterIDs()...)
}

// Render renders block through the template registered under its name.
func (r *Registry) Render(block Block, c counter.Counter) (string, error) {
	r.mutex.RLock()
	tmpl, ok := r.templates[block.Info.Name]
	r.mutex.RUnlock()
	if !ok {
		return "", enverrors.NewUnknownEnvironmentError(block.Info.Name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, NewContext(block, c)); err != nil {
		return "", enverrors.NewRenderError(block.Info.Name, err)
	}
	return buf.String(), nil
}

// NewContext builds the render context for block. has_arg holds one entry per
// position up to max(MinHasArg, len(args)).
func NewContext(block Block, c counter.Counter) map[string]interface{} {
	n := len(block.Info.Args)
	if n < MinHasArg {
		n = MinHasArg
	}
	hasArg := make([]bool, n)
	for i := range hasArg {
		hasArg[i] = block.Info.HasArg(i)
	}

	args := block.Info.Args
	if args == nil {
		args = []string{}
	}

	return map[string]interface{}{
		"name":    block.Info.Name,
		"has_arg": hasArg,
		"args":    args,
		"body":    block.Body,
		"counter": c.String(),
	}
}

var funcs = template.FuncMap{
	"arg": func(args []string, i int) string {
		if i < 0 || i >= len(args) {
			return ""
		}
		return args[i]
	},
	"escape": html.EscapeString,
}

func compile(name, text string) (*template.Template, error) {
	if text == "" {
		return nil, fmt.Errorf("template is empty")
	}
	return template.New(name).
		Option("missingkey=error").
		Funcs(funcs).
		Parse(text)
}
