package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/promptmesh/core"
)

// ErrDuplicateTool is returned when a display name is registered twice.
var ErrDuplicateTool = errors.New("duplicate tool")

// Registry maps display names to tools. Lookups use exact string matching.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: map[string]Tool{}}
	if err := r.Register(tools...); err != nil {
		return nil, err
	}

	return r, nil
}

// Register adds tools in order.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tools {
		if _, ok := r.tools[t.Name()]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name())
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}

	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]

	return t, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// Capabilities lists the registered tools in registration order.
func (r *Registry) Capabilities() []core.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]core.Capability, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		caps = append(caps, core.Capability{
			DisplayName: name,
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}

	return caps
}

// Execute calls the named tool.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return "", NewToolError(name, "no such command", CodeNotFound)
	}

	return t.Call(ctx, args)
}

// Timeout returns the command timeout of the named tool, or def when the
// tool does not override it.
func (r *Registry) Timeout(name string, def time.Duration) time.Duration {
	t, ok := r.Lookup(name)
	if !ok {
		return def
	}

	if o, ok := t.(TimeoutOverrider); ok {
		if d, set := o.Timeout(); set {
			return d
		}
	}

	return def
}

// CommandListString renders one "Name - {args}" line per tool, sorted by
// name. Argument values are empty placeholders the model fills in.
func (r *Registry) CommandListString() string {
	caps := r.Capabilities()
	sort.Slice(caps, func(i, j int) bool { return caps[i].DisplayName < caps[j].DisplayName })

	var sb strings.Builder
	for _, c := range caps {
		sb.WriteString(c.DisplayName)
		sb.WriteString(" - ")
		sb.WriteString(argTemplate(c.Parameters))
		sb.WriteString("\n")
	}

	return sb.String()
}

func argTemplate(schema map[string]any) string {
	props, _ := schema["properties"].(map[string]any)

	args := make(map[string]string, len(props))
	for name := range props {
		args[name] = ""
	}

	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}

	return string(b)
}
