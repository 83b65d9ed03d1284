package broker

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// InvokeFunc executes a tool with already-decoded arguments and returns the
// textual result handed back to the model.
type InvokeFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool is a catalog entry. Remote tools proxy through a live provider
// session; local tools run in-process.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema

	// Origin is the provider name the tool came from, or "local".
	Origin string

	Invoke InvokeFunc
}

// OriginLocal marks tools registered by the gateway itself.
const OriginLocal = "local"

// Catalog is the merged, ordered tool set assembled for a single request
// scope. It is read-only once WithCatalog hands it to the callback and must
// not be retained past the scope: remote entries proxy sessions that are
// closed when the scope exits.
type Catalog struct {
	tools []Tool
	index map[string]int
}

func newCatalog() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// NewCatalog builds a catalog from the given tools, first name wins.
// WithCatalog assembles catalogs for provider scopes; this constructor
// serves local-only scopes and tests.
func NewCatalog(tools ...Tool) *Catalog {
	c := newCatalog()
	for _, t := range tools {
		if t.Origin == "" {
			t.Origin = OriginLocal
		}
		c.add(t)
	}
	return c
}

// add registers a tool, reporting false if the name is already taken.
// First registration wins.
func (c *Catalog) add(t Tool) bool {
	if _, exists := c.index[t.Name]; exists {
		return false
	}
	c.index[t.Name] = len(c.tools)
	c.tools = append(c.tools, t)
	return true
}

// Lookup finds a tool by exact name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	i, ok := c.index[name]
	if !ok {
		return Tool{}, false
	}
	return c.tools[i], true
}

// Tools returns all entries in registration order.
func (c *Catalog) Tools() []Tool {
	out := make([]Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

// Names returns tool names in registration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.tools))
	for i, t := range c.tools {
		names[i] = t.Name
	}
	return names
}

// Len reports the number of registered tools.
func (c *Catalog) Len() int {
	return len(c.tools)
}
