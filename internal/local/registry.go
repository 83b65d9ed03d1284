// Package local hosts in-process MCP servers. When a configured provider
// name matches a registered server, the broker connects over an in-memory
// transport instead of the network. The servers speak the same protocol as
// any remote provider, so nothing downstream can tell the difference.
package local

import (
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverVersion = "1.0.0"

// Registry maps lower-cased provider names to in-process MCP servers.
type Registry struct {
	servers map[string]*mcp.Server
}

// NewRegistry builds the registry with all built-in servers.
func NewRegistry() *Registry {
	return &Registry{servers: map[string]*mcp.Server{
		"math":  newMathServer(),
		"clock": newClockServer(),
	}}
}

// Server returns the in-process server registered under name, matching
// case-insensitively.
func (r *Registry) Server(name string) (*mcp.Server, bool) {
	s, ok := r.servers[strings.ToLower(name)]
	return s, ok
}

// Names lists registered server names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	return names
}
