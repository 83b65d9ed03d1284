package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/dosiblog/gateway/internal/broker"
	"github.com/dosiblog/gateway/internal/log"
)

var (
	// ErrProviderExists indicates a provider with the same name or URL is
	// already configured.
	ErrProviderExists = errors.New("provider already exists")

	// ErrProviderNotFound indicates no provider with the given name.
	ErrProviderNotFound = errors.New("provider not found")
)

// ProviderStore holds the live provider configuration. Providers from
// the MCP_SERVERS environment are fixed; providers from the file can be
// added, updated and deleted at runtime, with every change persisted.
//
// ProviderStore is safe for concurrent use by multiple goroutines.
type ProviderStore struct {
	mu     sync.RWMutex
	path   string
	env    []broker.Provider
	file   []broker.Provider
	logger log.Logger
}

// NewProviderStore loads both provider sources and returns a store bound
// to the given file path.
func NewProviderStore(path string, logger log.Logger) *ProviderStore {
	s := &ProviderStore{path: path, logger: logger.With("component", "providers")}

	if raw := os.Getenv(MCPServersEnv); raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.env); err != nil {
			s.logger.Warn("unparseable MCP_SERVERS, skipping", "error", err)
			s.env = nil
		}
	}

	fromFile, err := ReadProvidersFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// No providers file yet.
	case err != nil:
		s.logger.Warn("unreadable providers file, starting empty", "path", path, "error", err)
	default:
		s.file = fromFile
	}
	return s
}

// Providers returns the merged descriptor list, environment first.
func (s *ProviderStore) Providers() []broker.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]broker.Provider, 0, len(s.env)+len(s.file))
	out = append(out, s.env...)
	out = append(out, s.file...)
	return out
}

// Add validates, normalizes and persists a new provider.
func (s *ProviderStore) Add(p broker.Provider) (broker.Provider, error) {
	normalized, err := normalizeProvider(p)
	if err != nil {
		return broker.Provider{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range append(append([]broker.Provider{}, s.env...), s.file...) {
		if existing.Name == normalized.Name || existing.URL == normalized.URL {
			return broker.Provider{}, fmt.Errorf("%w: %q", ErrProviderExists, normalized.Name)
		}
	}

	updated := append(append([]broker.Provider{}, s.file...), normalized)
	if err := WriteProvidersFile(s.path, updated); err != nil {
		return broker.Provider{}, err
	}
	s.file = updated
	s.logger.Info("provider added", "provider", normalized.Name, "url", normalized.URL)
	return normalized, nil
}

// Update replaces the named file provider.
func (s *ProviderStore) Update(name string, p broker.Provider) (broker.Provider, error) {
	normalized, err := normalizeProvider(p)
	if err != nil {
		return broker.Provider{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := append([]broker.Provider{}, s.file...)
	found := false
	for i, existing := range updated {
		if existing.Name == name {
			updated[i] = normalized
			found = true
			break
		}
	}
	if !found {
		return broker.Provider{}, fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}

	if err := WriteProvidersFile(s.path, updated); err != nil {
		return broker.Provider{}, err
	}
	s.file = updated
	s.logger.Info("provider updated", "provider", name)
	return normalized, nil
}

// Delete removes the named file provider and reports how many remain.
func (s *ProviderStore) Delete(name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := make([]broker.Provider, 0, len(s.file))
	for _, existing := range s.file {
		if existing.Name != name {
			updated = append(updated, existing)
		}
	}
	if len(updated) == len(s.file) {
		return 0, fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}

	if err := WriteProvidersFile(s.path, updated); err != nil {
		return 0, err
	}
	s.file = updated
	s.logger.Info("provider deleted", "provider", name)
	return len(s.env) + len(s.file), nil
}

// normalizeProvider validates the descriptor and rewrites its URL to the
// canonical /mcp form, so stored configuration never needs normalizing
// again.
func normalizeProvider(p broker.Provider) (broker.Provider, error) {
	if err := p.Validate(); err != nil {
		return broker.Provider{}, err
	}
	endpoint, err := broker.NormalizeEndpoint(p.URL)
	if err != nil {
		return broker.Provider{}, err
	}
	p.URL = endpoint
	return p, nil
}
