package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dosiblog/gateway/internal/broker"
	"github.com/dosiblog/gateway/internal/log"
)

// MCPServersEnv is the environment variable carrying a JSON array of
// provider descriptors, merged ahead of the providers file.
const MCPServersEnv = "MCP_SERVERS"

// LoadProviders loads MCP provider descriptors from two sources, in
// order:
//  1. The MCP_SERVERS environment variable (JSON array)
//  2. The providers file (mcp_servers.json by default)
//
// A missing file is fine, and an unparseable source is logged and
// skipped rather than failing startup. The gateway runs with local
// tools only when nothing is configured.
func LoadProviders(path string, logger log.Logger) []broker.Provider {
	var providers []broker.Provider

	if raw := os.Getenv(MCPServersEnv); raw != "" {
		var fromEnv []broker.Provider
		if err := json.Unmarshal([]byte(raw), &fromEnv); err != nil {
			logger.Warn("unparseable MCP_SERVERS, skipping", "error", err)
		} else {
			providers = append(providers, fromEnv...)
			logger.Info("loaded providers from environment", "count", len(fromEnv))
		}
	}

	fromFile, err := ReadProvidersFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// No providers file yet.
	case err != nil:
		logger.Warn("unreadable providers file, skipping", "path", path, "error", err)
	default:
		providers = append(providers, fromFile...)
		logger.Info("loaded providers from file", "path", path, "count", len(fromFile))
	}

	if len(providers) == 0 {
		logger.Info("no MCP providers configured, using local tools only")
	}
	return providers
}

// ReadProvidersFile reads the providers file as-is, without the
// environment merge. The provider administration API edits this file.
func ReadProvidersFile(path string) ([]broker.Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading providers file: %w", err)
	}
	var providers []broker.Provider
	if err := json.Unmarshal(data, &providers); err != nil {
		return nil, fmt.Errorf("parsing providers file %s: %w", path, err)
	}
	return providers, nil
}

// WriteProvidersFile persists provider descriptors. Descriptors carry
// API keys, so the file is written with owner-only permissions.
func WriteProvidersFile(path string, providers []broker.Provider) error {
	if providers == nil {
		providers = []broker.Provider{}
	}
	data, err := json.MarshalIndent(providers, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal providers: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing providers file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing providers file: %w", err)
	}
	return nil
}
