package cmd

import (
	"os"
	"testing"
)

// setArgs replaces os.Args for the duration of the test so serve flag
// parsing does not see the test binary's own flags.
func setArgs(t *testing.T, args ...string) {
	t.Helper()
	old := os.Args
	os.Args = append([]string{"gateway", "serve"}, args...)
	t.Cleanup(func() { os.Args = old })
}

func TestValidateAddr(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"port only", ":8080", false},
		{"localhost", "localhost:3400", false},
		{"ip", "127.0.0.1:8080", false},
		{"auto-assign port", ":0", false},
		{"missing port", "localhost", true},
		{"non-numeric port", ":http", true},
		{"port out of range", ":70000", true},
		{"whitespace host", "bad host:8080", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAddr(tt.addr)
			if tt.wantErr && err == nil {
				t.Errorf("validateAddr(%q) expected error", tt.addr)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("validateAddr(%q) unexpected error: %v", tt.addr, err)
			}
		})
	}
}

func TestParseServeAddr_ConfigDefault(t *testing.T) {
	setArgs(t)
	got, err := parseServeAddr(":9090")
	if err != nil {
		t.Fatalf("parseServeAddr() unexpected error: %v", err)
	}
	if got != ":9090" {
		t.Errorf("parseServeAddr() = %q, want config default :9090", got)
	}
}

func TestParseServeAddr_Positional(t *testing.T) {
	setArgs(t, ":7000")
	got, err := parseServeAddr(":8080")
	if err != nil {
		t.Fatalf("parseServeAddr() unexpected error: %v", err)
	}
	if got != ":7000" {
		t.Errorf("parseServeAddr() = %q, want positional :7000", got)
	}
}

func TestParseServeAddr_Flag(t *testing.T) {
	setArgs(t, "--addr", ":7001")
	got, err := parseServeAddr(":8080")
	if err != nil {
		t.Fatalf("parseServeAddr() unexpected error: %v", err)
	}
	if got != ":7001" {
		t.Errorf("parseServeAddr() = %q, want flag :7001", got)
	}
}

func TestParseServeAddr_FallbackDefault(t *testing.T) {
	setArgs(t)
	got, err := parseServeAddr("")
	if err != nil {
		t.Fatalf("parseServeAddr() unexpected error: %v", err)
	}
	if got != ":8080" {
		t.Errorf("parseServeAddr() = %q, want :8080", got)
	}
}
