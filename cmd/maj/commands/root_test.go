package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCmd_HasAllSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"judge", "search", "patterns", "history", "reset", "mcp", "version"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2026-01-01")
	defer SetVersion("dev", "none", "unknown")

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out.String(), "1.2.3") {
		t.Errorf("version output missing version: %s", out.String())
	}
	if !strings.Contains(out.String(), "abc123") {
		t.Errorf("version output missing commit: %s", out.String())
	}
}

func TestResetCmd_RequiresConfirmation(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"reset"})

	if err := root.Execute(); err == nil {
		t.Error("reset without --yes must fail")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string truncated", "hello world", 8, "hello..."},
		{"tiny max", "hello", 3, "hel"},
		{"multibyte cut on rune boundary", "héllo wörld", 3, "hél"},
		{"multibyte long string", "héllö wörld", 8, "héllö..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestValidatePositiveInt(t *testing.T) {
	if err := validatePositiveInt(3, "limit"); err != nil {
		t.Errorf("unexpected error for positive value: %v", err)
	}
	if err := validatePositiveInt(0, "limit"); err == nil {
		t.Error("expected error for zero")
	}
	if err := validatePositiveInt(-1, "limit"); err == nil {
		t.Error("expected error for negative value")
	}
}
