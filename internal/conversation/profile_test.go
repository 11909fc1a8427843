package conversation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assistant.yaml")
	data := "model: gpt-4.1-mini\ntool_descriptions:\n  get_week_events: Events from Monday to Sunday\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	profile, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if profile.Model != "gpt-4.1-mini" {
		t.Fatalf("model = %q", profile.Model)
	}
	if !strings.HasPrefix(profile.Instructions, "You are Donna") {
		t.Fatalf("instructions = %q, want default", profile.Instructions)
	}
	tools := profile.Tools()
	if tools[1].Description != "Events from Monday to Sunday" {
		t.Fatalf("week tool = %+v", tools[1])
	}
	if tools[0].Description != DefaultProfile().ToolDescriptions[ToolTodayEvents] {
		t.Fatalf("today tool = %+v", tools[0])
	}
}

func TestLoadProfileRejectsUnknownTool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assistant.yaml")
	if err := os.WriteFile(path, []byte("tool_descriptions:\n  send_email: nope\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadProfile(path); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}
