package prompt

import (
	"strings"
	"testing"
)

func TestManagerDefaultsConnectionToDefaultTemplate(t *testing.T) {
	m := NewManager(nil, "")
	m.RegisterConnection("conn-1")
	if got := m.CurrentTemplate("conn-1"); got != "default" {
		t.Fatalf("CurrentTemplate() = %q, want default", got)
	}
}

func TestManagerRegisterConnectionIsIdempotent(t *testing.T) {
	m := NewManager(nil, "")
	m.RegisterConnection("conn-1")
	m.SetCustomVariable("conn-1", "custom_mood", "cheerful")
	m.RegisterConnection("conn-1")
	if vars := m.CustomVariables("conn-1"); vars["custom_mood"] != "cheerful" {
		t.Fatalf("RegisterConnection() should not reset existing state, vars = %+v", vars)
	}
}

func TestManagerSwitchTemplateUnknownName(t *testing.T) {
	m := NewManager(nil, "")
	m.RegisterConnection("conn-1")
	if err := m.SwitchTemplate("conn-1", "does-not-exist"); err != ErrTemplateNotFound {
		t.Fatalf("SwitchTemplate() error = %v, want ErrTemplateNotFound", err)
	}
}

func TestManagerSwitchTemplateThenBuildUsesIt(t *testing.T) {
	m := NewManager(nil, "")
	if err := m.Register(&Template{Name: "terse", Content: "hi {player_name}"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	m.RegisterConnection("conn-1")
	if err := m.SwitchTemplate("conn-1", "terse"); err != nil {
		t.Fatalf("SwitchTemplate() error = %v", err)
	}

	got, err := m.BuildSystemPrompt("conn-1", "Steve", "anthropic", "claude", 0)
	if err != nil {
		t.Fatalf("BuildSystemPrompt() error = %v", err)
	}
	if got != "hi Steve" {
		t.Fatalf("BuildSystemPrompt() = %q, want %q", got, "hi Steve")
	}
}

func TestManagerBuildSystemPromptUnregisteredConnectionUsesDefault(t *testing.T) {
	m := NewManager(nil, "")
	got, err := m.BuildSystemPrompt("never-registered", "Steve", "anthropic", "claude", 10)
	if err != nil {
		t.Fatalf("BuildSystemPrompt() error = %v", err)
	}
	if !strings.Contains(got, "Steve") {
		t.Fatalf("BuildSystemPrompt() = %q, want player name substituted", got)
	}
}

func TestManagerUnregisterConnectionDropsState(t *testing.T) {
	m := NewManager(nil, "")
	m.RegisterConnection("conn-1")
	m.SetCustomVariable("conn-1", "custom_mood", "cheerful")
	m.UnregisterConnection("conn-1")
	if got := m.CurrentTemplate("conn-1"); got != "default" {
		t.Fatalf("CurrentTemplate() after unregister = %q, want default (fresh state)", got)
	}
	if vars := m.CustomVariables("conn-1"); vars != nil {
		t.Fatalf("CustomVariables() after unregister = %+v, want nil", vars)
	}
}

func TestManagerRestoreCustomVariablesReplacesMap(t *testing.T) {
	m := NewManager(nil, "")
	m.RegisterConnection("conn-1")
	m.SetCustomVariable("conn-1", "custom_old", "stale")
	m.RestoreCustomVariables("conn-1", map[string]string{"custom_new": "fresh"})

	vars := m.CustomVariables("conn-1")
	if _, ok := vars["custom_old"]; ok {
		t.Fatalf("RestoreCustomVariables() left stale key, vars = %+v", vars)
	}
	if vars["custom_new"] != "fresh" {
		t.Fatalf("RestoreCustomVariables() vars = %+v, want custom_new=fresh", vars)
	}
}

func TestManagerListIncludesBuiltinDefault(t *testing.T) {
	m := NewManager(nil, "")
	list := m.List()
	if len(list) != 1 || list[0].Name != "default" {
		t.Fatalf("List() = %+v, want exactly [default]", list)
	}
}

func TestManagerRegisterRejectsEmptyName(t *testing.T) {
	m := NewManager(nil, "")
	if err := m.Register(&Template{Name: ""}); err != ErrInvalidTemplateName {
		t.Fatalf("Register() error = %v, want ErrInvalidTemplateName", err)
	}
}

func TestManagerCustomVariablesReturnsIndependentCopy(t *testing.T) {
	m := NewManager(nil, "")
	m.RegisterConnection("conn-1")
	m.SetCustomVariable("conn-1", "custom_mood", "cheerful")

	got := m.CustomVariables("conn-1")
	got["custom_mood"] = "mutated"

	if fresh := m.CustomVariables("conn-1"); fresh["custom_mood"] != "cheerful" {
		t.Fatal("CustomVariables() should not expose internal map by reference")
	}
}
