package config

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func press(m wizardModel, keys ...string) wizardModel {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "left":
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(wizardModel)
	}
	return m
}

func TestWizardLocalFlow(t *testing.T) {
	m := newWizardModel(DefaultConfig())

	// anthropic, key, local engine, whisper-small, confirm
	m = press(m, "down", "enter", "sk-ant-12345678", "enter", "enter", "down", "enter", "enter")

	if m.cancelled {
		t.Fatal("wizard cancelled")
	}
	cfg := m.config
	if cfg.Provider.Name != "anthropic" {
		t.Errorf("provider = %q", cfg.Provider.Name)
	}
	if cfg.Provider.APIKey != "sk-ant-12345678" {
		t.Errorf("api key = %q", cfg.Provider.APIKey)
	}
	if cfg.Transcription.Engine != "local" {
		t.Errorf("engine = %q", cfg.Transcription.Engine)
	}
	if cfg.Transcription.Model != "whisper-small" {
		t.Errorf("model = %q", cfg.Transcription.Model)
	}
}

func TestWizardSkipsModelForRemoteEngine(t *testing.T) {
	m := newWizardModel(DefaultConfig())
	m = press(m, "enter", "enter", "down")
	m = press(m, "enter")

	if m.currentStep != stepConfirm {
		t.Fatalf("step = %d, want confirm", m.currentStep)
	}
	if m.config.Transcription.Engine != "openai" {
		t.Errorf("engine = %q", m.config.Transcription.Engine)
	}

	m = press(m, "left")
	if m.currentStep != stepEngine {
		t.Errorf("back from confirm landed on step %d", m.currentStep)
	}
}

func TestWizardDecline(t *testing.T) {
	m := newWizardModel(DefaultConfig())
	m = press(m, "enter", "enter", "down", "down", "enter")
	if m.currentStep != stepConfirm {
		t.Fatalf("step = %d, want confirm", m.currentStep)
	}
	if !strings.Contains(m.View(), "(from environment)") {
		t.Error("review should note the key comes from the environment")
	}

	m = press(m, "down", "enter")
	if !m.cancelled {
		t.Error("choosing no should cancel")
	}
}

func TestWizardEscCancels(t *testing.T) {
	m := press(newWizardModel(DefaultConfig()), "esc")
	if !m.cancelled {
		t.Error("esc should cancel")
	}
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "•••"},
		{"sk-1234567890", "sk-1••••••••7890"},
	}
	for _, tt := range tests {
		if got := maskKey(tt.in); got != tt.want {
			t.Errorf("maskKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
