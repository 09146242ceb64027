package config

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const asciiArt = `
 ██╗   ██╗██████╗ ██████╗ ██╗███████╗███████╗
 ██║   ██║██╔══██╗██╔══██╗██║██╔════╝██╔════╝
 ██║   ██║██████╔╝██████╔╝██║█████╗  █████╗
 ╚██╗ ██╔╝██╔══██╗██╔══██╗██║██╔══╝  ██╔══╝
  ╚████╔╝ ██████╔╝██║  ██║██║███████╗██║
   ╚═══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝╚══════╝╚═╝
`

var (
	logoStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	stepStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
	selectedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	unselectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	cursorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	helpStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	labelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("248")).Width(16)
	valueStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	containerStyle  = lipgloss.NewStyle().Padding(2, 4)
)

const (
	stepProvider = iota
	stepAPIKey
	stepEngine
	stepModel
	stepConfirm
	stepCount
)

type option struct{ label, value string }

// whisperModels mirrors the transcriber's model table.
var whisperModels = []option{
	{"whisper-tiny (75 MB, fastest)", "whisper-tiny"},
	{"whisper-base (142 MB, recommended)", "whisper-base"},
	{"whisper-small (466 MB)", "whisper-small"},
	{"whisper-medium (1.5 GB)", "whisper-medium"},
	{"whisper-large-v3-turbo (1.6 GB, best)", "whisper-large-v3-turbo"},
}

type wizardModel struct {
	currentStep int
	cursor      int
	config      *Config
	keyInput    textinput.Model
	cancelled   bool
	width       int
	height      int
}

func newWizardModel(cfg *Config) wizardModel {
	ti := textinput.New()
	ti.Placeholder = "paste your API key (leave empty to use the environment)"
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = 256
	ti.SetValue(cfg.Provider.APIKey)

	m := wizardModel{config: cfg, keyInput: ti}
	m.setCursorFromConfig()
	return m
}

func (m *wizardModel) stepTitle() string {
	switch m.currentStep {
	case stepProvider:
		return "Summarization provider"
	case stepAPIKey:
		return "API key"
	case stepEngine:
		return "Speech-to-text"
	case stepModel:
		return "Whisper model"
	case stepConfirm:
		return "Confirm"
	}
	return ""
}

func (m *wizardModel) stepDescription() string {
	switch m.currentStep {
	case stepProvider:
		return "Which LLM writes summaries and answers follow-up questions"
	case stepAPIKey:
		return fmt.Sprintf("Key for %s; %s also works", m.config.Provider.Name, providerKeyEnv[m.config.Provider.Name])
	case stepEngine:
		return "Used for videos that have no captions"
	case stepModel:
		return "Local whisper.cpp model, downloaded on first use"
	case stepConfirm:
		return "Save this configuration?"
	}
	return ""
}

func (m *wizardModel) options() []option {
	switch m.currentStep {
	case stepProvider:
		return []option{
			{"OpenAI", "openai"},
			{"Anthropic", "anthropic"},
			{"Qwen (DashScope)", "qwen"},
			{"Gemini", "gemini"},
		}
	case stepEngine:
		return []option{
			{"Local whisper.cpp (private, no API cost)", "local"},
			{"OpenAI Whisper API", "openai"},
			{"Disabled (captions only)", "none"},
		}
	case stepModel:
		return whisperModels
	case stepConfirm:
		return []option{
			{"Yes, save", "yes"},
			{"No, cancel", "no"},
		}
	}
	return nil
}

func (m *wizardModel) isInputStep() bool {
	return m.currentStep == stepAPIKey
}

func (m *wizardModel) setCursorFromConfig() {
	if m.isInputStep() {
		m.keyInput.Focus()
		return
	}
	m.keyInput.Blur()

	var current string
	switch m.currentStep {
	case stepProvider:
		current = m.config.Provider.Name
	case stepEngine:
		current = m.config.Transcription.Engine
	case stepModel:
		current = m.config.Transcription.Model
	}

	m.cursor = 0
	for i, opt := range m.options() {
		if opt.value == current {
			m.cursor = i
			break
		}
	}
}

func (m wizardModel) Init() tea.Cmd {
	return nil
}

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit

		case "left":
			if m.isInputStep() {
				break
			}
			if m.currentStep > 0 {
				m.saveCurrentValue()
				m.currentStep = m.prevStep()
				m.setCursorFromConfig()
			}
			return m, nil

		case "enter", "right":
			if m.isInputStep() && msg.String() == "right" {
				break
			}
			m.saveCurrentValue()

			if m.currentStep == stepConfirm {
				if m.cursor != 0 {
					m.cancelled = true
				}
				return m, tea.Quit
			}

			m.currentStep = m.nextStep()
			m.setCursorFromConfig()
			return m, nil

		case "up", "k":
			if !m.isInputStep() {
				n := len(m.options())
				m.cursor = (m.cursor - 1 + n) % n
				return m, nil
			}

		case "down", "j":
			if !m.isInputStep() {
				m.cursor = (m.cursor + 1) % len(m.options())
				return m, nil
			}
		}
	}

	if m.isInputStep() {
		var cmd tea.Cmd
		m.keyInput, cmd = m.keyInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

// nextStep skips the model choice unless whisper.cpp runs locally.
func (m *wizardModel) nextStep() int {
	next := m.currentStep + 1
	if next == stepModel && m.config.Transcription.Engine != "local" {
		next++
	}
	return next
}

func (m *wizardModel) prevStep() int {
	prev := m.currentStep - 1
	if prev == stepModel && m.config.Transcription.Engine != "local" {
		prev--
	}
	return prev
}

func (m *wizardModel) saveCurrentValue() {
	if m.isInputStep() {
		m.config.Provider.APIKey = strings.TrimSpace(m.keyInput.Value())
		return
	}

	options := m.options()
	if m.cursor >= len(options) {
		return
	}
	value := options[m.cursor].value
	switch m.currentStep {
	case stepProvider:
		if value != m.config.Provider.Name {
			m.config.Provider.Model = ""
		}
		m.config.Provider.Name = value
	case stepEngine:
		m.config.Transcription.Engine = value
	case stepModel:
		m.config.Transcription.Model = value
	}
}

func (m wizardModel) View() string {
	var b strings.Builder

	b.WriteString(logoStyle.Render(asciiArt))
	b.WriteString("\n\n")

	b.WriteString(stepStyle.Render(fmt.Sprintf("Step %d of %d", m.currentStep+1, stepCount)))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render(m.stepTitle()))
	b.WriteString("\n")
	b.WriteString(stepStyle.Render(m.stepDescription()))
	b.WriteString("\n\n")

	if m.currentStep == stepConfirm {
		b.WriteString(m.renderReview())
		b.WriteString("\n")
	}

	if m.isInputStep() {
		b.WriteString(m.keyInput.View())
		b.WriteString("\n")
	} else {
		for i, opt := range m.options() {
			cursor := "  "
			style := unselectedStyle
			if i == m.cursor {
				cursor = cursorStyle.Render("> ")
				style = selectedStyle
			}
			b.WriteString(cursor)
			b.WriteString(style.Render(opt.label))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("← back • → next • ↑↓ select • enter confirm • esc quit"))

	content := containerStyle.Render(b.String())
	if m.width > 0 && m.height > 0 {
		content = lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, content)
	}
	return content
}

func (m wizardModel) renderReview() string {
	var b strings.Builder

	key := "(from environment)"
	if m.config.Provider.APIKey != "" {
		key = maskKey(m.config.Provider.APIKey)
	}
	lines := []option{
		{"Provider", m.config.Provider.Name},
		{"API key", key},
		{"Transcription", m.config.Transcription.Engine},
	}
	if m.config.Transcription.Engine == "local" {
		lines = append(lines, option{"Whisper model", m.config.Transcription.Model})
	}

	for _, line := range lines {
		b.WriteString(labelStyle.Render(line.label + ":"))
		b.WriteString(valueStyle.Render(line.value))
		b.WriteString("\n")
	}
	return b.String()
}

// maskKey keeps the first and last four characters of a secret.
func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("•", len(key))
	}
	return key[:4] + strings.Repeat("•", 8) + key[len(key)-4:]
}

// RunInitWizard runs an interactive TUI wizard seeded with the saved config.
// Environment overrides are not applied so they never end up on disk.
func RunInitWizard() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		cfg = DefaultConfig()
	}

	p := tea.NewProgram(newWizardModel(cfg), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	result := finalModel.(wizardModel)
	if result.cancelled {
		return nil, fmt.Errorf("configuration cancelled")
	}
	return result.config, nil
}
