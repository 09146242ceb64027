package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/guiyumin/vbrief/internal/core/extractor"
	"github.com/guiyumin/vbrief/internal/core/pipeline"
)

var (
	progressStageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	progressDoneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	progressHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
)

func stageLabel(st extractor.Stage) string {
	switch st {
	case pipeline.StageClassifying:
		return "Checking source"
	case pipeline.StageFetchingPage:
		return "Fetching page"
	case pipeline.StageCheckingCaptions:
		return "Looking for captions"
	case pipeline.StageTranscribingAudio:
		return "Transcribing audio"
	case pipeline.StageSummarizing:
		return "Summarizing"
	case pipeline.StageDone:
		return "Done"
	}
	return string(st)
}

// runState is shared between the summarize goroutine and the spinner.
type runState struct {
	mu      sync.RWMutex
	stage   extractor.Stage
	started time.Time
	resp    *pipeline.Response
	err     error
	done    chan struct{}
}

func newRunState() *runState {
	return &runState{
		stage:   pipeline.StageClassifying,
		started: time.Now(),
		done:    make(chan struct{}),
	}
}

func (s *runState) setStage(st extractor.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = st
}

func (s *runState) finish(resp *pipeline.Response, err error) {
	s.mu.Lock()
	s.resp, s.err = resp, err
	s.mu.Unlock()
	close(s.done)
}

func (s *runState) get() (extractor.Stage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	select {
	case <-s.done:
		return s.stage, true, s.err
	default:
		return s.stage, false, nil
	}
}

type progressTickMsg time.Time

type progressModel struct {
	spinner  spinner.Model
	provider string
	state    *runState
	cancel   context.CancelFunc
}

func newProgressModel(provider string, state *runState, cancel context.CancelFunc) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return progressModel{
		spinner:  s,
		provider: provider,
		state:    state,
		cancel:   cancel,
	}
}

func progressTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, progressTickCmd())
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressTickMsg:
		if _, done, _ := m.state.get(); done {
			return m, tea.Quit
		}
		return m, progressTickCmd()
	}

	return m, nil
}

func (m progressModel) View() string {
	stage, done, err := m.state.get()
	if done {
		if err != nil {
			return ""
		}
		elapsed := time.Since(m.state.started).Round(100 * time.Millisecond)
		return fmt.Sprintf("  %s Summary ready %s\n",
			progressDoneStyle.Render("✓"),
			progressHintStyle.Render("("+elapsed.String()+")"))
	}

	label := stageLabel(stage)
	hint := ""
	switch stage {
	case pipeline.StageSummarizing:
		label += " with " + m.provider
	case pipeline.StageTranscribingAudio:
		hint = progressHintStyle.Render(" no captions, this can take a while")
	}
	return fmt.Sprintf("  %s %s%s\n", m.spinner.View(), progressStageStyle.Render(label+"..."), hint)
}

// summarizeWithProgress runs req on router, drawing a spinner on an
// interactive terminal and plain stage lines otherwise.
func summarizeWithProgress(ctx context.Context, router *pipeline.Router, req pipeline.Request, status io.Writer, interactive bool) (*pipeline.Response, error) {
	if !interactive {
		req.OnStage = func(st extractor.Stage) {
			if st != pipeline.StageDone {
				fmt.Fprintf(status, "  %s...\n", stageLabel(st))
			}
		}
		return router.Summarize(ctx, req)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := newRunState()
	req.OnStage = state.setStage
	go func() {
		state.finish(router.Summarize(ctx, req))
	}()

	p := tea.NewProgram(newProgressModel(router.ProviderName(), state, cancel), tea.WithOutput(status))
	if _, err := p.Run(); err != nil {
		cancel()
	}

	<-state.done
	return state.resp, state.err
}
