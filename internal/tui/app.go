// internal/tui/app.go
//
// Read-only watch view for a run started by the run script. It follows the
// shared log file and the output folder and shows the coarse protocol state.
// It uses bubbletea (Model -> Update -> View).

package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/rvmbridge/internal/artifact"
	"github.com/kingrea/rvmbridge/internal/protocol"
	"github.com/kingrea/rvmbridge/internal/runlog"
)

const refreshInterval = 2 * time.Second

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).MarginBottom(1)
	stateRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	stateDone    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	stateWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
)

type snapshotMsg Snapshot

type tickMsg time.Time

type changeMsg struct{}

// App is the watch model.
type App struct {
	observer *Observer
	changes  <-chan runlog.Change
	spinner  spinner.Model
	snap     Snapshot
	width    int
	quitting bool
}

// AppOption customizes App construction.
type AppOption func(*App)

// WithChanges feeds log change notifications so the view refreshes without
// waiting for the next tick.
func WithChanges(changes <-chan runlog.Change) AppOption {
	return func(a *App) {
		a.changes = changes
	}
}

// NewApp builds the watch model.
func NewApp(observer *Observer, opts ...AppOption) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = stateRunning
	a := &App{observer: observer, spinner: s}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Snapshot returns the last observed state.
func (a *App) Snapshot() Snapshot { return a.snap }

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.refresh(), a.scheduleRefresh(), a.waitForChange())
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			a.quitting = true
			return a, tea.Quit
		case "r":
			return a, a.refresh()
		}
		return a, nil

	case snapshotMsg:
		a.snap = Snapshot(msg)
		return a, nil

	case tickMsg:
		return a, tea.Batch(a.refresh(), a.scheduleRefresh())

	case changeMsg:
		return a, tea.Batch(a.refresh(), a.waitForChange())

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) refresh() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(a.observer.Snapshot())
	}
}

func (a *App) scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) waitForChange() tea.Cmd {
	if a.changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-a.changes; !ok {
			return nil
		}
		return changeMsg{}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}
	width := a.width
	if width <= 0 {
		width = 100
	}
	snap := a.snap

	var b strings.Builder
	b.WriteString(titleStyle.Render("⬡ RVMBRIDGE · watch"))
	b.WriteString("\n")
	b.WriteString(a.renderState(snap))
	b.WriteString("\n\n")

	b.WriteString(detailStyle.Render(fmt.Sprintf("log     %s", a.observer.LogPath())))
	b.WriteString("\n")
	if snap.Output != "" {
		mark := "missing"
		if snap.OutputExists {
			mark = "ready"
		}
		b.WriteString(detailStyle.Render(fmt.Sprintf("output  %s (%s)", snap.Output, mark)))
		b.WriteString("\n")
	}
	b.WriteString(a.renderArtifacts(snap))
	b.WriteString("\n")
	b.WriteString(a.renderLogPanel(snap, width))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("r refresh · q quit"))
	return b.String()
}

func (a *App) renderState(snap Snapshot) string {
	label := string(snap.State)
	switch snap.State {
	case protocol.StateSelfRemove, protocol.StateCleanup, protocol.StateOutputVerified:
		return stateDone.Render("✓ " + label)
	case protocol.StateCompletionDetected:
		return a.spinner.View() + " " + stateWarn.Render(label+" · waiting for the output file")
	case protocol.StateLaunched:
		return a.spinner.View() + " " + stateRunning.Render(label+" · waiting for the log")
	default:
		return a.spinner.View() + " " + stateRunning.Render(label)
	}
}

func (a *App) renderArtifacts(snap Snapshot) string {
	if len(snap.Artifacts) == 0 {
		return ""
	}
	var lines []string
	for _, result := range snap.Artifacts {
		style := detailStyle
		if result.State != artifact.StateReady {
			style = mutedStyle
		}
		lines = append(lines, style.Render(fmt.Sprintf("  %-14s %s", result.Ref.FileName, result.State)))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderLogPanel(snap Snapshot, width int) string {
	if snap.Err != nil {
		return stateWarn.Render(snap.Err.Error())
	}
	if len(snap.Tail) == 0 {
		return mutedStyle.Render("log is empty")
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s · %d lines", filepath.Base(a.observer.LogPath()), snap.TotalLines))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(snap.Tail, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(max(20, width-4)).
		Render(fmt.Sprintf("%s\n%s", head, body))
}
