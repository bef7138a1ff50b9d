// Package ui renders pipeline progress: a Bubble Tea view on terminals and
// plain lines elsewhere.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"spark/internal/pipeline"
)

// stageInfo is how a running stage is shown and how far along it counts.
var stageInfo = map[pipeline.Stage]struct {
	label  string
	weight float64
}{
	pipeline.StageLoad:    {"loading", 0.1},
	pipeline.StageCompile: {"compiling", 0.5},
	pipeline.StageReport:  {"reporting", 0.9},
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	busyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	idleStyle    = lipgloss.NewStyle().Faint(true)
	elapsedStyle = lipgloss.NewStyle().Faint(true)
)

const statusWidth = 10

// unitRow is one line of the view.
type unitRow struct {
	name    string
	stage   pipeline.Stage
	status  pipeline.Status
	elapsed time.Duration
}

func (r unitRow) finished() bool {
	return r.status == pipeline.StatusDone || r.status == pipeline.StatusError
}

func (r unitRow) label() string {
	if r.status == pipeline.StatusWorking {
		return stageInfo[r.stage].label
	}
	return string(r.status)
}

func (r unitRow) style() lipgloss.Style {
	switch r.status {
	case pipeline.StatusDone:
		return okStyle
	case pipeline.StatusError:
		return failStyle
	case pipeline.StatusWorking:
		return busyStyle
	}
	return idleStyle
}

type progressModel struct {
	title  string
	events <-chan pipeline.Event
	spin   spinner.Model
	bar    progress.Model
	rows   []unitRow
	byName map[string]*unitRow
	batch  pipeline.Event
	width  int
	closed bool
}

type (
	eventMsg  pipeline.Event
	closedMsg struct{}
)

// NewProgressModel returns a model that follows events until the channel
// is closed, then quits.
func NewProgressModel(title string, units []string, events <-chan pipeline.Event) tea.Model {
	m := &progressModel{
		title:  title,
		events: events,
		spin:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(busyStyle)),
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(76)),
		rows:   make([]unitRow, len(units)),
		byName: make(map[string]*unitRow, len(units)),
		width:  80,
	}
	for i, name := range units {
		m.rows[i] = unitRow{name: name, status: pipeline.StatusQueued}
		m.byName[name] = &m.rows[i]
	}
	return m
}

func (m *progressModel) Init() tea.Cmd { return tea.Batch(m.spin.Tick, m.next) }

// next blocks for the following pipeline event.
func (m *progressModel) next() tea.Msg {
	ev, ok := <-m.events
	if !ok {
		return closedMsg{}
	}
	return eventMsg(ev)
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case eventMsg:
		cmd = tea.Batch(m.applyEvent(pipeline.Event(msg)), m.next)
	case closedMsg:
		m.closed = true
		cmd = tea.Quit
	case spinner.TickMsg:
		if !m.closed {
			m.spin, cmd = m.spin.Update(msg)
		}
	case progress.FrameMsg:
		var bar tea.Model
		bar, cmd = m.bar.Update(msg)
		m.bar = bar.(progress.Model)
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = msg.Width - 4
		}
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			cmd = tea.Quit
		}
	}
	return m, cmd
}

// applyEvent folds ev into the rows and returns the bar animation, if any.
// Events with no unit describe the batch.
func (m *progressModel) applyEvent(ev pipeline.Event) tea.Cmd {
	if ev.Unit == "" {
		m.batch = ev
		return nil
	}
	row, ok := m.byName[ev.Unit]
	if !ok {
		return nil
	}
	row.stage, row.status, row.elapsed = ev.Stage, ev.Status, ev.Elapsed
	return m.bar.SetPercent(m.fraction())
}

// fraction is the overall completion. Finished units count fully and
// running ones by the weight of their stage.
func (m *progressModel) fraction() float64 {
	if len(m.rows) == 0 {
		return 0
	}
	var sum float64
	for _, r := range m.rows {
		if r.finished() {
			sum++
		} else if r.status == pipeline.StatusWorking {
			sum += stageInfo[r.stage].weight
		}
	}
	return sum / float64(len(m.rows))
}

func (m *progressModel) header() string {
	h := m.title
	if m.batch.Status != "" {
		h += " (" + unitRow{stage: m.batch.Stage, status: m.batch.Status}.label() + ")"
	}
	if m.closed {
		return titleStyle.Render("done: " + h)
	}
	return m.spin.View() + " " + titleStyle.Render(h)
}

func (m *progressModel) View() string {
	if len(m.rows) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")
	nameWidth := max(m.width-statusWidth-16, 20)
	for _, r := range m.rows {
		status := r.style().Render(fmt.Sprintf("%*s", statusWidth, r.label()))
		fmt.Fprintf(&b, "  %s %s", status, Pad(Truncate(r.name, nameWidth), nameWidth))
		if r.finished() && r.elapsed > 0 {
			b.WriteString(elapsedStyle.Render(" " + r.elapsed.Round(time.Millisecond).String()))
		}
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	if m.closed {
		b.WriteString(m.bar.ViewAs(1))
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteByte('\n')
	return b.String()
}

// Truncate shortens value to width display cells, marking the cut with
// "..." when there is room for it. A width <= 0 leaves value alone.
func Truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	tail := "..."
	if width <= len(tail) {
		tail = ""
	}
	return runewidth.Truncate(value, width, tail)
}

// Pad right-pads value with spaces to width display cells.
func Pad(value string, width int) string {
	return runewidth.FillRight(value, width)
}
