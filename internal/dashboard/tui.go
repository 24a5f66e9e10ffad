package dashboard

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Loader produces a fresh report; the viewer calls it on start and on reload.
type Loader func() (*Report, error)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

const barWidth = 30

type keyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Top    key.Binding
	Bottom key.Binding
	Reload key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Reload, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Prev, k.Top, k.Bottom}, {k.Reload, k.Quit}}
}

var defaultKeys = keyMap{
	Next:   key.NewBinding(key.WithKeys("n", "tab"), key.WithHelp("n", "next section")),
	Prev:   key.NewBinding(key.WithKeys("p", "shift+tab"), key.WithHelp("p", "prev section")),
	Top:    key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
	Bottom: key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
	Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

type reportLoadedMsg struct {
	report *Report
	err    error
}

// Model is the bubbletea viewer for a run report.
type Model struct {
	load     Loader
	report   *Report
	err      error
	keys     keyMap
	help     help.Model
	viewport viewport.Model
	ready    bool
	width    int
	offsets  []int
}

// NewModel returns a viewer that loads its report through load.
func NewModel(load Loader) *Model {
	return &Model{load: load, keys: defaultKeys, help: help.New()}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.loadCmd
}

func (m *Model) loadCmd() tea.Msg {
	report, err := m.load()
	return reportLoadedMsg{report: report, err: err}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Reload):
			return m, m.loadCmd
		case key.Matches(msg, m.keys.Next):
			m.jump(1)
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			m.jump(-1)
			return m, nil
		case key.Matches(msg, m.keys.Top):
			m.viewport.GotoTop()
			return m, nil
		case key.Matches(msg, m.keys.Bottom):
			m.viewport.GotoBottom()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := max(msg.Height-lipgloss.Height(m.headerView())-lipgloss.Height(m.footerView()), 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.help.Width = msg.Width
		m.refresh()
		return m, nil

	case reportLoadedMsg:
		m.report = msg.report
		m.err = msg.err
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	content, offsets := m.body()
	m.offsets = offsets
	m.viewport.SetContent(content)
}

func (m *Model) jump(dir int) {
	if len(m.offsets) == 0 {
		return
	}
	current := m.viewport.YOffset
	target := current
	if dir > 0 {
		for _, off := range m.offsets {
			if off > current {
				target = off
				break
			}
		}
	} else {
		for i := len(m.offsets) - 1; i >= 0; i-- {
			if m.offsets[i] < current {
				target = m.offsets[i]
				break
			}
		}
	}
	m.viewport.SetYOffset(target)
}

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}
	return m.headerView() + "\n" + m.viewport.View() + "\n" + m.footerView()
}

func (m *Model) headerView() string {
	title := "tunevision"
	if m.report != nil {
		title = fmt.Sprintf("tunevision  run %s  video %s", m.report.RunID, m.report.VideoBase)
	}
	return titleStyle.Render(title)
}

func (m *Model) footerView() string {
	pct := 0.0
	if m.ready {
		pct = m.viewport.ScrollPercent() * 100
	}
	return dimStyle.Render(fmt.Sprintf("%3.0f%%  ", pct)) + m.help.View(m.keys)
}

// body renders the scrollable content and the line offset of each section.
func (m *Model) body() (string, []int) {
	if m.err != nil {
		return errStyle.Render("failed to load report: " + m.err.Error()), nil
	}
	r := m.report
	if r == nil {
		return dimStyle.Render("loading report..."), nil
	}

	var (
		b       strings.Builder
		offsets []int
		lines   int
	)
	write := func(s string) {
		b.WriteString(s)
		lines += strings.Count(s, "\n")
	}
	section := func(title string) {
		if lines > 0 {
			write("\n")
		}
		offsets = append(offsets, lines)
		write(headingStyle.Render(title) + "\n")
	}

	section("Prompt")
	if r.Prompt != "" {
		write(m.boxed(r.Prompt) + "\n")
	} else {
		write(warnStyle.Render("prompt unavailable") + "\n")
	}

	section("Similarity per frame")
	if s := r.ScoreSummary; s != nil {
		write(fmt.Sprintf("frames %d  mean %.4f  min %.4f  max %.4f\n", s.Frames, s.Mean, s.Min, s.Max))
		for _, row := range r.Scores {
			write(fmt.Sprintf("%-16s %s %.4f\n", row.Frame, bar(row.Score, s.Max), row.Score))
		}
	} else {
		write(warnStyle.Render("similarity scores not found") + "\n")
	}
	if r.ChartPath != "" {
		write(dimStyle.Render("chart: "+r.ChartPath) + "\n")
	}

	section("Detected objects")
	write(fmt.Sprintf("frames analysed: %d\n", r.DetectionFrames))
	if len(r.ObjectCounts) > 0 {
		top := float64(r.ObjectCounts[0].Count)
		for _, oc := range r.ObjectCounts {
			write(fmt.Sprintf("%-16s %s %d\n", oc.Label, bar(float64(oc.Count), top), oc.Count))
		}
	} else {
		write(dimStyle.Render("no objects detected") + "\n")
	}

	section("Object appearance")
	if c := r.Comparison; c != nil {
		write("prompt objects: " + listOrNone(c.PromptObjects) + "\n")
		write(goodStyle.Render("appeared: "+listOrNone(c.AppearedObjects)) + "\n")
		write(warnStyle.Render("missing:  "+listOrNone(c.MissingObjects)) + "\n")
	} else {
		write(warnStyle.Render("object comparison not found") + "\n")
	}

	section("Feedback")
	if r.Feedback != "" {
		write(m.boxed(r.Feedback) + "\n")
	} else {
		write(warnStyle.Render("feedback not found") + "\n")
	}

	section("Revised prompt")
	if r.Revised != "" {
		write(m.boxed(r.Revised) + "\n")
	} else {
		write(warnStyle.Render("revised prompt file not found") + "\n")
	}

	if len(r.Warnings) > 0 {
		section("Warnings")
		for _, w := range r.Warnings {
			write(warnStyle.Render("! "+w) + "\n")
		}
	}
	return b.String(), offsets
}

func (m *Model) boxed(s string) string {
	style := boxStyle
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(s)
}

func bar(value, top float64) string {
	n := 0
	if top > 0 && value > 0 {
		n = int(math.Round(value / top * barWidth))
	}
	n = min(max(n, 0), barWidth)
	return barStyle.Render(strings.Repeat("█", n)) + dimStyle.Render(strings.Repeat("░", barWidth-n))
}

// Run starts the full-screen viewer and blocks until the user quits.
func Run(load Loader) error {
	_, err := tea.NewProgram(NewModel(load), tea.WithAltScreen()).Run()
	return err
}
