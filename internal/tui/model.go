package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/i474232898/ecovision/internal/climate"
	"github.com/i474232898/ecovision/internal/filter"
	"github.com/i474232898/ecovision/internal/orchestrator"
)

var (
	accentPrimary   = lipgloss.Color("#50E3C2")
	accentSecondary = lipgloss.Color("#F6AE2D")
	mutedText       = lipgloss.Color("#8CA1AE")
	warningText     = lipgloss.Color("#FF6B6B")
	panelBorder     = lipgloss.Color("#2D6A80")
)

var (
	headerStyle = lipgloss.NewStyle().
		Padding(0, 1).
		Bold(true).
		Foreground(accentPrimary)

	labelStyle = lipgloss.NewStyle().
		Width(12).
		Foreground(mutedText)

	focusStyle = lipgloss.NewStyle().
		Foreground(accentPrimary).
		Bold(true)

	statusStyle = lipgloss.NewStyle().
		Foreground(accentSecondary).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(warningText).
		Bold(true)

	panelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(panelBorder).
		Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
		Foreground(mutedText)
)

// maxRows caps the series table.
const maxRows = 20

// Dispatcher is the orchestrator surface the terminal view drives.
type Dispatcher interface {
	View() orchestrator.View
	Dispatch(ctx context.Context, cmd orchestrator.Command) error
}

type field int

const (
	fieldLocation field = iota
	fieldStartDate
	fieldEndDate
	fieldMetric
	fieldQuality
	fieldAnalysis
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldLocation:  "Location",
	fieldStartDate: "Start date",
	fieldEndDate:   "End date",
	fieldMetric:    "Metric",
	fieldQuality:   "Quality",
	fieldAnalysis:  "Analysis",
}

func (f field) isText() bool {
	return f == fieldStartDate || f == fieldEndDate || f == fieldQuality
}

// viewMsg carries a fresh orchestrator view into the update loop.
type viewMsg struct {
	view orchestrator.View
}

type dispatchedMsg struct {
	err error
}

// ViewUpdated wraps v as a message for a running program.
func ViewUpdated(v orchestrator.View) tea.Msg {
	return viewMsg{view: v}
}

// Model is the bubbletea model of the climate dashboard.
type Model struct {
	orch  Dispatcher
	view  orchestrator.View
	start func() error // loads the dashboard; nil when already loaded

	inputs  [fieldCount]textinput.Model
	focus   field
	spinner spinner.Model
	notice  string
	width   int
}

// NewModel builds the dashboard model around orch.
func NewModel(orch Dispatcher) Model {
	m := Model{
		orch: orch,
		view: orch.View(),
	}

	for _, f := range []field{fieldStartDate, fieldEndDate, fieldQuality} {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 32
		in.Width = 20
		switch f {
		case fieldQuality:
			in.Placeholder = "score or label"
		default:
			in.Placeholder = "YYYY-MM-DD"
		}
		m.inputs[f] = in
	}
	m.syncInputs()

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = lipgloss.NewStyle().Foreground(accentSecondary)
	m.spinner = spin

	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startCmd())
}

// startCmd runs the startup load. Its failures are shown as a notice.
func (m Model) startCmd() tea.Cmd {
	if m.start == nil {
		return nil
	}
	start := m.start
	return func() tea.Msg {
		return dispatchedMsg{err: start()}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case viewMsg:
		m.view = msg.view
		m.syncInputs()
		return m, nil

	case dispatchedMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
		} else {
			m.notice = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "q":
		if !m.focus.isText() {
			return m, tea.Quit
		}
	case "up", "shift+tab":
		return m.moveFocus(-1)
	case "down", "tab":
		return m.moveFocus(1)
	case "left":
		if !m.focus.isText() {
			return m, m.cycle(-1)
		}
	case "right":
		if !m.focus.isText() {
			return m, m.cycle(1)
		}
	case "enter":
		return m, applyCmd(m.orch, m.textPatch())
	}

	if m.focus.isText() {
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

// moveFocus stages the text field being left and focuses the next field.
func (m Model) moveFocus(step int) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	if m.focus.isText() {
		m.inputs[m.focus].Blur()
		cmds = append(cmds, stageCmd(m.orch, textFieldPatch(m.focus, m.inputs[m.focus].Value())))
	}

	m.focus = field((int(m.focus) + step + int(fieldCount)) % int(fieldCount))
	if m.focus.isText() {
		cmds = append(cmds, m.inputs[m.focus].Focus())
	}
	return m, tea.Batch(cmds...)
}

// cycle stages the next option of a selectable field.
func (m Model) cycle(step int) tea.Cmd {
	opts := m.options(m.focus)
	if len(opts) == 0 {
		return nil
	}

	cur := m.value(m.focus)
	idx := 0
	for i, o := range opts {
		if o == cur {
			idx = i
			break
		}
	}
	next := opts[(idx+step+len(opts))%len(opts)]

	switch m.focus {
	case fieldLocation:
		return stageCmd(m.orch, filter.SetLocation(next))
	case fieldMetric:
		return stageCmd(m.orch, filter.SetMetric(next))
	case fieldAnalysis:
		return stageCmd(m.orch, filter.SetAnalysisType(climate.AnalysisType(next)))
	}
	return nil
}

// options lists the values a selectable field cycles through. The empty
// string stands for "any".
func (m Model) options(f field) []string {
	switch f {
	case fieldLocation:
		opts := []string{""}
		for _, l := range m.view.Locations {
			opts = append(opts, strconv.Itoa(l.ID))
		}
		return opts
	case fieldMetric:
		opts := []string{""}
		for _, mt := range m.view.Metrics {
			opts = append(opts, mt.Name)
		}
		return opts
	case fieldAnalysis:
		opts := make([]string, 0, len(climate.AnalysisTypes))
		for _, t := range climate.AnalysisTypes {
			opts = append(opts, string(t))
		}
		return opts
	}
	return nil
}

func (m Model) value(f field) string {
	fs := m.view.Filters
	switch f {
	case fieldLocation:
		return fs.LocationID
	case fieldStartDate:
		return fs.StartDate
	case fieldEndDate:
		return fs.EndDate
	case fieldMetric:
		return fs.Metric
	case fieldQuality:
		return fs.QualityThreshold
	case fieldAnalysis:
		return string(fs.AnalysisType)
	}
	return ""
}

// syncInputs copies staged filters into the text inputs that are not being edited.
func (m *Model) syncInputs() {
	for _, f := range []field{fieldStartDate, fieldEndDate, fieldQuality} {
		if f == m.focus {
			continue
		}
		m.inputs[f].SetValue(m.value(f))
	}
}

// textPatch collects every text input into one patch.
func (m Model) textPatch() filter.Patch {
	start := m.inputs[fieldStartDate].Value()
	end := m.inputs[fieldEndDate].Value()
	quality := m.inputs[fieldQuality].Value()
	return filter.Patch{
		StartDate:        &start,
		EndDate:          &end,
		QualityThreshold: &quality,
	}
}

func textFieldPatch(f field, v string) filter.Patch {
	switch f {
	case fieldStartDate:
		return filter.SetStartDate(v)
	case fieldEndDate:
		return filter.SetEndDate(v)
	case fieldQuality:
		return filter.SetQualityThreshold(v)
	}
	return filter.Patch{}
}

func stageCmd(d Dispatcher, p filter.Patch) tea.Cmd {
	return func() tea.Msg {
		return dispatchedMsg{err: d.Dispatch(context.Background(), orchestrator.ChangeFilters{Patch: p})}
	}
}

// applyCmd stages p and then applies the filters.
func applyCmd(d Dispatcher, p filter.Patch) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if err := d.Dispatch(ctx, orchestrator.ChangeFilters{Patch: p}); err != nil {
			return dispatchedMsg{err: err}
		}
		return dispatchedMsg{err: d.Dispatch(ctx, orchestrator.ApplyFilters{})}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("EcoVision climate explorer"))
	b.WriteString("\n\n")
	b.WriteString(panelStyle.Render(m.filtersView()))
	b.WriteString("\n")

	switch {
	case m.view.Busy:
		b.WriteString(statusStyle.Render(m.spinner.View() + " Loading analysis..."))
	case m.view.LastError != "":
		b.WriteString(errorStyle.Render("Error: " + m.view.LastError))
	case m.notice != "":
		b.WriteString(errorStyle.Render(m.notice))
	default:
		b.WriteString(helpStyle.Render("Ready."))
	}
	b.WriteString("\n\n")

	if m.view.Filters.AnalysisType == climate.AnalysisTrends {
		b.WriteString(trendView(m.view.Trend))
	} else {
		b.WriteString(seriesView(m.view.Series, m.view.Filters.AnalysisType == climate.AnalysisWeighted))
	}
	b.WriteString("\n\n")

	b.WriteString(helpStyle.Render("up/down: field  left/right: change  enter: apply  esc: quit"))
	return b.String()
}

func (m Model) filtersView() string {
	lines := make([]string, 0, fieldCount)
	for f := field(0); f < fieldCount; f++ {
		marker := "  "
		if f == m.focus {
			marker = focusStyle.Render("> ")
		}

		var val string
		if f.isText() {
			val = m.inputs[f].View()
		} else {
			val = m.displayValue(f)
		}
		lines = append(lines, marker+labelStyle.Render(fieldLabels[f])+val)
	}
	return strings.Join(lines, "\n")
}

func (m Model) displayValue(f field) string {
	v := m.value(f)
	switch f {
	case fieldLocation:
		if v == "" {
			return "all locations"
		}
		for _, l := range m.view.Locations {
			if strconv.Itoa(l.ID) == v {
				return fmt.Sprintf("%s (%d)", l.Name, l.ID)
			}
		}
	case fieldMetric:
		if v == "" {
			return "all metrics"
		}
		for _, mt := range m.view.Metrics {
			if mt.Name == v && mt.DisplayName != "" {
				return mt.DisplayName
			}
		}
	}
	return v
}

func seriesView(series []climate.Observation, weighted bool) string {
	if len(series) == 0 {
		return helpStyle.Render("No observations.")
	}

	var b strings.Builder
	header := fmt.Sprintf("%-12s %-18s %-14s %10s %-6s %-8s", "Date", "Location", "Metric", "Value", "Unit", "Quality")
	if weighted {
		header += fmt.Sprintf(" %10s", "Weighted")
	}
	b.WriteString(helpStyle.Render(header))
	b.WriteString("\n")

	for i, o := range series {
		if i == maxRows {
			fmt.Fprintf(&b, "... %d more", len(series)-maxRows)
			break
		}
		fmt.Fprintf(&b, "%-12s %-18s %-14s %10.2f %-6s %-8s", o.Date, truncate(o.LocationName, 18), truncate(o.Metric, 14), o.Value, o.Unit, o.Quality)
		if weighted {
			if o.WeightedValue != nil {
				fmt.Fprintf(&b, " %10.2f", *o.WeightedValue)
			} else {
				fmt.Fprintf(&b, " %10s", "-")
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func trendView(trend climate.TrendResult) string {
	if trend == nil {
		return helpStyle.Render("No trend analysis yet.")
	}
	raw, err := json.MarshalIndent(trend, "", "  ")
	if err != nil {
		return errorStyle.Render("cannot render trend: " + err.Error())
	}
	return string(raw)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
