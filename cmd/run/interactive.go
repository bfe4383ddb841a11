package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

var traceColumns = []table.Column{
	{Title: "Seq", Width: 8},
	{Title: "Call", Width: 24},
	{Title: "Params", Width: 40},
	{Title: "Errno", Width: 14},
	{Title: "Time", Width: 12},
}

// traceViewer browses recorded calls with a filter on call and errno names.
type traceViewer struct {
	filter     textinput.Model
	title      string
	rows       []traceRow
	table      table.Model
	dropped    uint64
	errorsOnly bool
}

func newTraceViewer(title string, rows []traceRow, dropped uint64) *traceViewer {
	styles := table.DefaultStyles()
	styles.Selected = selectedStyle

	filter := textinput.New()
	filter.Prompt = "filter: "
	filter.Placeholder = "call or errno"
	filter.Width = 40

	v := &traceViewer{
		title:   title,
		rows:    rows,
		dropped: dropped,
		filter:  filter,
		table: table.New(
			table.WithColumns(traceColumns),
			table.WithFocused(true),
			table.WithHeight(20),
			table.WithStyles(styles),
		),
	}
	v.refresh()
	return v
}

func (v *traceViewer) matches(r traceRow) bool {
	if v.errorsOnly && r.ErrnoCode == 0 {
		return false
	}
	f := strings.ToLower(strings.TrimSpace(v.filter.Value()))
	if f == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Call), f) || strings.Contains(strings.ToLower(r.Errno), f)
}

func (v *traceViewer) refresh() {
	var rows []table.Row
	for _, r := range v.rows {
		if !v.matches(r) {
			continue
		}
		rows = append(rows, table.Row{
			strconv.FormatUint(r.Seq, 10),
			r.Call,
			r.Params,
			r.Errno,
			time.Duration(r.DurationNS).String(),
		})
	}
	v.table.SetRows(rows)
	if len(rows) > 0 && v.table.Cursor() >= len(rows) {
		v.table.SetCursor(len(rows) - 1)
	}
}

func (v *traceViewer) Init() tea.Cmd {
	return nil
}

func (v *traceViewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.table.SetHeight(max(msg.Height-6, 3))
		return v, nil

	case tea.KeyMsg:
		if v.filter.Focused() {
			switch msg.String() {
			case "enter", "esc":
				v.filter.Blur()
				v.table.Focus()
				return v, nil
			}
			var cmd tea.Cmd
			v.filter, cmd = v.filter.Update(msg)
			v.refresh()
			return v, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return v, tea.Quit
		case "/":
			v.table.Blur()
			return v, v.filter.Focus()
		case "e":
			v.errorsOnly = !v.errorsOnly
			v.refresh()
			return v, nil
		}
	}

	var cmd tea.Cmd
	v.table, cmd = v.table.Update(msg)
	return v, cmd
}

func (v *traceViewer) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Call Trace"))
	b.WriteString(" ")
	b.WriteString(v.title)
	b.WriteString("\n\n")

	if len(v.rows) == 0 {
		b.WriteString(errorStyle.Render("No calls recorded."))
		b.WriteString("\n\n")
	} else {
		b.WriteString(v.table.View())
		b.WriteString("\n")
	}

	b.WriteString(v.filter.View())
	b.WriteString("\n")

	status := fmt.Sprintf("%d of %d calls", len(v.table.Rows()), len(v.rows))
	if v.errorsOnly {
		status += " (errors only)"
	}
	if v.dropped > 0 {
		status += fmt.Sprintf(", %d older calls dropped", v.dropped)
	}
	b.WriteString(helpStyle.Render(status + " • / filter • e errors only • q quit"))

	return b.String()
}

func runViewer(title string, rows []traceRow, dropped uint64) error {
	p := tea.NewProgram(newTraceViewer(title, rows, dropped), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
