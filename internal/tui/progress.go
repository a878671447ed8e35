package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	tickInterval = 150 * time.Millisecond
	marqueeGap   = "   "
	barWidth     = 24
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// tickMsg drives animation (spinner, marquee).
type tickMsg time.Time

// Column defines a single column in the progress table.
type Column struct {
	Header string
	Width  int
}

// Row holds the field values for a single table row.
type Row struct {
	Key     string
	Fields  []string
	Percent float64
	HasBar  bool
}

// ProgressModel is a bubbletea model that renders downloads and build runs as
// table rows, each optionally carrying a progress bar.
type ProgressModel struct {
	columns  []Column
	rows     []Row
	rowIndex map[string]int
	title    string
	done     bool
	err      error
	bar      progress.Model

	// statusCol caches the index of the STATUS column (-1 if absent).
	statusCol int

	// Animation state.
	tick int
}

// DefaultColumns is the layout used by the install and exec commands.
func DefaultColumns() []Column {
	return []Column{
		{Header: "STATUS", Width: 11},
		{Header: "ITEM", Width: 36},
		{Header: "SIZE", Width: 9},
	}
}

// NewProgressModel creates a progress model with the given title and columns.
func NewProgressModel(title string, columns []Column) ProgressModel {
	statusCol := -1
	for i, c := range columns {
		if strings.EqualFold(c.Header, "STATUS") {
			statusCol = i
			break
		}
	}
	return ProgressModel{
		columns:   columns,
		rowIndex:  make(map[string]int),
		title:     title,
		statusCol: statusCol,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
	}
}

// AddRow pre-populates a row. Call this before the program starts.
func (m *ProgressModel) AddRow(key string, fields []string) {
	padded := make([]string, len(m.columns))
	copy(padded, fields)
	m.rowIndex[key] = len(m.rows)
	m.rows = append(m.rows, Row{Key: key, Fields: padded})
}

func scheduleTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init satisfies the tea.Model interface.
func (m ProgressModel) Init() tea.Cmd {
	return scheduleTick()
}

// Update satisfies the tea.Model interface.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.tick++
		if m.done {
			return m, nil
		}
		return m, scheduleTick()

	case RowUpdateMsg:
		m.applyRowUpdate(msg)
		return m, nil

	case ProgressMsg:
		row := m.row(msg.Key)
		row.HasBar = true
		row.Percent = clamp01(msg.Percent)
		return m, nil

	case WorkDoneMsg:
		m.done = true
		return m, tea.Quit

	case ErrorMsg:
		m.err = msg.Err
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// row returns the row for key, appending an empty one when missing.
func (m *ProgressModel) row(key string) *Row {
	idx, ok := m.rowIndex[key]
	if !ok {
		m.AddRow(key, nil)
		idx = len(m.rows) - 1
	}
	return &m.rows[idx]
}

func (m *ProgressModel) applyRowUpdate(msg RowUpdateMsg) {
	row := m.row(msg.Key)
	for j, col := range m.columns {
		if val, exists := msg.Fields[col.Header]; exists {
			row.Fields[j] = val
		}
	}
}

// View satisfies the tea.Model interface.
func (m ProgressModel) View() string {
	if m.done && m.err != nil {
		return fmt.Sprintf("Error: %v\n", m.err)
	}

	widths := m.columnWidths()
	var b strings.Builder
	if m.title != "" {
		b.WriteString(TitleStyle.Render(m.title) + "\n\n")
	}
	b.WriteString(m.renderHeader(widths) + "\n")
	for _, row := range m.rows {
		b.WriteString(m.renderRow(row, widths) + "\n")
	}
	if !m.done {
		fmt.Fprintf(&b, "\n%s Working (%d active)...\n", spinnerFrames[m.tick%len(spinnerFrames)], m.activeCount())
	}
	return b.String()
}

func (m ProgressModel) columnWidths() []int {
	widths := make([]int, len(m.columns))
	for i, col := range m.columns {
		widths[i] = max(len(col.Header), col.Width)
	}
	return widths
}

func (m ProgressModel) renderHeader(widths []int) string {
	cells := make([]string, len(m.columns))
	for i, col := range m.columns {
		cells[i] = HeaderStyle.Render(pad(col.Header, widths[i]))
	}
	return strings.Join(cells, "  ")
}

// renderRow lays out one row. Overlong cells scroll while work is running and
// are truncated once it is done.
func (m ProgressModel) renderRow(row Row, widths []int) string {
	cells := make([]string, len(m.columns))
	for i, val := range row.Fields {
		if !m.done && len(strings.TrimSpace(val)) > widths[i] {
			val = marqueeText(val, widths[i], m.tick)
		} else {
			val = TruncateWithEllipsis(val, widths[i])
		}
		cell := pad(val, widths[i])
		if i == m.statusCol {
			cell = StatusStyle(val).Render(cell)
		}
		cells[i] = cell
	}
	line := strings.Join(cells, "  ")
	if row.HasBar {
		line += "  " + m.bar.ViewAs(row.Percent)
	}
	return line
}

// activeCount returns how many rows are in an active state.
func (m ProgressModel) activeCount() int {
	if m.statusCol < 0 {
		return 0
	}
	n := 0
	for _, row := range m.rows {
		if isActive(strings.TrimSpace(row.Fields[m.statusCol])) {
			n++
		}
	}
	return n
}

// Rows returns a copy of the current rows.
func (m ProgressModel) Rows() []Row {
	out := make([]Row, len(m.rows))
	for i, r := range m.rows {
		out[i] = r
		out[i].Fields = append([]string(nil), r.Fields...)
	}
	return out
}

// Done returns whether the model has finished (work done or error).
func (m ProgressModel) Done() bool {
	return m.done
}

// Err returns any fatal error that occurred.
func (m ProgressModel) Err() error {
	return m.err
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// marqueeText renders a scrolling window over text that exceeds the given width.
func marqueeText(text string, width, tick int) string {
	text = strings.TrimSpace(text)
	if width <= 0 {
		return ""
	}
	if len(text) <= width {
		return text
	}
	cycle := text + marqueeGap
	cycleLen := len(cycle)
	offset := tick % cycleLen
	var result strings.Builder
	result.Grow(width)
	for i := 0; i < width; i++ {
		result.WriteByte(cycle[(offset+i)%cycleLen])
	}
	return result.String()
}

// NonEmptyOrDash returns "-" for empty/whitespace strings.
func NonEmptyOrDash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}

// TruncateWithEllipsis truncates a string and adds "..." if it exceeds max length.
func TruncateWithEllipsis(value string, max int) string {
	if max <= 0 {
		return ""
	}
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
