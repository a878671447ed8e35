package tui

// RowUpdateMsg updates a row's fields by column name. A row that does not
// exist yet is appended.
type RowUpdateMsg struct {
	Key    string
	Fields map[string]string
}

// ProgressMsg sets a row's progress bar, 0 to 1.
type ProgressMsg struct {
	Key     string
	Percent float64
}

// WorkDoneMsg signals that all background work has completed.
type WorkDoneMsg struct{}

// ErrorMsg signals a fatal error; the TUI should quit.
type ErrorMsg struct {
	Err error
}
