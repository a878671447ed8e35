package tui

import (
	"io"
	"os"
	"runtime"
	"strings"
)

// OutputMode describes how progress output should be rendered.
type OutputMode int

const (
	// ModeTUI redraws a live table with bubbletea.
	ModeTUI OutputMode = iota
	// ModePlain writes one line per notification.
	ModePlain
	// ModeJSON writes only the final JSON report.
	ModeJSON
)

// DetectMode picks the output mode for out. JSON wins over everything; a live
// display needs an interactive terminal outside CI.
func DetectMode(out io.Writer, noProgress, jsonOutput bool) OutputMode {
	switch {
	case jsonOutput:
		return ModeJSON
	case noProgress, isCI(), !isTerminal(out):
		return ModePlain
	}
	return ModeTUI
}

func isTerminal(out io.Writer) bool {
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	term := os.Getenv("TERM")
	return term != "" && !strings.EqualFold(term, "dumb")
}

// isCI reports whether the process looks like it runs under a CI service.
func isCI() bool {
	for _, key := range []string{"CI", "BUILD_NUMBER", "GITHUB_ACTIONS"} {
		if v := os.Getenv(key); v != "" && !strings.EqualFold(v, "false") {
			return true
		}
	}
	return false
}
