package logx

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"buildwrap/internal/paths"
)

func TestNewVerbosity(t *testing.T) {
	var buf bytes.Buffer
	quiet := New(&buf, false)
	quiet.Debug("hidden")
	quiet.Info("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("expected debug entry to be filtered, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected info entry, got %q", buf.String())
	}

	buf.Reset()
	verbose := New(&buf, true)
	verbose.WithField("tool", "gradle").Debug("visible")
	if !strings.Contains(buf.String(), "visible") || !strings.Contains(buf.String(), "tool=gradle") {
		t.Fatalf("expected debug entry with fields, got %q", buf.String())
	}
}

func TestNewFileWritesIntoLogsDir(t *testing.T) {
	pp, err := paths.Resolve(t.TempDir())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	logger, closer, err := NewFile(pp, false)
	if err != nil {
		t.Fatalf("new file logger: %v", err)
	}
	logger.Info("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := os.ReadDir(pp.LogsDir)
	if err != nil {
		t.Fatalf("read logs dir: %v", err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".log") {
		t.Fatalf("expected one .log file, got %v", entries)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"":       logrus.InfoLevel,
		"debug":  logrus.DebugLevel,
		" warn ": logrus.WarnLevel,
		"bogus":  logrus.InfoLevel,
		"ERROR":  logrus.ErrorLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
