package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLoggerLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithConfig(Config{Level: WarnLevel, Writer: &buf, NoColor: true})

	l.Info("hidden")
	l.WithPrefix("engine").WithFields(map[string]interface{}{"b": 2, "a": 1}).Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected info line filtered, got %q", out)
	}
	if !strings.Contains(out, "WARN  [engine] a=1 b=2 shown") {
		t.Errorf("Unexpected line %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("Expected no escape codes, got %q", out)
	}
}

func TestChildSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithConfig(Config{Level: InfoLevel, Writer: &buf, NoColor: true})
	child := parent.WithField("k", "v")

	parent.(*logger).out.level = ErrorLevel
	child.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("Expected child to follow parent level, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug": DebugLevel, "INFO": InfoLevel, "warning": WarnLevel,
		"error": ErrorLevel, "fatal": FatalLevel, "bogus": InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, expected %v", in, got, want)
		}
	}
}

func TestTableAlignsColoredCells(t *testing.T) {
	tbl := NewTable("ID", "STATUS")
	tbl.AddRow("DEL-1", paint(colorPrefix, false, "OK"))
	tbl.AddRow("DEL-22", "DELAYED")

	var buf bytes.Buffer
	tbl.Fprint(&buf)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected 4 lines, got %d: %q", len(lines), buf.String())
	}
	if visibleLen(lines[2]) != visibleLen(lines[3]) {
		t.Errorf("Expected aligned rows, got %q and %q", lines[2], lines[3])
	}
}

func TestBar(t *testing.T) {
	if got := Bar(0.5, 10); got != "█████░░░░░" {
		t.Errorf("Unexpected bar %q", got)
	}
	if got := Bar(2, 4); got != "████" {
		t.Errorf("Unexpected clamped bar %q", got)
	}
}

func TestSetOutputRedirectsHelpers(t *testing.T) {
	var buf bytes.Buffer
	colored := ColorEnabled()
	SetOutput(&buf)
	SetNoColor(true)
	defer func() {
		SetOutput(os.Stdout)
		SetNoColor(!colored)
	}()

	Progressf("Advanced %s by %d ticks", "metro", 3)
	NewTable("CELL").Print()

	out := buf.String()
	if !strings.Contains(out, IconRefresh+" Advanced metro by 3 ticks") {
		t.Errorf("Expected progress line, got %q", out)
	}
	if !strings.Contains(out, "CELL") {
		t.Errorf("Expected table header, got %q", out)
	}
}

func TestTableLen(t *testing.T) {
	table := NewTable("CELL", "COUNT")
	if table.Len() != 0 {
		t.Errorf("Expected empty table, got %d rows", table.Len())
	}
	table.AddRow("8a2a1072b59ffff", "2")
	table.AddRow("8a2a1072b5b7fff", "1")
	if table.Len() != 2 {
		t.Errorf("Expected 2 rows, got %d", table.Len())
	}
}

func TestSpinnerUpdateMessage(t *testing.T) {
	s := NewSpinner("Advancing")
	s.UpdateMessage("Advancing: tick 2/5")
	s.mu.Lock()
	got := s.message
	s.mu.Unlock()
	if got != "Advancing: tick 2/5" {
		t.Errorf("Expected updated message, got %q", got)
	}
}
