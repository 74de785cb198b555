package logger

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"
)

// Icons and symbols for different log types
const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconRocket  = "🚀"
	IconPin     = "📍"
	IconTruck   = "🚚"
	IconRefresh = "🔄"
	IconDot     = "•"
	IconArrow   = "→"
)

// Success logs a success message with a green checkmark
func Success(args ...interface{}) {
	defaultLogger.Info(IconSuccess + " " + fmt.Sprint(args...))
}

// Successf logs a formatted success message
func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}

// Progress logs a progress message with a refresh icon
func Progress(args ...interface{}) {
	defaultLogger.Info(IconRefresh + " " + fmt.Sprint(args...))
}

// Progressf logs a formatted progress message
func Progressf(format string, args ...interface{}) {
	Progress(fmt.Sprintf(format, args...))
}

func stdout() io.Writer {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		defer l.out.mu.Unlock()
		return l.out.writer
	}
	return os.Stdout
}

// LogSection creates a visual section separator
func LogSection(title string) {
	line := strings.Repeat("=", 50)
	noColor := !ColorEnabled()
	w := stdout()
	_, _ = fmt.Fprintln(w, paint(colorPrefix, noColor, line))
	_, _ = fmt.Fprintln(w, paint(colorTitle, noColor, title))
	_, _ = fmt.Fprintln(w, paint(colorPrefix, noColor, line))
}

// LogKeyValue logs a key-value pair with nice formatting
func LogKeyValue(key string, value interface{}) {
	_, _ = fmt.Fprintf(stdout(), "%s %v\n", paint(colorPrefix, !ColorEnabled(), key+":"), value)
}

// Bar renders fraction in [0,1] as a fixed width text bar.
func Bar(fraction float64, width int) string {
	if fraction < 0 || math.IsNaN(fraction) {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Table represents a simple table for logging
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a new table
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow adds a row to the table
func (t *Table) AddRow(values ...string) {
	t.rows = append(t.rows, values)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Print prints the table to the default logger output
func (t *Table) Print() {
	t.Fprint(stdout())
}

// Fprint writes the table to w. Cells may carry color escapes; widths are
// computed on the visible text.
func (t *Table) Fprint(w io.Writer) {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visibleLen(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && visibleLen(cell) > widths[i] {
				widths[i] = visibleLen(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-visibleLen(cell)+2))
		}
		b.WriteString("\n")
	}

	writeRow(t.headers)
	sep := make([]string, len(widths))
	for i, width := range widths {
		sep[i] = strings.Repeat("-", width)
	}
	writeRow(sep)
	for _, row := range t.rows {
		writeRow(row)
	}

	_, _ = io.WriteString(w, b.String())
}

// visibleLen counts runes outside ANSI escape sequences.
func visibleLen(s string) int {
	n := 0
	inEscape := false
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			n++
		}
	}
	return n
}
