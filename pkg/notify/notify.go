// Package notify receives geofence transition events.
package notify

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/picogrid/hexfleet/pkg/models"
)

// Notifier consumes transition events. Implementations must not block the
// caller for long.
type Notifier interface {
	Notify(e models.TransitionEvent)
}

var severityColors = map[models.Severity]*color.Color{
	models.SeverityInfo:     color.New(color.FgCyan),
	models.SeveritySuccess:  color.New(color.FgGreen),
	models.SeverityWarning:  color.New(color.FgYellow),
	models.SeverityCritical: color.New(color.FgRed, color.Bold),
}

// EventLog keeps a bounded history of events and prints each one.
type EventLog struct {
	mu        sync.RWMutex
	runID     string
	startTime time.Time
	limit     int
	events    []models.TransitionEvent
	counts    map[string]map[models.TransitionKind]int
	total     int
	w         io.Writer
	noColor   bool
}

// NewEventLog creates an event log keeping at most limit events. A nil
// writer disables printing.
func NewEventLog(w io.Writer, limit int, noColor bool) *EventLog {
	if limit <= 0 {
		limit = 256
	}
	return &EventLog{
		runID:     uuid.NewString(),
		startTime: time.Now(),
		limit:     limit,
		counts:    make(map[string]map[models.TransitionKind]int),
		w:         w,
		noColor:   noColor,
	}
}

// RunID identifies the run the log belongs to.
func (l *EventLog) RunID() string {
	return l.runID
}

// Notify implements Notifier.
func (l *EventLog) Notify(e models.TransitionEvent) {
	l.mu.Lock()
	l.events = append(l.events, e)
	if len(l.events) > l.limit {
		l.events = append([]models.TransitionEvent(nil), l.events[len(l.events)-l.limit:]...)
	}
	byKind, ok := l.counts[e.GeofenceName]
	if !ok {
		byKind = make(map[models.TransitionKind]int)
		l.counts[e.GeofenceName] = byKind
	}
	byKind[e.Kind]++
	l.total++
	l.mu.Unlock()

	if l.w != nil {
		_, _ = fmt.Fprintln(l.w, l.format(e))
	}
}

func (l *EventLog) format(e models.TransitionEvent) string {
	verb := "entered"
	if e.Kind == models.TransitionExited {
		verb = "exited"
	}
	line := fmt.Sprintf("%s [%s] %s %s %s (%s)",
		e.At.Format("15:04:05"), e.Severity, e.EntityID, verb, e.GeofenceName, e.GeofenceType)
	c, ok := severityColors[e.Severity]
	if l.noColor || !ok {
		return line
	}
	return c.Sprint(line)
}

// Recent returns up to n of the latest events, newest last.
func (l *EventLog) Recent(n int) []models.TransitionEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.events) {
		n = len(l.events)
	}
	out := make([]models.TransitionEvent, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}

// FenceSummary counts transitions for one geofence.
type FenceSummary struct {
	Geofence string `yaml:"geofence"`
	Entered  int    `yaml:"entered"`
	Exited   int    `yaml:"exited"`
}

// Summary is the end of run report.
type Summary struct {
	RunID    string         `yaml:"run_id"`
	Started  time.Time      `yaml:"started"`
	Duration time.Duration  `yaml:"duration"`
	Total    int            `yaml:"total_events"`
	Fences   []FenceSummary `yaml:"geofences"`
}

// Summary returns transition counts per geofence, sorted by name.
func (l *EventLog) Summary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Summary{
		RunID:    l.runID,
		Started:  l.startTime,
		Duration: time.Since(l.startTime).Round(time.Second),
		Total:    l.total,
	}
	for name, byKind := range l.counts {
		s.Fences = append(s.Fences, FenceSummary{
			Geofence: name,
			Entered:  byKind[models.TransitionEntered],
			Exited:   byKind[models.TransitionExited],
		})
	}
	sort.Slice(s.Fences, func(i, j int) bool { return s.Fences[i].Geofence < s.Fences[j].Geofence })
	return s
}

// WriteReport writes the summary as YAML.
func (l *EventLog) WriteReport(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(l.Summary()); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}
