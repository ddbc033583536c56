package monitoring

import "sync"

// Level classifies a progress event.
type Level string

const (
	LevelInfo Level = "info"
	LevelWarn Level = "warn"
)

// Event is one progress notification from the workflow. Stage names the
// pipeline step that emitted it ("ground", "composite", ...).
type Event struct {
	Stage   string
	Level   Level
	Message string
}

// Collector consumes progress events. Implementations must be safe for use
// from a single workflow goroutine; the workflow never publishes concurrently.
type Collector interface {
	Publish(Event)
}

// LogCollector forwards events to the package logger.
type LogCollector struct{}

// Publish writes the event through Logf.
func (LogCollector) Publish(e Event) {
	if e.Level == LevelWarn {
		Logf("[%s] warning: %s", e.Stage, e.Message)
		return
	}
	Logf("[%s] %s", e.Stage, e.Message)
}

// MemoryCollector records events for inspection in tests.
type MemoryCollector struct {
	mu     sync.Mutex
	events []Event
}

// Publish appends the event to the in-memory record.
func (m *MemoryCollector) Publish(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// Events returns a copy of all published events.
func (m *MemoryCollector) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
