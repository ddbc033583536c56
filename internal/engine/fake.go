package engine

import (
	"context"
	"strings"
	"sync"
)

// Call records one invocation received by a Fake runner.
type Call struct {
	Name string
	Args []string
}

// Line renders the call as a single command line for assertions.
func (c Call) Line() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Fake is a Runner for tests. Every call is recorded; responses come from
// the handler when set, otherwise every command succeeds with no output.
type Fake struct {
	mu      sync.Mutex
	calls   []Call
	Handler func(name string, args []string) ([]byte, error)
}

// Run records the call and dispatches to the handler.
func (f *Fake) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Name: name, Args: append([]string(nil), args...)})
	handler := f.Handler
	f.mu.Unlock()

	if handler != nil {
		return handler(name, args)
	}
	return nil, nil
}

// Calls returns a copy of all recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns the recorded invocations of one binary.
func (f *Fake) CallsTo(name string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}
