package core

import (
	"sync"
	"time"
)

// Counter names incremented during a run.
const (
	CounterImported   = "imported"
	CounterCreated    = "created"
	CounterUpdated    = "updated"
	CounterWarned     = "warned"
	CounterBlankLines = "blank_lines"
)

// Warning is one per-record failure reported during a run.
type Warning struct {
	Element string            `json:"element"`
	Message string            `json:"message"`
	Params  map[string]any    `json:"params,omitempty"`
	Item    map[string]string `json:"item,omitempty"`
}

// Line returns the input line the warning refers to, or 0.
func (w Warning) Line() int {
	if n, ok := w.Params["line"].(int); ok {
		return n
	}
	return 0
}

// ImportOutcome summarizes a finished run.
type ImportOutcome struct {
	Counters  map[string]int `json:"counters"`
	Warnings  []Warning      `json:"warnings"`
	State     RunState       `json:"state"`
	Duration  time.Duration  `json:"duration"`
	BytesRead int64          `json:"bytesRead"`
	Fatal     string         `json:"fatal,omitempty"`
}

// Count returns a counter value.
func (o *ImportOutcome) Count(name string) int {
	return o.Counters[name]
}

// StepExecution is an in-memory ExecutionContext. It is safe for concurrent
// use so a run can be observed while it executes.
type StepExecution struct {
	mu       sync.Mutex
	counters map[string]int
	warnings []Warning
}

// NewStepExecution returns an empty execution context.
func NewStepExecution() *StepExecution {
	return &StepExecution{counters: make(map[string]int)}
}

// IncrementCounter implements ExecutionContext.
func (s *StepExecution) IncrementCounter(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name]++
}

// AddWarning implements ExecutionContext.
func (s *StepExecution) AddWarning(element, message string, params map[string]any, item map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, Warning{
		Element: element,
		Message: message,
		Params:  params,
		Item:    item,
	})
}

// Counters returns a copy of the counters.
func (s *StepExecution) Counters() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out
}

// Warnings returns a copy of the warnings in the order they were added.
func (s *StepExecution) Warnings() []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Warning(nil), s.warnings...)
}
