package meshparts

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// Profiler keeps the last duration of each named scope plus counters.
type Profiler struct {
	Scopes     map[string]time.Duration
	StartTimes map[string]time.Time
	Counts     map[string]int
	Order      []string

	now func() time.Time
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
		now:        time.Now,
	}
}

func (p *Profiler) BeginScope(name string) {
	p.StartTimes[name] = p.now()
	if !slices.Contains(p.Order, name) {
		p.Order = append(p.Order, name)
	}
}

func (p *Profiler) EndScope(name string) {
	if start, ok := p.StartTimes[name]; ok {
		p.Scopes[name] = p.now().Sub(start)
		delete(p.StartTimes, name)
	}
}

// Time runs fn inside a scope.
func (p *Profiler) Time(name string, fn func()) {
	p.BeginScope(name)
	defer p.EndScope(name)
	fn()
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

func (p *Profiler) Reset() {
	for k := range p.Scopes {
		p.Scopes[k] = 0
	}
}

// Stats is a snapshot for status displays and the websocket bridge.
type Stats struct {
	Timings map[string]float64 `json:"timings_ms"`
	Counts  map[string]int     `json:"counts"`
}

func (p *Profiler) Stats() Stats {
	s := Stats{
		Timings: make(map[string]float64, len(p.Scopes)),
		Counts:  make(map[string]int, len(p.Counts)),
	}
	for _, name := range p.Order {
		s.Timings[name] = float64(p.Scopes[name].Microseconds()) / 1000.0
	}
	for k, v := range p.Counts {
		s.Counts[k] = v
	}
	return s
}

func (p *Profiler) String() string {
	var sb strings.Builder

	sb.WriteString("Timings:\n")
	for _, name := range p.Order {
		ms := float64(p.Scopes[name].Microseconds()) / 1000.0
		fmt.Fprintf(&sb, "  %-15s: %.2f ms\n", name, ms)
	}

	sb.WriteString("\nStats:\n")
	keys := make([]string, 0, len(p.Counts))
	for k := range p.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %-15s: %d\n", k, p.Counts[k])
	}
	return sb.String()
}
