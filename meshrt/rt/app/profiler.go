package app

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Profiler times the bootstrap stages of a run and keeps a few counters.
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
	if _, seen := p.Scopes[name]; !seen {
		p.Order = append(p.Order, name)
		p.Scopes[name] = 0
	}
}

// EndScope adds the time since BeginScope to the scope. Ending a scope that
// was never begun does nothing.
func (p *Profiler) EndScope(name string) {
	start, ok := p.StartTimes[name]
	if !ok {
		return
	}
	p.Scopes[name] += p.now().Sub(start)
	delete(p.StartTimes, name)
}

// Stage runs fn inside a scope of the same name.
func (p *Profiler) Stage(name string, fn func() error) error {
	p.BeginScope(name)
	defer p.EndScope(name)
	return fn()
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

func (p *Profiler) Total() time.Duration {
	var total time.Duration
	for _, d := range p.Scopes {
		total += d
	}
	return total
}

func (p *Profiler) GetStatsString() string {
	var sb strings.Builder

	sb.WriteString("Stages (CPU):\n")
	for _, name := range p.Order {
		ms := float64(p.Scopes[name].Microseconds()) / 1000.0
		fmt.Fprintf(&sb, "  %-15s: %.2f ms\n", name, ms)
	}
	fmt.Fprintf(&sb, "  %-15s: %.2f ms\n", "total", float64(p.Total().Microseconds())/1000.0)

	if len(p.Counts) == 0 {
		return sb.String()
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
