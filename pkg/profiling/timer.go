package profiling

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Stopper ends a timed span.
type Stopper interface {
	Stop()
}

// Span is one timed operation and the spans started while it was open.
type Span struct {
	Name     string
	Start    time.Time
	Duration time.Duration
	Children []*Span
}

type openSpan struct {
	span     *Span
	profiler *Profiler
	once     sync.Once
}

func (s *openSpan) Stop() {
	s.once.Do(func() { s.profiler.endSpan(s.span) })
}

// Profiler records nested timing spans. Spans nest by call order, so timings
// of operations running on several goroutines at once attach to whichever
// span was open last.
type Profiler struct {
	mu      sync.Mutex
	enabled bool
	root    *Span
	stack   []*Span
}

var defaultProfiler = &Profiler{}

// Enable turns on the global profiler.
func Enable() {
	defaultProfiler.Enable()
}

// Start begins a span on the global profiler.
// The returned Stopper must be used to end the span, typically via defer.
func Start(name string) Stopper {
	return defaultProfiler.Start(name)
}

// Summarize prints the global profiler's span tree.
func Summarize(w io.Writer) {
	defaultProfiler.Summarize(w)
}

// Enable starts recording. Spans started before are not recorded.
func (p *Profiler) Enable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled {
		return
	}
	p.enabled = true
	p.root = &Span{Name: "total", Start: time.Now()}
	p.stack = []*Span{p.root}
}

// Start begins a span nested under the innermost open span.
func (p *Profiler) Start(name string) Stopper {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return noopStopper{}
	}

	s := &Span{Name: name, Start: time.Now()}
	parent := p.stack[len(p.stack)-1]
	parent.Children = append(parent.Children, s)
	p.stack = append(p.stack, s)
	return &openSpan{span: s, profiler: p}
}

func (p *Profiler) endSpan(s *Span) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s.Duration = time.Since(s.Start)

	// Pop s and anything opened after it that was never stopped.
	for i := len(p.stack) - 1; i > 0; i-- {
		if p.stack[i] == s {
			p.stack = p.stack[:i]
			return
		}
	}
}

// Root returns the recorded tree, or nil when the profiler is off.
func (p *Profiler) Root() *Span {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.root
}

// Summarize prints a hierarchical summary of the recorded spans.
func (p *Profiler) Summarize(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}
	total := time.Since(p.root.Start)

	fmt.Fprintln(w, "\n--- Timing Profile ---")
	for _, c := range p.root.Children {
		printSpan(w, c, 0, total)
	}
	fmt.Fprintf(w, "total %v\n", total.Round(100*time.Microsecond))
}

func printSpan(w io.Writer, s *Span, depth int, total time.Duration) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(s.Duration) / float64(total) * 100
	}
	fmt.Fprintf(w, "%s- %s (%v, %.1f%%)\n", strings.Repeat("  ", depth), s.Name, s.Duration.Round(100*time.Microsecond), percentage)

	children := append([]*Span(nil), s.Children...)
	sort.Slice(children, func(i, j int) bool { return children[i].Start.Before(children[j].Start) })
	for _, c := range children {
		printSpan(w, c, depth+1, total)
	}
}

type noopStopper struct{}

func (noopStopper) Stop() {}
