package scheduler

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Stats is the append-only per-graph/per-domain/total wall-clock stats
// sink: "GS|domain|host|graph|seconds", "GD|domain|seconds", and a
// final "GT|total|seconds" line, each with three decimal places. Writes
// are serialized; the underlying writer is flushed opportunistically
// rather than on every line, throttled so a burst of small graphs
// doesn't turn every stats line into its own syscall.
type Stats struct {
	mu      sync.Mutex
	w       *bufio.Writer
	limiter *rate.Limiter
}

// NewStats wraps w as a Stats sink, flushing at most a few times per
// second during a run and unconditionally on Total/Flush.
func NewStats(w io.Writer) *Stats {
	return &Stats{w: bufio.NewWriter(w), limiter: rate.NewLimiter(rate.Limit(4), 1)}
}

// Graph records one graph's render duration.
func (s *Stats) Graph(domain, host, name string, d time.Duration) {
	s.writeLine(fmt.Sprintf("GS|%s|%s|%s|%.3f\n", domain, host, name, d.Seconds()))
}

// Domain records one domain's total render duration across all its
// graphs.
func (s *Stats) Domain(domain string, d time.Duration) {
	s.writeLine(fmt.Sprintf("GD|%s|%.3f\n", domain, d.Seconds()))
}

// Total records the run's overall wall-clock duration and flushes
// unconditionally.
func (s *Stats) Total(d time.Duration) {
	s.writeLine(fmt.Sprintf("GT|total|%.3f\n", d.Seconds()))
	s.Flush()
}

func (s *Stats) writeLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.WriteString(line)
	if s.limiter.Allow() {
		s.w.Flush()
	}
}

// Flush forces any buffered stats lines out to the underlying writer.
func (s *Stats) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}
