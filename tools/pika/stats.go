package main

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Stats tracks benchmark statistics using atomic operations.
type Stats struct {
	// Counters per operation type
	ops    [numOpTypes]uint64
	errors [numOpTypes]uint64

	// Put outcomes
	written uint64
	skipped uint64

	// Handle outcomes
	claimed      uint64
	empty        uint64
	completed    uint64
	failed       uint64
	conflicts    uint64
	doubleClaims uint64

	// Latency tracking (microseconds)
	mu        sync.Mutex
	latencies []int64
}

// NewStats creates a new stats tracker.
func NewStats() *Stats {
	return &Stats{
		latencies: make([]int64, 0, 100000),
	}
}

// RecordOp records a successful operation.
func (s *Stats) RecordOp(opType OpType, latency time.Duration) {
	atomic.AddUint64(&s.ops[opType], 1)

	s.mu.Lock()
	s.latencies = append(s.latencies, latency.Microseconds())
	s.mu.Unlock()
}

// RecordError records a failed operation.
func (s *Stats) RecordError(opType OpType) {
	atomic.AddUint64(&s.errors[opType], 1)
}

func (s *Stats) RecordWritten()     { atomic.AddUint64(&s.written, 1) }
func (s *Stats) RecordSkipped()     { atomic.AddUint64(&s.skipped, 1) }
func (s *Stats) RecordClaimed()     { atomic.AddUint64(&s.claimed, 1) }
func (s *Stats) RecordEmpty()       { atomic.AddUint64(&s.empty, 1) }
func (s *Stats) RecordCompleted()   { atomic.AddUint64(&s.completed, 1) }
func (s *Stats) RecordFailed()      { atomic.AddUint64(&s.failed, 1) }
func (s *Stats) RecordConflict()    { atomic.AddUint64(&s.conflicts, 1) }
func (s *Stats) RecordDoubleClaim() { atomic.AddUint64(&s.doubleClaims, 1) }

// TotalOps returns total successful operations.
func (s *Stats) TotalOps() uint64 {
	var total uint64
	for i := range s.ops {
		total += atomic.LoadUint64(&s.ops[i])
	}
	return total
}

// TotalErrors returns total errors.
func (s *Stats) TotalErrors() uint64 {
	var total uint64
	for i := range s.errors {
		total += atomic.LoadUint64(&s.errors[i])
	}
	return total
}

// GetLatencyPercentiles returns p50, p90, p95, p99 in microseconds.
func (s *Stats) GetLatencyPercentiles() (p50, p90, p95, p99 int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.latencies) == 0 {
		return 0, 0, 0, 0
	}

	sorted := make([]int64, len(s.latencies))
	copy(sorted, s.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	n := len(sorted)
	p50 = sorted[n*50/100]
	p90 = sorted[n*90/100]
	p95 = sorted[n*95/100]
	p99 = sorted[n*99/100]

	return p50, p90, p95, p99
}

// GetLatencyStats returns min, max, avg in microseconds.
func (s *Stats) GetLatencyStats() (min, max, avg int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.latencies) == 0 {
		return 0, 0, 0
	}

	min = s.latencies[0]
	max = s.latencies[0]
	var sum int64

	for _, l := range s.latencies {
		if l < min {
			min = l
		}
		if l > max {
			max = l
		}
		sum += l
	}

	avg = sum / int64(len(s.latencies))
	return min, max, avg
}

// Snapshot is a copy of the current counters.
type Snapshot struct {
	Ops          [numOpTypes]uint64
	Errors       uint64
	Written      uint64
	Skipped      uint64
	Claimed      uint64
	Empty        uint64
	Completed    uint64
	Failed       uint64
	Conflicts    uint64
	DoubleClaims uint64
}

// Total returns the successful operations in the snapshot.
func (s Snapshot) Total() uint64 {
	var total uint64
	for _, n := range s.Ops {
		total += n
	}
	return total
}

// GetSnapshot returns current stats snapshot.
func (s *Stats) GetSnapshot() Snapshot {
	snap := Snapshot{
		Errors:       s.TotalErrors(),
		Written:      atomic.LoadUint64(&s.written),
		Skipped:      atomic.LoadUint64(&s.skipped),
		Claimed:      atomic.LoadUint64(&s.claimed),
		Empty:        atomic.LoadUint64(&s.empty),
		Completed:    atomic.LoadUint64(&s.completed),
		Failed:       atomic.LoadUint64(&s.failed),
		Conflicts:    atomic.LoadUint64(&s.conflicts),
		DoubleClaims: atomic.LoadUint64(&s.doubleClaims),
	}
	for i := range s.ops {
		snap.Ops[i] = atomic.LoadUint64(&s.ops[i])
	}
	return snap
}

// PrintFinal prints final statistics.
func (s *Stats) PrintFinal(w io.Writer, elapsed time.Duration) {
	snap := s.GetSnapshot()
	totalOps := snap.Total()

	throughput := float64(totalOps) / elapsed.Seconds()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total time:    %.2fs\n", elapsed.Seconds())
	fmt.Fprintf(w, "Throughput:    %.2f ops/sec\n", throughput)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Operations:")
	for op := OpType(0); op < numOpTypes; op++ {
		fmt.Fprintf(w, "  %-7s %d\n", op.String()+":", snap.Ops[op])
	}
	fmt.Fprintf(w, "  TOTAL:  %d\n", totalOps)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Outcomes:")
	fmt.Fprintf(w, "  Written:   %d\n", snap.Written)
	if snap.Skipped > 0 {
		fmt.Fprintf(w, "  Skipped:   %d\n", snap.Skipped)
	}
	fmt.Fprintf(w, "  Claimed:   %d\n", snap.Claimed)
	fmt.Fprintf(w, "  Empty:     %d\n", snap.Empty)
	fmt.Fprintf(w, "  Completed: %d\n", snap.Completed)
	fmt.Fprintf(w, "  Failed:    %d\n", snap.Failed)
	fmt.Fprintln(w)

	if snap.Errors > 0 || snap.Conflicts > 0 || snap.DoubleClaims > 0 {
		fmt.Fprintln(w, "Errors/Conflicts:")
		for op := OpType(0); op < numOpTypes; op++ {
			if n := atomic.LoadUint64(&s.errors[op]); n > 0 {
				fmt.Fprintf(w, "  %s errors: %d\n", op, n)
			}
		}
		fmt.Fprintf(w, "  Total errors:  %d\n", snap.Errors)
		fmt.Fprintf(w, "  Conflicts:     %d\n", snap.Conflicts)
		fmt.Fprintf(w, "  Double claims: %d\n", snap.DoubleClaims)
		fmt.Fprintln(w)
	}

	min, max, avg := s.GetLatencyStats()
	p50, p90, p95, p99 := s.GetLatencyPercentiles()

	fmt.Fprintln(w, "Latency (microseconds):")
	fmt.Fprintf(w, "  Min:   %d\n", min)
	fmt.Fprintf(w, "  Avg:   %d\n", avg)
	fmt.Fprintf(w, "  Max:   %d\n", max)
	fmt.Fprintf(w, "  P50:   %d\n", p50)
	fmt.Fprintf(w, "  P90:   %d\n", p90)
	fmt.Fprintf(w, "  P95:   %d\n", p95)
	fmt.Fprintf(w, "  P99:   %d\n", p99)
}
