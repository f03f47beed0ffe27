package trajopt

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// InvocationCounters is used to count the number of times an operation has been invoked and the
// accumulated time spent in it.
type InvocationCounters struct {
	calls     atomic.Int64
	timeNanos atomic.Int64
}

// SolveMeta is meta data about a solve: total duration and time spent per solver phase.
type SolveMeta struct {
	Duration time.Duration

	timingMu sync.Mutex
	Timing   map[string]*InvocationCounters
}

// NewSolveMeta constructs SolveMeta.
func NewSolveMeta() *SolveMeta {
	return &SolveMeta{
		Timing: make(map[string]*InvocationCounters),
	}
}

// DeferTiming can be used as a one-liner for tracking an invocation. Expected usage at the
// top of a function is:
//
//	defer meta.DeferTiming("functionName", time.Now())
//
// time.Now() is evaluated when the defer statement runs, so wrapping the call in a closure would
// break the measurement.
func (sm *SolveMeta) DeferTiming(opName string, start time.Time) {
	sm.AddTiming(opName, time.Since(start))
}

// AddTiming will increment the invocation count and time spent for an operation.
func (sm *SolveMeta) AddTiming(opName string, dur time.Duration) {
	sm.timingMu.Lock()
	defer sm.timingMu.Unlock()

	if counter, exists := sm.Timing[opName]; exists {
		counter.calls.Add(1)
		counter.timeNanos.Add(dur.Nanoseconds())
	} else {
		counter := &InvocationCounters{}
		counter.calls.Store(1)
		counter.timeNanos.Store(dur.Nanoseconds())
		sm.Timing[opName] = counter
	}
}

// Counter returns the counters of an operation, nil if it never ran.
func (sm *SolveMeta) Counter(opName string) *InvocationCounters {
	sm.timingMu.Lock()
	defer sm.timingMu.Unlock()
	return sm.Timing[opName]
}

// solvePhases are the timed phases of a solve, outermost first.
var solvePhases = []string{"Solve", "linearize", "evaluate", "qpSolve"}

// OutputTiming writes one line per solve phase with its call count and time spent.
func (sm *SolveMeta) OutputTiming(w io.Writer) {
	for _, phase := range solvePhases {
		//nolint:errcheck
		fmt.Fprintf(w, "  %-10s %v\n", phase, sm.Counter(phase))
	}
}

// Calls returns the number of times an operation was invoked.
func (ic *InvocationCounters) Calls() int64 {
	if ic == nil {
		return 0
	}

	return ic.calls.Load()
}

// TotalTimeNanos returns the total accumulated runtime of an operation as a time in nanoseconds.
func (ic *InvocationCounters) TotalTimeNanos() int64 {
	if ic == nil {
		return 0
	}

	return ic.timeNanos.Load()
}

// TotalTime returns the total accumulated runtime of an operation as a time.Duration.
func (ic *InvocationCounters) TotalTime() time.Duration {
	return time.Duration(ic.TotalTimeNanos())
}

// Average returns the average time spent per invocation. Returns a zero-value when the
// operation never ran.
func (ic *InvocationCounters) Average() time.Duration {
	calls := ic.Calls()
	if calls == 0 {
		return time.Duration(0)
	}

	return time.Duration(ic.TotalTimeNanos() / calls)
}

// String is a pretty-formated string representation of the number of calls/total time/average.
func (ic *InvocationCounters) String() string {
	// Calls is fixed at three spaces, right aligned.
	// Total time is fixed at thirteen spaces, left aligned.
	return fmt.Sprintf("Calls: %3d Total time: %-13s Average time: %v",
		ic.Calls(), ic.TotalTime(), ic.Average())
}
