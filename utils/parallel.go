package utils

import (
	"runtime"
)

// ParallelFactor bounds how many goroutines evaluate terms or solve problems at once. It defaults to GOMAXPROCS
// and can be overridden with the TRAJOPT_NUM_THREADS environment variable.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if n := GetenvInt(NumThreadsEnvVar, ParallelFactor); n > 0 {
		ParallelFactor = n
	}
}
