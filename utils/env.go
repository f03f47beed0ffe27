package utils

import (
	"os"
	"strconv"
)

// NumThreadsEnvVar is the environment variable that can be set to override ParallelFactor, the number of
// goroutines used to evaluate cost and constraint terms and to solve batches of problems.
const NumThreadsEnvVar = "TRAJOPT_NUM_THREADS"

// GetenvInt returns the integer value of the given environment variable, or defaultVal if it is unset or not an
// integer.
func GetenvInt(v string, defaultVal int) int {
	s, ok := os.LookupEnv(v)
	if !ok || s == "" {
		return defaultVal
	}
	x, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return x
}
