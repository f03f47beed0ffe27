package utils

import (
	"path/filepath"
	"runtime"
)

// ResolveFile joins fn onto the module root, located from the source path of this file. Tests and tools use it
// to find the robot descriptions and requests under data/ regardless of their working directory.
func ResolveFile(fn string) string {
	//nolint:dogsled
	_, self, _, _ := runtime.Caller(0)
	root, err := filepath.Abs(filepath.Join(filepath.Dir(self), ".."))
	if err != nil {
		panic(err)
	}
	return filepath.Join(root, fn)
}
