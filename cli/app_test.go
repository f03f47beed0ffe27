package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"go.viam.com/trajopt/trajopt"
	"go.viam.com/trajopt/utils"
)

var (
	testRobot   = utils.ResolveFile("data/three_links.json")
	testRequest = utils.ResolveFile("data/three_links_request.json")
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"trajopt"}, args...))
	return out.String(), errOut.String(), err
}

func TestSolveJSON(t *testing.T) {
	out, errOut, err := run(t, "solve", "--robot", testRobot, testRequest)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, errOut, test.ShouldContainSubstring, "solved")

	var res trajopt.Result
	test.That(t, json.Unmarshal([]byte(out), &res), test.ShouldBeNil)
	test.That(t, res.Status, test.ShouldEqual, trajopt.StatusConverged)
	test.That(t, res.Trajectory.NSteps(), test.ShouldEqual, 20)
}

func TestSolveLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "trajopt.log")
	_, errOut, err := run(t, "--log-file", logFile, "--debug", "solve", "--robot", testRobot, testRequest)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, errOut, test.ShouldContainSubstring, "timing "+testRequest)
	test.That(t, errOut, test.ShouldContainSubstring, "qpSolve")
	test.That(t, errOut, test.ShouldContainSubstring, "Calls:")
	//nolint:gosec
	data, err := os.ReadFile(logFile)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, "solved")
	test.That(t, string(data), test.ShouldContainSubstring, "DEBUG")
}

func TestSolveBatchTable(t *testing.T) {
	out, _, err := run(t, "solve", "--robot", testRobot, "--format", "table", testRequest, testRequest)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "STATUS")
	test.That(t, out, test.ShouldContainSubstring, "three_links_request.json")
	test.That(t, bytes.Count([]byte(out), []byte("Converged")), test.ShouldEqual, 2)
	test.That(t, out, test.ShouldContainSubstring, "MEAN")
}

func TestSolveErrors(t *testing.T) {
	_, _, err := run(t, "solve", "--robot", testRobot)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no request files")

	bad := filepath.Join(t.TempDir(), "bad.json")
	test.That(t, os.WriteFile(bad, []byte(`{"basic_info": {"manip": "arm"}, "init_info": {"type": "stationary"}}`), 0o600),
		test.ShouldBeNil)
	_, _, err = run(t, "solve", "--robot", testRobot, bad)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "basic_info.n_steps")

	_, _, err = run(t, "solve", "--robot", testRobot, "--format", "yaml", testRequest)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPlot(t *testing.T) {
	dir := t.TempDir()
	resultPath := filepath.Join(dir, "result.json")
	_, _, err := run(t, "solve", "--robot", testRobot, "--out", resultPath, testRequest)
	test.That(t, err, test.ShouldBeNil)

	imgPath := filepath.Join(dir, "traj.png")
	out, _, err := run(t, "plot", resultPath, imgPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, imgPath)
	info, err := os.Stat(imgPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)

	_, _, err = run(t, "plot", resultPath)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFK(t *testing.T) {
	out, _, err := run(t, "fk", "--robot", testRobot, "--manip", "arm", "0", "0", "0")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "link Finger of arm")
	test.That(t, out, test.ShouldContainSubstring, "position:   X:2.300000")
	test.That(t, out, test.ShouldContainSubstring, "vx")

	_, _, err = run(t, "fk", "--robot", testRobot, "--manip", "arm", "--link", "Thumb", "0", "0", "0")
	test.That(t, err, test.ShouldNotBeNil)
	_, _, err = run(t, "fk", "--robot", testRobot, "--manip", "arm", "0", "zero", "0")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSchema(t *testing.T) {
	out, _, err := run(t, "schema")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "basic_info")

	out, _, err = run(t, "schema", "--solver")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "merit_error_coeff")
}
