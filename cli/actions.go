package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"gopkg.in/natefinch/lumberjack.v2"

	"go.viam.com/trajopt/logging"
	"go.viam.com/trajopt/referenceframe"
	"go.viam.com/trajopt/spatialmath"
	"go.viam.com/trajopt/trajopt"
	"go.viam.com/trajopt/utils"
)

// newLogger writes to the app's error stream so that results on stdout stay machine readable. The returned
// function closes the log file, if any.
func newLogger(c *cli.Context) (logging.Logger, func() error) {
	logger := logging.NewBlankLogger("trajopt")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	if c.Bool(generalFlagDebug) {
		logger.SetLevel(logging.DEBUG)
	} else {
		logger.SetLevel(logging.INFO)
	}
	logFile := c.Path(generalFlagLogFile)
	if logFile == "" {
		return logger, func() error { return nil }
	}
	rotating := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100,
		MaxBackups: 2,
		Compress:   true,
	}
	logger.AddAppender(logging.NewWriterAppender(rotating))
	return logger, rotating.Close
}

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// SolveAction assembles every request against the robot and solves them concurrently.
func SolveAction(c *cli.Context) (err error) {
	logger, closeLog := newLogger(c)
	defer func() {
		err = multierr.Combine(err, closeLog())
	}()
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return errors.New("no request files given")
	}
	robot, err := referenceframe.ParseRobotJSONFile(c.Path(robotFlagFile))
	if err != nil {
		return err
	}

	problems := make([]*trajopt.Problem, 0, len(paths))
	for _, path := range paths {
		req, err := trajopt.ReadRequestFile(path)
		if err != nil {
			return errors.Wrap(err, path)
		}
		prob, err := trajopt.Assemble(req, robot)
		if err != nil {
			return errors.Wrap(err, path)
		}
		problems = append(problems, prob)
	}

	results, err := trajopt.SolveBatch(c.Context, logger, problems, nil)
	if err != nil {
		return err
	}
	for i, res := range results {
		logger.Infow("solved", "request", paths[i], "status", res.Status.String(), "iterations", res.Iterations,
			"violation", res.ConstraintViolation)
	}
	if c.Bool(generalFlagDebug) {
		for i, res := range results {
			printf(c.App.ErrWriter, "timing %s", paths[i])
			res.Meta.OutputTiming(c.App.ErrWriter)
		}
	}

	outPath := c.Path(solveFlagOut)
	if outPath == "" {
		return writeResults(c.App.Writer, c.String(solveFlagFormat), paths, results)
	}
	//nolint:gosec
	f, err := os.Create(outPath)
	if err != nil {
		return errors.Wrap(err, "failed to create output file")
	}
	return multierr.Combine(writeResults(f, c.String(solveFlagFormat), paths, results), f.Close())
}

func writeResults(w io.Writer, format string, paths []string, results []*trajopt.Result) error {
	switch format {
	case formatJSON:
		return writeResultsJSON(w, results)
	case formatTable:
		printf(w, "%s", resultsTable(paths, results))
		return nil
	default:
		return errors.Errorf("unknown format %q, expected %q or %q", format, formatJSON, formatTable)
	}
}

// writeResultsJSON writes a single result as an object and several as an array.
func writeResultsJSON(w io.Writer, results []*trajopt.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(results) == 1 {
		return enc.Encode(results[0])
	}
	return enc.Encode(results)
}

func resultsTable(paths []string, results []*trajopt.Result) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Request", "Status", "Iterations", "Violation", "Max joint step", "Costs"})
	iterations := make([]float64, 0, len(results))
	for i, res := range results {
		iterations = append(iterations, float64(res.Iterations))
		costs := lo.Map(res.CostValues, func(tv trajopt.TermValue, _ int) string {
			return fmt.Sprintf("%s=%.4g", tv.Name, tv.Value)
		})
		t.AppendRow(table.Row{
			i + 1,
			filepath.Base(paths[i]),
			res.Status.String(),
			res.Iterations,
			fmt.Sprintf("%.3g", res.ConstraintViolation),
			fmt.Sprintf("%.4f", res.Trajectory.MaxJointStep()),
			fmt.Sprint(costs),
		})
	}
	if len(results) > 1 {
		mean, _ := stats.Mean(iterations)
		p90, _ := stats.Percentile(iterations, 90)
		t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("mean %.1f p90 %.0f", mean, p90)})
	}
	return t.Render()
}

// FKAction prints the world pose and the jacobian of a link at the given joint values.
func FKAction(c *cli.Context) error {
	robot, err := referenceframe.ParseRobotJSONFile(c.Path(robotFlagFile))
	if err != nil {
		return err
	}
	model, err := robot.Manipulator(c.String(robotFlagManip))
	if err != nil {
		return err
	}
	link := c.String(robotFlagLink)
	if link == "" {
		names := model.LinkNames()
		if len(names) == 0 {
			return errors.Errorf("manipulator %q has no links", model.Name())
		}
		link = names[len(names)-1]
	}

	values := make([]float64, 0, c.Args().Len())
	for _, arg := range c.Args().Slice() {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return errors.Wrapf(err, "bad joint value %q", arg)
		}
		values = append(values, v)
	}
	inputs := referenceframe.FloatsToInputs(values)

	pose, err := model.ForwardKinematics(link, inputs)
	if err != nil {
		return err
	}
	jac, err := model.Jacobian(link, inputs)
	if err != nil {
		return err
	}

	pt := pose.Point()
	q := pose.Orientation().Quaternion()
	aa := spatialmath.QuatToR3AA(q)
	printf(c.App.Writer, "link %s of %s", link, model.Name())
	printf(c.App.Writer, "position:   X:%.6f Y:%.6f Z:%.6f", pt.X, pt.Y, pt.Z)
	printf(c.App.Writer, "quaternion: W:%.6f X:%.6f Y:%.6f Z:%.6f", q.Real, q.Imag, q.Jmag, q.Kmag)
	printf(c.App.Writer, "rotvec:     X:%.6f Y:%.6f Z:%.6f (%.3f deg)", aa.X, aa.Y, aa.Z, utils.RadToDeg(aa.Norm()))

	if jac.IsEmpty() {
		return nil
	}
	t := table.NewWriter()
	header := table.Row{""}
	for j := range values {
		header = append(header, fmt.Sprintf("q%d", j))
	}
	t.AppendHeader(header)
	for i, axis := range []string{"vx", "vy", "vz", "wx", "wy", "wz"} {
		row := table.Row{axis}
		for j := range values {
			row = append(row, fmt.Sprintf("%.6f", jac.At(i, j)))
		}
		t.AppendRow(row)
	}
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

// SchemaAction prints the JSON schema of requests or of the solver options.
func SchemaAction(c *cli.Context) error {
	schema := trajopt.RequestSchema()
	if c.Bool(schemaFlagSolver) {
		schema = trajopt.OptionsSchema()
	}
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", data)
	return nil
}
