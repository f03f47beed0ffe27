package cli

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"go.viam.com/trajopt/trajectory"
	"go.viam.com/trajopt/trajopt"
)

// PlotAction renders every joint of a solved trajectory against the waypoint index. The image format follows the
// extension of the output file.
func PlotAction(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return errors.New("expected a result file and an output file")
	}
	//nolint:gosec
	data, err := os.ReadFile(c.Args().Get(0))
	if err != nil {
		return errors.Wrap(err, "failed to read result file")
	}
	var res trajopt.Result
	if err := res.UnmarshalJSON(data); err != nil {
		return errors.Wrap(err, "failed to parse result file")
	}
	if res.Trajectory == nil {
		return errors.New("result has no trajectory")
	}

	p, err := jointPlot(res.Trajectory, fmt.Sprintf("%s after %d iterations", res.Status, res.Iterations))
	if err != nil {
		return err
	}
	width := vg.Length(c.Float64(plotFlagWidth)) * vg.Inch
	height := vg.Length(c.Float64(plotFlagHeight)) * vg.Inch
	if err := p.Save(width, height, c.Args().Get(1)); err != nil {
		return errors.Wrap(err, "failed to save plot")
	}
	printf(c.App.Writer, "wrote %s", c.Args().Get(1))
	return nil
}

func jointPlot(traj *trajectory.Trajectory, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "waypoint"
	p.Y.Label.Text = "joint value"

	lines := make([]interface{}, 0, 2*traj.DoF())
	for j := 0; j < traj.DoF(); j++ {
		pts := make(plotter.XYs, traj.NSteps())
		for t := range pts {
			pts[t].X = float64(t)
			pts[t].Y = traj.Value(t, j)
		}
		lines = append(lines, fmt.Sprintf("q%d", j), pts)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return nil, err
	}
	return p, nil
}
