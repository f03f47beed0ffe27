// Package cli contains the trajopt command line interface.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

// Flags.
const (
	generalFlagDebug   = "debug"
	generalFlagLogFile = "log-file"

	robotFlagFile  = "robot"
	robotFlagManip = "manip"
	robotFlagLink  = "link"

	solveFlagFormat = "format"
	solveFlagOut    = "out"

	schemaFlagSolver = "solver"

	plotFlagWidth  = "width"
	plotFlagHeight = "height"

	formatJSON  = "json"
	formatTable = "table"
)

var app = &cli.App{
	Name:            "trajopt",
	Usage:           "optimize manipulator trajectories",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.PathFlag{
			Name:  generalFlagLogFile,
			Usage: "also write logs to `FILE`, rotated once it grows past 100MB",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "solve",
			Usage:     "solve one or more trajectory optimization requests",
			UsageText: "trajopt solve --robot <robot.json> [other options] <request.json>...",
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:     robotFlagFile,
					Usage:    "robot description `FILE`",
					Required: true,
				},
				&cli.StringFlag{
					Name:  solveFlagFormat,
					Usage: "output format, json or table",
					Value: formatJSON,
				},
				&cli.PathFlag{
					Name:  solveFlagOut,
					Usage: "write results to `FILE` instead of stdout",
				},
			},
			Action: SolveAction,
		},
		{
			Name:      "fk",
			Usage:     "print the pose and jacobian of a link",
			UsageText: "trajopt fk --robot <robot.json> --manip <name> --link <name> <joint values>...",
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:     robotFlagFile,
					Usage:    "robot description `FILE`",
					Required: true,
				},
				&cli.StringFlag{
					Name:     robotFlagManip,
					Usage:    "manipulator name",
					Required: true,
				},
				&cli.StringFlag{
					Name:  robotFlagLink,
					Usage: "link name, defaults to the last link of the manipulator",
				},
			},
			Action: FKAction,
		},
		{
			Name:  "schema",
			Usage: "print the JSON schema of requests",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  schemaFlagSolver,
					Usage: "print the schema of the solver options block instead",
				},
			},
			Action: SchemaAction,
		},
		{
			Name:      "plot",
			Usage:     "plot the joint values of a solved trajectory",
			UsageText: "trajopt plot [options] <result.json> <out.png|out.svg|out.pdf>",
			Flags: []cli.Flag{
				&cli.Float64Flag{
					Name:  plotFlagWidth,
					Usage: "width in inches",
					Value: 8,
				},
				&cli.Float64Flag{
					Name:  plotFlagHeight,
					Usage: "height in inches",
					Value: 4,
				},
			},
			Action: PlotAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
