// Package main is the CLI command itself.
package main

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.viam.com/utils"

	"go.viam.com/trajopt/cli"
	"go.viam.com/trajopt/logging"
)

func main() {
	logger := logging.NewBlankLogger("trajopt")
	logger.AddAppender(logging.NewWriterAppender(os.Stderr))
	utils.ContextualMain(mainWithArgs, logger.AsZap())
}

// mainWithArgs runs the app under a context that is cancelled on SIGINT or SIGTERM, which stops in-flight solves.
func mainWithArgs(ctx context.Context, args []string, _ *zap.SugaredLogger) error {
	return cli.NewApp(os.Stdout, os.Stderr).RunContext(ctx, args)
}
