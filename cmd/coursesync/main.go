// Command coursesync turns a course syllabus into database rows and calendar events.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/custodia-labs/coursesync/internal/adapters/driving/cli"
	"github.com/custodia-labs/coursesync/internal/config"
	"github.com/custodia-labs/coursesync/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(".env"); err != nil {
		logger.Error(err, "loading .env")
		return 1
	}

	cli.SetVersion(version)
	cli.SetSetup(setup)

	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}
