package main

import (
	"fmt"
	"os"

	"github.com/bitonicnl/fireworks/internal/config"
	"github.com/bitonicnl/fireworks/internal/core/application"
	"github.com/bitonicnl/fireworks/internal/interface/commands"
	log "github.com/sirupsen/logrus"
)

// nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[fireworks] %v\n", err)
	os.Exit(1)
}

func main() {
	log.SetOutput(os.Stderr)

	buildInfo := application.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	overrides, args := config.SplitOverrides(os.Args[1:])
	app := commands.NewApp(buildInfo, overrides)
	if err := app.Run(append([]string{os.Args[0]}, args...)); err != nil {
		fatal(err)
	}
}
