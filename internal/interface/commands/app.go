package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitonicnl/fireworks/internal/config"
	"github.com/bitonicnl/fireworks/internal/core/application"
	"github.com/bitonicnl/fireworks/internal/core/ports"
	scheduler "github.com/bitonicnl/fireworks/internal/infrastructure/scheduler/gocron"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// Loader builds the application service out of the global flags. With
// polling set, the service polls the backend on a schedule.
type Loader func(c *cli.Context, polling bool) (*application.Service, *config.Config, error)

type app struct {
	out  io.Writer
	load Loader
}

// NewApp returns the fireworks command line. overrides are the
// section/name=value arguments already split from the command line.
func NewApp(buildInfo application.BuildInfo, overrides []string) *cli.App {
	return newApp(os.Stdout, buildInfo, func(c *cli.Context, polling bool) (
		*application.Service, *config.Config, error,
	) {
		cfg, err := config.LoadConfig(c.GlobalString("config"), overrides)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid config: %w", err)
		}
		log.SetLevel(log.Level(cfg.LogLevel))

		var schedulerSvc ports.SchedulerService
		if polling {
			schedulerSvc = scheduler.NewScheduler()
		}
		svc := application.NewService(
			buildInfo, cfg.BackendService(), cfg.FrontendService(),
			schedulerSvc, cfg.PollInterval,
		)
		return svc, cfg, nil
	})
}

func newApp(out io.Writer, buildInfo application.BuildInfo, load Loader) *cli.App {
	a := &app{out: out, load: load}

	cliApp := cli.NewApp()
	cliApp.Name = "fireworks"
	cliApp.Usage = "control a lightningd or LND node"
	cliApp.Version = fmt.Sprintf("%s (commit %s, %s)", buildInfo.Version, buildInfo.Commit, buildInfo.Date)
	cliApp.Writer = out
	cliApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Value: config.DefaultConfigFile(),
			Usage: "path to the INI configuration file",
		},
	}
	cliApp.Commands = a.commands()
	return cliApp
}

// withService runs action against a started application service, stopped
// when action returns or on SIGINT/SIGTERM.
func (a *app) withService(
	c *cli.Context, polling bool,
	action func(ctx context.Context, svc *application.Service, cfg *config.Config) error,
) error {
	svc, cfg, err := a.load(c, polling)
	if err != nil {
		return err
	}
	if err := svc.Start(); err != nil {
		return err
	}
	defer svc.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return action(ctx, svc, cfg)
}
