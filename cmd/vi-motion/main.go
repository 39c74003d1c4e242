package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/lixenwraith/vi-motion/component"
	"github.com/lixenwraith/vi-motion/config"
	"github.com/lixenwraith/vi-motion/engine"
	"github.com/lixenwraith/vi-motion/status"
)

func main() {
	cmd := &cli.Command{
		Name:  "vi-motion",
		Usage: "terminal playground for the predictive collision engine",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file"},
			&cli.IntFlag{Name: "entities", Aliases: []string{"n"}, Value: 24, Usage: "movers spawned at start"},
			&cli.FloatFlag{Name: "max-speed", Value: 30, Usage: "upper bound for spawn speed, cells per second"},
			&cli.StringFlag{Name: "behavior", Value: "bounce", Usage: "impact response: stop, bounce, none"},
			&cli.IntFlag{Name: "seed", Usage: "layout seed, 0 picks one from the clock"},
			&cli.BoolFlag{Name: "debug", Usage: "write debug logs to " + logDir},
			&cli.BoolFlag{Name: "mute", Usage: "run without opening the audio device"},
			&cli.StringFlag{Name: "sentry-dsn", Sources: cli.EnvVars("SENTRY_DSN"), Usage: "report entity faults to Sentry"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "vi-motion: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	behavior, err := component.ParseBehavior(cmd.String("behavior"))
	if err != nil {
		return err
	}
	if cmd.Float("max-speed") <= 0 {
		return fmt.Errorf("max-speed must be positive")
	}

	log, closeLog, err := setupLogging(cfg.Log, cmd.Bool("debug"), logDir)
	if err != nil {
		return err
	}
	defer closeLog()

	metrics := status.NewRegistry()
	sim, err := engine.New(
		engine.WithConfig(cfg),
		engine.WithLogger(log),
		engine.WithStatus(metrics),
	)
	if err != nil {
		return err
	}

	reporter, err := newFaultReporter(cmd.String("sentry-dsn"), sim.ID().String())
	if err != nil {
		return err
	}
	defer reporter.flush()
	sim.Faults.Subscribe(reporter.report)

	seed := uint64(cmd.Int("seed"))
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	d, err := newDemo(sim, screen, demoOptions{
		log:      log,
		metrics:  metrics,
		seed:     seed,
		behavior: behavior,
		maxSpeed: cmd.Float("max-speed"),
		mute:     cmd.Bool("mute"),
		frame:    cfg.Simulation.FrameInterval,
	})
	if err != nil {
		return err
	}
	defer d.close()

	log.Info("demo started",
		zap.Uint64("seed", seed),
		zap.String("behavior", behavior.String()),
	)

	if err := d.spawnMany(int(cmd.Int("entities"))); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.run(ctx)
}
