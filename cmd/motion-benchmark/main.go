package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/urfave/cli/v3"

	"github.com/lixenwraith/vi-motion/component"
	"github.com/lixenwraith/vi-motion/config"
	"github.com/lixenwraith/vi-motion/core"
	"github.com/lixenwraith/vi-motion/engine"
	"github.com/lixenwraith/vi-motion/vmath"
)

func main() {
	cmd := &cli.Command{
		Name:  "motion-benchmark",
		Usage: "headless step throughput for the collision engine",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file"},
			&cli.IntFlag{Name: "entities", Aliases: []string{"n"}, Value: 1000, Usage: "movers in the arena"},
			&cli.IntFlag{Name: "ticks", Value: 2000, Usage: "steps to run"},
			&cli.DurationFlag{Name: "tick", Value: 16 * time.Millisecond, Usage: "simulated time per step"},
			&cli.FloatFlag{Name: "size", Value: 200, Usage: "arena side length"},
			&cli.FloatFlag{Name: "speed", Value: 40, Usage: "upper bound for mover speed"},
			&cli.StringFlag{Name: "behavior", Value: "bounce", Usage: "impact response: stop, bounce, none"},
			&cli.IntFlag{Name: "seed", Value: 1, Usage: "layout seed"},
			&cli.BoolFlag{Name: "realtime", Usage: "use the wall clock instead of simulated time"},
			&cli.StringFlag{Name: "statsview", Usage: "serve runtime charts on this address, e.g. localhost:18066"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "motion-benchmark: %v\n", err)
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
	entities := int(cmd.Int("entities"))
	if entities+4 > cfg.Simulation.ArenaCapacity {
		cfg.Simulation.ArenaCapacity = entities + 4
	}

	behavior, err := component.ParseBehavior(cmd.String("behavior"))
	if err != nil {
		return err
	}

	if addr := cmd.String("statsview"); addr != "" {
		viewer.SetConfiguration(viewer.WithTheme(viewer.ThemeWesteros), viewer.WithAddr(addr))
		mgr := statsview.New()
		go mgr.Start()
		defer mgr.Stop()
	}

	opts := []engine.Option{engine.WithConfig(cfg)}
	var mock *engine.MockTimeProvider
	if !cmd.Bool("realtime") {
		mock = engine.NewMockTimeProvider(time.Unix(0, 0))
		opts = append(opts, engine.WithTimeProvider(mock))
	}
	sim, err := engine.New(opts...)
	if err != nil {
		return err
	}

	size := cmd.Float("size")
	if err := buildArena(sim, size); err != nil {
		return err
	}
	placed, err := populate(sim, vmath.NewFastRand(uint64(cmd.Int("seed"))), entities, size, cmd.Float("speed"), behavior)
	if err != nil {
		return err
	}

	ticks := int(cmd.Int("ticks"))
	tick := cmd.Duration("tick")
	var stepTotal, worst time.Duration
	start := time.Now()

	for i := 0; i < ticks; i++ {
		if ctx.Err() != nil {
			break
		}
		if mock != nil {
			mock.Advance(tick)
		} else {
			time.Sleep(tick)
		}

		t0 := time.Now()
		sim.Step()
		d := time.Since(t0)
		stepTotal += d
		worst = max(worst, d)
	}

	elapsed := time.Since(start)
	steps := max(1, ticks)

	fmt.Printf("Benchmark Results:\n")
	fmt.Printf("  Instance:     %s\n", sim.ID())
	fmt.Printf("  Arena:        %.0fx%.0f\n", size, size)
	fmt.Printf("  Movers:       %d of %d requested\n", placed, entities)
	fmt.Printf("  Behavior:     %s\n", behavior)
	fmt.Printf("  Total Steps:  %d\n", ticks)
	fmt.Printf("  Total Time:   %v\n", elapsed)
	fmt.Printf("  Avg Step:     %v\n", stepTotal/time.Duration(steps))
	fmt.Printf("  Worst Step:   %v\n", worst)
	fmt.Printf("  Fingerprint:  %016x\n", sim.Fingerprint())
	fmt.Printf("  Metrics:\n")
	for _, s := range sim.Status().AppendSamples(nil) {
		fmt.Printf("    %-16s %s\n", s.Key, s.Value)
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Printf("  Total Alloc:  %d bytes\n", m.TotalAlloc)
	fmt.Printf("  Mallocs:      %d\n", m.Mallocs)
	return nil
}

// buildArena registers four static walls enclosing a size x size area
func buildArena(sim *engine.Simulation, size float64) error {
	walls := []vmath.Rect{
		vmath.NewRect(-1, -1, size+2, 1),
		vmath.NewRect(-1, size, size+2, 1),
		vmath.NewRect(-1, 0, 1, size),
		vmath.NewRect(size, 0, 1, size),
	}
	for _, r := range walls {
		e := core.NewEntity(r)
		e.Tag = "wall"
		if _, err := sim.Register(e); err != nil {
			return err
		}
	}
	return nil
}

// populate places up to n unit movers on free grid cells and returns how many fit
func populate(sim *engine.Simulation, rng *vmath.FastRand, n int, size, speed float64, behavior component.Behavior) (int, error) {
	cells := int(size) * int(size)
	used := make(map[int]bool, n)
	placed := 0

	for placed < n && len(used) < cells {
		c := rng.Intn(cells)
		if used[c] {
			continue
		}
		used[c] = true

		// Every other cell keeps movers apart at spawn
		x, y := c%int(size), c/int(size)
		if x%2 == 1 || y%2 == 1 {
			continue
		}

		e := core.NewEntity(vmath.NewRect(float64(x), float64(y), 1, 1))
		v, err := sim.Register(e)
		if err != nil {
			return placed, err
		}
		if err := v.SetBehavior(behavior); err != nil {
			return placed, err
		}
		if err := v.SetAngle(vmath.Angle(rng.Range(0, 360))); err != nil {
			return placed, err
		}
		if err := v.SetSpeed(math.Max(1, rng.Range(0, speed))); err != nil {
			return placed, err
		}
		placed++
	}
	return placed, nil
}
