package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lixenwraith/vi-motion/component"
	"github.com/lixenwraith/vi-motion/core"
	"github.com/lixenwraith/vi-motion/engine"
	"github.com/lixenwraith/vi-motion/physics"
	"github.com/lixenwraith/vi-motion/status"
	"github.com/lixenwraith/vi-motion/vmath"
)

const (
	wallTag      = "wall"
	flashTime    = 120 * time.Millisecond
	spawnRetries = 20
	maxMovers    = 400
)

var glyphRunes = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789@#$%&*+=?")

type glyph struct {
	r     rune
	style tcell.Style
}

type demoOptions struct {
	log      *zap.Logger
	metrics  *status.Registry
	seed     uint64
	behavior component.Behavior
	maxSpeed float64
	mute     bool
	frame    time.Duration
}

// demo hosts the simulation in a terminal
// Every simulation call happens on the frame loop goroutine
type demo struct {
	screen  tcell.Screen
	sim     *engine.Simulation
	log     *zap.Logger
	metrics *status.Registry
	tone    *tone
	rng     *vmath.FastRand

	behavior component.Behavior
	maxSpeed float64
	frame    time.Duration

	width, height int
	walls         [4]*core.Entity
	glyphs        map[*core.Entity]glyph
	flashes       map[*core.Entity]time.Time
	tracked       []*core.Entity
}

// newDemo initializes screen and registers the arena walls
// With mute set the speaker is never opened
func newDemo(sim *engine.Simulation, screen tcell.Screen, opts demoOptions) (*demo, error) {
	if err := screen.Init(); err != nil {
		return nil, err
	}

	d := &demo{
		screen:   screen,
		sim:      sim,
		log:      opts.log,
		metrics:  opts.metrics,
		rng:      vmath.NewFastRand(opts.seed),
		behavior: opts.behavior,
		maxSpeed: opts.maxSpeed,
		frame:    opts.frame,
		glyphs:   make(map[*core.Entity]glyph),
		flashes:  make(map[*core.Entity]time.Time),
	}

	d.tone = &tone{}
	if !opts.mute {
		t, err := newTone()
		if err != nil {
			d.log.Warn("audio initialization failed", zap.Error(err))
		}
		d.tone = t
	}

	d.width, d.height = screen.Size()
	if err := d.buildWalls(); err != nil {
		screen.Fini()
		return nil, err
	}
	sim.Impacts.Subscribe(d.onImpact)
	return d, nil
}

// arena returns the playable area inside the walls; the last row is the status line
func (d *demo) arena() vmath.Rect {
	return vmath.NewRect(1, 1, float64(max(1, d.width-2)), float64(max(1, d.height-3)))
}

func (d *demo) wallRects() [4]vmath.Rect {
	w, h := float64(max(3, d.width)), float64(max(4, d.height-1))
	return [4]vmath.Rect{
		vmath.NewRect(0, 0, w, 1),
		vmath.NewRect(0, h-1, w, 1),
		vmath.NewRect(0, 0, 1, h),
		vmath.NewRect(w-1, 0, 1, h),
	}
}

func (d *demo) buildWalls() error {
	for i, r := range d.wallRects() {
		e := core.NewEntity(r)
		e.Tag = wallTag
		if _, err := d.sim.Register(e); err != nil {
			return fmt.Errorf("register wall: %w", err)
		}
		d.walls[i] = e
	}
	return nil
}

func (d *demo) spawnMany(n int) error {
	for i := 0; i < n; i++ {
		if err := d.spawn(); err != nil {
			return err
		}
	}
	return nil
}

// spawn places one mover at a free spot with random glyph, heading and speed
func (d *demo) spawn() error {
	if d.sim.Len()-len(d.walls) >= maxMovers {
		return nil
	}

	area := d.arena()
	width := float64(1 + d.rng.Intn(2))
	var r vmath.Rect
	placed := false
	for try := 0; try < spawnRetries && !placed; try++ {
		r = vmath.NewRect(
			math.Floor(d.rng.Range(area.Left(), math.Max(area.Left(), area.Right()-width))),
			math.Floor(d.rng.Range(area.Top(), math.Max(area.Top(), area.Bottom()-1))),
			width, 1,
		)
		placed = d.free(r)
	}
	if !placed {
		d.log.Debug("no free spot for spawn")
		return nil
	}

	e := core.NewEntity(r)
	v, err := d.sim.Register(e)
	if err != nil {
		return err
	}
	if err := v.SetBehavior(d.behavior); err != nil {
		return err
	}
	if err := v.SetAngle(vmath.Angle(d.rng.Range(0, 360))); err != nil {
		return err
	}
	if err := v.SetSpeed(d.rng.Range(d.maxSpeed/4, d.maxSpeed)); err != nil {
		return err
	}

	ch := glyphRunes[d.rng.Intn(len(glyphRunes))]
	e.Tag = string(ch)
	d.glyphs[e] = glyph{r: ch, style: styleFor(ch)}
	e.Disposed.Subscribe(func(x *core.Entity) {
		delete(d.glyphs, x)
		delete(d.flashes, x)
	})
	return nil
}

func (d *demo) free(r vmath.Rect) bool {
	d.tracked = d.sim.AppendTracked(d.tracked[:0])
	defer clear(d.tracked)
	for _, e := range d.tracked {
		if e.Bounds().Overlaps(r) {
			return false
		}
	}
	return true
}

// disposeOne removes a random mover
func (d *demo) disposeOne() {
	d.tracked = d.sim.AppendTracked(d.tracked[:0])
	defer clear(d.tracked)

	movers := d.tracked[:0:0]
	for _, e := range d.tracked {
		if e.Tag != wallTag {
			movers = append(movers, e)
		}
	}
	if len(movers) == 0 {
		return
	}
	movers[d.rng.Intn(len(movers))].Dispose()
}

// cycleBehavior switches every mover to the next behavior
func (d *demo) cycleBehavior() {
	d.behavior = (d.behavior + 1) % (component.BehaviorDoNothing + 1)
	d.tracked = d.sim.AppendTracked(d.tracked[:0])
	defer clear(d.tracked)

	for _, e := range d.tracked {
		if e.Tag == wallTag {
			continue
		}
		if v, ok := d.sim.Velocity(e); ok {
			_ = v.SetBehavior(d.behavior)
			// Stopped movers get a fresh kick so the change is visible
			if v.Speed() == 0 {
				_ = v.SetSpeed(d.rng.Range(d.maxSpeed/4, d.maxSpeed))
			}
		}
	}
	d.log.Info("behavior changed", zap.String("behavior", d.behavior.String()))
}

func (d *demo) onImpact(i physics.Impact) {
	now := time.Now()
	d.flashes[i.Struck] = now
	if i.Struck.Tag == wallTag {
		d.tone.hit(wallTone)
	} else {
		d.flashes[i.Moving] = now
		d.tone.hit(entityTone)
	}
}

func (d *demo) handleResize() {
	w, h := d.screen.Size()
	if w == d.width && h == d.height {
		return
	}
	d.width, d.height = w, h

	for i, r := range d.wallRects() {
		if err := d.walls[i].SetBounds(r); err != nil {
			d.log.Warn("wall resize failed", zap.Error(err))
		}
	}

	// Pull movers left outside back into the arena
	area := d.arena()
	d.tracked = d.sim.AppendTracked(d.tracked[:0])
	defer clear(d.tracked)
	for _, e := range d.tracked {
		if e.Tag == wallTag {
			continue
		}
		b := e.Bounds()
		x := vmath.Clamp(b.X, area.Left(), math.Max(area.Left(), area.Right()-b.Width))
		y := vmath.Clamp(b.Y, area.Top(), math.Max(area.Top(), area.Bottom()-b.Height))
		if x != b.X || y != b.Y {
			_ = e.MoveTo(x, y)
		}
	}
	d.screen.Sync()
}

// handleInput returns false to quit
func (d *demo) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() != tcell.KeyRune {
			return true
		}
		switch ev.Rune() {
		case 'q':
			return false
		case ' ':
			if d.sim.IsPaused() {
				d.sim.Resume()
			} else {
				d.sim.Pause()
			}
		case 's':
			if err := d.spawn(); err != nil {
				d.log.Warn("spawn failed", zap.Error(err))
			}
		case 'd':
			d.disposeOne()
		case 'b':
			d.cycleBehavior()
		case 'm':
			d.tone.toggle()
		case '+':
			_ = d.sim.SetSpeedRatio(math.Min(8, d.sim.SpeedRatio()*2))
		case '-':
			_ = d.sim.SetSpeedRatio(math.Max(0.125, d.sim.SpeedRatio()/2))
		}

	case *tcell.EventResize:
		d.handleResize()
	}
	return true
}

func (d *demo) draw() {
	d.screen.Clear()
	now := time.Now()

	d.tracked = d.sim.AppendTracked(d.tracked[:0])
	for _, e := range d.tracked {
		g, ok := d.glyphs[e]
		if e.Tag == wallTag {
			g, ok = glyph{r: '█', style: tcell.StyleDefault.Foreground(tcell.ColorGray)}, true
		}
		if !ok {
			continue
		}
		if at, hit := d.flashes[e]; hit {
			if now.Sub(at) < flashTime {
				g.style = g.style.Foreground(tcell.ColorRed)
			} else {
				delete(d.flashes, e)
			}
		}
		d.fill(e.Bounds(), g)
	}
	clear(d.tracked)

	state := "running"
	if d.sim.IsPaused() {
		state = "paused"
	}
	line := fmt.Sprintf(" %s x%.2f %s | %s | space pause, s spawn, d dispose, b behavior, +/- speed, m mute, q quit",
		state, d.sim.SpeedRatio(), d.behavior, d.metrics.Format(" "))
	d.text(0, d.height-1, line, tcell.StyleDefault.Reverse(true))
	d.screen.Show()
}

func (d *demo) fill(r vmath.Rect, g glyph) {
	x0, y0 := int(math.Round(r.X)), int(math.Round(r.Y))
	x1, y1 := x0+max(1, int(math.Round(r.Width))), y0+max(1, int(math.Round(r.Height)))
	for y := max(0, y0); y < min(y1, d.height-1); y++ {
		for x := max(0, x0); x < min(x1, d.width); x++ {
			d.screen.SetContent(x, y, g.r, nil, g.style)
		}
	}
}

func (d *demo) text(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		if x >= d.width {
			return
		}
		d.screen.SetContent(x, y, r, nil, style)
		x++
	}
	for ; x < d.width; x++ {
		d.screen.SetContent(x, y, ' ', nil, style)
	}
}

// run drives input polling and the frame loop until quit or ctx ends
func (d *demo) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	events := make(chan tcell.Event, 100)
	done := make(chan struct{})

	g.Go(func() error {
		for {
			ev := d.screen.PollEvent()
			if ev == nil {
				return nil
			}
			select {
			case events <- ev:
			case <-done:
				return nil
			}
		}
	})

	g.Go(func() error {
		defer close(done)
		defer d.screen.Fini()

		ticker := time.NewTicker(d.frame)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-events:
				if !d.handleInput(ev) {
					return nil
				}
			case <-ticker.C:
				d.sim.Step()
				d.draw()
			}
		}
	})

	return g.Wait()
}

func (d *demo) close() {
	d.tone.close()
}

func styleFor(ch rune) tcell.Style {
	switch {
	case ch >= 'a' && ch <= 'z':
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	case ch >= 'A' && ch <= 'Z':
		return tcell.StyleDefault.Foreground(tcell.ColorBlue)
	case ch >= '0' && ch <= '9':
		return tcell.StyleDefault.Foreground(tcell.ColorYellow)
	default:
		return tcell.StyleDefault.Foreground(tcell.ColorPurple)
	}
}
