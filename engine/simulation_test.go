package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/vi-motion/component"
	"github.com/lixenwraith/vi-motion/config"
	"github.com/lixenwraith/vi-motion/core"
	"github.com/lixenwraith/vi-motion/parameter"
	"github.com/lixenwraith/vi-motion/physics"
	"github.com/lixenwraith/vi-motion/status"
	"github.com/lixenwraith/vi-motion/vmath"
)

func newTestSim(t *testing.T, opts ...Option) (*Simulation, *MockTimeProvider) {
	t.Helper()
	mock := NewMockTimeProvider(epoch)
	sim, err := New(append([]Option{WithTimeProvider(mock)}, opts...)...)
	require.NoError(t, err)
	return sim, mock
}

// spawn registers a rect moving at speed along angle
func spawn(t *testing.T, sim *Simulation, r vmath.Rect, angle vmath.Angle, speed float64) (*core.Entity, *component.Velocity) {
	t.Helper()
	e := core.NewEntity(r)
	v, err := sim.Register(e)
	require.NoError(t, err)
	require.NoError(t, v.SetAngle(angle))
	require.NoError(t, v.SetSpeed(speed))
	return e, v
}

func TestStepAdvancesWithoutObstacles(t *testing.T) {
	sim, mock := newTestSim(t)
	e, v := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), vmath.Right, 10)
	_, _ = spawn(t, sim, vmath.NewRect(5, 0, 1, 1), vmath.Right, 0)

	clamped := 0
	v.Clamped.Subscribe(func(component.Clamp) { clamped++ })

	mock.Advance(100 * time.Millisecond)
	sim.Step()

	assert.InDelta(t, 1, e.Bounds().X, 1e-9)
	assert.Equal(t, 0.0, e.Bounds().Y)
	assert.Zero(t, clamped)
	assert.False(t, v.NextCollision().CollisionPredicted)
	assert.Equal(t, 100*time.Millisecond, v.LastEvaluation())
	assert.InDelta(t, 1, sim.Status().Floats.Get(status.KeyTravelled).Get(), 1e-9)
	assert.GreaterOrEqual(t, sim.Status().Floats.Get(status.KeyStepMaxMs).Get(), 0.0)
}

func TestStepWaitsForInterval(t *testing.T) {
	sim, mock := newTestSim(t)
	e, v := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), vmath.Right, 10)

	mock.Advance(v.EvalInterval() - time.Millisecond)
	sim.Step()
	assert.Equal(t, 0.0, e.Bounds().X)

	mock.Advance(time.Millisecond)
	sim.Step()
	assert.Greater(t, e.Bounds().X, 0.0)
	assert.Equal(t, int64(1), sim.Status().Ints.Get(status.KeySkipped).Load())
	assert.Equal(t, int64(1), sim.Status().Ints.Get(status.KeyEvaluations).Load())
}

func TestStepStopsAtObstacle(t *testing.T) {
	sim, mock := newTestSim(t)
	e, v := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), vmath.Right, 10)
	wall, wv := spawn(t, sim, vmath.NewRect(2, 0, 1, 1), vmath.Right, 0)

	var clamps []component.Clamp
	var hits, mirrored, global []physics.Impact
	v.Clamped.Subscribe(func(c component.Clamp) { clamps = append(clamps, c) })
	v.Impacted.Subscribe(func(i physics.Impact) { hits = append(hits, i) })
	wv.Impacted.Subscribe(func(i physics.Impact) { mirrored = append(mirrored, i) })
	sim.Impacts.Subscribe(func(i physics.Impact) { global = append(global, i) })

	mock.Advance(200 * time.Millisecond)
	sim.Step()

	assert.InDelta(t, 1-parameter.Epsilon, e.Bounds().X, 1e-9)
	assert.Zero(t, v.Speed(), "stop behavior")

	require.Len(t, clamps, 1)
	assert.InDelta(t, 2, clamps[0].Requested, 1e-9)
	assert.InDelta(t, 1-parameter.Epsilon, clamps[0].Allowed, 1e-9)

	require.Len(t, hits, 1)
	assert.Same(t, e, hits[0].Moving)
	assert.Same(t, wall, hits[0].Struck)
	assert.Equal(t, vmath.SideLeft, hits[0].Prediction.Edge.Side)

	require.Len(t, mirrored, 1)
	assert.Same(t, wall, mirrored[0].Moving)
	assert.Equal(t, vmath.Left, mirrored[0].Angle)

	require.Len(t, global, 1)
	assert.True(t, v.NextCollision().CollisionPredicted)
	assert.Equal(t, int64(1), sim.Status().Ints.Get(status.KeyImpacts).Load())
}

func TestStepBounceReflection(t *testing.T) {
	tests := []struct {
		name    string
		wall    vmath.Rect
		angle   vmath.Angle
		advance time.Duration
		want    vmath.Angle
	}{
		{"Vertical face head on", vmath.NewRect(2, 0, 1, 1), vmath.Right, 200 * time.Millisecond, vmath.Left},
		{"Horizontal face head on", vmath.NewRect(-2, 3, 5, 1), vmath.Down, 300 * time.Millisecond, vmath.Up},
		{"Vertical face diagonal", vmath.NewRect(3, -10, 1, 30), 45, 400 * time.Millisecond, 135},
		{"Horizontal face diagonal", vmath.NewRect(-10, 3, 30, 1), 45, 400 * time.Millisecond, 315},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, mock := newTestSim(t)
			_, v := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), tt.angle, 10)
			require.NoError(t, v.SetBehavior(component.BehaviorBounce))
			_, _ = spawn(t, sim, tt.wall, vmath.Right, 0)

			mock.Advance(tt.advance)
			sim.Step()

			assert.InDelta(t, float64(tt.want), float64(v.Angle()), 1e-9)
			assert.Equal(t, 10.0, v.Speed(), "bounce keeps speed")
		})
	}
}

func TestStepOneClampAndAngleChangePerTick(t *testing.T) {
	sim, mock := newTestSim(t)
	_, v := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), vmath.Right, 10)
	require.NoError(t, v.SetBehavior(component.BehaviorBounce))
	// Two faces at the same distance, split across the mover's height
	_, _ = spawn(t, sim, vmath.NewRect(2, -0.2, 1, 0.6), vmath.Right, 0)
	_, _ = spawn(t, sim, vmath.NewRect(2, 0.4, 1, 0.6), vmath.Right, 0)

	clamps, turns := 0, 0
	v.Clamped.Subscribe(func(component.Clamp) { clamps++ })
	v.AngleChanged.Subscribe(func(vmath.Angle) { turns++ })

	mock.Advance(200 * time.Millisecond)
	sim.Step()

	assert.Equal(t, 1, clamps)
	assert.Equal(t, 1, turns)
	assert.Equal(t, vmath.Left, v.Angle())
}

func TestStepDoNothingHoldsAtContact(t *testing.T) {
	sim, mock := newTestSim(t)
	e, v := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), vmath.Right, 10)
	require.NoError(t, v.SetBehavior(component.BehaviorDoNothing))
	_, _ = spawn(t, sim, vmath.NewRect(2, 0, 1, 1), vmath.Right, 0)

	var allowed []float64
	v.Clamped.Subscribe(func(c component.Clamp) { allowed = append(allowed, c.Allowed) })

	for i := 0; i < 3; i++ {
		mock.Advance(200 * time.Millisecond)
		sim.Step()
	}

	assert.InDelta(t, 1-parameter.Epsilon, e.Bounds().X, 1e-9)
	assert.Equal(t, 10.0, v.Speed())
	assert.Equal(t, vmath.Right, v.Angle())
	require.Len(t, allowed, 3)
	assert.InDelta(t, 0, allowed[2], 1e-9)
}

func TestStepSnapshotSeesEarlierMovers(t *testing.T) {
	sim, mock := newTestSim(t)
	// a is evaluated before b: ids 1 and 2 land in buckets 1 and 2
	a, _ := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), vmath.Right, 10)
	b, bv := spawn(t, sim, vmath.NewRect(2.5, 0, 1, 1), vmath.Left, 10)

	mock.Advance(100 * time.Millisecond)
	sim.Step()

	assert.InDelta(t, 1, a.Bounds().X, 1e-9)
	// b saw a at its new position and stopped short of it
	assert.InDelta(t, 2+parameter.Epsilon, b.Bounds().X, 1e-9)
	assert.Zero(t, bv.Speed())
	assert.False(t, a.Bounds().Overlaps(b.Bounds()))
}

func TestStepHeartbeatForEveryEntity(t *testing.T) {
	sim, mock := newTestSim(t)
	_, moving := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), vmath.Right, 10)
	_, still := spawn(t, sim, vmath.NewRect(9, 9, 1, 1), vmath.Right, 0)

	beats := map[*component.Velocity]int{}
	for _, v := range []*component.Velocity{moving, still} {
		v.Enforced.Subscribe(func(x *component.Velocity) { beats[x]++ })
	}

	for i := 0; i < 4; i++ {
		mock.Advance(time.Millisecond)
		sim.Step()
	}

	assert.Equal(t, 4, beats[moving])
	assert.Equal(t, 4, beats[still])
	assert.Equal(t, int64(4), sim.Status().Ints.Get(status.KeyTicks).Load())
}

func TestStepPauseFreezesMotion(t *testing.T) {
	sim, mock := newTestSim(t)
	e, _ := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), vmath.Right, 10)

	sim.Pause()
	assert.True(t, sim.IsPaused())
	assert.True(t, sim.Status().Bools.Get(status.KeyPaused).Load())
	mock.Advance(time.Second)
	sim.Step()
	assert.Equal(t, 0.0, e.Bounds().X)

	sim.Resume()
	mock.Advance(100 * time.Millisecond)
	sim.Step()
	assert.InDelta(t, 1, e.Bounds().X, 1e-9, "paused time is not simulated")
}

func TestStepIsolatesFaults(t *testing.T) {
	sim, mock := newTestSim(t)
	bad, bv := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), vmath.Right, 10)
	good, _ := spawn(t, sim, vmath.NewRect(0, 5, 1, 1), vmath.Right, 10)
	bv.Enforced.Subscribe(func(*component.Velocity) { panic("handler exploded") })

	var faults []Fault
	sim.Faults.Subscribe(func(f Fault) { faults = append(faults, f) })

	mock.Advance(100 * time.Millisecond)
	sim.Step()

	require.Len(t, faults, 1)
	assert.Same(t, bad, faults[0].Entity)
	assert.ErrorIs(t, faults[0].Err, ErrEntityPanic)
	assert.Contains(t, faults[0].Err.Error(), "handler exploded")
	assert.InDelta(t, 1, good.Bounds().X, 1e-9, "later entities still run")
	assert.Equal(t, int64(1), sim.Status().Ints.Get(status.KeyFaults).Load())
}

func TestStepStruckEntityDisposedByHandler(t *testing.T) {
	sim, mock := newTestSim(t)
	mover, mv := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), vmath.Right, 10)
	target, _ := spawn(t, sim, vmath.NewRect(2, 0, 1, 1), vmath.Left, 10)
	mv.Impacted.Subscribe(func(i physics.Impact) { i.Struck.Dispose() })

	mock.Advance(150 * time.Millisecond)
	sim.Step()

	assert.True(t, target.IsDisposed())
	assert.Equal(t, 2.0, target.Bounds().X, "disposed entity is not processed")
	assert.Equal(t, 1, sim.Len())
	_, ok := sim.Velocity(target)
	assert.False(t, ok)
	assert.Less(t, mover.Bounds().X, 1.0)
}

func TestStepIgnoresObstacleDisposedEarlierInTick(t *testing.T) {
	sim, mock := newTestSim(t)
	_, trigger := spawn(t, sim, vmath.NewRect(0, 10, 1, 1), vmath.Right, 0)
	wall, _ := spawn(t, sim, vmath.NewRect(2, 0, 1, 1), vmath.Right, 0)
	mover, _ := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), vmath.Right, 10)
	trigger.Enforced.Subscribe(func(*component.Velocity) { wall.Dispose() })

	mock.Advance(200 * time.Millisecond)
	sim.Step()

	assert.InDelta(t, 2, mover.Bounds().X, 1e-9, "mover passes the disposed wall")
}

func TestStepMoverDisposedByOwnImpact(t *testing.T) {
	sim, mock := newTestSim(t)
	mover, mv := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), vmath.Right, 10)
	require.NoError(t, mv.SetBehavior(component.BehaviorBounce))
	_, _ = spawn(t, sim, vmath.NewRect(2, 0, 1, 1), vmath.Right, 0)

	turned := 0
	mv.AngleChanged.Subscribe(func(vmath.Angle) { turned++ })
	mv.Impacted.Subscribe(func(physics.Impact) { mover.Dispose() })

	mock.Advance(200 * time.Millisecond)
	sim.Step()

	assert.Zero(t, turned)
	assert.True(t, mv.Released())
	assert.Equal(t, 1, sim.Len())
}

func TestStepCollisionFilter(t *testing.T) {
	sim, mock := newTestSim(t)
	ghost, _ := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), vmath.Right, 10)
	ghost.Tag = "ghost"
	wall, _ := spawn(t, sim, vmath.NewRect(2, 0, 1, 1), vmath.Right, 0)
	require.NoError(t, wall.SetCollisionFilter(func(o *core.Entity) bool { return o.Tag != "ghost" }))

	mock.Advance(200 * time.Millisecond)
	sim.Step()

	assert.InDelta(t, 2, ghost.Bounds().X, 1e-9, "the wall rejects ghosts, so the pair is skipped")
}

func TestSpeedRatioScalesDistance(t *testing.T) {
	sim, mock := newTestSim(t)
	e, _ := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), vmath.Down, 10)

	require.NoError(t, sim.SetSpeedRatio(2))
	assert.ErrorIs(t, sim.SetSpeedRatio(0), core.ErrInvalidArgument)
	assert.Equal(t, 2.0, sim.SpeedRatio())

	mock.Advance(100 * time.Millisecond)
	sim.Step()
	assert.InDelta(t, 2, e.Bounds().Y, 1e-9)
}

func TestRegisterLifecycle(t *testing.T) {
	sim, _ := newTestSim(t)

	_, err := sim.Register(nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	e := core.NewEntity(vmath.NewRect(0, 0, 1, 1))
	v, err := sim.Register(e)
	require.NoError(t, err)
	_, err = sim.Register(e)
	assert.ErrorIs(t, err, core.ErrAlreadyRegistered)

	got, ok := sim.Velocity(e)
	require.True(t, ok)
	assert.Same(t, v, got)
	assert.Equal(t, 1, sim.Len())

	e.Dispose()
	assert.Zero(t, sim.Len())
	assert.True(t, v.Released())
	assert.False(t, sim.Unregister(e))
	assert.ErrorIs(t, v.SetSpeed(1), core.ErrDisposed)

	_, err = sim.Register(e)
	assert.ErrorIs(t, err, core.ErrDisposed)
}

func TestRegisterRejectsEntityOfAnotherSimulation(t *testing.T) {
	a, _ := newTestSim(t)
	b, _ := newTestSim(t)
	for i := 0; i < 5; i++ {
		spawn(t, a, vmath.NewRect(float64(2*i), 5, 1, 1), vmath.Right, 0)
	}

	e := core.NewEntity(vmath.NewRect(0, 0, 1, 1))
	va, err := a.Register(e)
	require.NoError(t, err)
	id := e.ID()

	_, err = b.Register(e)
	assert.ErrorIs(t, err, core.ErrAlreadyRegistered)
	assert.Equal(t, id, e.ID())
	assert.False(t, b.Unregister(e))

	got, ok := a.Velocity(e)
	require.True(t, ok)
	assert.Same(t, va, got)
	_, ok = b.Velocity(e)
	assert.False(t, ok)

	e.Dispose()
	assert.Equal(t, 5, a.Len())
	assert.Zero(t, b.Len())
	_, bound := a.bindings[id]
	assert.False(t, bound, "dispose hook and handle dropped")
}

func TestUnregisterDetachesDisposeHook(t *testing.T) {
	sim, _ := newTestSim(t)
	e := core.NewEntity(vmath.NewRect(0, 0, 1, 1))
	_, err := sim.Register(e)
	require.NoError(t, err)

	require.True(t, sim.Unregister(e))
	assert.Zero(t, e.Disposed.Len())

	_, err = sim.Register(e)
	require.NoError(t, err, "a removed entity may be registered again")
	assert.Equal(t, 1, e.Disposed.Len())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Simulation.ArenaCapacity = 0
	_, err := New(WithConfig(cfg))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	cfg = config.Default()
	cfg.Evaluation.MostFrequent = 0
	_, err = New(WithConfig(cfg))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestSimulationPredict(t *testing.T) {
	sim, _ := newTestSim(t)
	e, _ := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), vmath.Right, 0)
	wall, _ := spawn(t, sim, vmath.NewRect(3, 0, 1, 1), vmath.Right, 0)

	var p physics.HitPrediction
	require.NoError(t, sim.Predict(e, vmath.Right, 5, physics.CastPrecise, &p))
	require.True(t, p.CollisionPredicted)
	assert.Same(t, wall, p.ObstacleHit)
	assert.InDelta(t, 2, p.Distance, 1e-9)

	require.NoError(t, sim.Predict(e, vmath.Left, 5, physics.CastPrecise, &p))
	assert.False(t, p.CollisionPredicted)

	obs := sim.Obstacles(e, physics.Obstacles{})
	assert.Equal(t, 1, obs.Len())
	assert.Equal(t, 2, sim.Obstacles(nil, physics.Obstacles{}).Len())

	assert.ErrorIs(t, sim.Predict(nil, vmath.Right, 1, physics.CastPrecise, &p), core.ErrInvalidArgument)
}

func TestSimulationLookahead(t *testing.T) {
	sim, _ := newTestSim(t)
	e, _ := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), vmath.Right, 10)
	wall, _ := spawn(t, sim, vmath.NewRect(5, 0, 1, 1), vmath.Right, 0)

	var p physics.HitPrediction
	require.NoError(t, sim.Lookahead(e, 100*time.Millisecond, &p))
	assert.False(t, p.CollisionPredicted, "1 cell of travel stops short of a 4 cell gap")

	require.NoError(t, sim.Lookahead(e, time.Second, &p))
	require.True(t, p.CollisionPredicted)
	assert.Same(t, wall, p.ObstacleHit)
	assert.InDelta(t, 4, p.Distance, 1e-9)

	stray := core.NewEntity(vmath.NewRect(0, 5, 1, 1))
	assert.ErrorIs(t, sim.Lookahead(stray, time.Second, &p), core.ErrNotRegistered)
	assert.ErrorIs(t, sim.Lookahead(e, -time.Second, &p), core.ErrInvalidArgument)
}

func TestNestedStepIgnored(t *testing.T) {
	sim, mock := newTestSim(t)
	_, v := spawn(t, sim, vmath.NewRect(0, 0, 1, 1), vmath.Right, 0)
	v.Enforced.Subscribe(func(*component.Velocity) { sim.Step() })

	mock.Advance(time.Millisecond)
	sim.Step()
	assert.Equal(t, int64(1), sim.Status().Ints.Get(status.KeyTicks).Load())
}

func TestFingerprintDeterministic(t *testing.T) {
	run := func() (uint64, *Simulation) {
		sim, mock := newTestSim(t)
		rng := vmath.NewFastRand(42)
		for i := 0; i < 40; i++ {
			r := vmath.NewRect(rng.Range(0, 60), rng.Range(0, 30), 1, 1)
			_, v := spawn(t, sim, r, vmath.Angle(rng.Range(0, 360)), rng.Range(0, 40))
			require.NoError(t, v.SetBehavior(component.BehaviorBounce))
		}
		for i := 0; i < 60; i++ {
			mock.Advance(parameter.FrameUpdateInterval)
			sim.Step()
		}
		return sim.Fingerprint(), sim
	}

	a, simA := run()
	b, simB := run()
	assert.Equal(t, a, b)
	assert.NotEqual(t, simA.ID(), simB.ID())

	first := simA.AppendTracked(nil)[0]
	require.NoError(t, first.MoveBy(0.5, 0))
	assert.NotEqual(t, a, simA.Fingerprint())
}

func TestStepSteadyStateAllocations(t *testing.T) {
	sim, mock := newTestSim(t)
	for i := 0; i < 20; i++ {
		_, v := spawn(t, sim, vmath.NewRect(float64(i*3), 0, 1, 1), vmath.Down, 5)
		require.NoError(t, v.SetBehavior(component.BehaviorBounce))
	}
	_, _ = spawn(t, sim, vmath.NewRect(-5, 20, 100, 1), vmath.Right, 0)
	_, _ = spawn(t, sim, vmath.NewRect(-5, -2, 100, 1), vmath.Right, 0)

	mock.Advance(parameter.FrameUpdateInterval)
	sim.Step()

	allocs := testing.AllocsPerRun(50, func() {
		mock.Advance(parameter.FrameUpdateInterval)
		sim.Step()
	})
	assert.Zero(t, allocs)
}

func BenchmarkStep(b *testing.B) {
	mock := NewMockTimeProvider(epoch)
	sim, err := New(WithTimeProvider(mock))
	if err != nil {
		b.Fatal(err)
	}
	rng := vmath.NewFastRand(1)
	for i := 0; i < 1000; i++ {
		e := core.NewEntity(vmath.NewRect(rng.Range(0, 200), rng.Range(0, 60), 1, 1))
		v, err := sim.Register(e)
		if err != nil {
			b.Fatal(err)
		}
		_ = v.SetAngle(vmath.Angle(rng.Range(0, 360)))
		_ = v.SetSpeed(rng.Range(0, 30))
		_ = v.SetBehavior(component.BehaviorBounce)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mock.Advance(parameter.FrameUpdateInterval)
		sim.Step()
	}
}
