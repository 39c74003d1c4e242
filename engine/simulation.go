package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lixenwraith/vi-motion/component"
	"github.com/lixenwraith/vi-motion/config"
	"github.com/lixenwraith/vi-motion/core"
	"github.com/lixenwraith/vi-motion/event"
	"github.com/lixenwraith/vi-motion/physics"
	"github.com/lixenwraith/vi-motion/registry"
	"github.com/lixenwraith/vi-motion/status"
	"github.com/lixenwraith/vi-motion/vmath"
)

// ErrEntityPanic wraps a panic recovered while evaluating one entity
var ErrEntityPanic = errors.New("entity evaluation panicked")

// Fault reports an entity whose evaluation panicked; the tick continued without it
type Fault struct {
	Entity *core.Entity
	Err    error
}

// Option configures a Simulation
type Option func(*Simulation)

// WithConfig replaces the default configuration; validated by New
func WithConfig(cfg config.Config) Option {
	return func(s *Simulation) { s.cfg = cfg }
}

// WithLogger sets the logger; the default discards
func WithLogger(log *zap.Logger) Option {
	return func(s *Simulation) {
		if log != nil {
			s.log = log
		}
	}
}

// WithStatus publishes metrics into reg instead of a private registry
func WithStatus(reg *status.Registry) Option {
	return func(s *Simulation) {
		if reg != nil {
			s.status = reg
		}
	}
}

// WithTimeProvider drives the simulation clock from p
func WithTimeProvider(p TimeProvider) Option {
	return func(s *Simulation) {
		if p != nil {
			s.provider = p
		}
	}
}

// binding ties a registered entity to its arena slot and its dispose hook
type binding struct {
	handle   registry.Handle
	disposal event.Subscription
}

// Simulation owns the registry and runs one evaluation pass per Step
// Single-threaded: Step, Register and velocity setters must be called from one goroutine
type Simulation struct {
	id       uuid.UUID
	cfg      config.Config
	log      *zap.Logger
	status   *status.Registry
	provider TimeProvider
	clock    *PausableClock

	registry   *registry.Registry
	detector   *physics.Detector
	evalParams component.EvalParams
	speedRatio float64
	bindings   map[uint64]binding

	// Per-tick scratch, reused across ticks; handles and candHandles run parallel
	// to tracked and candidates
	tracked     []*core.Entity
	handles     []registry.Handle
	snapshot    physics.Obstacles
	candidates  physics.Obstacles
	candHandles []registry.Handle
	prediction physics.HitPrediction
	query      []*core.Entity
	hashBuf    []byte

	stepping        bool
	removedThisTick int

	// Impacts fires once per impact, after the per-velocity notifications
	Impacts event.Observers[physics.Impact]
	// Faults fires for every recovered evaluation panic
	Faults event.Observers[Fault]

	ticks       *atomic.Int64
	evaluations *atomic.Int64
	skipped     *atomic.Int64
	impacts     *atomic.Int64
	faults      *atomic.Int64
	trackedN    *atomic.Int64
	stepMs      *status.AtomicFloat
	stepMaxMs   *status.AtomicFloat
	travelled   *status.AtomicFloat
	paused      *atomic.Bool
}

// New creates a running simulation
func New(opts ...Option) (*Simulation, error) {
	s := &Simulation{
		id:       uuid.New(),
		cfg:      config.Default(),
		log:      zap.NewNop(),
		status:   status.NewRegistry(),
		provider: NewMonotonicTimeProvider(),
		bindings: make(map[uint64]binding),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	sc := s.cfg.Simulation

	reg, err := registry.NewWithSize(sc.BucketCount, sc.BucketCapacity, sc.ArenaCapacity)
	if err != nil {
		return nil, err
	}
	det, err := physics.NewDetectorWith(sc.PreciseGranularity, sc.Epsilon)
	if err != nil {
		return nil, err
	}

	s.registry = reg
	s.detector = det
	s.evalParams = s.cfg.EvalParams()
	s.speedRatio = sc.SpeedRatio
	s.clock = NewPausableClockWith(s.provider)
	s.log = s.log.With(zap.String("sim", s.id.String()))
	s.prediction.Clear()

	s.ticks = s.status.Ints.Get(status.KeyTicks)
	s.evaluations = s.status.Ints.Get(status.KeyEvaluations)
	s.skipped = s.status.Ints.Get(status.KeySkipped)
	s.impacts = s.status.Ints.Get(status.KeyImpacts)
	s.faults = s.status.Ints.Get(status.KeyFaults)
	s.trackedN = s.status.Ints.Get(status.KeyTracked)
	s.stepMs = s.status.Floats.Get(status.KeyStepMs)
	s.stepMaxMs = s.status.Floats.Get(status.KeyStepMaxMs)
	s.travelled = s.status.Floats.Get(status.KeyTravelled)
	s.paused = s.status.Bools.Get(status.KeyPaused)
	s.status.Strings.Get(status.KeyInstance).Store(s.id.String())

	s.log.Debug("simulation created",
		zap.Int("buckets", sc.BucketCount),
		zap.Int("arena", sc.ArenaCapacity),
		zap.Float64("speed_ratio", sc.SpeedRatio),
	)
	return s, nil
}

// ID returns the instance id used in logs and the status registry
func (s *Simulation) ID() uuid.UUID { return s.id }

func (s *Simulation) Config() config.Config { return s.cfg }

func (s *Simulation) Status() *status.Registry { return s.status }

// Clock returns the simulation stopwatch
func (s *Simulation) Clock() *PausableClock { return s.clock }

// Len returns the number of registered entities
func (s *Simulation) Len() int { return s.registry.Len() }

// Register adds e and returns its stationary velocity
// Disposing e unregisters it
func (s *Simulation) Register(e *core.Entity) (*component.Velocity, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil entity", core.ErrInvalidArgument)
	}
	v, err := component.NewVelocity(s.clock, s.evalParams)
	if err != nil {
		return nil, err
	}
	h, err := s.registry.Add(e, v)
	if err != nil {
		return nil, err
	}
	s.bindings[e.ID()] = binding{
		handle:   h,
		disposal: e.Disposed.Subscribe(func(x *core.Entity) {
			s.Unregister(x)
		}),
	}
	s.trackedN.Store(int64(s.registry.Len()))
	s.log.Debug("entity registered", zap.Stringer("entity", e))
	return v, nil
}

// Unregister removes e and releases its velocity; false if e was not registered
func (s *Simulation) Unregister(e *core.Entity) bool {
	if e == nil || !s.registry.Remove(e) {
		return false
	}
	if b, ok := s.bindings[e.ID()]; ok {
		e.Disposed.Unsubscribe(b.disposal)
		delete(s.bindings, e.ID())
	}
	if s.stepping {
		s.removedThisTick++
	}
	s.trackedN.Store(int64(s.registry.Len()))
	s.log.Debug("entity unregistered", zap.Stringer("entity", e))
	return true
}

// Velocity returns the velocity registered for e
func (s *Simulation) Velocity(e *core.Entity) (*component.Velocity, bool) {
	if e == nil {
		return nil, false
	}
	b, ok := s.bindings[e.ID()]
	if !ok {
		return nil, false
	}
	v, owner, ok := s.registry.Resolve(b.handle)
	if !ok || owner != e {
		return nil, false
	}
	return v, true
}

// AppendTracked appends registered entities in evaluation order
func (s *Simulation) AppendTracked(dst []*core.Entity) []*core.Entity {
	return s.registry.AppendTracked(dst)
}

// SpeedRatio returns the time scale applied to elapsed time
func (s *Simulation) SpeedRatio() float64 { return s.speedRatio }

// SetSpeedRatio scales simulated time; 2 runs twice as fast
func (s *Simulation) SetSpeedRatio(r float64) error {
	if !(r > 0) || !vmath.IsFinite(r) {
		return fmt.Errorf("%w: speed ratio %v", core.ErrInvalidArgument, r)
	}
	s.speedRatio = r
	return nil
}

// Pause freezes simulated time
func (s *Simulation) Pause() {
	s.clock.Pause()
	s.paused.Store(true)
}

// Resume continues simulated time from where it was paused
func (s *Simulation) Resume() {
	s.clock.Resume()
	s.paused.Store(false)
}

func (s *Simulation) IsPaused() bool { return s.clock.IsPaused() }

// Step evaluates every registered entity whose interval has elapsed
// Obstacle bounds are snapshotted once; each mover writes its new bounds back into the snapshot,
// so entities later in the order see earlier movers at their updated positions
func (s *Simulation) Step() {
	if s.stepping {
		s.log.Warn("nested step ignored")
		return
	}
	start := time.Now()
	s.stepping = true
	s.removedThisTick = 0
	defer func() { s.stepping = false }()

	s.tracked = s.registry.AppendTracked(s.tracked[:0])
	s.handles = s.registry.AppendHandles(s.handles[:0])
	s.snapshot.Reset()
	for _, e := range s.tracked {
		s.snapshot.Append(e, e.Bounds())
	}

	now := s.clock.Elapsed()
	for i, e := range s.tracked {
		s.evaluate(i, e, now)
	}

	clear(s.tracked)
	s.handles = s.handles[:0]
	s.snapshot.Reset()
	s.candidates.Reset()
	s.candHandles = s.candHandles[:0]
	s.ticks.Add(1)
	ms := float64(time.Since(start).Microseconds()) / 1000
	s.stepMs.Set(ms)
	s.stepMaxMs.Max(ms)
}

func (s *Simulation) evaluate(i int, e *core.Entity, now time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			s.fault(e, r)
		}
	}()

	v, owner, ok := s.registry.Resolve(s.handles[i])
	if !ok || owner != e || e.IsDisposed() {
		return
	}

	if v.DueAt(now) {
		s.advance(i, e, v, now)
	} else {
		s.skipped.Add(1)
	}

	if !v.Released() && v.Enforced.Len() > 0 {
		v.Enforced.Fire(v)
	}
}

// advance moves e by the distance covered since its last evaluation, clamping at the first obstacle
func (s *Simulation) advance(i int, e *core.Entity, v *component.Velocity, now time.Duration) {
	elapsed := now - v.LastEvaluation()
	v.MarkEvaluated(now)

	d := v.Speed() * elapsed.Seconds() * s.speedRatio
	if !(d > 0) || !vmath.IsFinite(d) {
		return
	}
	s.evaluations.Add(1)

	from := e.Bounds()
	angle := v.Angle()
	p := &s.prediction

	s.buildCandidates(i, e)
	s.detector.Predict(from, angle, s.candidates, d*s.cfg.Simulation.LookaheadFactor, physics.CastPrecise, p)
	v.StorePrediction(p)

	if !p.CollisionPredicted || p.Distance > d {
		if err := e.SetBounds(from.OffsetByAngle(angle, d)); err != nil {
			panic(err)
		}
		s.snapshot.Bounds[i] = e.Bounds()
		s.travelled.Add(d)
		return
	}

	if err := e.SetBounds(from.MoveTo(p.LKG.X, p.LKG.Y)); err != nil {
		panic(err)
	}
	s.snapshot.Bounds[i] = e.Bounds()
	s.travelled.Add(p.LKGD)

	if v.Clamped.Len() > 0 {
		v.Clamped.Fire(component.Clamp{
			Entity:    e,
			From:      from.Location(),
			To:        p.LKG,
			Requested: d,
			Allowed:   p.LKGD,
		})
	}

	impact := physics.Impact{
		Moving:     e,
		Struck:     p.ObstacleHit,
		Angle:      angle,
		Type:       p.Type,
		Prediction: *p,
	}
	s.impacts.Add(1)
	v.Impacted.Fire(impact)
	if sv, struck, ok := s.registry.Resolve(s.candHandles[p.ObstacleIndex]); ok && struck == impact.Struck && sv.Impacted.Len() > 0 {
		sv.Impacted.Fire(impact.Mirror())
	}
	s.Impacts.Fire(impact)

	if e.IsDisposed() || v.Released() {
		return
	}

	switch v.Behavior() {
	case component.BehaviorStop:
		_ = v.Stop()
	case component.BehaviorBounce:
		if impact.Prediction.Edge.Side.Horizontal() {
			_ = v.SetAngle(angle.ReflectHorizontal())
		} else {
			_ = v.SetAngle(angle.ReflectVertical())
		}
	case component.BehaviorDoNothing:
	}
}

// buildCandidates fills the candidate set for snapshot index i from the snapshot
func (s *Simulation) buildCandidates(i int, e *core.Entity) {
	s.candidates.Reset()
	s.candHandles = s.candHandles[:0]
	for j, o := range s.snapshot.Entities {
		if j == i || !e.CanCollideWith(o) || !o.CanCollideWith(e) {
			continue
		}
		if s.removedThisTick > 0 {
			if _, _, ok := s.registry.Resolve(s.handles[j]); !ok {
				continue
			}
		}
		s.candidates.Append(o, s.snapshot.Bounds[j])
		s.candHandles = append(s.candHandles, s.handles[j])
	}
}

func (s *Simulation) fault(e *core.Entity, r any) {
	var err error
	if re, ok := r.(error); ok {
		err = fmt.Errorf("%w: %s: %w", ErrEntityPanic, e, re)
	} else {
		err = fmt.Errorf("%w: %s: %v", ErrEntityPanic, e, r)
	}

	s.faults.Add(1)
	s.log.Error("entity evaluation failed",
		zap.Stringer("entity", e),
		zap.Error(err),
		zap.Stack("stack"),
	)
	s.Faults.Fire(Fault{Entity: e, Err: err})
}

// Obstacles appends every registered entity that exclude may collide with, at current bounds
func (s *Simulation) Obstacles(exclude *core.Entity, dst physics.Obstacles) physics.Obstacles {
	s.query = s.registry.AppendTracked(s.query[:0])
	for _, o := range s.query {
		if exclude != nil && (!exclude.CanCollideWith(o) || !o.CanCollideWith(exclude)) {
			continue
		}
		if o == exclude || o.IsDisposed() {
			continue
		}
		dst.Append(o, o.Bounds())
	}
	clear(s.query)
	return dst
}

// Predict runs a look-ahead query for e outside the tick
// e need not be registered; it is never its own obstacle
func (s *Simulation) Predict(
	e *core.Entity,
	angle vmath.Angle,
	visibility float64,
	mode physics.CastingMode,
	out *physics.HitPrediction,
) error {
	if e == nil || out == nil {
		return fmt.Errorf("%w: nil entity or output", core.ErrInvalidArgument)
	}
	if e.IsDisposed() {
		return core.ErrDisposed
	}
	s.candidates.Reset()
	s.candidates = s.Obstacles(e, s.candidates)
	s.detector.Predict(e.Bounds(), angle, s.candidates, visibility, mode, out)
	s.candidates.Reset()
	return nil
}

// Lookahead predicts where e's current heading leads within horizon of scaled time
// Unlike Predict, e must be registered: angle and speed come from its velocity
func (s *Simulation) Lookahead(e *core.Entity, horizon time.Duration, out *physics.HitPrediction) error {
	if e == nil || out == nil || horizon < 0 {
		return fmt.Errorf("%w: lookahead %v", core.ErrInvalidArgument, horizon)
	}
	v, ok := s.registry.TryGet(e)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNotRegistered, e)
	}
	dist := v.Speed() * horizon.Seconds() * s.speedRatio
	return s.Predict(e, v.Angle(), dist, physics.CastPrecise, out)
}

// Fingerprint hashes ids, bounds and motion state of every registered entity in evaluation order
// Two simulations fed identical inputs produce identical fingerprints
func (s *Simulation) Fingerprint() uint64 {
	d := xxhash.New()
	s.query = s.registry.AppendTracked(s.query[:0])
	for _, e := range s.query {
		b := e.Bounds()
		buf := s.hashBuf[:0]
		buf = binary.LittleEndian.AppendUint64(buf, e.ID())
		for _, f := range [4]float64{b.X, b.Y, b.Width, b.Height} {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
		}
		if v, ok := s.registry.TryGet(e); ok {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(float64(v.Angle())))
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Speed()))
			buf = append(buf, byte(v.Behavior()))
		}
		_, _ = d.Write(buf)
		s.hashBuf = buf
	}
	clear(s.query)
	return d.Sum64()
}
