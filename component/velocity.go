package component

import (
	"fmt"
	"time"

	"github.com/lixenwraith/vi-motion/core"
	"github.com/lixenwraith/vi-motion/event"
	"github.com/lixenwraith/vi-motion/parameter"
	"github.com/lixenwraith/vi-motion/physics"
	"github.com/lixenwraith/vi-motion/vmath"
)

// Behavior selects the response to a predicted impact
type Behavior uint8

const (
	// BehaviorStop zeroes speed at the contact point
	BehaviorStop Behavior = iota
	// BehaviorBounce reflects the angle about the struck face, keeping speed
	BehaviorBounce
	// BehaviorDoNothing holds the mover at the contact point and leaves angle and speed alone
	BehaviorDoNothing
)

func (b Behavior) String() string {
	switch b {
	case BehaviorStop:
		return "stop"
	case BehaviorBounce:
		return "bounce"
	case BehaviorDoNothing:
		return "none"
	}
	return "unknown"
}

// ParseBehavior maps a config or flag string to a Behavior
func ParseBehavior(s string) (Behavior, error) {
	switch s {
	case "stop", "":
		return BehaviorStop, nil
	case "bounce":
		return BehaviorBounce, nil
	case "none", "nothing":
		return BehaviorDoNothing, nil
	}
	return BehaviorStop, fmt.Errorf("%w: behavior %q", core.ErrInvalidArgument, s)
}

// EvalParams maps speed to an evaluation interval
type EvalParams struct {
	MostFrequent         time.Duration
	LeastFrequent        time.Duration
	SpeedForMostFrequent float64
}

// DefaultEvalParams returns the compiled-in scheduling curve
func DefaultEvalParams() EvalParams {
	return EvalParams{
		MostFrequent:         parameter.EvalMostFrequent,
		LeastFrequent:        parameter.EvalLeastFrequent,
		SpeedForMostFrequent: parameter.EvalSpeedForMostFrequent,
	}
}

// Validate rejects non-positive delays, an inverted range, or a non-positive speed anchor
func (p EvalParams) Validate() error {
	if p.MostFrequent <= 0 || p.LeastFrequent <= 0 {
		return fmt.Errorf("%w: evaluation delays must be positive (%v, %v)",
			core.ErrInvalidArgument, p.MostFrequent, p.LeastFrequent)
	}
	if p.MostFrequent > p.LeastFrequent {
		return fmt.Errorf("%w: most frequent %v exceeds least frequent %v",
			core.ErrInvalidArgument, p.MostFrequent, p.LeastFrequent)
	}
	if !(p.SpeedForMostFrequent > 0) || !vmath.IsFinite(p.SpeedForMostFrequent) {
		return fmt.Errorf("%w: speed for most frequent %v", core.ErrInvalidArgument, p.SpeedForMostFrequent)
	}
	return nil
}

// Interval returns the evaluation delay for speed, linear between the two anchors
func (p EvalParams) Interval(speed float64) time.Duration {
	if !(speed > 0) {
		return p.LeastFrequent
	}
	ratio := min(1, speed/p.SpeedForMostFrequent)
	span := float64(p.LeastFrequent - p.MostFrequent)
	d := p.LeastFrequent - time.Duration(span*ratio)
	return max(p.MostFrequent, min(p.LeastFrequent, d))
}

// Clamp reports a move cut short at the last known good position
type Clamp struct {
	Entity    *core.Entity
	From      vmath.Point
	To        vmath.Point
	Requested float64 // distance the tick wanted to travel
	Allowed   float64 // distance actually travelled
}

// Velocity is the motion state of one registered entity
// Obtained from the simulation on registration; the zero value is unbound and rejects mutation
type Velocity struct {
	clock  core.Stopwatch
	params EvalParams
	owner  *core.Entity

	angle    vmath.Angle
	speed    float64
	behavior Behavior

	lastEval time.Duration
	interval time.Duration
	next     physics.HitPrediction
	released bool

	AngleChanged event.Observers[vmath.Angle]
	SpeedChanged event.Observers[float64]
	Enforced     event.Observers[*Velocity] // once per tick per tracked entity
	Impacted     event.Observers[physics.Impact]
	Clamped      event.Observers[Clamp]
}

// NewVelocity creates a stationary velocity timed by clock
func NewVelocity(clock core.Stopwatch, params EvalParams) (*Velocity, error) {
	if clock == nil {
		return nil, fmt.Errorf("%w: nil clock", core.ErrInvalidArgument)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	v := &Velocity{
		clock:    clock,
		params:   params,
		lastEval: clock.Elapsed(),
		interval: params.LeastFrequent,
	}
	v.next.Clear()
	return v, nil
}

func (v *Velocity) Angle() vmath.Angle  { return v.angle }
func (v *Velocity) Speed() float64      { return v.speed }
func (v *Velocity) Behavior() Behavior  { return v.behavior }
func (v *Velocity) Owner() *core.Entity { return v.owner }

// Released reports whether the owning entity has been unregistered
func (v *Velocity) Released() bool { return v.released }

// EvalInterval returns the current adaptive evaluation delay
func (v *Velocity) EvalInterval() time.Duration { return v.interval }

// LastEvaluation returns the clock reading of the last evaluation or speed change
func (v *Velocity) LastEvaluation() time.Duration { return v.lastEval }

// DueAt reports a moving velocity whose interval has elapsed by now
func (v *Velocity) DueAt(now time.Duration) bool {
	return v.speed > 0 && now-v.lastEval >= v.interval
}

// NextCollision returns a copy of the last prediction made for this velocity
func (v *Velocity) NextCollision() physics.HitPrediction { return v.next }

func (v *Velocity) check() error {
	if v.released {
		return core.ErrDisposed
	}
	if v.clock == nil {
		return core.ErrUnbound
	}
	return nil
}

// SetAngle normalizes a into [0, 360) and fires AngleChanged
func (v *Velocity) SetAngle(a vmath.Angle) error {
	if err := v.check(); err != nil {
		return err
	}
	if !vmath.IsFinite(float64(a)) {
		return fmt.Errorf("%w: angle %v", core.ErrInvalidArgument, float64(a))
	}
	v.angle = a.Normalize()
	v.AngleChanged.Fire(v.angle)
	return nil
}

// SetSpeed sets cells per second, restarts the evaluation clock and fires SpeedChanged
func (v *Velocity) SetSpeed(speed float64) error {
	if err := v.check(); err != nil {
		return err
	}
	if speed < 0 || !vmath.IsFinite(speed) {
		return fmt.Errorf("%w: speed %v", core.ErrInvalidArgument, speed)
	}
	v.speed = speed
	v.interval = v.params.Interval(speed)
	v.lastEval = v.clock.Elapsed()
	v.SpeedChanged.Fire(speed)
	return nil
}

// Stop is SetSpeed(0)
func (v *Velocity) Stop() error {
	return v.SetSpeed(0)
}

func (v *Velocity) SetBehavior(b Behavior) error {
	if err := v.check(); err != nil {
		return err
	}
	if b > BehaviorDoNothing {
		return fmt.Errorf("%w: behavior %d", core.ErrInvalidArgument, b)
	}
	v.behavior = b
	return nil
}

// Attach records the owning entity; called by the registry on insertion
func (v *Velocity) Attach(e *core.Entity) {
	v.owner = e
}

// MarkEvaluated stamps an evaluation at clock reading at
func (v *Velocity) MarkEvaluated(at time.Duration) {
	v.lastEval = at
}

// StorePrediction caches a copy of p for NextCollision
func (v *Velocity) StorePrediction(p *physics.HitPrediction) {
	v.next = p.Copy()
}

// Release detaches the velocity from its entity and drops every observer
// Subsequent mutations return ErrDisposed
func (v *Velocity) Release() {
	if v.released {
		return
	}
	v.released = true
	v.speed = 0
	v.owner = nil
	v.next.Clear()
	v.AngleChanged.Clear()
	v.SpeedChanged.Clear()
	v.Enforced.Clear()
	v.Impacted.Clear()
	v.Clamped.Clear()
}
