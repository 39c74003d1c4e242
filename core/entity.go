package core

import (
	"fmt"

	"github.com/lixenwraith/vi-motion/event"
	"github.com/lixenwraith/vi-motion/vmath"
)

// CollisionFilter decides whether the owner may collide with other
type CollisionFilter func(other *Entity) bool

// Entity is a simulated rectangle
// The id is 0 until the entity is registered; once assigned it is never reused
type Entity struct {
	id       uint64
	bounds   vmath.Rect
	disposed bool
	filter   CollisionFilter
	holder   any

	// Tag is free-form host data (glyph name, team); the engine never reads it
	Tag string

	// Disposed fires once, after the entity is marked disposed
	// The simulation subscribes here to unregister before the slot can be reused
	Disposed event.Observers[*Entity]
}

// NewEntity creates an unregistered entity with the given bounds
func NewEntity(bounds vmath.Rect) *Entity {
	return &Entity{bounds: bounds}
}

// ID returns the registry id, 0 if never registered
func (e *Entity) ID() uint64 { return e.id }

// AssignID is called by the registry on insertion; hosts must not call it
func (e *Entity) AssignID(id uint64) { e.id = id }

// Holder returns the registry currently tracking e, nil if none
func (e *Entity) Holder() any { return e.holder }

// SetHolder is called by the registry on insertion and removal; hosts must not call it
func (e *Entity) SetHolder(h any) { e.holder = h }

func (e *Entity) Bounds() vmath.Rect { return e.bounds }

func (e *Entity) IsDisposed() bool { return e.disposed }

// SetBounds replaces position and size
func (e *Entity) SetBounds(r vmath.Rect) error {
	if e.disposed {
		return ErrDisposed
	}
	if !vmath.IsFinite(r.X) || !vmath.IsFinite(r.Y) || !vmath.IsFinite(r.Width) || !vmath.IsFinite(r.Height) {
		return fmt.Errorf("%w: non-finite bounds %+v", ErrInvalidArgument, r)
	}
	if r.Width < 0 || r.Height < 0 {
		return fmt.Errorf("%w: negative size %vx%v", ErrInvalidArgument, r.Width, r.Height)
	}
	e.bounds = r
	return nil
}

// MoveTo places the top-left corner at (x, y)
func (e *Entity) MoveTo(x, y float64) error {
	return e.SetBounds(e.bounds.MoveTo(x, y))
}

// MoveBy offsets the entity by (dx, dy)
func (e *Entity) MoveBy(dx, dy float64) error {
	return e.SetBounds(e.bounds.MoveTo(e.bounds.X+dx, e.bounds.Y+dy))
}

// SetCollisionFilter installs fn; nil accepts every other entity
func (e *Entity) SetCollisionFilter(fn CollisionFilter) error {
	if e.disposed {
		return ErrDisposed
	}
	e.filter = fn
	return nil
}

// CanCollideWith applies this entity's filter to other
// Disposed entities never collide
func (e *Entity) CanCollideWith(other *Entity) bool {
	if e.disposed || other == nil || other.disposed || other == e {
		return false
	}
	if e.filter == nil {
		return true
	}
	return e.filter(other)
}

// Dispose marks the entity dead and fires Disposed; later calls are no-ops
func (e *Entity) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	e.Disposed.Fire(e)
	e.Disposed.Clear()
}

func (e *Entity) String() string {
	if e.Tag != "" {
		return fmt.Sprintf("%s#%d", e.Tag, e.id)
	}
	return fmt.Sprintf("entity#%d", e.id)
}
