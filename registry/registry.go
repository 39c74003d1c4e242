package registry

import (
	"fmt"

	"github.com/lixenwraith/vi-motion/component"
	"github.com/lixenwraith/vi-motion/core"
	"github.com/lixenwraith/vi-motion/parameter"
)

// Handle is a stable reference to a velocity slot
// A handle outlives its entity only as a stale value: Resolve fails once the slot is freed
type Handle struct {
	index uint32
	gen   uint32
}

// Valid reports whether the handle was ever issued
func (h Handle) Valid() bool { return h.gen != 0 }

// Index returns the arena slot
func (h Handle) Index() int { return int(h.index) }

type entry struct {
	entity *core.Entity
	handle Handle
}

type slot struct {
	velocity *component.Velocity
	entity   *core.Entity
	gen      uint32
}

// Registry maps entities to velocities
// Entities live in id-mod-N buckets for deterministic flat iteration; velocities live in a
// fixed-capacity arena addressed by generation-checked handles
// Not safe for concurrent use
type Registry struct {
	buckets [][]entry
	slots   []slot
	free    []uint32
	nextID  uint64
	count   int
}

// New creates a registry with the compiled-in sizes
func New() *Registry {
	r, _ := NewWithSize(parameter.RegistryBucketCount, parameter.RegistryBucketCapacity, parameter.RegistryArenaCapacity)
	return r
}

// NewWithSize creates a registry with bucketCount buckets of initial bucketCapacity
// and room for arenaCapacity velocities
func NewWithSize(bucketCount, bucketCapacity, arenaCapacity int) (*Registry, error) {
	if bucketCount <= 0 || bucketCapacity <= 0 || arenaCapacity <= 0 {
		return nil, fmt.Errorf("%w: registry size %d/%d/%d",
			core.ErrInvalidArgument, bucketCount, bucketCapacity, arenaCapacity)
	}

	r := &Registry{
		buckets: make([][]entry, bucketCount),
		slots:   make([]slot, arenaCapacity),
		free:    make([]uint32, arenaCapacity),
	}
	for i := range r.buckets {
		r.buckets[i] = make([]entry, bucketCapacity)
	}
	// Stack pops from the tail: lowest index first
	for i := range r.free {
		r.free[i] = uint32(arenaCapacity - 1 - i)
	}
	for i := range r.slots {
		r.slots[i].gen = 1
	}
	return r, nil
}

func (r *Registry) bucket(id uint64) int {
	return int(id % uint64(len(r.buckets)))
}

// find returns the bucket and position of e, -1 if absent
func (r *Registry) find(e *core.Entity) (int, int) {
	if e.Holder() != r {
		return 0, -1
	}
	b := r.bucket(e.ID())
	for i, en := range r.buckets[b] {
		if en.entity == nil {
			break
		}
		if en.entity == e {
			return b, i
		}
	}
	return b, -1
}

// Add assigns e a fresh id and stores v for it
// An entity is tracked by at most one registry at a time
func (r *Registry) Add(e *core.Entity, v *component.Velocity) (Handle, error) {
	if e == nil || v == nil {
		return Handle{}, fmt.Errorf("%w: nil entity or velocity", core.ErrInvalidArgument)
	}
	if e.IsDisposed() || v.Released() {
		return Handle{}, core.ErrDisposed
	}
	if h := e.Holder(); h != nil {
		if h == r {
			return Handle{}, fmt.Errorf("%w: %s", core.ErrAlreadyRegistered, e)
		}
		return Handle{}, fmt.Errorf("%w: %s is tracked by another registry", core.ErrAlreadyRegistered, e)
	}
	if v.Owner() != nil {
		return Handle{}, fmt.Errorf("%w: velocity owned by %s", core.ErrAlreadyRegistered, v.Owner())
	}
	if len(r.free) == 0 {
		return Handle{}, fmt.Errorf("%w: capacity %d", core.ErrRegistryFull, len(r.slots))
	}

	idx := r.free[len(r.free)-1]
	r.free = r.free[:len(r.free)-1]

	r.nextID++
	e.AssignID(r.nextID)
	e.SetHolder(r)

	s := &r.slots[idx]
	s.velocity = v
	s.entity = e
	h := Handle{index: idx, gen: s.gen}

	r.insert(r.bucket(e.ID()), entry{entity: e, handle: h})
	v.Attach(e)
	r.count++
	return h, nil
}

func (r *Registry) insert(b int, en entry) {
	row := r.buckets[b]
	for i := range row {
		if row[i].entity == nil {
			row[i] = en
			return
		}
	}
	grown := make([]entry, len(row)*2)
	copy(grown, row)
	grown[len(row)] = en
	r.buckets[b] = grown
}

// Remove drops e and releases its velocity; false if e was not registered
// The entity keeps its id for diagnostics, but the id is never issued again
func (r *Registry) Remove(e *core.Entity) bool {
	if e == nil {
		return false
	}
	b, i := r.find(e)
	if i < 0 {
		return false
	}

	row := r.buckets[b]
	h := row[i].handle
	n := i + 1
	for n < len(row) && row[n].entity != nil {
		n++
	}
	copy(row[i:n-1], row[i+1:n])
	row[n-1] = entry{}

	e.SetHolder(nil)
	s := &r.slots[h.index]
	s.velocity.Release()
	s.velocity = nil
	s.entity = nil
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	r.free = append(r.free, h.index)
	r.count--
	return true
}

// TryGet returns the velocity stored for e
func (r *Registry) TryGet(e *core.Entity) (*component.Velocity, bool) {
	if e == nil {
		return nil, false
	}
	b, i := r.find(e)
	if i < 0 {
		return nil, false
	}
	return r.slots[r.buckets[b][i].handle.index].velocity, true
}

// Resolve returns the live velocity and entity behind h
func (r *Registry) Resolve(h Handle) (*component.Velocity, *core.Entity, bool) {
	if !h.Valid() || int(h.index) >= len(r.slots) {
		return nil, nil, false
	}
	s := &r.slots[h.index]
	if s.gen != h.gen || s.velocity == nil {
		return nil, nil, false
	}
	return s.velocity, s.entity, true
}

// AppendTracked appends every registered entity to dst in bucket-major, insertion order
func (r *Registry) AppendTracked(dst []*core.Entity) []*core.Entity {
	for _, row := range r.buckets {
		for _, en := range row {
			if en.entity == nil {
				break
			}
			dst = append(dst, en.entity)
		}
	}
	return dst
}

// AppendHandles appends the handle of every registered entity to dst, in AppendTracked order
func (r *Registry) AppendHandles(dst []Handle) []Handle {
	for _, row := range r.buckets {
		for _, en := range row {
			if en.entity == nil {
				break
			}
			dst = append(dst, en.handle)
		}
	}
	return dst
}

// Len returns the registered entity count
func (r *Registry) Len() int { return r.count }
