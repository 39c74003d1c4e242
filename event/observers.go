package event

// Subscription identifies a subscribed handler for later removal
type Subscription uint64

type entry[T any] struct {
	id Subscription
	fn func(T)
}

// Observers is an ordered handler list, always present and possibly empty
// Callers check Len before building expensive payloads
// Not safe for concurrent use: owned by the simulation goroutine
//
// Handlers may subscribe or unsubscribe while the list is firing; removals
// take effect immediately, additions are seen from the next Fire
type Observers[T any] struct {
	entries []entry[T]
	nextID  Subscription
	firing  int
	dead    int
}

// Subscribe appends fn and returns its subscription
func (o *Observers[T]) Subscribe(fn func(T)) Subscription {
	o.nextID++
	o.entries = append(o.entries, entry[T]{id: o.nextID, fn: fn})
	return o.nextID
}

// Unsubscribe removes the handler, returns false if not found
func (o *Observers[T]) Unsubscribe(s Subscription) bool {
	for i := range o.entries {
		if o.entries[i].id != s || o.entries[i].fn == nil {
			continue
		}
		if o.firing > 0 {
			// Tombstone, compacted once the outermost Fire returns
			o.entries[i].fn = nil
			o.dead++
			return true
		}
		copy(o.entries[i:], o.entries[i+1:])
		o.entries[len(o.entries)-1] = entry[T]{}
		o.entries = o.entries[:len(o.entries)-1]
		return true
	}
	return false
}

// Len returns the number of live handlers
func (o *Observers[T]) Len() int {
	return len(o.entries) - o.dead
}

// Fire calls every live handler in subscription order
// A panicking handler aborts the remaining calls but leaves the list usable
func (o *Observers[T]) Fire(v T) {
	if len(o.entries) == 0 {
		return
	}

	o.firing++
	defer o.settle()
	n := len(o.entries)
	for i := 0; i < n && i < len(o.entries); i++ {
		if fn := o.entries[i].fn; fn != nil {
			fn(v)
		}
	}
}

// settle leaves firing mode and compacts tombstones once the outermost Fire unwinds
func (o *Observers[T]) settle() {
	o.firing--
	if o.firing == 0 && o.dead > 0 {
		o.compact()
	}
}

// Clear drops every handler
func (o *Observers[T]) Clear() {
	if o.firing > 0 {
		for i := range o.entries {
			if o.entries[i].fn != nil {
				o.entries[i].fn = nil
				o.dead++
			}
		}
		return
	}
	clear(o.entries)
	o.entries = o.entries[:0]
	o.dead = 0
}

func (o *Observers[T]) compact() {
	w := 0
	for _, e := range o.entries {
		if e.fn != nil {
			o.entries[w] = e
			w++
		}
	}
	clear(o.entries[w:])
	o.entries = o.entries[:w]
	o.dead = 0
}
