package hooks

import "sync"

// entry wraps a registered Hook with a unique identity (the pointer to the
// entry itself) so Subscription.Close can find and remove it without
// relying on Hook equality — Hook implementations may be funcs, which are
// not comparable in Go.
type entry struct {
	hook Hook
}

// Bus fires an Event to every registered Hook in strict registration
// order, stopping at the first non-Continue Action or the first error
// (Testable Property 3, spec §4.E.5: "Hooks fire in registration order").
//
// Unlike a map-backed subscriber registry, Bus stores hooks in a slice so
// that registration order is an actual invariant of the data structure,
// not just a docstring claim.
type Bus struct {
	mu      sync.RWMutex
	entries []*entry
}

// NewBus constructs an empty, ready-to-use Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Register appends hook to the end of the firing order and returns a
// Subscription that can be closed to unregister it.
func (b *Bus) Register(hook Hook) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := &entry{hook: hook}
	b.entries = append(b.entries, e)
	return &Subscription{bus: b, entry: e}
}

// Fire delivers event to every registered hook, in registration order,
// stopping at the first returned error or first Action whose Kind is not
// Continue. It returns that Action (zero-valued Continue if every hook
// continued) and that error.
func (b *Bus) Fire(event Event) (Action, error) {
	b.mu.RLock()
	snapshot := make([]*entry, len(b.entries))
	copy(snapshot, b.entries)
	b.mu.RUnlock()

	for _, e := range snapshot {
		action, err := e.hook.OnEvent(event)
		if err != nil {
			return Action{}, err
		}
		if action.Kind != Continue {
			return action, nil
		}
	}
	return ContinueAction, nil
}

// Subscription represents an active registration on a Bus. Close is
// idempotent and safe to call multiple times.
type Subscription struct {
	once  sync.Once
	bus   *Bus
	entry *entry
}

// Close removes the subscribed hook from the bus's firing order. After
// Close returns, the hook receives no further events.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		for i, e := range s.bus.entries {
			if e == s.entry {
				s.bus.entries = append(s.bus.entries[:i:i], s.bus.entries[i+1:]...)
				break
			}
		}
	})
}
