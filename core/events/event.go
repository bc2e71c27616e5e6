package events

// Event represents a structured state change emitted by the vault.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (audit log, metrics).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies Emitter while discarding everything. Components use
// it as the default so event wiring stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// MultiEmitter fans a single event out to every registered subscriber in
// order. A nil or empty MultiEmitter behaves like NoopEmitter.
type MultiEmitter struct {
	subscribers []Emitter
}

// Subscribe registers an additional downstream emitter. Nil emitters are
// ignored.
func (m *MultiEmitter) Subscribe(emitter Emitter) {
	if m == nil || emitter == nil {
		return
	}
	m.subscribers = append(m.subscribers, emitter)
}

// Emit implements the Emitter interface.
func (m *MultiEmitter) Emit(event Event) {
	if m == nil {
		return
	}
	for _, subscriber := range m.subscribers {
		subscriber.Emit(event)
	}
}
