package proxy

// Handle identifies a cached proxy. Handle 0 is reserved: uncached
// proxies (values without pointer identity) carry it.
type Handle uint32

// EventType is a proxy lifecycle event.
type EventType uint8

const (
	EventCreated EventType = iota
	EventInvalidated
	EventCollected
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventInvalidated:
		return "invalidated"
	case EventCollected:
		return "collected"
	}
	return "unknown"
}

// Event represents a proxy lifecycle event.
type Event struct {
	Value    any // native object, nil for EventCollected
	TypeName string
	Handle   Handle
	Type     EventType
}

// Observer receives notifications about proxy lifecycle events.
type Observer interface {
	OnProxyEvent(Event)
}
