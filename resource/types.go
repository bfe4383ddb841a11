package resource

// Handle is an opaque reference to a capability in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Kind identifies the capability a handle refers to.
type Kind uint8

const (
	KindPollable Kind = iota
	KindInputStream
	KindOutputStream
	KindDescriptor
	KindDirectoryEntryStream
	KindClock
	KindTerminalInput
	KindTerminalOutput
)

var kindNames = [...]string{
	KindPollable:             "pollable",
	KindInputStream:          "input-stream",
	KindOutputStream:         "output-stream",
	KindDescriptor:           "descriptor",
	KindDirectoryEntryStream: "directory-entry-stream",
	KindClock:                "clock",
	KindTerminalInput:        "terminal-input",
	KindTerminalOutput:       "terminal-output",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// EventType is a capability lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event represents a capability lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives notifications about capability lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is optionally implemented by values that need cleanup when their
// handle is removed.
type Dropper interface {
	Drop()
}
