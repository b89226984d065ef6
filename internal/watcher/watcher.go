// Package watcher bridges OS device-change notifications into a typed
// event stream. The stream's channels are owned by the watcher and
// handed to the caller; nothing is shared globally.
package watcher

// Action distinguishes arrival from removal.
type Action string

const (
	Connected    Action = "connected"
	Disconnected Action = "disconnected"
)

// ConnectionEvent carries the raw device interface path from one OS
// notification. The path must be translated to a device id before use.
type ConnectionEvent struct {
	Action     Action
	DevicePath string
}

type DeviceWatcher interface {
	// Start subscribes to OS notifications and spawns the goroutine
	// that republishes them onto Events.
	Start() error

	// Events delivers connection events for the process lifetime.
	Events() <-chan ConnectionEvent

	// Done delivers exactly one value when the source stops: nil for a
	// clean finish, the wrapped OS error otherwise.
	Done() <-chan error

	// Poll never blocks: it reports the source's completion first,
	// then a pending event, then oserr.ErrNoEvent.
	Poll() (ConnectionEvent, error)

	// Stop asks the source to finish; the outcome arrives on Done.
	Stop()
}

func New() DeviceWatcher {
	return newWatcher()
}
