// Package oserr maps native OS call failures onto a closed set of
// named error kinds so the rest of the daemon can react to categories
// instead of raw errno values.
package oserr

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind names a category of OS-call failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindAccessDenied
	KindInvalidHandle
	KindOutOfMemory
	KindTimeout
	KindSharingViolation
	KindDataInvalid
	KindAlreadyExists
	KindDeviceNotExist
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAccessDenied:
		return "access denied"
	case KindInvalidHandle:
		return "invalid handle"
	case KindOutOfMemory:
		return "out of memory"
	case KindTimeout:
		return "timeout"
	case KindSharingViolation:
		return "sharing violation"
	case KindDataInvalid:
		return "data invalid"
	case KindAlreadyExists:
		return "already exists"
	case KindDeviceNotExist:
		return "device does not exist"
	default:
		return "unknown error"
	}
}

// SysError is an OS-call failure carrying the mapped kind and, when
// available, the native error code it was mapped from.
type SysError struct {
	Kind  Kind
	Errno syscall.Errno // 0 when the error was synthesized, not mapped
	Op    string
	Path  string
}

func (e *SysError) Error() string {
	msg := e.Kind.String()
	if e.Kind == KindUnknown && e.Errno != 0 {
		msg = fmt.Sprintf("unknown error with code %d", int(e.Errno))
	}
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *SysError) Unwrap() error {
	if e.Errno == 0 {
		return nil
	}
	return e.Errno
}

// Is matches any SysError of the same kind, so sentinels like
// New(KindDeviceNotExist, ...) work with errors.Is.
func (e *SysError) Is(target error) bool {
	t, ok := target.(*SysError)
	return ok && t.Kind == e.Kind
}

// New builds a SysError with no native code behind it.
func New(kind Kind, op, path string) *SysError {
	return &SysError{Kind: kind, Op: op, Path: path}
}

// Wrap converts any error from an OS call into a SysError, mapping the
// errno buried in it (directly or inside an *os.PathError and friends)
// to a kind. A nil error stays nil.
func Wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return &SysError{Kind: errnoKind(errno), Errno: errno, Op: op, Path: path}
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}

// IsKind reports whether err is a SysError of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *SysError
	return errors.As(err, &se) && se.Kind == kind
}

// Sentinels for the non-OS failure categories.
var (
	// ErrHubFiltered marks a device rejected because its driver is a
	// USB hub controller; distinct from any OS failure.
	ErrHubFiltered = errors.New("device filtered: usb hub")

	// ErrNotStringProperty marks a property that exists but is not of
	// string type.
	ErrNotStringProperty = errors.New("property is not a string property")

	// ErrNoEvent is the non-blocking poll result when no hotplug event
	// is pending.
	ErrNoEvent = errors.New("no hotplug event pending")

	// ErrSourceFinished means the hotplug source stopped cleanly.
	ErrSourceFinished = errors.New("hotplug source finished")
)
