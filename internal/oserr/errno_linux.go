//go:build linux

package oserr

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func errnoKind(errno syscall.Errno) Kind {
	switch errno {
	case unix.ENOENT, unix.ESRCH:
		return KindNotFound
	case unix.EACCES, unix.EPERM:
		return KindAccessDenied
	case unix.EBADF:
		return KindInvalidHandle
	case unix.ENOMEM:
		return KindOutOfMemory
	case unix.ETIMEDOUT:
		return KindTimeout
	case unix.EBUSY, unix.ETXTBSY:
		return KindSharingViolation
	case unix.EINVAL:
		return KindDataInvalid
	case unix.EEXIST:
		return KindAlreadyExists
	case unix.ENODEV, unix.ENXIO:
		return KindDeviceNotExist
	default:
		return KindUnknown
	}
}
