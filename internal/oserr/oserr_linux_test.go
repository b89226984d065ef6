//go:build linux

package oserr_test

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/xfajk/comp-gate/internal/oserr"
)

func TestWrapMapsErrno(t *testing.T) {
	tests := []struct {
		errno unix.Errno
		kind  oserr.Kind
	}{
		{unix.ENOENT, oserr.KindNotFound},
		{unix.ESRCH, oserr.KindNotFound},
		{unix.EACCES, oserr.KindAccessDenied},
		{unix.EPERM, oserr.KindAccessDenied},
		{unix.EBADF, oserr.KindInvalidHandle},
		{unix.ENOMEM, oserr.KindOutOfMemory},
		{unix.ETIMEDOUT, oserr.KindTimeout},
		{unix.EBUSY, oserr.KindSharingViolation},
		{unix.EINVAL, oserr.KindDataInvalid},
		{unix.EEXIST, oserr.KindAlreadyExists},
		{unix.ENODEV, oserr.KindDeviceNotExist},
		{unix.ENXIO, oserr.KindDeviceNotExist},
		{unix.EPIPE, oserr.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.errno.Error(), func(t *testing.T) {
			err := oserr.Wrap("open", "/sys/devices/x", tt.errno)
			assert.True(t, oserr.IsKind(err, tt.kind), "got %v", err)
			assert.ErrorIs(t, err, tt.errno, "the native code stays reachable")
		})
	}
}

func TestWrapUnwrapsPathError(t *testing.T) {
	cause := &os.PathError{Op: "write", Path: "/sys/devices/x/authorized", Err: unix.EACCES}
	err := oserr.Wrap("set device state", cause.Path, cause)

	assert.True(t, oserr.IsKind(err, oserr.KindAccessDenied))
	assert.Contains(t, err.Error(), "access denied")
}

func TestWrapNonErrno(t *testing.T) {
	cause := errors.New("something else entirely")
	err := oserr.Wrap("locate device", "x", cause)

	require.ErrorIs(t, err, cause)
	assert.False(t, oserr.IsKind(err, oserr.KindUnknown), "non-errno errors are wrapped, not mapped")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, oserr.Wrap("op", "path", nil))
}

func TestSysErrorIsMatchesKind(t *testing.T) {
	err := oserr.New(oserr.KindDeviceNotExist, "set device state", `USB\X\1`)

	assert.ErrorIs(t, err, oserr.New(oserr.KindDeviceNotExist, "", ""))
	assert.NotErrorIs(t, err, oserr.New(oserr.KindNotFound, "", ""))
}

func TestSysErrorMessage(t *testing.T) {
	err := oserr.New(oserr.KindAccessDenied, "open", "/sys/devices/x")
	assert.Equal(t, "open /sys/devices/x: access denied", err.Error())

	err = oserr.New(oserr.KindTimeout, "wait", "")
	assert.Equal(t, "wait: timeout", err.Error())
}
