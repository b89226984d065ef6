//go:build !linux

package oserr

import "syscall"

// Device control is only implemented on Linux; elsewhere every native
// code stays unclassified.
func errnoKind(syscall.Errno) Kind { return KindUnknown }
