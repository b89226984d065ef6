//go:build !linux

package device

import "errors"

var errUnsupported = errors.New("device registry is not implemented on this platform")

type unsupportedRegistry struct{}

// NewRegistry returns the platform device registry.
func NewRegistry() Registry { return unsupportedRegistry{} }

func (unsupportedRegistry) Enumerate(Class) ([]Instance, error) { return nil, errUnsupported }
func (unsupportedRegistry) Locate(ID) (Instance, error)         { return nil, errUnsupported }
