// Package devicetest provides in-memory fakes for the device Instance
// and Registry capabilities, so the tracker, policy and event-loop
// packages can be tested without hardware.
package devicetest

import (
	"github.com/xfajk/comp-gate/internal/device"
	"github.com/xfajk/comp-gate/internal/oserr"
)

// FakeInstance is a scriptable device.Instance. Zero-value string
// fields behave like properties the OS failed to retrieve.
type FakeInstance struct {
	ID    device.ID
	IDErr error

	Parent       device.ID
	Service      string
	Class        string
	FriendlyName string
	DevType      string
	Description  string

	// RawProps overrides the field-derived value for a key.
	RawProps map[device.PropertyKey]device.Property
	// PropErr forces a retrieval error for a key.
	PropErr map[device.PropertyKey]error

	StateErr error
	States   []device.State
	Closed   bool
}

func (f *FakeInstance) DeviceID() (device.ID, error) {
	if f.IDErr != nil {
		return "", f.IDErr
	}
	return f.ID, nil
}

func (f *FakeInstance) Property(key device.PropertyKey) (device.Property, error) {
	if err, ok := f.PropErr[key]; ok {
		return device.Property{}, err
	}
	if p, ok := f.RawProps[key]; ok {
		return p, nil
	}

	var v string
	switch key {
	case device.KeyParent:
		v = string(f.Parent)
	case device.KeyService:
		v = f.Service
	case device.KeyClass:
		v = f.Class
	case device.KeyFriendlyName:
		v = f.FriendlyName
	case device.KeyDevType:
		v = f.DevType
	case device.KeyDescription:
		v = f.Description
	}
	if v == "" {
		return device.Property{}, oserr.New(oserr.KindNotFound, "property", key.String())
	}
	return device.Property{Type: device.PropString, Value: v}, nil
}

func (f *FakeInstance) SetState(state device.State) error {
	if f.StateErr != nil {
		return f.StateErr
	}
	f.States = append(f.States, state)
	return nil
}

func (f *FakeInstance) Close() error {
	f.Closed = true
	return nil
}

// LastState is the most recent state applied, or 0 when none was.
func (f *FakeInstance) LastState() device.State {
	if len(f.States) == 0 {
		return 0
	}
	return f.States[len(f.States)-1]
}

// FakeRegistry serves FakeInstances grouped by class.
type FakeRegistry struct {
	Devices      map[device.Class][]*FakeInstance
	EnumerateErr error
}

func (r *FakeRegistry) Enumerate(class device.Class) ([]device.Instance, error) {
	if r.EnumerateErr != nil {
		return nil, r.EnumerateErr
	}
	instances := make([]device.Instance, 0, len(r.Devices[class]))
	for _, f := range r.Devices[class] {
		instances = append(instances, f)
	}
	return instances, nil
}

func (r *FakeRegistry) Locate(id device.ID) (device.Instance, error) {
	for _, list := range r.Devices {
		for _, f := range list {
			if f.ID == id {
				return f, nil
			}
		}
	}
	return nil, oserr.New(oserr.KindDeviceNotExist, "locate device", string(id))
}
