// Package device models a single hardware device: its canonical
// identity, the opaque OS instance handle behind it, typed property
// retrieval and driver state toggling.
package device

import (
	"fmt"
	"slices"
	"strings"

	"github.com/xfajk/comp-gate/internal/oserr"
	"github.com/xfajk/comp-gate/internal/sysutil"
)

// ID is the canonical, case-normalized (upper) device instance
// identity. Two IDs are equal iff their normalized strings are equal.
type ID string

// NewID normalizes a raw identity string into an ID.
func NewID(s string) ID {
	return ID(strings.ToUpper(strings.TrimSpace(s)))
}

func (id ID) String() string { return string(id) }

// State is the desired operational state of a device driver.
type State int

const (
	Enable State = iota + 1
	Disable
)

func (s State) String() string {
	switch s {
	case Enable:
		return "enable"
	case Disable:
		return "disable"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Class is a device setup class known to the enumeration capability.
type Class string

const (
	ClassUSB Class = "usb"
	ClassHID Class = "hid"
)

// PropertyKey names one of the fixed device properties this system
// queries.
type PropertyKey int

const (
	KeyParent PropertyKey = iota
	KeyService
	KeyClass
	KeyFriendlyName
	KeyDevType
	KeyDescription
)

func (k PropertyKey) String() string {
	switch k {
	case KeyParent:
		return "parent"
	case KeyService:
		return "service"
	case KeyClass:
		return "class"
	case KeyFriendlyName:
		return "friendly name"
	case KeyDevType:
		return "device type"
	case KeyDescription:
		return "description"
	default:
		return fmt.Sprintf("property(%d)", int(k))
	}
}

// PropertyType tags how a retrieved property value is represented.
type PropertyType int

const (
	PropEmpty PropertyType = iota
	PropString
	// PropRaw preserves a value of a native type this system does not
	// interpret; the bytes and the platform type tag are kept as-is.
	PropRaw
)

// Property is a value retrieved from a device.
type Property struct {
	Type       PropertyType
	Value      string // set when Type == PropString
	Raw        []byte // set when Type == PropRaw
	NativeType uint32 // platform type tag for PropRaw values
}

// Instance is one opaque OS-level device reference. Implementations
// wrap whatever handle the platform exposes; the handle is not part of
// device identity.
type Instance interface {
	DeviceID() (ID, error)
	Property(key PropertyKey) (Property, error)
	SetState(state State) error
	Close() error
}

// Registry is the platform device enumeration capability. This system
// consumes it, it never implements enumeration itself.
type Registry interface {
	Enumerate(class Class) ([]Instance, error)
	Locate(id ID) (Instance, error)
}

// Device is a node in the topology forest.
type Device struct {
	ID ID
	// ParentID is the parent declared by the OS at discovery time; it
	// may name a node not present yet (empty = none declared).
	ParentID  ID
	TreeLevel uint32
	Children  map[ID]*Device

	Service      string
	Class        string
	FriendlyName string
	DevType      string
	Description  string

	inst Instance
}

// FromInstance materializes a Device by querying the fixed property
// set. The identifier is mandatory; every descriptive property may
// fail independently without failing construction.
func FromInstance(inst Instance) (*Device, error) {
	id, err := inst.DeviceID()
	if err != nil {
		return nil, fmt.Errorf("retrieve device id: %w", err)
	}

	d := &Device{
		ID:       id,
		Children: make(map[ID]*Device),
		inst:     inst,
	}

	// An absent parent just means the node is a root candidate.
	if v, err := stringProperty(inst, KeyParent); err == nil {
		d.ParentID = NewID(v)
	}

	if v, err := stringProperty(inst, KeyService); err == nil {
		d.Service = strings.ToLower(v)
	} else {
		warnProperty(id, KeyService, err)
	}
	if v, err := stringProperty(inst, KeyClass); err == nil {
		d.Class = v
	} else {
		warnProperty(id, KeyClass, err)
	}
	if v, err := stringProperty(inst, KeyFriendlyName); err == nil {
		d.FriendlyName = v
	} else {
		warnProperty(id, KeyFriendlyName, err)
	}
	if v, err := stringProperty(inst, KeyDevType); err == nil {
		d.DevType = v
	} else {
		warnProperty(id, KeyDevType, err)
	}
	if v, err := stringProperty(inst, KeyDescription); err == nil {
		d.Description = v
	} else {
		warnProperty(id, KeyDescription, err)
	}

	return d, nil
}

func stringProperty(inst Instance, key PropertyKey) (string, error) {
	prop, err := inst.Property(key)
	if err != nil {
		return "", err
	}
	if prop.Type != PropString {
		return "", oserr.ErrNotStringProperty
	}
	return prop.Value, nil
}

func warnProperty(id ID, key PropertyKey, err error) {
	sysutil.LogSugar.Debugf("could not retrieve %s for device %s: %v", key, id, err)
}

// SetState toggles the device driver through the OS capability. The
// call's own success or failure is the only completion signal.
func (d *Device) SetState(state State) error {
	return d.inst.SetState(state)
}

// IsHub reports whether the device's driver is one of the known hub
// controller services. Hubs are topology plumbing, not controllable
// end devices.
func (d *Device) IsHub(hubDrivers []string) bool {
	if d.Service == "" {
		return false
	}
	return slices.Contains(hubDrivers, d.Service)
}

// Close releases the underlying OS handle and, transitively, every
// handle held by the subtree.
func (d *Device) Close() error {
	err := d.inst.Close()
	for _, child := range d.Children {
		if cerr := child.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// WriteTree renders the device and its subtree as an indented block,
// one block per device with its attributes.
func (d *Device) WriteTree(b *strings.Builder) {
	indent := strings.Repeat("\t", int(d.TreeLevel))
	fmt.Fprintf(b, "%sDevice ID: %s\n", indent, d.ID)
	fmt.Fprintf(b, "%s - Device Service: %s\n", indent, orNone(d.Service))
	fmt.Fprintf(b, "%s - Device Class: %s\n", indent, orNone(d.Class))
	fmt.Fprintf(b, "%s - Device Friendly Name: %s\n", indent, orNone(d.FriendlyName))
	fmt.Fprintf(b, "%s - Device Type: %s\n", indent, orNone(d.DevType))
	fmt.Fprintf(b, "%s - Device Description: %s\n", indent, orNone(d.Description))
	for _, child := range d.Children {
		fmt.Fprintf(b, "%s\tSub-device:\n", indent)
		child.WriteTree(b)
	}
}

func (d *Device) String() string {
	var b strings.Builder
	d.WriteTree(&b)
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
