// Package tracker owns the forest of tracked devices. The forest is
// stored as a set of root nodes plus a flat id index over every node,
// so lookups are O(1) and re-parenting an orphan is a pointer move
// followed by a subtree relevel.
package tracker

import (
	"fmt"
	"iter"
	"strings"

	"github.com/xfajk/comp-gate/internal/device"
	"github.com/xfajk/comp-gate/internal/oserr"
	"github.com/xfajk/comp-gate/internal/sysutil"
)

type Tracker struct {
	roots      map[device.ID]*device.Device
	index      map[device.ID]*device.Device
	hubDrivers []string
}

// New returns an empty tracker. HubDrivers is the list of driver
// service names treated as hubs and filtered out.
func New(hubDrivers []string) *Tracker {
	return &Tracker{
		roots:      make(map[device.ID]*device.Device),
		index:      make(map[device.ID]*device.Device),
		hubDrivers: hubDrivers,
	}
}

// Load enumerates every present device in each class and merges the
// per-class results into one forest. An enumeration failure, or a
// failure to retrieve any device's identifier, aborts the load.
func Load(reg device.Registry, classes []device.Class, hubDrivers []string) (*Tracker, error) {
	t := New(hubDrivers)
	for _, class := range classes {
		flat, err := enumerateClass(reg, class, hubDrivers)
		if err != nil {
			return nil, fmt.Errorf("enumerate %s devices: %w", class, err)
		}
		for _, dev := range flat {
			t.attach(dev)
		}
	}
	return t, nil
}

func enumerateClass(reg device.Registry, class device.Class, hubDrivers []string) (map[device.ID]*device.Device, error) {
	instances, err := reg.Enumerate(class)
	if err != nil {
		return nil, err
	}

	devices := make(map[device.ID]*device.Device, len(instances))
	for _, inst := range instances {
		dev, err := device.FromInstance(inst)
		if err != nil {
			return nil, err
		}
		if dev.IsHub(hubDrivers) {
			dev.Close()
			continue
		}
		devices[dev.ID] = dev
	}
	return devices, nil
}

// attach places a device in the forest: under its declared parent when
// that parent is present, otherwise as a root. Existing roots that
// declared the new device as their parent are re-parented under it, so
// the result does not depend on arrival order.
func (t *Tracker) attach(dev *device.Device) {
	if stale, ok := t.Remove(dev.ID); ok {
		// A re-arrival replaces the stale node; its subtree announces
		// itself again through its own events.
		stale.Close()
	}

	t.index[dev.ID] = dev
	// A device declaring itself as parent would resolve to its own
	// freshly indexed node and self-link; treat it as unresolved.
	if dev.ParentID != "" && dev.ParentID != dev.ID {
		if parent, ok := t.index[dev.ParentID]; ok {
			parent.Children[dev.ID] = dev
			t.relevel(dev, parent.TreeLevel+1)
			t.adoptOrphans(dev)
			return
		}
	}

	t.roots[dev.ID] = dev
	t.relevel(dev, 0)
	t.adoptOrphans(dev)
}

func (t *Tracker) adoptOrphans(dev *device.Device) {
	for id, root := range t.roots {
		if id == dev.ID || root.ParentID != dev.ID {
			continue
		}
		if t.isAncestor(root, dev) {
			// Mutually-declared parents would form a cycle; the forest
			// keeps whichever edge resolved first.
			sysutil.LogSugar.Warnf("not re-parenting %s under %s: cyclic parent declaration", id, dev.ID)
			continue
		}
		delete(t.roots, id)
		dev.Children[id] = root
		t.relevel(root, dev.TreeLevel+1)
		sysutil.LogSugar.Infof("re-parenting orphan device %s under %s", id, dev.ID)
	}
}

// isAncestor reports whether a is on b's attached parent chain.
func (t *Tracker) isAncestor(a, b *device.Device) bool {
	for cur := b; cur != nil; {
		if cur == a {
			return true
		}
		parent, ok := t.index[cur.ParentID]
		if !ok || parent.Children[cur.ID] != cur {
			return false
		}
		cur = parent
	}
	return false
}

func (t *Tracker) relevel(dev *device.Device, level uint32) {
	dev.TreeLevel = level
	for _, child := range dev.Children {
		t.relevel(child, level+1)
	}
}

// Insert re-validates and re-queries a device from the OS (hotplug
// events only carry a path) and attaches it to the forest. Hubs are
// rejected with oserr.ErrHubFiltered, distinct from OS failures.
func (t *Tracker) Insert(reg device.Registry, id device.ID) error {
	inst, err := reg.Locate(id)
	if err != nil {
		return err
	}
	dev, err := device.FromInstance(inst)
	if err != nil {
		inst.Close()
		return err
	}
	if dev.IsHub(t.hubDrivers) {
		dev.Close()
		return oserr.ErrHubFiltered
	}
	t.attach(dev)
	return nil
}

// Remove detaches the device anywhere in the forest and returns the
// removed subtree, children still attached. A hub or bridge going away
// takes its downstream devices with it; nothing is re-attached.
func (t *Tracker) Remove(id device.ID) (*device.Device, bool) {
	dev, ok := t.index[id]
	if !ok {
		return nil, false
	}
	if parent, ok := t.index[dev.ParentID]; ok && parent.Children[id] == dev {
		delete(parent.Children, id)
	} else {
		delete(t.roots, id)
	}
	t.unindex(dev)
	return dev, true
}

func (t *Tracker) unindex(dev *device.Device) {
	delete(t.index, dev.ID)
	for _, child := range dev.Children {
		t.unindex(child)
	}
}

// SetDeviceState toggles the driver of the identified device. A
// device-does-not-exist error is returned when the id is not tracked;
// this is the failure surface the IPC layer reports to clients.
func (t *Tracker) SetDeviceState(id device.ID, state device.State) error {
	dev, ok := t.index[id]
	if !ok {
		return oserr.New(oserr.KindDeviceNotExist, "set device state", string(id))
	}
	return dev.SetState(state)
}

// Find returns the tracked device with the given id, anywhere in the
// forest.
func (t *Tracker) Find(id device.ID) (*device.Device, bool) {
	dev, ok := t.index[id]
	return dev, ok
}

// IsRoot reports whether the id is currently held at the root level.
func (t *Tracker) IsRoot(id device.ID) bool {
	_, ok := t.roots[id]
	return ok
}

// Len is the number of tracked devices across the whole forest.
func (t *Tracker) Len() int { return len(t.index) }

// All iterates the forest depth-first, parents before children. Each
// range starts a fresh traversal. The forest must not be mutated while
// a traversal is in progress.
func (t *Tracker) All() iter.Seq[*device.Device] {
	return func(yield func(*device.Device) bool) {
		stack := make([]*device.Device, 0, len(t.roots))
		for _, dev := range t.roots {
			stack = append(stack, dev)
		}
		for len(stack) > 0 {
			dev := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(dev) {
				return
			}
			for _, child := range dev.Children {
				stack = append(stack, child)
			}
		}
	}
}

// Render produces the flattened textual rendering of the forest served
// to IPC clients.
func (t *Tracker) Render() string {
	var b strings.Builder
	for _, dev := range t.roots {
		dev.WriteTree(&b)
	}
	return b.String()
}

// Close releases every OS handle the forest holds, transitively.
func (t *Tracker) Close() {
	for _, dev := range t.roots {
		dev.Close()
	}
	clear(t.roots)
	clear(t.index)
}
