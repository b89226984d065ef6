//go:build linux

package device

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/xfajk/comp-gate/internal/oserr"
)

const (
	sysDevicesRoot = "/sys/devices"
	sysBusRoot     = "/sys/bus"
)

// sysfsRegistry enumerates and controls devices through sysfs. The
// canonical id of a device is its physical path under /sys/devices
// with '/' replaced by '\' and upper-cased, which lines up with what
// DevicePathToDeviceID produces for udev notification paths.
type sysfsRegistry struct {
	devicesRoot string
	busRoot     string
}

// NewRegistry returns the platform device registry.
func NewRegistry() Registry {
	return &sysfsRegistry{devicesRoot: sysDevicesRoot, busRoot: sysBusRoot}
}

func (r *sysfsRegistry) Enumerate(class Class) ([]Instance, error) {
	dir := filepath.Join(r.busRoot, string(class), "devices")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, oserr.Wrap("enumerate class", dir, err)
	}

	instances := make([]Instance, 0, len(entries))
	for _, entry := range entries {
		// Bus device entries are symlinks into the physical tree.
		phys, err := filepath.EvalSymlinks(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, oserr.Wrap("resolve device link", entry.Name(), err)
		}
		instances = append(instances, &sysfsInstance{path: phys, root: r.devicesRoot})
	}
	return instances, nil
}

func (r *sysfsRegistry) Locate(id ID) (Instance, error) {
	for _, class := range []Class{ClassUSB, ClassHID} {
		instances, err := r.Enumerate(class)
		if err != nil {
			return nil, err
		}
		for _, inst := range instances {
			got, err := inst.DeviceID()
			if err == nil && got == id {
				return inst, nil
			}
		}
	}
	return nil, oserr.New(oserr.KindDeviceNotExist, "locate device", string(id))
}

// sysfsInstance wraps one physical sysfs device directory.
type sysfsInstance struct {
	path string
	root string
}

func (s *sysfsInstance) DeviceID() (ID, error) {
	rel, err := filepath.Rel(s.root, s.path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", oserr.New(oserr.KindInvalidHandle, "device id", s.path)
	}
	return NewID(strings.ReplaceAll(rel, "/", `\`)), nil
}

func (s *sysfsInstance) Property(key PropertyKey) (Property, error) {
	switch key {
	case KeyParent:
		parent := filepath.Dir(s.path)
		if parent == s.root || !strings.HasPrefix(parent, s.root+"/") {
			return Property{}, oserr.New(oserr.KindNotFound, "parent of", s.path)
		}
		rel, err := filepath.Rel(s.root, parent)
		if err != nil {
			return Property{}, oserr.Wrap("parent of", s.path, err)
		}
		return Property{Type: PropString, Value: strings.ReplaceAll(rel, "/", `\`)}, nil
	case KeyService:
		drv, err := os.Readlink(filepath.Join(s.path, "driver"))
		if err != nil {
			return Property{}, oserr.Wrap("read driver link", s.path, err)
		}
		return Property{Type: PropString, Value: filepath.Base(drv)}, nil
	case KeyClass:
		sub, err := os.Readlink(filepath.Join(s.path, "subsystem"))
		if err != nil {
			return Property{}, oserr.Wrap("read subsystem link", s.path, err)
		}
		return Property{Type: PropString, Value: filepath.Base(sub)}, nil
	case KeyFriendlyName:
		return s.attr("product")
	case KeyDevType:
		v, err := s.ueventValue("DEVTYPE")
		if err != nil {
			return Property{}, err
		}
		return Property{Type: PropString, Value: v}, nil
	case KeyDescription:
		return s.attr("manufacturer")
	default:
		return Property{}, oserr.New(oserr.KindNotFound, "property", key.String())
	}
}

func (s *sysfsInstance) attr(name string) (Property, error) {
	raw, err := os.ReadFile(filepath.Join(s.path, name))
	if err != nil {
		return Property{}, oserr.Wrap("read attribute", filepath.Join(s.path, name), err)
	}
	v := strings.TrimSpace(string(raw))
	if v == "" {
		return Property{Type: PropEmpty}, nil
	}
	return Property{Type: PropString, Value: v}, nil
}

func (s *sysfsInstance) ueventValue(key string) (string, error) {
	path := filepath.Join(s.path, "uevent")
	f, err := os.Open(path)
	if err != nil {
		return "", oserr.Wrap("open uevent", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if k, v, ok := strings.Cut(scanner.Text(), "="); ok && k == key {
			return v, nil
		}
	}
	return "", oserr.New(oserr.KindNotFound, "uevent key", key)
}

// SetState toggles the device through the sysfs authorized attribute
// when the node carries one, falling back to unbinding the driver.
func (s *sysfsInstance) SetState(state State) error {
	authorized := filepath.Join(s.path, "authorized")
	if _, err := os.Stat(authorized); err == nil {
		val := "1"
		if state == Disable {
			val = "0"
		}
		return oserr.Wrap("write authorized", authorized, os.WriteFile(authorized, []byte(val), 0o644))
	}

	drvLink := filepath.Join(s.path, "driver")
	drvPath, err := filepath.EvalSymlinks(drvLink)
	if err != nil {
		// No bound driver: nothing to unbind, and nothing to rebind to.
		return oserr.Wrap("resolve driver", drvLink, err)
	}

	action := "bind"
	if state == Disable {
		action = "unbind"
	}
	target := filepath.Join(drvPath, action)
	return oserr.Wrap("write "+action, target, os.WriteFile(target, []byte(filepath.Base(s.path)), 0o200))
}

// Close is a no-op: a sysfs path holds no kernel handle.
func (s *sysfsInstance) Close() error { return nil }
