package device

import "strings"

// DevicePathToDeviceID converts a raw device interface path, as
// delivered by a hotplug notification, into a canonical device id:
// the platform path marker is stripped, the interface-class suffix
// after the last '#' is dropped, the raw separator is replaced with
// the '\' used by device identifiers, and the result is upper-cased.
//
//	\\?\USB#VID_046D&PID_C52B#5&2752457f&0&2#{a5dcbf10-...}
//	  -> USB\VID_046D&PID_C52B\5&2752457F&0&2
//	/devices/pci0000:00/0000:00:14.0/usb1/1-1
//	  -> PCI0000:00\0000:00:14.0\USB1\1-1
func DevicePathToDeviceID(path string) ID {
	p := strings.TrimPrefix(path, `\\?\`)

	if strings.ContainsRune(p, '#') {
		if i := strings.LastIndexByte(p, '#'); i >= 0 {
			p = p[:i]
		}
		return NewID(strings.ReplaceAll(p, "#", `\`))
	}

	// sysfs flavor: the physical device path under /sys/devices
	p = strings.TrimPrefix(p, "/sys")
	p = strings.TrimPrefix(p, "/devices")
	p = strings.Trim(p, "/")
	return NewID(strings.ReplaceAll(p, "/", `\`))
}
