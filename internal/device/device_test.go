package device_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xfajk/comp-gate/internal/device"
	"github.com/xfajk/comp-gate/internal/device/devicetest"
	"github.com/xfajk/comp-gate/internal/oserr"
)

func TestNewID(t *testing.T) {
	assert.Equal(t, device.ID(`USB\VID_1234\0`), device.NewID(" usb\\vid_1234\\0 "))
	assert.Equal(t, device.ID(""), device.NewID("  "))
}

func TestFromInstance(t *testing.T) {
	inst := &devicetest.FakeInstance{
		ID:           `USB\VID_046D&PID_C52B\5&2752457F&0&2`,
		Parent:       `usb\root_hub\4&1`,
		Service:      "HidUsb",
		Class:        "HIDClass",
		FriendlyName: "USB Receiver",
		DevType:      "usb_device",
		Description:  "Logitech",
	}

	dev, err := device.FromInstance(inst)
	require.NoError(t, err)

	assert.Equal(t, device.ID(`USB\VID_046D&PID_C52B\5&2752457F&0&2`), dev.ID)
	assert.Equal(t, device.ID(`USB\ROOT_HUB\4&1`), dev.ParentID, "parent id is canonicalized")
	assert.Equal(t, "hidusb", dev.Service, "driver service is matched case-insensitively")
	assert.Equal(t, "HIDClass", dev.Class)
	assert.Equal(t, "USB Receiver", dev.FriendlyName)
	assert.Equal(t, "usb_device", dev.DevType)
	assert.Equal(t, "Logitech", dev.Description)
	assert.Equal(t, uint32(0), dev.TreeLevel)
	assert.Empty(t, dev.Children)
}

func TestFromInstanceIDRequired(t *testing.T) {
	inst := &devicetest.FakeInstance{
		IDErr: oserr.New(oserr.KindAccessDenied, "device id", ""),
	}

	_, err := device.FromInstance(inst)
	require.Error(t, err)
	assert.True(t, oserr.IsKind(err, oserr.KindAccessDenied))
}

func TestFromInstanceToleratesMissingProperties(t *testing.T) {
	inst := &devicetest.FakeInstance{ID: `USB\BARE\1`}

	dev, err := device.FromInstance(inst)
	require.NoError(t, err)

	assert.Equal(t, device.ID(`USB\BARE\1`), dev.ID)
	assert.Empty(t, dev.ParentID)
	assert.Empty(t, dev.Service)
	assert.Empty(t, dev.FriendlyName)
}

func TestFromInstanceSkipsNonStringProperty(t *testing.T) {
	inst := &devicetest.FakeInstance{
		ID: `USB\RAW\1`,
		RawProps: map[device.PropertyKey]device.Property{
			device.KeyFriendlyName: {Type: device.PropRaw, Raw: []byte{0x01, 0x02}},
		},
	}

	dev, err := device.FromInstance(inst)
	require.NoError(t, err)
	assert.Empty(t, dev.FriendlyName, "binary payloads do not populate string fields")
}

func TestIsHub(t *testing.T) {
	hubDrivers := []string{"hub", "usbhub", "usbhub3"}

	hub := &device.Device{ID: `USB\ROOT_HUB30\4&1`, Service: "usbhub3"}
	mouse := &device.Device{ID: `USB\VID_046D\1`, Service: "hidusb"}
	bare := &device.Device{ID: `USB\BARE\1`}

	assert.True(t, hub.IsHub(hubDrivers))
	assert.False(t, mouse.IsHub(hubDrivers))
	assert.False(t, bare.IsHub(hubDrivers))
}

func TestSetStateDelegates(t *testing.T) {
	inst := &devicetest.FakeInstance{ID: `USB\VID_046D\1`}
	dev, err := device.FromInstance(inst)
	require.NoError(t, err)

	require.NoError(t, dev.SetState(device.Disable))
	require.NoError(t, dev.SetState(device.Enable))
	assert.Equal(t, []device.State{device.Disable, device.Enable}, inst.States)

	inst.StateErr = errors.New("unbind failed")
	assert.Error(t, dev.SetState(device.Disable))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "enable", device.Enable.String())
	assert.Equal(t, "disable", device.Disable.String())
}

func TestWriteTree(t *testing.T) {
	child := &device.Device{
		ID:        `USB\VID_046D\1`,
		Service:   "hidusb",
		TreeLevel: 1,
		Children:  map[device.ID]*device.Device{},
	}
	root := &device.Device{
		ID:           `USB\ROOT_HUB30\4&1`,
		Service:      "usbhub3",
		FriendlyName: "Root Hub",
		TreeLevel:    0,
		Children:     map[device.ID]*device.Device{child.ID: child},
	}

	var b strings.Builder
	root.WriteTree(&b)
	out := b.String()

	assert.Contains(t, out, `Device ID: USB\ROOT_HUB30\4&1`)
	assert.Contains(t, out, "Sub-device:")
	assert.Contains(t, out, "\t"+`Device ID: USB\VID_046D\1`)
	assert.Contains(t, out, "None", "absent properties render as None")
}
