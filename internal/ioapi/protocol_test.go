package ioapi_test

import (
	"bytes"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xfajk/comp-gate/internal/ioapi"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		want    ioapi.Command
		wantErr bool
	}{
		{
			name:    "empty body",
			body:    nil,
			wantErr: true,
		},
		{
			name: "get device list",
			body: []byte{2},
			want: ioapi.Command{Op: ioapi.OpGetDeviceList},
		},
		{
			name: "get device list ignores trailing bytes",
			body: []byte("\x02junk"),
			want: ioapi.Command{Op: ioapi.OpGetDeviceList},
		},
		{
			name: "get connection logs",
			body: []byte{5},
			want: ioapi.Command{Op: ioapi.OpGetConnectionLogs},
		},
		{
			name: "disable with id",
			body: []byte("\x03usb\\vid_046d&pid_c52b\\5&2752457f&0&2"),
			want: ioapi.Command{
				Op:       ioapi.OpDisableDevice,
				DeviceID: `USB\VID_046D&PID_C52B\5&2752457F&0&2`,
			},
		},
		{
			name: "enable keeps embedded spaces in the id",
			body: []byte("\x04usb\\my device\\1 "),
			want: ioapi.Command{
				Op:       ioapi.OpEnableDevice,
				DeviceID: `USB\MY DEVICE\1`,
			},
		},
		{
			name:    "disable without id",
			body:    []byte{3},
			wantErr: true,
		},
		{
			name:    "enable with only whitespace",
			body:    []byte("\x04   "),
			wantErr: true,
		},
		{
			name:    "unknown opcode",
			body:    []byte("\x09whatever"),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ioapi.ParseCommand(tt.body)
			if tt.wantErr {
				require.ErrorIs(t, err, ioapi.ErrUnparseable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
		})
	}
}

func TestCommandEncodeRoundTrip(t *testing.T) {
	in := ioapi.Command{Op: ioapi.OpEnableDevice, DeviceID: `USB\VID_1234\0`}
	out, err := ioapi.ParseCommand(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := []byte("\x02")
	require.NoError(t, ioapi.WriteFrame(&buf, body))

	got, err := ioapi.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestReadFrameHandlesPartialReads(t *testing.T) {
	var buf bytes.Buffer
	body := []byte("\x03USB\\VID_1234\\0")
	require.NoError(t, ioapi.WriteFrame(&buf, body))

	// One byte per Read call: the frame must still assemble.
	got, err := ioapi.ReadFrame(iotest.OneByteReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestReadFrameRejectsOversizedFrame(t *testing.T) {
	buf := []byte{0xff, 0xff, 0xff, 0xff}
	_, err := ioapi.ReadFrame(bytes.NewReader(buf))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestConnectionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comp-gate.txt")

	require.NoError(t, ioapi.WriteConnectionFile(path, "127.0.0.1:45831"))
	addr, err := ioapi.ResolveCoreAddr(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:45831", addr)
}

func TestResolveCoreAddrErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := ioapi.ResolveCoreAddr(filepath.Join(dir, "nope.txt"))
		require.Error(t, err)
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.txt")
		require.NoError(t, ioapi.WriteConnectionFile(path, ""))
		_, err := ioapi.ResolveCoreAddr(path)
		require.Error(t, err)
	})

	t.Run("malformed address", func(t *testing.T) {
		path := filepath.Join(dir, "bad.txt")
		require.NoError(t, ioapi.WriteConnectionFile(path, "not-an-address"))
		_, err := ioapi.ResolveCoreAddr(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed address")
	})
}
