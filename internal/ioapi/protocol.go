// Package ioapi defines the daemon's wire protocol and the event loop
// that serves it.
//
// Requests are framed as [4-byte big-endian length][1-byte opcode]
// [argument bytes]; responses as [4-byte big-endian length][UTF-8
// text]. The whole remainder of a request body after the opcode is the
// single argument.
package ioapi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xfajk/comp-gate/internal/device"
)

type Opcode uint8

const (
	OpGetDeviceList     Opcode = 2
	OpDisableDevice     Opcode = 3
	OpEnableDevice      Opcode = 4
	OpGetConnectionLogs Opcode = 5
)

// MaxFrameSize caps a single frame; anything larger is treated as a
// protocol violation on that connection.
const MaxFrameSize = 64 << 10

// ErrUnparseable marks a request body that does not decode into a
// command. The caller discards the request; the connection survives.
var ErrUnparseable = errors.New("unparseable ioapi command")

type Command struct {
	Op       Opcode
	DeviceID device.ID
}

// ParseCommand decodes a request body into a command.
func ParseCommand(body []byte) (Command, error) {
	if len(body) == 0 {
		return Command{}, ErrUnparseable
	}
	op := Opcode(body[0])
	arg := strings.TrimSpace(string(body[1:]))

	switch op {
	case OpGetDeviceList, OpGetConnectionLogs:
		return Command{Op: op}, nil
	case OpDisableDevice, OpEnableDevice:
		if arg == "" {
			return Command{}, fmt.Errorf("%w: opcode %d without a device id", ErrUnparseable, op)
		}
		return Command{Op: op, DeviceID: device.NewID(arg)}, nil
	default:
		return Command{}, fmt.Errorf("%w: unknown opcode %d", ErrUnparseable, op)
	}
}

// Encode serializes the command into a request body (without the
// length prefix).
func (c Command) Encode() []byte {
	body := []byte{byte(c.Op)}
	if c.DeviceID != "" {
		body = append(body, []byte(c.DeviceID)...)
	}
	return body
}

// WriteFrame writes one length-prefixed frame in a single Write call.
func WriteFrame(w io.Writer, body []byte) error {
	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[4:], body)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one length-prefixed frame. io.ReadFull keeps reading
// until the frame is complete, so a frame split across packets never
// wedges the connection.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds the %d byte limit", n, MaxFrameSize)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
