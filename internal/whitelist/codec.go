package whitelist

import (
	"encoding/binary"
	"errors"
	"unicode/utf8"

	"github.com/xfajk/comp-gate/internal/device"
)

// The persisted encoding is a sequence of
// [8-byte little-endian length][UTF-8 id bytes] records.

func encodeSet(set map[device.ID]struct{}) []byte {
	var out []byte
	for id := range set {
		b := []byte(id)
		out = binary.LittleEndian.AppendUint64(out, uint64(len(b)))
		out = append(out, b...)
	}
	return out
}

func decodeSet(raw []byte) (map[device.ID]struct{}, error) {
	set := make(map[device.ID]struct{})
	for i := 0; i < len(raw); {
		if len(raw)-i < 8 {
			return nil, errors.New("corrupt whitelist data: unexpected EOF reading length")
		}
		n := binary.LittleEndian.Uint64(raw[i : i+8])
		i += 8
		if uint64(len(raw)-i) < n {
			return nil, errors.New("corrupt whitelist data: unexpected EOF reading id")
		}
		b := raw[i : i+int(n)]
		if !utf8.Valid(b) {
			return nil, errors.New("corrupt whitelist data: invalid UTF-8 in id")
		}
		set[device.ID(b)] = struct{}{}
		i += int(n)
	}
	return set, nil
}
