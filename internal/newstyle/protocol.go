// Package newstyle implements the modern, UUID-framed lobby protocol:
// a UDP sub-protocol dispatch for register/unregister, and a TCP list
// protocol that returns full typed records for any lobby.
//
// Grounded on the original lobby's protocols/newstyle.py (the
// REG_PROTOCOLS dispatch table and GG2RegHandler/GG2UnregHandler byte
// layouts) and, for Go structuring, on the teacher's discovery registry
// types (internal/discovery/registry.Entry) for how a committed record's
// fields map onto a wire struct.
package newstyle

import (
	"encoding/binary"
)

// parseKV parses count strictly left-to-right length-prefixed key/value
// pairs from buf, matching protocols/newstyle.py's GG2RegHandler loop: any
// length that would overrun the remaining buffer rejects the whole
// datagram.
func parseKV(buf []byte, count uint16) (map[string][]byte, bool) {
	infos := make(map[string][]byte, count)
	for i := 0; i < int(count); i++ {
		if len(buf) < 1 {
			return nil, false
		}
		keyLen := int(buf[0])
		if len(buf) < 1+keyLen+2 {
			return nil, false
		}
		key := buf[1 : 1+keyLen]
		valueLen := int(binary.BigEndian.Uint16(buf[1+keyLen : 3+keyLen]))
		if len(buf) < 3+keyLen+valueLen {
			return nil, false
		}
		value := buf[3+keyLen : 3+keyLen+valueLen]
		infos[string(key)] = value
		buf = buf[3+keyLen+valueLen:]
	}
	return infos, true
}
