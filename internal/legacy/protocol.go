// Package legacy implements the "v1" Gang Garrison-style lobby protocol:
// a UDP registration datagram carrying a free-text info string, and a TCP
// query protocol keyed by a protocol UUID derived from that datagram.
//
// Grounded on the original lobby's protocols/gg2.py, byte for byte: the
// magic prefix, the simple-version-to-UUID scheme, the info regex, and
// the deterministic server_id synthesis from (ip, port).
package legacy

import (
	"math/big"
	"regexp"

	"github.com/google/uuid"

	"github.com/gg2-lobby/lobbyd/internal/constants"
)

// infoPattern parses the legacy free-text info string into its structured
// pieces. Ported verbatim from protocols/gg2.py's INFO_PATTERN (DOTALL,
// anchored to the whole buffer).
var infoPattern = regexp.MustCompile(`(?s)\A(!private!)?(?:\[([^\]]*)\])?\s*(.*?)\s*(?:\[(\d+)/(\d+)\])?(?: - (.*))?\z`)

// ParsedInfo is the structured result of parsing a legacy info string.
type ParsedInfo struct {
	Passworded bool
	Map        []byte // nil if absent
	Name       []byte
	Players    *int
	Slots      *int
	Mod        []byte // nil if absent, group 6
	Matched    bool   // false if the regex failed to match (Name holds the raw info instead)
}

// ParseInfo parses a legacy registration's free-text info field. The
// pattern always matches because every group is optional and Name's
// `(.*?)` is ungreedy, so the only failure mode the original guarded
// against is a non-match on degenerate input; this port preserves that
// fallback (Name = raw info, Matched = false) for parity even though a Go
// RE2 match of this particular pattern cannot actually fail on any input.
func ParseInfo(info []byte) ParsedInfo {
	m := infoPattern.FindSubmatch(info)
	if m == nil {
		return ParsedInfo{Name: info, Matched: false}
	}

	result := ParsedInfo{Matched: true}
	if m[1] != nil {
		result.Passworded = true
	}
	if m[2] != nil {
		result.Map = m[2]
	}
	result.Name = m[3]
	if m[4] != nil {
		n := atoiBytes(m[4])
		result.Players = &n
	}
	if m[5] != nil {
		n := atoiBytes(m[5])
		result.Slots = &n
	}
	if m[6] != nil {
		result.Mod = m[6]
	}
	return result
}

func atoiBytes(b []byte) int {
	n := 0
	for _, c := range b {
		n = n*10 + int(c-'0')
	}
	return n
}

// SimpleVersionToProtocolID decodes the leading version byte of a legacy
// registration datagram into the announced protocol UUID. If the version
// byte is 128, the UUID is the following 16 raw bytes and consumed is 17;
// otherwise the UUID is GG2_BASE_UUID + version (as a 128-bit integer) and
// consumed is 1. ok is false if data is too short to contain the UUID a
// version byte of 128 promises.
func SimpleVersionToProtocolID(data []byte) (id uuid.UUID, consumed int, ok bool) {
	if len(data) < 1 {
		return uuid.UUID{}, 0, false
	}
	if data[0] == 128 {
		if len(data) < 17 {
			return uuid.UUID{}, 0, false
		}
		copy(id[:], data[1:17])
		return id, 17, true
	}
	return addUUIDOffset(constants.GG2BaseUUID, uint64(data[0])), 1, true
}

// SynthesizeServerID derives a legacy server's server_id deterministically
// from its announced endpoint, matching protocols/gg2.py:
// GG2_BASE_UUID.int + (ipv4_u32 << 16) + port.
func SynthesizeServerID(ipv4 [4]byte, port uint16) uuid.UUID {
	ipU32 := uint64(ipv4[0])<<24 | uint64(ipv4[1])<<16 | uint64(ipv4[2])<<8 | uint64(ipv4[3])
	offset := new(big.Int).Lsh(big.NewInt(int64(ipU32)), 16)
	offset.Add(offset, big.NewInt(int64(port)))
	return addUUIDOffsetBig(constants.GG2BaseUUID, offset)
}

// addUUIDOffset treats base as a 128-bit big-endian integer and adds a
// small non-negative offset, matching Python's uuid.UUID(int=...) + int
// arithmetic. A UUID has no native arithmetic in any library in this
// module's dependency set (google/uuid included), so this one piece of
// 128-bit integer math is done with math/big, the standard library's
// arbitrary-precision integer type.
func addUUIDOffset(base uuid.UUID, offset uint64) uuid.UUID {
	return addUUIDOffsetBig(base, new(big.Int).SetUint64(offset))
}

func addUUIDOffsetBig(base uuid.UUID, offset *big.Int) uuid.UUID {
	baseInt := new(big.Int).SetBytes(base[:])
	sum := new(big.Int).Add(baseInt, offset)

	// Wrap into 128 bits the way a fixed-width integer would, though in
	// practice these offsets never approach overflow.
	mod := new(big.Int).Lsh(big.NewInt(1), 128)
	sum.Mod(sum, mod)

	var out uuid.UUID
	sumBytes := sum.Bytes()
	copy(out[16-len(sumBytes):], sumBytes)
	return out
}
