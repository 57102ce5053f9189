// Package constants defines the wire-level literals and default timings
// normative across the lobby's protocols.
package constants

import (
	"time"

	"github.com/google/uuid"
)

// Ports. The web port is the external HTTP status page; it is not part of
// the core registration/query protocols.
const (
	DefaultLegacyPort   = 29942
	DefaultNewStylePort = 29944
	DefaultWebPort      = 29950
)

// Timing constants, normative per spec.md §2/§6.
const (
	ServerExpiration      = 70 * time.Second
	RegistrationThrottle  = 10 * time.Second
	ConnectionTimeout     = 5 * time.Second
	QueryConnectionTTL    = 5 * time.Second
)

// LegacyMagic prefixes every legacy registration datagram.
var LegacyMagic = [6]byte{0x04, 0x08, 0x0F, 0x10, 0x17, 0x2A}

// Well-known UUIDs, literal and normative per spec.md §6.
var (
	GG2BaseUUID   = uuid.MustParse("dea41970-4cea-a588-df40-62faef6f1738")
	GG2LobbyID    = uuid.MustParse("1ccf16b1-436d-856f-504d-cc1af306aaa7")
	NewStyleListProtocolID       = uuid.MustParse("297d0df4-430c-bf61-640a-640897eaef57")
	NewStyleRegisterProtocolID   = uuid.MustParse("b5dae2e8-424f-9ed0-0fcb-8c21c7ca1352")
	NewStyleUnregisterProtocolID = uuid.MustParse("488984ac-45dc-86e1-9901-98dd1c01c064")
)

// KnownLobbies maps well-known lobby UUIDs to a display name for the
// status page, carried over from the original's weblist.py table.
var KnownLobbies = map[uuid.UUID]string{
	GG2LobbyID:                              "Gang Garrison Lobby",
	uuid.MustParse("0e29560e-443a-93a3-e15e-7bd072df7506"): "PyGG2 Testing Lobby",
	uuid.MustParse("4fd0319b-5868-4f24-8b77-568cbb18fde9"): "Vanguard Lobby",
}
