// Package model defines the registry's core record type.
package model

import (
	"fmt"
	"net/netip"

	"github.com/google/uuid"
)

// Transport identifies the wire transport a new-style registration was
// announced over. Legacy registrations are always implicitly TCP.
type Transport uint8

const (
	TransportTCP Transport = 0
	TransportUDP Transport = 1
)

func (t Transport) String() string {
	switch t {
	case TransportTCP:
		return "tcp"
	case TransportUDP:
		return "udp"
	default:
		return fmt.Sprintf("transport(%d)", uint8(t))
	}
}

// GameServer is a single announced server, identified by ServerID.
//
// A GameServer is created by a registration parser, handed to the
// reachability prober (unless its Transport is UDP), and only becomes
// visible to queries once committed into the registry. Once committed a
// record must not be mutated in place; updates replace it wholesale.
type GameServer struct {
	ServerID  uuid.UUID
	LobbyID   uuid.UUID
	Transport Transport

	// IPv4Endpoint and IPv6Endpoint are nil when unset. At least one must
	// be set for a record to be accepted by the registry.
	IPv4Endpoint *netip.AddrPort
	IPv6Endpoint *netip.AddrPort

	Name       []byte
	Slots      uint16
	Players    uint16
	Bots       uint16
	Passworded bool

	// Infos holds arbitrary protocol metadata as opaque byte strings.
	// Keys are capped at 255 bytes, values at 65535 bytes.
	Infos map[string][]byte
}

// NewGameServer returns an empty server identified by id/lobby, ready for
// a protocol handler to populate before handing it to the prober or registry.
func NewGameServer(id, lobby uuid.UUID) *GameServer {
	return &GameServer{
		ServerID: id,
		LobbyID:  lobby,
		Infos:    make(map[string][]byte),
	}
}

// PrimaryAddr returns the address a reachability probe should dial: the
// IPv4 endpoint, since the probe path is IPv4-only per spec.
func (s *GameServer) PrimaryAddr() (netip.AddrPort, bool) {
	if s.IPv4Endpoint == nil {
		return netip.AddrPort{}, false
	}
	return *s.IPv4Endpoint, true
}

// HasEndpoint reports whether the server has at least one endpoint set.
func (s *GameServer) HasEndpoint() bool {
	return s.IPv4Endpoint != nil || s.IPv6Endpoint != nil
}

// Clone returns a shallow copy of s, safe to hand to a caller that must
// not observe subsequent mutation of the registry's own record. Infos is
// copied one level deep since it is the only mutable reference field.
func (s *GameServer) Clone() *GameServer {
	clone := *s
	clone.Infos = make(map[string][]byte, len(s.Infos))
	for k, v := range s.Infos {
		clone.Infos[k] = v
	}
	return &clone
}

func (s *GameServer) String() string {
	addr := "none"
	if s.IPv4Endpoint != nil {
		addr = s.IPv4Endpoint.String()
	}
	return fmt.Sprintf("GameServer{id=%s, lobby=%s, name=%q, addr=%s}", s.ServerID, s.LobbyID, s.Name, addr)
}
