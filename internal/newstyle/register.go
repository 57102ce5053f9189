package newstyle

import (
	"encoding/binary"
	"net/netip"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gg2-lobby/lobbyd/internal/constants"
	"github.com/gg2-lobby/lobbyd/internal/model"
	"github.com/gg2-lobby/lobbyd/internal/probe"
	"github.com/gg2-lobby/lobbyd/internal/throttle"
)

// registerFixedLen is the length of the register sub-protocol body before
// the KV table: server_id(16) + lobby_id(16) + transport(1) + port(2) +
// slots(2) + players(2) + bots(2) + reserved(1) + flags(1) + kv_count(2).
const registerFixedLen = 16 + 16 + 1 + 2 + 2 + 2 + 2 + 1 + 1 + 2

// Dispatcher implements the new-style UDP registration protocol
// (spec.md §4.G): it frames every datagram by a 16-byte sub-protocol
// UUID and dispatches to the register or unregister handler, silently
// dropping anything else.
type Dispatcher struct {
	filter    *throttle.RecentEndpointFilter
	bannedIPs map[[4]byte]struct{}
	prober    *probe.Prober
	commit    func(*model.GameServer)
	remove    func(uuid.UUID)
	logger    zerolog.Logger
}

// NewDispatcher creates a new-style UDP registration dispatcher. commit
// is invoked once a TCP-transport candidate's probe succeeds, or
// immediately for a UDP-transport candidate (the prober bypass spec.md
// §4.D documents). remove implements unregister, typically wrapping
// (*registry.Registry).Remove.
func NewDispatcher(filter *throttle.RecentEndpointFilter, bannedIPs map[[4]byte]struct{}, prober *probe.Prober, commit func(*model.GameServer), remove func(uuid.UUID), logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		filter:    filter,
		bannedIPs: bannedIPs,
		prober:    prober,
		commit:    commit,
		remove:    remove,
		logger:    logger,
	}
}

// HandleDatagram processes one new-style datagram received from src.
func (d *Dispatcher) HandleDatagram(data []byte, src netip.AddrPort) {
	if len(data) < 16 {
		return
	}
	var subID uuid.UUID
	copy(subID[:], data[:16])
	body := data[16:]

	switch subID {
	case constants.NewStyleRegisterProtocolID:
		d.handleRegister(body, src)
	case constants.NewStyleUnregisterProtocolID:
		d.handleUnregister(body)
	default:
		// unknown sub-protocol UUID: silently dropped per spec.md §4.G.
	}
}

func (d *Dispatcher) handleRegister(data []byte, src netip.AddrPort) {
	if !d.filter.Admit(src) {
		return
	}
	if len(data) < registerFixedLen {
		return
	}

	var serverID, lobbyID uuid.UUID
	copy(serverID[:], data[0:16])
	copy(lobbyID[:], data[16:32])

	transport := model.Transport(data[32])
	if transport != model.TransportTCP && transport != model.TransportUDP {
		return
	}

	port := binary.BigEndian.Uint16(data[33:35])
	if port == 0 {
		return
	}
	if !src.Addr().Is4() {
		return
	}
	ipv4 := src.Addr().As4()
	if _, banned := d.bannedIPs[ipv4]; banned {
		d.logger.Info().Str("ip", src.Addr().String()).Msg("new-style registration rejected: banned ip")
		return
	}

	slots := binary.BigEndian.Uint16(data[35:37])
	players := binary.BigEndian.Uint16(data[37:39])
	bots := binary.BigEndian.Uint16(data[39:41])
	// data[41] is reserved/zero.
	flags := data[42]
	kvCount := binary.BigEndian.Uint16(data[43:45])

	infos, ok := parseKV(data[45:], kvCount)
	if !ok {
		return
	}
	name, hasName := infos["name"]
	if !hasName {
		return
	}
	delete(infos, "name")

	server := model.NewGameServer(serverID, lobbyID)
	server.Transport = transport
	endpoint := netip.AddrPortFrom(netip.AddrFrom4(ipv4), port)
	server.IPv4Endpoint = &endpoint
	server.Slots, server.Players, server.Bots = slots, players, bots
	server.Passworded = flags&1 != 0
	server.Infos = infos
	server.Name = name

	if transport == model.TransportTCP {
		d.prober.Probe(server, d.commit)
	} else {
		d.commit(server)
	}
}

func (d *Dispatcher) handleUnregister(data []byte) {
	if len(data) != 16 {
		return
	}
	var serverID uuid.UUID
	copy(serverID[:], data)
	d.remove(serverID)
}
