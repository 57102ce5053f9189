package legacy

import (
	"encoding/binary"
	"net/netip"

	"github.com/rs/zerolog"

	"github.com/gg2-lobby/lobbyd/internal/constants"
	"github.com/gg2-lobby/lobbyd/internal/model"
	"github.com/gg2-lobby/lobbyd/internal/probe"
	"github.com/gg2-lobby/lobbyd/internal/throttle"
)

var (
	legacyGameInfo      = []byte("Legacy Gang Garrison 2 version or mod")
	legacyGameShortInfo = []byte("old")
	ohuGameInfo         = []byte("Orpheon's Hosting Utilities")
	ohuGameShortInfo    = []byte("ohu")
	ohuGameURLInfo      = []byte("http://www.ganggarrison.com/forums/index.php?topic=28839.0")
)

// RegisterHandler implements the legacy UDP registration protocol
// (spec.md §4.E).
type RegisterHandler struct {
	filter    *throttle.RecentEndpointFilter
	bannedIPs map[[4]byte]struct{}
	prober    *probe.Prober
	commit    func(*model.GameServer)
	logger    zerolog.Logger
}

// NewRegisterHandler creates a legacy registration handler. commit is
// called once a candidate's reachability probe succeeds; typically it
// wraps (*registry.Registry).Put.
func NewRegisterHandler(filter *throttle.RecentEndpointFilter, bannedIPs map[[4]byte]struct{}, prober *probe.Prober, commit func(*model.GameServer), logger zerolog.Logger) *RegisterHandler {
	return &RegisterHandler{
		filter:    filter,
		bannedIPs: bannedIPs,
		prober:    prober,
		commit:    commit,
		logger:    logger,
	}
}

// HandleDatagram processes one legacy registration datagram received
// from src. Malformed or policy-denied datagrams are dropped silently,
// per spec.md §7.
func (h *RegisterHandler) HandleDatagram(data []byte, src netip.AddrPort) {
	if !h.filter.Admit(src) {
		return
	}

	if len(data) < 6 || [6]byte(data[:6]) != constants.LegacyMagic {
		return
	}
	data = data[6:]

	protocolID, consumed, ok := SimpleVersionToProtocolID(data)
	if !ok {
		return
	}
	data = data[consumed:]

	if len(data) < 3 {
		return
	}
	port := binary.LittleEndian.Uint16(data[:2])
	infolen := int(data[2])
	info := data[3:]
	if len(info) != infolen {
		return
	}

	if !src.Addr().Is4() {
		return
	}
	ipv4 := src.Addr().As4()
	if _, banned := h.bannedIPs[ipv4]; banned {
		h.logger.Info().Str("ip", src.Addr().String()).Msg("legacy registration rejected: banned ip")
		return
	}

	serverID := SynthesizeServerID(ipv4, port)
	server := model.NewGameServer(serverID, constants.GG2LobbyID)
	server.Infos["protocol_id"] = protocolID[:]
	server.Infos["game"] = legacyGameInfo
	server.Infos["game_short"] = legacyGameShortInfo

	parsed := ParseInfo(info)
	if parsed.Matched {
		applyParsedInfo(server, parsed)
	} else {
		server.Name = parsed.Name
	}

	endpoint := netip.AddrPortFrom(netip.AddrFrom4(ipv4), port)
	server.IPv4Endpoint = &endpoint

	h.prober.Probe(server, h.commit)
}

func applyParsedInfo(server *model.GameServer, parsed ParsedInfo) {
	if parsed.Passworded {
		server.Passworded = true
	}
	if parsed.Map != nil {
		server.Infos["map"] = parsed.Map
	}
	server.Name = parsed.Name
	if parsed.Players != nil {
		server.Players = uint16(*parsed.Players)
	}
	if parsed.Slots != nil {
		server.Slots = uint16(*parsed.Slots)
	}
	if parsed.Mod != nil {
		if string(parsed.Mod) == "OHU" {
			server.Infos["game"] = ohuGameInfo
			server.Infos["game_short"] = ohuGameShortInfo
			server.Infos["game_url"] = ohuGameURLInfo
		} else {
			server.Infos["game"] = parsed.Mod
			if len(parsed.Mod) <= 10 {
				delete(server.Infos, "game_short")
			}
		}
	}
}
