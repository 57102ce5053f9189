package legacy

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gg2-lobby/lobbyd/internal/cleanup"
	"github.com/gg2-lobby/lobbyd/internal/constants"
	"github.com/gg2-lobby/lobbyd/internal/model"
)

// ServersLister is the subset of *registry.Registry the query handler
// needs to answer a lobby query.
type ServersLister interface {
	ServersInLobby(lobbyID uuid.UUID) []*model.GameServer
}

// QueryHandler implements the legacy TCP query protocol (spec.md §4.F).
type QueryHandler struct {
	registry ServersLister
	logger   zerolog.Logger
}

// NewQueryHandler creates a legacy query handler backed by registry.
func NewQueryHandler(registry ServersLister, logger zerolog.Logger) *QueryHandler {
	return &QueryHandler{registry: registry, logger: logger}
}

// Serve accepts connections on ln until it is closed, handling each on
// its own goroutine.
func (h *QueryHandler) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go h.handleConn(conn)
	}
}

func (h *QueryHandler) handleConn(conn net.Conn) {
	defer cleanup.DeferClose(h.logger, conn, "closing legacy query connection")
	if err := conn.SetDeadline(time.Now().Add(constants.QueryConnectionTTL)); err != nil {
		return
	}

	buf := make([]byte, 0, 18)
	chunk := make([]byte, 18)
	for {
		n, err := conn.Read(chunk[:18-len(buf)])
		if err != nil {
			return
		}
		buf = append(buf, chunk[:n]...)
		if len(buf) == 0 {
			continue
		}

		if len(buf) > 17 {
			return // protocol violation: close without replying
		}
		if buf[0] != 128 || len(buf) == 17 {
			protocolID, _, ok := SimpleVersionToProtocolID(buf)
			if !ok {
				return
			}
			h.reply(conn, protocolID)
			return
		}
		// buf[0] == 128 and len(buf) < 17: the long-form UUID is still incoming.
	}
}

func (h *QueryHandler) reply(conn net.Conn, protocolID uuid.UUID) {
	servers := h.registry.ServersInLobby(constants.GG2LobbyID)

	var matched [][]byte
	for _, s := range servers {
		if s.IPv4Endpoint == nil {
			continue
		}
		if string(s.Infos["protocol_id"]) != string(protocolID[:]) {
			continue
		}
		matched = append(matched, formatLegacyServer(s))
		if len(matched) == 255 {
			break
		}
	}

	out := make([]byte, 0, 1)
	out = append(out, byte(len(matched)))
	for _, m := range matched {
		out = append(out, m...)
	}
	_, _ = conn.Write(out)

	h.logger.Debug().
		Str("protocol_id", protocolID.String()).
		Int("count", len(matched)).
		Msg("answered legacy query")
}

func formatLegacyServer(s *model.GameServer) []byte {
	var info []byte
	if s.Passworded {
		info = append(info, []byte("!private!")...)
	}
	if m, ok := s.Infos["map"]; ok {
		info = append(info, '[')
		info = append(info, m...)
		info = append(info, ']', ' ')
	}
	info = append(info, s.Name...)
	if s.Bots == 0 {
		info = append(info, []byte(fmt.Sprintf(" [%d/%d]", s.Players, s.Slots))...)
	} else {
		info = append(info, []byte(fmt.Sprintf(" [%d+%d/%d]", s.Players, s.Bots, s.Slots))...)
	}
	if len(info) > 255 {
		info = info[:255]
	}

	out := make([]byte, 0, 1+len(info)+4+2)
	out = append(out, byte(len(info)))
	out = append(out, info...)
	ipv4 := s.IPv4Endpoint.Addr().As4()
	out = append(out, ipv4[:]...)
	portBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(portBytes, s.IPv4Endpoint.Port())
	out = append(out, portBytes...)
	return out
}
