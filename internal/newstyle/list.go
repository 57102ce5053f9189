package newstyle

import (
	"bytes"
	"encoding/binary"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gg2-lobby/lobbyd/internal/cleanup"
	"github.com/gg2-lobby/lobbyd/internal/constants"
	"github.com/gg2-lobby/lobbyd/internal/model"
)

// ServersLister exposes the registry slice a ListHandler needs.
type ServersLister interface {
	ServersInLobby(lobbyID uuid.UUID) []*model.GameServer
}

// ListHandler implements the new-style TCP list protocol (spec.md §4.H):
// a client opens a connection and sends exactly 32 bytes, a protocol
// UUID followed by a lobby UUID, and receives every server known in
// that lobby encoded as length-prefixed typed records.
type ListHandler struct {
	registry ServersLister
	logger   zerolog.Logger
}

// NewListHandler returns a ListHandler backed by registry.
func NewListHandler(registry ServersLister, logger zerolog.Logger) *ListHandler {
	return &ListHandler{registry: registry, logger: logger}
}

// Serve accepts connections on ln until it returns an error, handling
// each on its own goroutine.
func (h *ListHandler) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go h.handleConn(conn)
	}
}

func (h *ListHandler) handleConn(conn net.Conn) {
	defer cleanup.DeferClose(h.logger, conn, "closing new-style list connection")
	_ = conn.SetDeadline(time.Now().Add(constants.ConnectionTimeout))

	// Read with headroom beyond the expected 32 bytes so an oversized
	// datagram is caught in the same read rather than silently truncated.
	var buffered []byte
	buf := make([]byte, 64)
	for len(buffered) < 32 {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		buffered = append(buffered, buf[:n]...)
	}

	if len(buffered) > 32 {
		h.logger.Debug().Int("len", len(buffered)).Msg("new-style list query received too many bytes")
		return
	}

	var protocolID, lobbyID uuid.UUID
	copy(protocolID[:], buffered[:16])
	copy(lobbyID[:], buffered[16:32])
	if protocolID != constants.NewStyleListProtocolID {
		h.logger.Debug().Str("protocol_id", protocolID.String()).Msg("new-style list query received wrong protocol UUID")
		return
	}

	h.reply(conn, lobbyID)
}

func (h *ListHandler) reply(conn net.Conn, lobbyID uuid.UUID) {
	servers := h.registry.ServersInLobby(lobbyID)

	var body bytes.Buffer
	for _, s := range servers {
		body.Write(formatNewStyleServer(s))
	}

	var out bytes.Buffer
	count := make([]byte, 4)
	binary.BigEndian.PutUint32(count, uint32(len(servers)))
	out.Write(count)
	out.Write(body.Bytes())

	_, _ = conn.Write(out.Bytes())
	h.logger.Debug().Str("lobby_id", lobbyID.String()).Int("count", len(servers)).Msg("served new-style list query")
}

// formatNewStyleServer encodes a single record the way
// protocols/newstyle.py's formatServerData does: a 4-byte big-endian
// length prefix around a fixed endpoint/count header followed by the
// key/value table, with name folded back into a copy of Infos.
func formatNewStyleServer(s *model.GameServer) []byte {
	var record bytes.Buffer
	record.WriteByte(byte(s.Transport))

	if s.IPv4Endpoint != nil {
		writeU16(&record, s.IPv4Endpoint.Port())
		ip := s.IPv4Endpoint.Addr().As4()
		record.Write(ip[:])
	} else {
		writeU16(&record, 0)
		record.Write(make([]byte, 4))
	}

	if s.IPv6Endpoint != nil {
		writeU16(&record, s.IPv6Endpoint.Port())
		ip := s.IPv6Endpoint.Addr().As16()
		record.Write(ip[:])
	} else {
		writeU16(&record, 0)
		record.Write(make([]byte, 16))
	}

	writeU16(&record, s.Slots)
	writeU16(&record, s.Players)
	writeU16(&record, s.Bots)

	var flags uint16
	if s.Passworded {
		flags = 1
	}
	writeU16(&record, flags)

	infos := make(map[string][]byte, len(s.Infos)+1)
	for k, v := range s.Infos {
		infos[k] = v
	}
	infos["name"] = s.Name

	writeU16(&record, uint16(len(infos)))
	for k, v := range infos {
		record.Write(formatKeyValue([]byte(k), v))
	}

	framed := make([]byte, 4, 4+record.Len())
	binary.BigEndian.PutUint32(framed, uint32(record.Len()))
	return append(framed, record.Bytes()...)
}

func formatKeyValue(k, v []byte) []byte {
	if len(k) > 255 {
		k = k[:255]
	}
	if len(v) > 65535 {
		v = v[:65535]
	}
	out := make([]byte, 0, 3+len(k)+len(v))
	out = append(out, byte(len(k)))
	out = append(out, k...)
	vlen := make([]byte, 2)
	binary.BigEndian.PutUint16(vlen, uint16(len(v)))
	out = append(out, vlen...)
	out = append(out, v...)
	return out
}

func writeU16(buf *bytes.Buffer, v uint16) {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	buf.Write(b)
}
