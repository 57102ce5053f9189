package newstyle

import (
	"encoding/binary"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gg2-lobby/lobbyd/internal/constants"
	"github.com/gg2-lobby/lobbyd/internal/model"
)

type fakeLister struct {
	servers []*model.GameServer
}

func (f *fakeLister) ServersInLobby(lobbyID uuid.UUID) []*model.GameServer {
	return f.servers
}

func TestListHandler_RoundTripReturnsMatchingLobbyServers(t *testing.T) {
	lobbyID := uuid.New()
	s := model.NewGameServer(uuid.New(), lobbyID)
	s.Name = []byte("My Server")
	s.Slots, s.Players = 16, 3
	ep := netip.AddrPortFrom(netip.AddrFrom4([4]byte{10, 0, 0, 1}), 27015)
	s.IPv4Endpoint = &ep
	s.Infos["map"] = []byte("ctf_2fort")

	h := NewListHandler(&fakeLister{servers: []*model.GameServer{s}}, zerolog.Nop())
	clientConn, serverConn := net.Pipe()
	go h.handleConn(serverConn)

	require.NoError(t, clientConn.SetDeadline(time.Now().Add(2*time.Second)))
	req := append(append([]byte{}, constants.NewStyleListProtocolID[:]...), lobbyID[:]...)
	_, err := clientConn.Write(req)
	require.NoError(t, err)

	header := make([]byte, 4)
	_, err = readFull(clientConn, header)
	require.NoError(t, err)
	count := binary.BigEndian.Uint32(header)
	assert.Equal(t, uint32(1), count)

	lenBuf := make([]byte, 4)
	_, err = readFull(clientConn, lenBuf)
	require.NoError(t, err)
	recordLen := binary.BigEndian.Uint32(lenBuf)

	record := make([]byte, recordLen)
	_, err = readFull(clientConn, record)
	require.NoError(t, err)

	assert.Equal(t, byte(model.TransportTCP), record[0])
	port := binary.BigEndian.Uint16(record[1:3])
	assert.Equal(t, uint16(27015), port)
	assert.Equal(t, []byte{10, 0, 0, 1}, record[3:7])
}

func TestListHandler_WrongProtocolUUIDRejected(t *testing.T) {
	h := NewListHandler(&fakeLister{}, zerolog.Nop())
	clientConn, serverConn := net.Pipe()
	go h.handleConn(serverConn)

	require.NoError(t, clientConn.SetDeadline(time.Now().Add(2*time.Second)))
	wrongProtocol, lobby := uuid.New(), uuid.New()
	req := append(append([]byte{}, wrongProtocol[:]...), lobby[:]...)
	_, err := clientConn.Write(req)
	require.NoError(t, err)

	buf := make([]byte, 8)
	_, err = clientConn.Read(buf)
	assert.Error(t, err)
}

func TestListHandler_TooManyBytesRejected(t *testing.T) {
	h := NewListHandler(&fakeLister{}, zerolog.Nop())
	clientConn, serverConn := net.Pipe()
	go h.handleConn(serverConn)

	require.NoError(t, clientConn.SetDeadline(time.Now().Add(2*time.Second)))
	lobby := uuid.New()
	req := append(append([]byte{}, constants.NewStyleListProtocolID[:]...), lobby[:]...)
	req = append(req, 0xFF) // one extra byte
	_, err := clientConn.Write(req)
	require.NoError(t, err)

	buf := make([]byte, 8)
	_, err = clientConn.Read(buf)
	assert.Error(t, err)
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
