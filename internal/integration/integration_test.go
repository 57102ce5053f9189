// Package integration wires the registry, prober, and protocol handlers
// into a running lobbyd instance on ephemeral ports and drives it with
// real sockets, the way the original's test_integration.py exercised a
// live lobby.py process end to end.
package integration

import (
	"encoding/binary"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gg2-lobby/lobbyd/internal/constants"
	"github.com/gg2-lobby/lobbyd/internal/legacy"
	"github.com/gg2-lobby/lobbyd/internal/model"
	"github.com/gg2-lobby/lobbyd/internal/newstyle"
	"github.com/gg2-lobby/lobbyd/internal/probe"
	"github.com/gg2-lobby/lobbyd/internal/registry"
	"github.com/gg2-lobby/lobbyd/internal/status"
	"github.com/gg2-lobby/lobbyd/internal/throttle"
)

type lobby struct {
	registry      *registry.Registry
	legacyUDP     *net.UDPConn
	legacyTCP     net.Listener
	newstyleUDP   *net.UDPConn
	newstyleTCP   net.Listener
	statusServer  *httptest.Server
}

func startLobby(t *testing.T) *lobby {
	t.Helper()
	logger := zerolog.Nop()
	reg := registry.New(70*time.Second, logger)
	prober := probe.New(logger)
	filter := throttle.New()

	commit := func(s *model.GameServer) { reg.Put(s) }

	legacyRegister := legacy.NewRegisterHandler(filter, map[[4]byte]struct{}{}, prober, commit, logger)
	legacyQuery := legacy.NewQueryHandler(reg, logger)
	newstyleDispatch := newstyle.NewDispatcher(filter, map[[4]byte]struct{}{}, prober, commit, reg.Remove, logger)
	newstyleList := newstyle.NewListHandler(reg, logger)
	statusHandler := status.New(reg, logger)

	legacyUDP, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	legacyTCP, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	newstyleUDP, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	newstyleTCP, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)

	go serveUDP(legacyUDP, legacyRegister.HandleDatagram)
	go serveUDP(newstyleUDP, newstyleDispatch.HandleDatagram)
	go legacyQuery.Serve(legacyTCP)
	go newstyleList.Serve(newstyleTCP)

	mux := http.NewServeMux()
	mux.Handle("/status", statusHandler)
	statusServer := httptest.NewServer(mux)

	l := &lobby{
		registry:     reg,
		legacyUDP:    legacyUDP,
		legacyTCP:    legacyTCP,
		newstyleUDP:  newstyleUDP,
		newstyleTCP:  newstyleTCP,
		statusServer: statusServer,
	}
	t.Cleanup(func() {
		legacyUDP.Close()
		legacyTCP.Close()
		newstyleUDP.Close()
		newstyleTCP.Close()
		statusServer.Close()
	})
	return l
}

func serveUDP(conn *net.UDPConn, handle func([]byte, netip.AddrPort)) {
	buf := make([]byte, 65535)
	for {
		n, addr, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		handle(data, addr)
	}
}

func TestIntegration_StatusPageServesOK(t *testing.T) {
	l := startLobby(t)
	resp, err := http.Get(l.statusServer.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIntegration_NewStyleListEmptyReturnsZero(t *testing.T) {
	l := startLobby(t)
	conn, err := net.Dial("tcp", l.newstyleTCP.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	req := append(append([]byte{}, constants.NewStyleListProtocolID[:]...), constants.GG2LobbyID[:]...)
	_, err = conn.Write(req)
	require.NoError(t, err)

	count := readCount(t, conn)
	assert.Equal(t, uint32(0), count)
}

func TestIntegration_NewStyleRegisterThenList(t *testing.T) {
	l := startLobby(t)

	serverID := uuid.New()
	packet := buildNewStyleRegisterPacket(serverID, constants.GG2LobbyID, model.TransportUDP, 12345, 8, 2, 0, map[string]string{"name": "Test Server", "game": "Test Game"})

	udpConn, err := net.Dial("udp", l.newstyleUDP.LocalAddr().String())
	require.NoError(t, err)
	_, err = udpConn.Write(packet)
	require.NoError(t, err)
	udpConn.Close()

	require.Eventually(t, func() bool {
		return len(l.registry.ServersInLobby(constants.GG2LobbyID)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", l.newstyleTCP.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	req := append(append([]byte{}, constants.NewStyleListProtocolID[:]...), constants.GG2LobbyID[:]...)
	_, err = conn.Write(req)
	require.NoError(t, err)

	count := readCount(t, conn)
	require.Equal(t, uint32(1), count)

	recordLen := readU32(t, conn)
	record := make([]byte, recordLen)
	_, err = readFull(conn, record)
	require.NoError(t, err)
	assert.Equal(t, byte(model.TransportUDP), record[0])
	// record layout: transport(1) + ipv4 port(2)+ip(4) + ipv6 port(2)+ip(16) + slots(2)...
	slots := binary.BigEndian.Uint16(record[25:27])
	assert.Equal(t, uint16(8), slots)
}

func TestIntegration_LegacyRegisterAndQuery(t *testing.T) {
	l := startLobby(t)

	mockServer, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer mockServer.Close()
	accepted := make(chan struct{}, 1)
	go func() {
		conn, err := mockServer.Accept()
		if err != nil {
			return
		}
		accepted <- struct{}{}
		conn.Close()
	}()
	mockPort := uint16(mockServer.Addr().(*net.TCPAddr).Port)

	packet := buildLegacyRegisterPacket(1, mockPort, "Test Legacy Server [5/10]")
	udpConn, err := net.Dial("udp", l.legacyUDP.LocalAddr().String())
	require.NoError(t, err)
	_, err = udpConn.Write(packet)
	require.NoError(t, err)
	udpConn.Close()

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("lobby never connected back for the reachability check")
	}

	require.Eventually(t, func() bool {
		return len(l.registry.ServersInLobby(constants.GG2LobbyID)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", l.legacyTCP.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte{1})
	require.NoError(t, err)

	resp := make([]byte, 1024)
	n, err := conn.Read(resp)
	require.NoError(t, err)
	resp = resp[:n]
	require.Greater(t, len(resp), 0)
	assert.Equal(t, byte(1), resp[0])
	assert.Contains(t, string(resp[1:]), "Test Legacy Server")
}

func buildNewStyleRegisterPacket(serverID, lobbyID uuid.UUID, transport model.Transport, port, slots, players, bots uint16, kv map[string]string) []byte {
	var buf []byte
	buf = append(buf, constants.NewStyleRegisterProtocolID[:]...)
	buf = append(buf, serverID[:]...)
	buf = append(buf, lobbyID[:]...)
	buf = append(buf, byte(transport))
	u16 := func(v uint16) []byte {
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, v)
		return b
	}
	buf = append(buf, u16(port)...)
	buf = append(buf, u16(slots)...)
	buf = append(buf, u16(players)...)
	buf = append(buf, u16(bots)...)
	buf = append(buf, 0, 0) // reserved + flags
	buf = append(buf, u16(uint16(len(kv)))...)
	for k, v := range kv {
		buf = append(buf, byte(len(k)))
		buf = append(buf, []byte(k)...)
		buf = append(buf, u16(uint16(len(v)))...)
		buf = append(buf, []byte(v)...)
	}
	return buf
}

func buildLegacyRegisterPacket(version byte, port uint16, info string) []byte {
	var buf []byte
	buf = append(buf, constants.LegacyMagic[:]...)
	buf = append(buf, version)
	portBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(portBytes, port)
	buf = append(buf, portBytes...)
	buf = append(buf, byte(len(info)))
	buf = append(buf, []byte(info)...)
	return buf
}

func readCount(t *testing.T, conn net.Conn) uint32 {
	t.Helper()
	return readU32(t, conn)
}

func readU32(t *testing.T, conn net.Conn) uint32 {
	t.Helper()
	require.NoError(t, conn.SetDeadline(time.Now().Add(3*time.Second)))
	buf := make([]byte, 4)
	_, err := readFull(conn, buf)
	require.NoError(t, err)
	return binary.BigEndian.Uint32(buf)
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
