// Package probe implements the outbound TCP reachability check that gates
// registration: a candidate server is only committed to the registry once
// a plain TCP connect to its announced endpoint succeeds.
//
// Grounded on the original lobby's protocols/common.py
// (SimpleTCPReachabilityCheck: connect, on success put() and close, on
// failure drop silently) and on the teacher's outbound-dial idiom in
// internal/cli/agent/connect.go (net.DialTimeout with a fixed timeout).
package probe

import (
	"net"
	"net/netip"
	"time"

	"github.com/rs/zerolog"

	"github.com/gg2-lobby/lobbyd/internal/model"
)

// Timeout is the outbound connect timeout: a probe that has neither
// succeeded nor failed by this deadline is treated as a failure.
const Timeout = 5 * time.Second

// dialFunc matches net.DialTimeout's signature so tests can stub it.
type dialFunc func(network, address string, timeout time.Duration) (net.Conn, error)

// Prober performs one-shot outbound TCP reachability checks.
type Prober struct {
	timeout time.Duration
	dial    dialFunc
	logger  zerolog.Logger
}

// New creates a Prober with the default Timeout.
func New(logger zerolog.Logger) *Prober {
	return &Prober{
		timeout: Timeout,
		dial:    net.DialTimeout,
		logger:  logger,
	}
}

// Probe dials server's primary (IPv4) endpoint on its own goroutine. On
// connect success it closes the probe socket without exchanging data and
// invokes commit(server); on any failure it drops the candidate and logs.
// A server with no usable IPv4 endpoint is dropped immediately without
// spawning a goroutine.
func (p *Prober) Probe(server *model.GameServer, commit func(*model.GameServer)) {
	addr, ok := server.PrimaryAddr()
	if !ok {
		p.logger.Debug().Str("server_id", server.ServerID.String()).Msg("probe skipped: no ipv4 endpoint")
		return
	}

	go p.run(addr, server, commit)
}

func (p *Prober) run(addr netip.AddrPort, server *model.GameServer, commit func(*model.GameServer)) {
	conn, err := p.dial("tcp", addr.String(), p.timeout)
	if err != nil {
		p.logger.Info().
			Str("server_id", server.ServerID.String()).
			Str("addr", addr.String()).
			Err(err).
			Msg("reachability probe failed, dropping candidate")
		return
	}
	_ = conn.Close()

	p.logger.Debug().
		Str("server_id", server.ServerID.String()).
		Str("addr", addr.String()).
		Msg("reachability probe succeeded")
	commit(server)
}
