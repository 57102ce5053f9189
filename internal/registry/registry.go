// Package registry implements the in-memory indexed set of live game
// servers, grouped by lobby, with endpoint-uniqueness enforcement and
// time-based expiration.
//
// The indexing and eviction structure is grounded on the teacher's
// internal/discovery/registry.Registry (TTL-stamped entries, a Cleanup
// sweep triggered from API calls), generalized to the three indices
// (by_id, by_endpoint, by_lobby) the original Python lobby's
// GameServerList kept, whose put/remove contract this registry
// reproduces exactly.
package registry

import (
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gg2-lobby/lobbyd/internal/expiry"
	"github.com/gg2-lobby/lobbyd/internal/model"
)

// Expiration is the server record retention window: an un-refreshed
// record is evicted this long after its last Put.
const Expiration = 70 * time.Second

// Registry is an indexed, mutex-protected store of GameServer records.
// Every public method sweeps expired records before touching the
// indices, per spec.md §9 ("sweeps are pull-based").
type Registry struct {
	mu sync.Mutex

	byID        map[uuid.UUID]*model.GameServer
	byEndpt     map[netip.AddrPort]uuid.UUID
	byLobby     map[uuid.UUID]map[uuid.UUID]*model.GameServer // lobbyID -> serverID -> server
	expirations *expiry.Set[uuid.UUID]

	logger zerolog.Logger
}

// New creates an empty Registry whose records expire after ttl.
func New(ttl time.Duration, logger zerolog.Logger) *Registry {
	r := &Registry{
		byID:    make(map[uuid.UUID]*model.GameServer),
		byEndpt: make(map[netip.AddrPort]uuid.UUID),
		byLobby: make(map[uuid.UUID]map[uuid.UUID]*model.GameServer),
		logger:  logger,
	}
	r.expirations = expiry.New(ttl, r.evict)
	return r
}

// evict is the expiry.Set callback; it is only ever invoked while mu is
// already held, from a Discard in Put or Remove or from the Sweep that
// every public method runs.
func (r *Registry) evict(id uuid.UUID, expired bool) {
	server, ok := r.byID[id]
	if !ok {
		// Structurally unreachable: every key ever added to expirations
		// was added alongside an entry in byID in the same critical
		// section, and the only way to remove from byID is this callback.
		panic("registry: evict called for unknown server id")
	}
	delete(r.byID, id)
	if server.IPv4Endpoint != nil {
		delete(r.byEndpt, *server.IPv4Endpoint)
	}
	if server.IPv6Endpoint != nil {
		delete(r.byEndpt, *server.IPv6Endpoint)
	}
	lobbySet := r.byLobby[server.LobbyID]
	delete(lobbySet, id)
	if len(lobbySet) == 0 {
		delete(r.byLobby, server.LobbyID)
	}
	if expired {
		r.logger.Debug().Str("server_id", id.String()).Msg("server registration expired")
	}
}

// PutResult reports the outcome of a Put call.
type PutResult int

const (
	Accepted PutResult = iota
	RejectedEndpointOwned
)

// Put inserts or updates new in the registry following spec.md §4.C:
// sweep, reject if any of new's endpoints belongs to a different live
// server_id, inherit endpoints new.leaves unset from any existing record
// with the same server_id, then replace that record and refresh its
// expiration.
func (r *Registry) Put(new *model.GameServer) PutResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expirations.Sweep()

	if owner, ok := r.endpointOwner(new.IPv4Endpoint); ok && owner != new.ServerID {
		r.logger.Info().Str("server_id", new.ServerID.String()).Msg("registration rejected: ipv4 endpoint owned by another server")
		return RejectedEndpointOwned
	}
	if owner, ok := r.endpointOwner(new.IPv6Endpoint); ok && owner != new.ServerID {
		r.logger.Info().Str("server_id", new.ServerID.String()).Msg("registration rejected: ipv6 endpoint owned by another server")
		return RejectedEndpointOwned
	}

	if old, ok := r.byID[new.ServerID]; ok {
		if new.IPv4Endpoint == nil {
			new.IPv4Endpoint = old.IPv4Endpoint
		}
		if new.IPv6Endpoint == nil {
			new.IPv6Endpoint = old.IPv6Endpoint
		}
	}

	// Discarding fires evict() which purges all three indices for any
	// prior record under this server_id before we reinsert.
	r.expirations.Discard(new.ServerID)

	r.byID[new.ServerID] = new
	if new.IPv4Endpoint != nil {
		r.byEndpt[*new.IPv4Endpoint] = new.ServerID
	}
	if new.IPv6Endpoint != nil {
		r.byEndpt[*new.IPv6Endpoint] = new.ServerID
	}
	lobbySet, ok := r.byLobby[new.LobbyID]
	if !ok {
		lobbySet = make(map[uuid.UUID]*model.GameServer)
		r.byLobby[new.LobbyID] = lobbySet
	}
	lobbySet[new.ServerID] = new

	r.expirations.Add(new.ServerID)

	return Accepted
}

func (r *Registry) endpointOwner(ep *netip.AddrPort) (uuid.UUID, bool) {
	if ep == nil {
		return uuid.UUID{}, false
	}
	id, ok := r.byEndpt[*ep]
	return id, ok
}

// Remove discards the server with the given id, a no-op if it is unknown
// or already expired.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expirations.Sweep()
	r.expirations.Discard(id)
}

// ServersInLobby sweeps expired records, then returns a defensive copy of
// the set of live servers in lobbyID so the caller can iterate without
// observing concurrent registry mutation.
func (r *Registry) ServersInLobby(lobbyID uuid.UUID) []*model.GameServer {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expirations.Sweep()

	lobbySet := r.byLobby[lobbyID]
	out := make([]*model.GameServer, 0, len(lobbySet))
	for _, s := range lobbySet {
		out = append(out, s)
	}
	return out
}

// Lobbies sweeps expired records, then returns every non-empty lobby id.
func (r *Registry) Lobbies() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expirations.Sweep()

	out := make([]uuid.UUID, 0, len(r.byLobby))
	for id := range r.byLobby {
		out = append(out, id)
	}
	return out
}
