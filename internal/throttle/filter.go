// Package throttle implements the registration flood throttle shared by
// the legacy and new-style UDP registration handlers.
package throttle

import (
	"net/netip"
	"sync"
	"time"

	"github.com/gg2-lobby/lobbyd/internal/expiry"
)

// Window is the registration throttle interval: a second datagram from the
// same source endpoint within this window is dropped before parsing.
const Window = 10 * time.Second

// RecentEndpointFilter tracks recently-seen (source IP, source port) pairs
// so a flooding client can only push one registration attempt through per
// Window. It is safe for concurrent use from both UDP registration
// handlers.
type RecentEndpointFilter struct {
	mu  sync.Mutex
	set *expiry.Set[netip.AddrPort]
}

// New creates a RecentEndpointFilter using the default throttle Window.
func New() *RecentEndpointFilter {
	return &RecentEndpointFilter{
		set: expiry.New[netip.AddrPort](Window, nil),
	}
}

// Admit reports whether a datagram from addr should be processed. If addr
// was already seen within the throttle window it returns false and does
// not reset the window; otherwise it records addr and returns true. This
// matches the original's check-then-add sequence exactly (the source
// lobby's `RECENT_ENDPOINTS` check happens before the add, so a single
// flooding source cannot keep itself perpetually fresh by re-registering).
func (f *RecentEndpointFilter) Admit(addr netip.AddrPort) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set.Contains(addr) {
		return false
	}
	f.set.Add(addr)
	return true
}
