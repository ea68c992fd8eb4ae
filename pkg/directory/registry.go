package directory

import (
	"context"
	"crypto/rsa"
	"fmt"
	"sync"

	"github.com/opd-ai/go-tor-directory/pkg/logger"
)

// Registry owns the current directory and the local node's own descriptor.
// It replaces the original implementation's pair of process-wide globals
// (the current directory and the local router identity) with an
// explicitly-passed object whose lifecycle is bound to the caller: tests
// and daemons can each hold their own Registry.
//
// The current directory is a single logically-atomic slot: Install swaps in
// a directory the caller has already built completely, so readers never
// observe a partially built directory.
type Registry struct {
	mu sync.RWMutex

	dir       *Directory
	myRouter  *RelayDescriptor
	connector Connector
	logger    *logger.Logger
}

// NewRegistry creates an empty Registry. connector may be nil if
// RetryConnections will never be called.
func NewRegistry(connector Connector, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Registry{
		connector: connector,
		logger:    log.Component("directory"),
	}
}

// Install replaces the current directory with dir. The previous directory
// is discarded; Go's garbage collector reclaims it once no reader holds a
// reference, so there is no explicit free step here unlike the source's
// manual directory_free.
func (reg *Registry) Install(dir *Directory) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.dir = dir
}

// SetLocalRouter records the descriptor detached from a directory during
// resolution as this node's own identity. CheckExitPolicy evaluates ports
// against its exit policy.
func (reg *Registry) SetLocalRouter(d *RelayDescriptor) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.myRouter = d
}

// LocalRouter returns the descriptor previously recorded by
// SetLocalRouter, or nil if none has been set.
func (reg *Registry) LocalRouter() *RelayDescriptor {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.myRouter
}

// Snapshot returns the currently installed directory. The returned value
// is a borrowed reference: callers must not mutate it, since the registry
// may replace it at any time via a subsequent Install.
func (reg *Registry) Snapshot() (*Directory, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if reg.dir == nil {
		return nil, fmt.Errorf("no directory installed")
	}
	return reg.dir, nil
}

// FindByAddrPort returns the first descriptor whose (Addr, ORPort) matches,
// or false if none does. Matching spec.md's own source behavior, duplicate
// (addr, or_port) pairs are neither detected nor rejected; the first match
// in array order wins.
func (reg *Registry) FindByAddrPort(addr uint32, port uint16) (*RelayDescriptor, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if reg.dir == nil {
		return nil, false
	}
	for _, d := range reg.dir.Routers {
		if d.Addr == addr && d.ORPort == port {
			return d, true
		}
	}
	return nil, false
}

// FindByPublicKey returns the descriptor whose IdentityKey compares equal
// to key, or false if none does.
func (reg *Registry) FindByPublicKey(key *rsa.PublicKey) (*RelayDescriptor, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if reg.dir == nil {
		return nil, false
	}
	for _, d := range reg.dir.Routers {
		if d.IdentityKey != nil && d.IdentityKey.Equal(key) {
			return d, true
		}
	}
	return nil, false
}

// PickDirectoryServer returns the first descriptor with a positive
// DirPort, or false if none does.
func (reg *Registry) PickDirectoryServer() (*RelayDescriptor, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if reg.dir == nil {
		return nil, false
	}
	for _, d := range reg.dir.Routers {
		if d.DirPort > 0 {
			return d, true
		}
	}
	return nil, false
}

// Forget removes the descriptor at (addr, port) from the current
// directory.
//
// The original source's equivalent routine (router_forget_router) performs
// a left-shift over the array but never decrements the router count, and
// its free-the-removed-descriptor line is commented out — almost
// certainly a bug, per an explicit unresolved question in the original
// design notes. This implementation decrements the count and releases the
// removed descriptor (Go's GC reclaims it once unreferenced), which is a
// deliberate deviation from that source behavior.
func (reg *Registry) Forget(addr uint32, port uint16) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.dir == nil {
		return false
	}

	routers := reg.dir.Routers
	for i, d := range routers {
		if d.Addr != addr || d.ORPort != port {
			continue
		}
		copy(routers[i:], routers[i+1:])
		routers[len(routers)-1] = nil
		reg.dir.Routers = routers[:len(routers)-1]
		return true
	}
	return false
}

// RetryConnections requests a connection, via the registry's Connector,
// for every descriptor that lacks one already open at its (Addr, ORPort).
func (reg *Registry) RetryConnections(ctx context.Context) error {
	reg.mu.RLock()
	dir := reg.dir
	connector := reg.connector
	reg.mu.RUnlock()

	if dir == nil {
		return fmt.Errorf("no directory installed")
	}
	if connector == nil {
		return fmt.Errorf("no connector configured")
	}

	var firstErr error
	for _, d := range dir.Routers {
		if connector.ConnectionExists(d.Addr, d.ORPort) {
			continue
		}
		reg.logger.Debug("connecting to router", "address", d.Address, "or_port", d.ORPort)
		if err := connector.Connect(ctx, d); err != nil {
			reg.logger.Warn("failed to connect to router", "address", d.Address, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// CheckExitPolicy evaluates port against the local router's exit policy.
// If no local router identity has been installed, the verdict is reject,
// with a warning logged, per spec.md §4.7's explicit policy for that case.
func (reg *Registry) CheckExitPolicy(port uint16) bool {
	reg.mu.RLock()
	local := reg.myRouter
	reg.mu.RUnlock()

	if local == nil {
		reg.logger.Warn("exit policy check with no local router identity installed, rejecting")
		return false
	}
	return ExitPolicyMatch(local.ExitPolicy, port)
}
