package directory

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/opd-ai/go-tor-directory/pkg/errors"
	"github.com/opd-ai/go-tor-directory/pkg/logger"
)

// netResolver is the default Resolver, backed by the standard library's
// net.Resolver — the natural Go analogue of gethostbyname.
type netResolver struct {
	resolver *net.Resolver
}

// NewResolver returns a Resolver backed by net.Resolver.
func NewResolver() Resolver {
	return &netResolver{resolver: net.DefaultResolver}
}

func (r *netResolver) ResolveHost(ctx context.Context, name string) (uint32, error) {
	ips, err := r.resolver.LookupIP(ctx, "ip4", name)
	if err != nil {
		return 0, errors.Wrap(errors.CategoryNetwork, errors.SeverityMedium,
			fmt.Sprintf("resolve %s", name), err)
	}
	if len(ips) == 0 {
		return 0, errors.New(errors.CategoryNetwork, errors.SeverityMedium,
			fmt.Sprintf("resolve %s: no addresses returned", name))
	}

	ip4 := ips[0].To4()
	if ip4 == nil {
		return 0, errors.New(errors.CategoryNetwork, errors.SeverityMedium,
			fmt.Sprintf("resolve %s: not an IPv4 address", name))
	}

	return binary.BigEndian.Uint32(ip4), nil
}

// LocalIdentity identifies this node's own advertised endpoint, used by
// ResolveAndCompact to detect and detach the local node's descriptor
// during the resolver pass.
type LocalIdentity struct {
	Addr   uint32
	ORPort uint16
}

// ResolveAndCompact walks dir.Routers once, resolving each descriptor's
// Address via r. A descriptor that fails to resolve is dropped. A
// descriptor that resolves to the local node's own (addr, or_port) is
// also removed from dir, but returned separately rather than dropped, so
// the caller can publish it to an external "my router" registry.
//
// Removal uses swap-with-last compaction: a removed slot is filled from
// the current end of the live range, and that same index is re-examined
// before advancing. This preserves density without an extra allocation or
// a left-shift of the remaining elements.
func ResolveAndCompact(ctx context.Context, dir *Directory, r Resolver, local LocalIdentity, log *logger.Logger) *RelayDescriptor {
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.Component("directory")

	var myRouter *RelayDescriptor

	routers := dir.Routers
	n := len(routers)
	for i := 0; i < n; {
		d := routers[i]
		addr, err := r.ResolveHost(ctx, d.Address)
		if err != nil {
			log.Info("couldn't resolve router, removing", "address", d.Address, "error", err)
			n--
			routers[i] = routers[n]
			continue
		}
		d.Addr = addr

		if d.Addr == local.Addr && d.ORPort == local.ORPort {
			myRouter = d
			n--
			routers[i] = routers[n]
			continue
		}

		i++
	}

	dir.Routers = routers[:n]
	return myRouter
}
