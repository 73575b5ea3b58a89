// Package ensdns resolves DNS RRsets from records stored on an
// ENS-style on-chain registry. A query is anchored at its zone apex,
// the registry is asked for the resolver contract serving that apex,
// and the resolver's packed record sets are fetched with DNS fallback
// precedence: exact answer, then apex NS (+DS) delegation, then CNAME.
// Resolver handles and record bytes share one TTL-bounded LRU cache.
package ensdns

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/miekg/dns"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ensdns/ensdns/pkg/cache"
	"github.com/ensdns/ensdns/pkg/cache/mem_cache"
	"github.com/ensdns/ensdns/pkg/ensname"
	"github.com/ensdns/ensdns/pkg/registry"
	"github.com/ensdns/ensdns/pkg/resolver"
)

// DefaultCacheTTL bounds how long a cached resolver or record entry is
// served before the chain is asked again.
const DefaultCacheTTL = time.Minute * 30

var nopLogger = zap.NewNop()

// RegistryClient is the read surface of a registry contract used by the
// resolver directory.
type RegistryClient interface {
	Resolver(ctx context.Context, node common.Hash) (common.Address, error)
}

// RecordSource is the read surface of a resolver contract used by the
// resolution chain.
type RecordSource interface {
	Address() common.Address
	DNSRecord(ctx context.Context, node, name common.Hash, resource uint16) ([]byte, error)
	HasDNSRecords(ctx context.Context, node, name common.Hash) (bool, error)
}

type Opts struct {
	// Logger is optional.
	Logger *zap.Logger

	// Caller reads contract state. Required unless both NewRegistry and
	// NewResolver are set.
	Caller registry.Caller

	// Backend is the shared cache store. Defaults to an in-memory LRU
	// backend of mem_cache.DefaultSize entries.
	Backend cache.Backend

	// CacheTTL defaults to DefaultCacheTTL.
	CacheTTL time.Duration

	// Root is the registry for names under TLD. Defaults to the
	// well-known root registry.
	Root common.Address

	// TLD defaults to DefaultTLD.
	TLD string

	// Metrics is optional.
	Metrics *Metrics

	// NewRegistry and NewResolver bind contract handles to addresses.
	// Overridden in tests.
	NewRegistry func(common.Address) RegistryClient
	NewResolver func(common.Address) RecordSource

	// Now overrides the clock. Overridden in tests.
	Now func() time.Time
}

func (opts *Opts) Init() error {
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
	if opts.Backend == nil {
		opts.Backend = mem_cache.NewMemCache(0)
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Root == (common.Address{}) {
		opts.Root = registry.RootAddress
	}
	if len(opts.TLD) == 0 {
		opts.TLD = DefaultTLD
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRegistry == nil || opts.NewResolver == nil {
		if opts.Caller == nil {
			return errors.New("nil contract caller")
		}
		caller := opts.Caller
		if opts.NewRegistry == nil {
			opts.NewRegistry = func(addr common.Address) RegistryClient {
				return registry.New(addr, caller)
			}
		}
		if opts.NewResolver == nil {
			opts.NewResolver = func(addr common.Address) RecordSource {
				return resolver.New(addr, caller)
			}
		}
	}
	return nil
}

// Engine owns the cache and the registry binding for one resolution
// service. Safe for concurrent use.
type Engine struct {
	logger  *zap.Logger
	backend cache.Backend
	ttl     time.Duration
	root    common.Address
	tld     string
	metrics *Metrics

	now         func() time.Time
	newRegistry func(common.Address) RegistryClient
	newResolver func(common.Address) RecordSource

	fetchSF singleflight.Group
}

func NewEngine(opts Opts) (*Engine, error) {
	if err := opts.Init(); err != nil {
		return nil, err
	}
	return &Engine{
		logger:      opts.Logger,
		backend:     opts.Backend,
		ttl:         opts.CacheTTL,
		root:        opts.Root,
		tld:         opts.TLD,
		metrics:     opts.Metrics,
		now:         opts.Now,
		newRegistry: opts.NewRegistry,
		newResolver: opts.NewResolver,
	}, nil
}

// Resolve answers a (name, type) query from the registry that governs
// name. A nil RRset with a nil error is the DNS no-data outcome; errors
// are remote failures and are never folded into no-data.
//
// The returned bytes are packed resource records; wire-encoding them
// into a DNS response message is the caller's job.
func (e *Engine) Resolve(ctx context.Context, name string, qtype uint16) ([]byte, error) {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if len(name) == 0 {
		return nil, errors.New("empty name")
	}
	e.metrics.resolution()

	reg, node, ok := e.selectRegistry(name)
	if !ok {
		e.logger.Debug("no registry governs name", zap.String("name", name))
		return nil, nil
	}
	return e.ResolveAt(ctx, name, qtype, reg, node)
}

// selectRegistry picks the registry contract and the anchor node for a
// query name. Names under the configured TLD belong to the root
// registry; otherwise the name itself may be a legacy owner name
// carrying its registry address.
func (e *Engine) selectRegistry(name string) (common.Address, string, bool) {
	if name == e.tld || strings.HasSuffix(name, "."+e.tld) {
		return e.root, DeriveNode(name), true
	}
	if addr, zone, ok := LegacyRegistry(name); ok {
		return addr, DeriveNode(zone), true
	}
	return common.Address{}, "", false
}

// ResolveAt runs the resolution chain against an explicit registry,
// anchored at node. Callers that discover a registry out of band, e.g.
// from a legacy NS owner name, use this directly.
func (e *Engine) ResolveAt(ctx context.Context, name string, qtype uint16, reg common.Address, node string) ([]byte, error) {
	res, err := e.getResolver(ctx, node, reg)
	if err != nil {
		return nil, err
	}
	if res == nil {
		e.logger.Debug("no resolver registered",
			zap.String("node", node),
			zap.Stringer("registry", reg))
		return nil, nil
	}

	// Exact answers take precedence over delegation, and delegation
	// over aliasing. The order is fixed by DNS semantics.
	rrset, err := e.getRRSet(ctx, name, qtype, node, res)
	if err != nil {
		return nil, err
	}
	if rrset != nil {
		if qtype == dns.TypeNS {
			return e.withDS(ctx, name, node, res, rrset)
		}
		return rrset, nil
	}

	// Delegation is checked at the apex only, not at intermediate zone
	// cuts. Registries hold their delegation exactly there.
	ns, err := e.getRRSet(ctx, node, dns.TypeNS, node, res)
	if err != nil {
		return nil, err
	}
	if ns != nil {
		e.logger.Debug("answering with apex delegation", zap.String("name", name), zap.String("node", node))
		return e.withDS(ctx, node, node, res, ns)
	}

	return e.getRRSet(ctx, name, dns.TypeCNAME, node, res)
}

// withDS appends the DS set stored for owner to an NS set when one
// exists, so a secure delegation can be chained.
func (e *Engine) withDS(ctx context.Context, owner, node string, res RecordSource, ns []byte) ([]byte, error) {
	ds, err := e.getRRSet(ctx, owner, dns.TypeDS, node, res)
	if err != nil {
		return nil, err
	}
	if ds == nil {
		return ns, nil
	}
	out := make([]byte, 0, len(ns)+len(ds))
	out = append(out, ns...)
	return append(out, ds...), nil
}

// getResolver returns the resolver serving node on the given registry,
// or nil if none is registered. Absence is never cached: a node without
// a resolver costs a registry call on every query, and picks up a later
// registration immediately.
func (e *Engine) getResolver(ctx context.Context, node string, reg common.Address) (RecordSource, error) {
	key := resolverKey(node, reg)
	if v, stored, ok := e.backend.Get(key); ok {
		if e.now().Sub(stored) <= e.ttl {
			if len(v) == common.AddressLength {
				e.metrics.hit()
				return e.newResolver(common.BytesToAddress(v)), nil
			}
		} else {
			e.metrics.stale()
			e.logger.Debug("stale resolver entry", zap.String("node", node))
		}
	} else {
		e.metrics.miss()
	}

	v, err, _ := e.fetchSF.Do(key, func() (interface{}, error) {
		e.metrics.registryCall()
		addr, err := e.newRegistry(reg).Resolver(ctx, ensname.Namehash(node))
		if err != nil {
			return nil, fmt.Errorf("resolver lookup for %s: %w", node, err)
		}
		if addr == (common.Address{}) {
			return nil, nil
		}
		e.backend.Store(key, addr.Bytes(), e.now())
		return addr, nil
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return e.newResolver(v.(common.Address)), nil
}

// getRRSet returns the packed RRset for (name, qtype) from res, going
// through the shared cache. nil means the pair has no records; an
// absent res short-circuits without touching the chain. A confirmed
// empty answer is cached as a zero-length entry.
func (e *Engine) getRRSet(ctx context.Context, name string, qtype uint16, node string, res RecordSource) ([]byte, error) {
	if res == nil {
		return nil, nil
	}

	key := recordKey(name, qtype, res.Address())
	if v, stored, ok := e.backend.Get(key); ok {
		if e.now().Sub(stored) <= e.ttl {
			e.metrics.hit()
			if len(v) == 0 {
				return nil, nil
			}
			return v, nil
		}
		e.metrics.stale()
		e.logger.Debug("stale record entry",
			zap.String("name", name),
			zap.String("type", dns.TypeToString[qtype]))
	} else {
		e.metrics.miss()
	}

	v, err, _ := e.fetchSF.Do(key, func() (interface{}, error) {
		nameHash, err := ensname.WireHash(name)
		if err != nil {
			return nil, err
		}
		e.metrics.recordCall()
		rrset, err := res.DNSRecord(ctx, ensname.Namehash(node), nameHash, qtype)
		if err != nil {
			return nil, fmt.Errorf("dnsRecord %s/%s: %w", name, dns.TypeToString[qtype], err)
		}
		if rrset == nil {
			rrset = []byte{}
		}
		e.backend.Store(key, rrset, e.now())
		return rrset, nil
	})
	if err != nil {
		return nil, err
	}
	rrset := v.([]byte)
	if len(rrset) == 0 {
		return nil, nil
	}
	return rrset, nil
}

// Purge drops every cached resolver and record entry.
func (e *Engine) Purge() {
	e.backend.Clear()
}

// CacheLen returns the number of resident cache entries, stale ones
// included.
func (e *Engine) CacheLen() int {
	return e.backend.Len()
}

func (e *Engine) Close() error {
	return e.backend.Close()
}

// Cache keys must tell apart the same name/type pair served by
// different resolvers, and the same node probed against different
// registries.
func resolverKey(node string, reg common.Address) string {
	return "r;" + node + ";" + reg.Hex()
}

func recordKey(name string, qtype uint16, res common.Address) string {
	return "d;" + name + ";" + strconv.FormatUint(uint64(qtype), 10) + ";" + res.Hex()
}
