package ensdns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"github.com/ensdns/ensdns/pkg/ensname"
)

var testResolverAddr = common.HexToAddress("0x0000000000000000000000000000000000000001")

type rrKey struct {
	name  common.Hash
	qtype uint16
}

// fakeChain plays both the registry and the resolver contracts.
type fakeChain struct {
	resolvers map[common.Hash]common.Address
	records   map[rrKey][]byte

	registryCalls int
	recordCalls   int
	lastRegistry  common.Address

	registryErr error
	recordErr   error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		resolvers: make(map[common.Hash]common.Address),
		records:   make(map[rrKey][]byte),
	}
}

func (c *fakeChain) setResolver(node string, addr common.Address) {
	c.resolvers[ensname.Namehash(node)] = addr
}

func (c *fakeChain) setRecord(t *testing.T, name string, qtype uint16, rrset []byte) {
	t.Helper()
	h, err := ensname.WireHash(name)
	require.NoError(t, err)
	c.records[rrKey{name: h, qtype: qtype}] = rrset
}

type fakeRegistry struct {
	c    *fakeChain
	addr common.Address
}

func (f *fakeRegistry) Resolver(_ context.Context, node common.Hash) (common.Address, error) {
	f.c.registryCalls++
	f.c.lastRegistry = f.addr
	if f.c.registryErr != nil {
		return common.Address{}, f.c.registryErr
	}
	return f.c.resolvers[node], nil
}

type fakeResolver struct {
	c    *fakeChain
	addr common.Address
}

func (f *fakeResolver) Address() common.Address { return f.addr }

func (f *fakeResolver) DNSRecord(_ context.Context, _, name common.Hash, qtype uint16) ([]byte, error) {
	f.c.recordCalls++
	if f.c.recordErr != nil {
		return nil, f.c.recordErr
	}
	return f.c.records[rrKey{name: name, qtype: qtype}], nil
}

func (f *fakeResolver) HasDNSRecords(_ context.Context, _, _ common.Hash) (bool, error) {
	return false, nil
}

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestEngine(t *testing.T, c *fakeChain) (*Engine, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	e, err := NewEngine(Opts{
		NewRegistry: func(addr common.Address) RegistryClient { return &fakeRegistry{c: c, addr: addr} },
		NewResolver: func(addr common.Address) RecordSource { return &fakeResolver{c: c, addr: addr} },
		Now:         clk.now,
	})
	require.NoError(t, err)
	return e, clk
}

func TestResolveExact(t *testing.T) {
	c := newFakeChain()
	c.setResolver("example.eth", testResolverAddr)
	a := []byte{0xa1, 0xa2, 0xa3}
	c.setRecord(t, "example.eth", dns.TypeA, a)

	e, _ := newTestEngine(t, c)
	got, err := e.Resolve(context.Background(), "example.eth.", dns.TypeA)
	require.NoError(t, err)
	require.Equal(t, a, got)
}

func TestResolveExactNSAppendsDS(t *testing.T) {
	c := newFakeChain()
	c.setResolver("example.eth", testResolverAddr)
	ns := []byte{0x01, 0x02}
	ds := []byte{0x03, 0x04}
	c.setRecord(t, "example.eth", dns.TypeNS, ns)
	c.setRecord(t, "example.eth", dns.TypeDS, ds)

	e, _ := newTestEngine(t, c)
	got, err := e.Resolve(context.Background(), "example.eth", dns.TypeNS)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, got)
}

func TestResolveExactNSWithoutDS(t *testing.T) {
	c := newFakeChain()
	c.setResolver("example.eth", testResolverAddr)
	ns := []byte{0x01, 0x02}
	c.setRecord(t, "example.eth", dns.TypeNS, ns)

	e, _ := newTestEngine(t, c)
	got, err := e.Resolve(context.Background(), "example.eth", dns.TypeNS)
	require.NoError(t, err)
	require.Equal(t, ns, got)
}

func TestResolveDelegationFallback(t *testing.T) {
	c := newFakeChain()
	c.setResolver("example.eth", testResolverAddr)
	ns := []byte{0x05, 0x06}
	c.setRecord(t, "example.eth", dns.TypeNS, ns)

	e, _ := newTestEngine(t, c)
	got, err := e.Resolve(context.Background(), "www.example.eth", dns.TypeA)
	require.NoError(t, err)
	require.Equal(t, ns, got)

	// With a DS set at the apex the delegation answer carries both.
	ds := []byte{0x07}
	c.setRecord(t, "example.eth", dns.TypeDS, ds)
	e2, _ := newTestEngine(t, c)
	got, err = e2.Resolve(context.Background(), "www.example.eth", dns.TypeA)
	require.NoError(t, err)
	require.Equal(t, []byte{0x05, 0x06, 0x07}, got)
}

func TestResolveAliasFallback(t *testing.T) {
	c := newFakeChain()
	c.setResolver("example.eth", testResolverAddr)
	cname := []byte{0x09, 0x0a}
	c.setRecord(t, "www.example.eth", dns.TypeCNAME, cname)

	e, _ := newTestEngine(t, c)
	got, err := e.Resolve(context.Background(), "www.example.eth", dns.TypeA)
	require.NoError(t, err)
	require.Equal(t, cname, got)
}

func TestResolveNoData(t *testing.T) {
	c := newFakeChain()
	c.setResolver("example.eth", testResolverAddr)

	e, _ := newTestEngine(t, c)
	got, err := e.Resolve(context.Background(), "www.example.eth", dns.TypeA)
	require.NoError(t, err)
	require.Nil(t, got)

	// Exact, apex NS, CNAME: three record reads, all confirmed empty.
	require.Equal(t, 3, c.recordCalls)
	require.Equal(t, 1, c.registryCalls)

	// Confirmed-empty answers are cached; asking again stays local.
	got, err = e.Resolve(context.Background(), "www.example.eth", dns.TypeA)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, 3, c.recordCalls)
	require.Equal(t, 1, c.registryCalls)
}

func TestRecordCacheTTL(t *testing.T) {
	c := newFakeChain()
	c.setResolver("example.eth", testResolverAddr)
	c.setRecord(t, "example.eth", dns.TypeA, []byte{0x01})

	e, clk := newTestEngine(t, c)
	ctx := context.Background()

	_, err := e.Resolve(ctx, "example.eth", dns.TypeA)
	require.NoError(t, err)
	require.Equal(t, 1, c.registryCalls)
	require.Equal(t, 1, c.recordCalls)

	// Within the TTL everything is served from cache.
	clk.advance(DefaultCacheTTL - time.Second)
	_, err = e.Resolve(ctx, "example.eth", dns.TypeA)
	require.NoError(t, err)
	require.Equal(t, 1, c.registryCalls)
	require.Equal(t, 1, c.recordCalls)

	// Past the TTL the entries are stale: still resident, but treated
	// as misses and refetched.
	clk.advance(2 * time.Second)
	require.Equal(t, 2, e.CacheLen())
	_, err = e.Resolve(ctx, "example.eth", dns.TypeA)
	require.NoError(t, err)
	require.Equal(t, 2, c.registryCalls)
	require.Equal(t, 2, c.recordCalls)
	require.Equal(t, 2, e.CacheLen())
}

func TestAbsentResolverNotCached(t *testing.T) {
	c := newFakeChain()

	e, _ := newTestEngine(t, c)
	ctx := context.Background()

	got, err := e.Resolve(ctx, "example.eth", dns.TypeA)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, 1, c.registryCalls)
	require.Equal(t, 0, e.CacheLen())

	// Absence is not cached: each query re-asks the registry.
	_, err = e.Resolve(ctx, "example.eth", dns.TypeA)
	require.NoError(t, err)
	require.Equal(t, 2, c.registryCalls)
}

func TestRegistryFailurePropagates(t *testing.T) {
	c := newFakeChain()
	c.registryErr = errors.New("rpc down")

	e, _ := newTestEngine(t, c)
	_, err := e.Resolve(context.Background(), "example.eth", dns.TypeA)
	require.ErrorIs(t, err, c.registryErr)
}

func TestRecordFailurePropagates(t *testing.T) {
	c := newFakeChain()
	c.setResolver("example.eth", testResolverAddr)
	c.recordErr = errors.New("contract revert")

	e, _ := newTestEngine(t, c)
	_, err := e.Resolve(context.Background(), "example.eth", dns.TypeA)
	require.ErrorIs(t, err, c.recordErr)
}

func TestPurge(t *testing.T) {
	c := newFakeChain()
	c.setResolver("example.eth", testResolverAddr)
	c.setRecord(t, "example.eth", dns.TypeA, []byte{0x01})

	e, _ := newTestEngine(t, c)
	ctx := context.Background()

	_, err := e.Resolve(ctx, "example.eth", dns.TypeA)
	require.NoError(t, err)
	require.Equal(t, 1, c.registryCalls)

	e.Purge()
	require.Equal(t, 0, e.CacheLen())

	_, err = e.Resolve(ctx, "example.eth", dns.TypeA)
	require.NoError(t, err)
	require.Equal(t, 2, c.registryCalls)
	require.Equal(t, 2, c.recordCalls)
}

func TestResolveUngovernedName(t *testing.T) {
	c := newFakeChain()

	e, _ := newTestEngine(t, c)
	got, err := e.Resolve(context.Background(), "example.com", dns.TypeA)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, 0, c.registryCalls)
}

func TestResolveLegacyRegistryName(t *testing.T) {
	legacyAddr := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	owner := legacyAddr.Hex() + "._eth.somezone"

	c := newFakeChain()
	c.setResolver("somezone", testResolverAddr)
	a := []byte{0x0b}
	c.setRecord(t, owner, dns.TypeA, a)

	e, _ := newTestEngine(t, c)
	got, err := e.Resolve(context.Background(), owner, dns.TypeA)
	require.NoError(t, err)
	require.Equal(t, a, got)
	require.Equal(t, legacyAddr, c.lastRegistry)
}
