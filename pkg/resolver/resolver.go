// Package resolver wraps an on-chain resolver contract: the per-zone
// record store the registry points a node at.
package resolver

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ensdns/ensdns/pkg/registry"
)

const resolverABIJSON = `[
{"inputs":[{"name":"node","type":"bytes32"},{"name":"name","type":"bytes32"},{"name":"resource","type":"uint16"}],"name":"dnsRecord","outputs":[{"name":"","type":"bytes"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"node","type":"bytes32"},{"name":"name","type":"bytes32"}],"name":"hasDNSRecords","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"node","type":"bytes32"}],"name":"addr","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"node","type":"bytes32"}],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"node","type":"bytes32"},{"name":"key","type":"string"}],"name":"text","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"node","type":"bytes32"}],"name":"contenthash","outputs":[{"name":"","type":"bytes"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"node","type":"bytes32"},{"name":"contentTypes","type":"uint256"}],"name":"ABI","outputs":[{"name":"","type":"uint256"},{"name":"","type":"bytes"}],"stateMutability":"view","type":"function"}
]`

var resolverABI = mustParseABI(resolverABIJSON)

func mustParseABI(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("resolver: bad abi: %v", err))
	}
	return a
}

// Resolver is a read handle bound to one resolver contract. Handles are
// immutable and cheap; they are rebuilt from a cached address on every
// cache hit.
type Resolver struct {
	addr   common.Address
	caller registry.Caller
}

func New(addr common.Address, caller registry.Caller) *Resolver {
	return &Resolver{addr: addr, caller: caller}
}

func (r *Resolver) Address() common.Address {
	return r.addr
}

// DNSRecord returns the packed RRset stored for (name, resource) under
// node, or nil if the resolver holds nothing for that pair.
func (r *Resolver) DNSRecord(ctx context.Context, node, name common.Hash, resource uint16) ([]byte, error) {
	out, err := r.call(ctx, "dnsRecord", node, name, resource)
	if err != nil {
		return nil, err
	}
	b := out[0].([]byte)
	if len(b) == 0 {
		return nil, nil
	}
	return b, nil
}

// HasDNSRecords reports whether any record type is stored for name
// under node.
func (r *Resolver) HasDNSRecords(ctx context.Context, node, name common.Hash) (bool, error) {
	out, err := r.call(ctx, "hasDNSRecords", node, name)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

func (r *Resolver) Addr(ctx context.Context, node common.Hash) (common.Address, error) {
	out, err := r.call(ctx, "addr", node)
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

func (r *Resolver) Name(ctx context.Context, node common.Hash) (string, error) {
	out, err := r.call(ctx, "name", node)
	if err != nil {
		return "", err
	}
	return out[0].(string), nil
}

func (r *Resolver) Text(ctx context.Context, node common.Hash, key string) (string, error) {
	out, err := r.call(ctx, "text", node, key)
	if err != nil {
		return "", err
	}
	return out[0].(string), nil
}

func (r *Resolver) Contenthash(ctx context.Context, node common.Hash) ([]byte, error) {
	out, err := r.call(ctx, "contenthash", node)
	if err != nil {
		return nil, err
	}
	return out[0].([]byte), nil
}

// ABI returns the contract ABI stored for node, filtered by the
// contentTypes bitmask.
func (r *Resolver) ABI(ctx context.Context, node common.Hash, contentTypes *big.Int) (*big.Int, []byte, error) {
	out, err := r.call(ctx, "ABI", node, contentTypes)
	if err != nil {
		return nil, nil, err
	}
	return out[0].(*big.Int), out[1].([]byte), nil
}

func (r *Resolver) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := resolverABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("abi pack %s: %w", method, err)
	}
	ret, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("resolver %s call: %w", method, err)
	}
	out, err := resolverABI.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("abi unpack %s: %w", method, err)
	}
	return out, nil
}
