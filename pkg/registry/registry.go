// Package registry reads the on-chain name registry: the directory
// mapping namehash nodes to their resolver and owner.
package registry

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// RootAddress is the well-known ENS registry on mainnet.
var RootAddress = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

// Caller reads contract state. *ethclient.Client implements it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Read surface only. Registry writes (setOwner, setResolver,
// setSubnodeOwner) are an administrative concern this module does not
// cover.
const registryABIJSON = `[
{"inputs":[{"name":"node","type":"bytes32"}],"name":"resolver","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"node","type":"bytes32"}],"name":"owner","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"node","type":"bytes32"}],"name":"ttl","outputs":[{"name":"","type":"uint64"}],"stateMutability":"view","type":"function"}
]`

var registryABI = mustParseABI(registryABIJSON)

func mustParseABI(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("registry: bad abi: %v", err))
	}
	return a
}

// Registry is a read handle bound to one registry contract.
type Registry struct {
	addr   common.Address
	caller Caller
}

func New(addr common.Address, caller Caller) *Registry {
	return &Registry{addr: addr, caller: caller}
}

func (r *Registry) Address() common.Address {
	return r.addr
}

// Resolver returns the resolver contract address registered for node.
// The zero address means no resolver is registered.
func (r *Registry) Resolver(ctx context.Context, node common.Hash) (common.Address, error) {
	out, err := r.call(ctx, "resolver", node)
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// Owner returns the account that owns node.
func (r *Registry) Owner(ctx context.Context, node common.Hash) (common.Address, error) {
	out, err := r.call(ctx, "owner", node)
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// TTL returns the registry-side caching TTL of node, in seconds.
func (r *Registry) TTL(ctx context.Context, node common.Hash) (uint64, error) {
	out, err := r.call(ctx, "ttl", node)
	if err != nil {
		return 0, err
	}
	return out[0].(uint64), nil
}

func (r *Registry) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := registryABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("abi pack %s: %w", method, err)
	}
	ret, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("registry %s call: %w", method, err)
	}
	out, err := registryABI.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("abi unpack %s: %w", method, err)
	}
	return out, nil
}
