package registry

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	lastMsg ethereum.CallMsg
	ret     map[string][]byte
	err     error
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.lastMsg = msg
	if f.err != nil {
		return nil, f.err
	}
	for name, m := range registryABI.Methods {
		if bytes.HasPrefix(msg.Data, m.ID) {
			return f.ret[name], nil
		}
	}
	return nil, errors.New("unknown method")
}

func TestRegistryResolver(t *testing.T) {
	want := common.HexToAddress("0x1234567890123456789012345678901234567890")
	enc, err := registryABI.Methods["resolver"].Outputs.Pack(want)
	require.NoError(t, err)

	caller := &fakeCaller{ret: map[string][]byte{"resolver": enc}}
	regAddr := common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")
	reg := New(regAddr, caller)

	got, err := reg.Resolver(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	require.Equal(t, want, got)

	// The call must target the bound registry contract.
	require.NotNil(t, caller.lastMsg.To)
	require.Equal(t, regAddr, *caller.lastMsg.To)
	require.True(t, bytes.HasPrefix(caller.lastMsg.Data, registryABI.Methods["resolver"].ID))
}

func TestRegistryZeroResolver(t *testing.T) {
	enc, err := registryABI.Methods["resolver"].Outputs.Pack(common.Address{})
	require.NoError(t, err)

	reg := New(RootAddress, &fakeCaller{ret: map[string][]byte{"resolver": enc}})
	got, err := reg.Resolver(context.Background(), common.Hash{})
	require.NoError(t, err)
	require.Equal(t, common.Address{}, got)
}

func TestRegistryCallError(t *testing.T) {
	sentinel := errors.New("rpc down")
	reg := New(RootAddress, &fakeCaller{err: sentinel})
	_, err := reg.Owner(context.Background(), common.Hash{})
	require.ErrorIs(t, err, sentinel)
}

func TestRegistryTTL(t *testing.T) {
	enc, err := registryABI.Methods["ttl"].Outputs.Pack(uint64(3600))
	require.NoError(t, err)

	reg := New(RootAddress, &fakeCaller{ret: map[string][]byte{"ttl": enc}})
	ttl, err := reg.TTL(context.Background(), common.Hash{})
	require.NoError(t, err)
	require.Equal(t, uint64(3600), ttl)
}
