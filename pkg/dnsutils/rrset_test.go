package dnsutils

import (
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

func TestPackUnpackRRSet(t *testing.T) {
	rrs := []dns.RR{
		&dns.A{
			Hdr: dns.RR_Header{Name: "example.eth.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 300},
			A:   net.IPv4(192, 0, 2, 1).To4(),
		},
		&dns.NS{
			Hdr: dns.RR_Header{Name: "example.eth.", Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: 3600},
			Ns:  "ns1.example.eth.",
		},
	}

	packed, err := PackRRSet(rrs)
	require.NoError(t, err)
	require.NotEmpty(t, packed)

	got, err := UnpackRRSet(packed)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range rrs {
		require.Equal(t, rrs[i].String(), got[i].String())
	}
}

func TestUnpackRRSetEmpty(t *testing.T) {
	got, err := UnpackRRSet(nil)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestUnpackRRSetGarbage(t *testing.T) {
	_, err := UnpackRRSet([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
}
