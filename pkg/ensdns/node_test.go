package ensdns

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDeriveNode(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"a.b.example.eth", "example.eth"},
		{"www.example.eth.", "example.eth"},
		{"example.eth", "example.eth"},
		{"eth", "eth"},
		{"eth.", "eth"},
	}
	for _, c := range cases {
		if got := DeriveNode(c.name); got != c.want {
			t.Fatalf("DeriveNode(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestLegacyRegistry(t *testing.T) {
	addrText := "0x" + strings.Repeat("aa", 20) // 42 chars
	addr, zone, ok := LegacyRegistry(addrText + "._eth.somezone")
	if !ok {
		t.Fatal("valid owner name rejected")
	}
	if addr != common.HexToAddress(addrText) {
		t.Fatalf("wrong registry address: %s", addr.Hex())
	}
	if zone != "somezone" {
		t.Fatalf("wrong zone: %q", zone)
	}

	bad := []string{
		addrText + "._eth.a.somezone", // 4 labels
		addrText + "._foo.somezone",   // wrong marker
		"0x" + strings.Repeat("a", 39) + "._eth.somezone", // 41-char address
		"_eth.somezone", // 2 labels
		"",
	}
	for _, owner := range bad {
		if _, _, ok := LegacyRegistry(owner); ok {
			t.Fatalf("malformed owner %q accepted", owner)
		}
	}
}
