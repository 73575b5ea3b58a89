// Package ensname converts DNS names into the canonical forms the
// registry and resolver contracts are keyed on: DNS wire format for
// record lookups and the EIP-137 namehash for registry nodes.
package ensname

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/miekg/dns"
)

// maxDomainNameWireOctets is the RFC 1035 section 2.3.4 limit on a
// domain name's wire form; miekg/dns does not export it before v1.1.64.
const maxDomainNameWireOctets = 255

// PackName returns the canonical DNS wire form of name, lowercased and
// fully qualified.
func PackName(name string) ([]byte, error) {
	fqdn := dns.Fqdn(strings.ToLower(name))
	buf := make([]byte, maxDomainNameWireOctets+1)
	off, err := dns.PackDomainName(fqdn, buf, 0, nil, false)
	if err != nil {
		return nil, fmt.Errorf("cannot pack name %q: %w", name, err)
	}
	return buf[:off], nil
}

// WireHash returns keccak256 of the wire form of name. This is the name
// argument of a resolver's dnsRecord accessor.
func WireHash(name string) (common.Hash, error) {
	packed, err := PackName(name)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

// Namehash implements the EIP-137 recursive hash that anchors a name in
// the registry's node space. The empty name hashes to the zero hash.
func Namehash(name string) common.Hash {
	var node common.Hash
	name = strings.TrimSuffix(strings.ToLower(name), ".")
	if len(name) == 0 {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		node = crypto.Keccak256Hash(node.Bytes(), crypto.Keccak256([]byte(labels[i])))
	}
	return node
}
