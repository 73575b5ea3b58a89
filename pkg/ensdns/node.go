package ensdns

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/miekg/dns"
)

// DefaultTLD is the apex under which the root registry is authoritative.
const DefaultTLD = "eth"

// legacyMarker is the middle label of an alternate-registry NS owner
// name, e.g. "0x314159265dd8dbb310642f98f50c066173c1259b._eth.zone".
const legacyMarker = "_eth"

// 0x plus 20 bytes of hex.
const addressTextLen = 42

// DeriveNode maps a query name to the zone apex its resolver is
// registered under: everything above the last two labels is dropped.
// Delegation is registered on-chain at the apex, never at deeper
// subdomains.
func DeriveNode(name string) string {
	name = strings.TrimSuffix(name, ".")
	labels := dns.SplitDomainName(name)
	if len(labels) > 2 {
		return strings.Join(labels[len(labels)-2:], ".")
	}
	return name
}

// LegacyRegistry parses an alternate-registry NS owner name. A valid
// owner has exactly three labels, the legacy marker in the middle and
// the registry address as its first label. It returns the registry
// address and the zone behind the marker. The three structural checks
// are the only validation; anything else fails the parse.
func LegacyRegistry(owner string) (common.Address, string, bool) {
	labels := dns.SplitDomainName(strings.TrimSuffix(owner, "."))
	if len(labels) != 3 {
		return common.Address{}, "", false
	}
	if labels[1] != legacyMarker || len(labels[0]) != addressTextLen {
		return common.Address{}, "", false
	}
	return common.HexToAddress(labels[0]), labels[2], true
}
