// Package dnsutils has helpers for the packed RRset blobs the
// resolution engine works with.
package dnsutils

import (
	"fmt"

	"github.com/miekg/dns"
)

// UnpackRRSet unpacks a packed RRset blob into its records.
func UnpackRRSet(b []byte) ([]dns.RR, error) {
	var rrs []dns.RR
	off := 0
	for off < len(b) {
		rr, next, err := dns.UnpackRR(b, off)
		if err != nil {
			return nil, fmt.Errorf("unpack rr at offset %d: %w", off, err)
		}
		if next == off {
			break
		}
		rrs = append(rrs, rr)
		off = next
	}
	return rrs, nil
}

// PackRRSet packs records into one blob, the storage form resolver
// contracts hold.
func PackRRSet(rrs []dns.RR) ([]byte, error) {
	var out []byte
	for _, rr := range rrs {
		buf := make([]byte, dns.Len(rr))
		off, err := dns.PackRR(rr, buf, 0, nil, false)
		if err != nil {
			return nil, fmt.Errorf("pack rr %s: %w", rr.String(), err)
		}
		out = append(out, buf[:off]...)
	}
	return out, nil
}
