// Package privacy turns caller addresses into GDPR-safe fingerprints.
//
// Raw addresses go in, a truncated digest of the network segment comes out.
// Nothing in this package retains input.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/netip"
	"strings"
)

// FingerprintLength is the number of hex characters kept from the digest.
const FingerprintLength = 16

// ipv6KeptGroups is the number of leading 16-bit groups kept (a /48 prefix).
const ipv6KeptGroups = 3

// Anonymize zeroes the host part of an address: the last octet of IPv4 and
// everything after the first three groups of IPv6. A port suffix is dropped
// and IPv4-mapped IPv6 is treated as IPv4. Input it cannot recognise is
// returned unchanged.
func Anonymize(ip string) string {
	ip = stripPort(strings.TrimSpace(ip))
	if ip == "" {
		return ip
	}
	if strings.Contains(ip, ":") {
		if addr, err := netip.ParseAddr(ip); err == nil && addr.Is4In6() {
			return anonymizeIPv4(addr.Unmap().String())
		}
		return anonymizeIPv6(ip)
	}
	return anonymizeIPv4(ip)
}

// stripPort turns "203.0.113.9:443" and "[2001:db8::1]:443" into bare
// addresses and unwraps a bracketed "[2001:db8::1]".
func stripPort(ip string) string {
	if _, err := netip.ParseAddrPort(ip); err == nil {
		ip = ip[:strings.LastIndexByte(ip, ':')]
	}
	if len(ip) > 1 && ip[0] == '[' && ip[len(ip)-1] == ']' {
		return ip[1 : len(ip)-1]
	}
	return ip
}

func anonymizeIPv4(ip string) string {
	octets := strings.Split(ip, ".")
	if len(octets) != 4 {
		return ip
	}
	for _, o := range octets {
		if !isDecimalOctet(o) {
			return ip
		}
	}
	return strings.Join(octets[:3], ".") + ".0"
}

func isDecimalOctet(s string) bool {
	if len(s) == 0 || len(s) > 3 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func anonymizeIPv6(ip string) string {
	groups := strings.Split(ip, ":")
	if len(groups) > ipv6KeptGroups && allHexGroups(groups[:ipv6KeptGroups]) {
		return strings.Join(groups[:ipv6KeptGroups], ":") + "::"
	}

	// "::" falls inside the kept prefix; expand before truncating.
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is6() {
		return ip
	}
	b := addr.As16()
	return fmt.Sprintf("%x:%x:%x::",
		uint16(b[0])<<8|uint16(b[1]),
		uint16(b[2])<<8|uint16(b[3]),
		uint16(b[4])<<8|uint16(b[5]),
	)
}

func allHexGroups(groups []string) bool {
	for _, g := range groups {
		if len(g) == 0 || len(g) > 4 {
			return false
		}
		for _, c := range g {
			if !isHex(c) {
				return false
			}
		}
	}
	return true
}

func isHex(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Hash returns the first FingerprintLength hex characters of SHA-256(value).
func Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:FingerprintLength]
}

// Process is the single entry point for click recording: Hash(Anonymize(ip)).
func Process(ip string) string {
	return Hash(Anonymize(ip))
}
