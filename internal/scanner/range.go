package scanner

import (
	"errors"
	"fmt"
	"net"
)

// maxScanAddresses bounds a single scan to one /24 worth of address space.
const maxScanAddresses = 256

// ErrRangeTooLarge is returned, before any network activity, for CIDR ranges
// wider than a /24.
var ErrRangeTooLarge = errors.New("IP range too large: maximum 256 addresses (/24 subnet)")

// expandRange parses a CIDR string and returns every usable host address in
// it. The network and broadcast addresses are excluded, except for /31 and
// /32 ranges where every address is a host.
func expandRange(cidr string) ([]string, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid network range %q: %w", cidr, err)
	}

	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("invalid network range %q: only IPv4 is supported", cidr)
	}

	ones, bits := ipnet.Mask.Size()
	hostBits := bits - ones
	total := 1 << hostBits
	if total > maxScanAddresses {
		return nil, ErrRangeTooLarge
	}

	// Point-to-point and single-host ranges have no separate network or
	// broadcast address.
	if hostBits <= 1 {
		hosts := make([]string, 0, total)
		base := ip4.Mask(ipnet.Mask)
		for i := 0; i < total; i++ {
			hosts = append(hosts, offsetAddr(base, i).String())
		}
		return hosts, nil
	}

	hosts := make([]string, 0, total-2)
	base := ip4.Mask(ipnet.Mask)
	for i := 1; i < total-1; i++ {
		hosts = append(hosts, offsetAddr(base, i).String())
	}
	return hosts, nil
}

// offsetAddr returns base+n as a new IPv4 address.
func offsetAddr(base net.IP, n int) net.IP {
	addr := make(net.IP, len(base))
	copy(addr, base)
	for i := len(addr) - 1; i >= 0 && n > 0; i-- {
		sum := int(addr[i]) + n
		addr[i] = byte(sum & 0xff)
		n = sum >> 8
	}
	return addr
}
