package scanner

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Ports checked on every scanned address.
const (
	portHTTP     = 80
	portHTTPS    = 443
	portSNMP     = 161
	portRawPrint = 9100 // JetDirect raw printing, printer specific
)

// ProbeResult holds the reachability findings for one address. It is owned
// exclusively by the classifier that consumes it.
type ProbeResult struct {
	IP       string
	HTTP     bool
	HTTPS    bool
	SNMP     bool
	RawPrint bool
	Hostname string
}

// probeFunc and resolveFunc allow tests to inject deterministic network
// behavior in place of real sockets and DNS.
type probeFunc func(ip string, port int, timeout time.Duration) bool

type resolveFunc func(ctx context.Context, ip string) string

// probeTCP tries a plain TCP connect to ip:port with the given timeout.
// Refusal, timeout, and host-unreachable all count as closed; the connection
// is dropped immediately once the result is known.
func probeTCP(ip string, port int, timeout time.Duration) bool {
	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// resolveHostname reverse-resolves an address, returning "" when no PTR
// record exists or lookup fails.
func resolveHostname(ctx context.Context, ip string) string {
	names, err := net.DefaultResolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return ""
	}
	return strings.TrimSuffix(names[0], ".")
}

// probeHost runs the four port probes and the reverse DNS lookup for one
// address, all concurrently with each other.
func probeHost(ctx context.Context, ip string, timeout time.Duration, probe probeFunc, resolve resolveFunc) ProbeResult {
	result := ProbeResult{IP: ip}

	var wg sync.WaitGroup
	ports := []struct {
		port int
		dst  *bool
	}{
		{portHTTP, &result.HTTP},
		{portHTTPS, &result.HTTPS},
		{portSNMP, &result.SNMP},
		{portRawPrint, &result.RawPrint},
	}

	for _, p := range ports {
		wg.Add(1)
		go func(port int, dst *bool) {
			defer wg.Done()
			*dst = probe(ip, port, timeout)
		}(p.port, p.dst)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		lookupCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		result.Hostname = resolve(lookupCtx, ip)
	}()

	wg.Wait()
	return result
}
