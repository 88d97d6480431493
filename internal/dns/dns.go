package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// PublicDNS are servers to be queried if a local lookup fails
// These are well-known, high-availability public DNS providers
var publicDNS = []string{
	"1.0.0.1",              // Cloudflare
	"1.1.1.1",              // Cloudflare
	"2606:4700:4700::1111", // Cloudflare
	"8.8.4.4",              // Google
	"8.8.8.8",              // Google
	"2001:4860:4860::8888", // Google
	"9.9.9.9",              // Quad9
	"149.112.112.112",      // Quad9
	"208.67.220.220",       // Cisco OpenDNS
	"208.67.222.222",       // Cisco OpenDNS
}

const (
	localTimeout  = 1 * time.Second
	remoteTimeout = 2 * time.Second
)

// Lookup resolves a hostname to an IP address.
// IP literals are returned unchanged. Otherwise the system resolver is tried
// first, falling back to a race between public DNS providers.
func Lookup(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	ip, err := localLookupIP(ctx, host)
	if err == nil && ip != "" {
		return ip, nil
	}

	return remoteLookupWithRace(ctx, host)
}

// DialContext resolves the host part of addr with Lookup and dials it.
// Its signature fits both http.Transport and websocket.Dialer.
func DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	ip, err := Lookup(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed: %w", err)
	}

	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
}

func localLookupIP(ctx context.Context, host string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, localTimeout)
	defer cancel()

	var r net.Resolver
	ips, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	return pickIP(ips)
}

// remoteLookupWithRace returns the first answer from any public DNS server.
func remoteLookupWithRace(ctx context.Context, host string) (string, error) {
	type result struct {
		ip  string
		err error
	}

	results := make(chan result, len(publicDNS))
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	for _, server := range publicDNS {
		go func() {
			ip, err := remoteLookupIP(ctx, host, server)
			results <- result{ip: ip, err: err}
		}()
	}

	failures := 0
	for range publicDNS {
		select {
		case res := <-results:
			if res.err == nil && res.ip != "" {
				return res.ip, nil
			}
			failures++
		case <-ctx.Done():
			return "", fmt.Errorf("dns lookup for %s timed out during public DNS race", host)
		}
	}

	return "", fmt.Errorf("failed to resolve %s: all %d public DNS servers failed", host, failures)
}

func remoteLookupIP(ctx context.Context, host, server string) (string, error) {
	r := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		},
	}

	ips, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	return pickIP(ips)
}

// pickIP prefers IPv4.
func pickIP(ips []string) (string, error) {
	if len(ips) == 0 {
		return "", errors.New("no IP addresses found")
	}
	for _, ip := range ips {
		if net.ParseIP(ip).To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}
