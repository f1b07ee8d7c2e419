package ratelimit

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// GetClientIP returns the address used to key per-client limits. Forwarding
// headers are only read when trustProxy is set; otherwise a client could pick
// its own key.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip, ok := forwardedFor(r.Header.Get("X-Forwarded-For")); ok {
			return ip
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	return remoteHost(r.RemoteAddr)
}

// forwardedFor walks X-Forwarded-For from the right, since the rightmost hops
// are the ones our own proxies appended, and returns the first public address.
// When every hop is private the last one is used.
func forwardedFor(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	hops := strings.Split(header, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if addr, err := netip.ParseAddr(hop); err == nil && !isPrivateAddr(addr) {
			return hop, true
		}
	}
	return strings.TrimSpace(hops[len(hops)-1]), true
}

func remoteHost(remoteAddr string) string {
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return ap.Addr().String()
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

func isPrivateIP(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return isPrivateAddr(addr)
}

// isPrivateAddr covers RFC 1918, unique-local, loopback and link-local
// ranges. IPv4-mapped IPv6 addresses match as their IPv4 form.
func isPrivateAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast()
}
