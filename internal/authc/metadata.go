// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// RequestMetaData is an immutable snapshot of a single inbound request's
// network and TLS identity, built once at the boundary and read by every
// domain's acceptance rules.
type RequestMetaData struct {
	directIP          netip.Addr
	originatingIP     netip.Addr
	trustedProxy      bool
	clientCertSubject string
	request           *http.Request
}

// NewRequestMetaData snapshots the request. When the direct peer is one of
// the trusted proxies, the originating IP is resolved from the rightmost
// untrusted X-Forwarded-For hop and the request is marked trusted-proxy;
// otherwise the originating IP equals the direct IP.
func NewRequestMetaData(r *http.Request, trustedProxies []*net.IPNet) *RequestMetaData {
	meta := &RequestMetaData{request: r}

	if addrPort, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		meta.directIP = addrPort.Addr().Unmap()
	} else if addr, err := netip.ParseAddr(r.RemoteAddr); err == nil {
		meta.directIP = addr.Unmap()
	}
	meta.originatingIP = meta.directIP

	if meta.directIP.IsValid() && ipInNets(meta.directIP, trustedProxies) {
		meta.trustedProxy = true
		if origin, ok := forwardedOrigin(r, trustedProxies); ok {
			meta.originatingIP = origin
		}
	}

	if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
		meta.clientCertSubject = r.TLS.PeerCertificates[0].Subject.String()
	}

	return meta
}

// forwardedOrigin walks X-Forwarded-For right to left and returns the first
// hop that is not itself a trusted proxy.
func forwardedOrigin(r *http.Request, trustedProxies []*net.IPNet) (netip.Addr, bool) {
	header := r.Header.Get("X-Forwarded-For")
	if header == "" {
		return netip.Addr{}, false
	}

	hops := strings.Split(header, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			return netip.Addr{}, false
		}
		addr = addr.Unmap()
		if !ipInNets(addr, trustedProxies) {
			return addr, true
		}
	}
	// Every hop was a trusted proxy; the leftmost one is the origin.
	addr, err := netip.ParseAddr(strings.TrimSpace(hops[0]))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func ipInNets(addr netip.Addr, nets []*net.IPNet) bool {
	ip := net.IP(addr.AsSlice())
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// DirectIP is the address of the immediate peer.
func (m *RequestMetaData) DirectIP() netip.Addr { return m.directIP }

// OriginatingIP is the client address after trusted-proxy resolution.
func (m *RequestMetaData) OriginatingIP() netip.Addr { return m.originatingIP }

// TrustedProxy reports whether the request arrived through a trusted proxy.
func (m *RequestMetaData) TrustedProxy() bool { return m.trustedProxy }

// ClientCertSubject is the TLS client certificate subject, empty when the
// client presented no certificate.
func (m *RequestMetaData) ClientCertSubject() string { return m.clientCertSubject }

// Request is the underlying transport request, for header and parameter
// lookup by frontends.
func (m *RequestMetaData) Request() *http.Request { return m.request }

// Header is a convenience accessor for a request header.
func (m *RequestMetaData) Header(name string) string {
	if m.request == nil {
		return ""
	}
	return m.request.Header.Get(name)
}
