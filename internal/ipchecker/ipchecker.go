// Package ipchecker restricts internal endpoints to clients from a trusted
// subnet.
package ipchecker

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

type IPChecker struct {
	trustedSubnet     *net.IPNet
	trustProxyHeaders bool
}

type initOptions struct {
	trustProxyHeaders bool
}

type InitOption func(*initOptions)

// WithTrustProxyHeaders makes the checker take the client address from
// X-Real-IP and X-Forwarded-For. Enable it only behind a reverse proxy that
// overwrites those headers, otherwise any client can claim any address.
func WithTrustProxyHeaders(trust bool) InitOption {
	return func(options *initOptions) {
		options.trustProxyHeaders = trust
	}
}

// New parses trustedSubnet in CIDR notation. An empty string builds a
// checker that lets every client through. By default only the connection's
// remote address is checked.
func New(trustedSubnet string, optionsProto ...InitOption) (*IPChecker, error) {
	options := &initOptions{
		trustProxyHeaders: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if trustedSubnet == "" {
		return &IPChecker{trustProxyHeaders: options.trustProxyHeaders}, nil
	}

	_, allowedNet, err := net.ParseCIDR(trustedSubnet)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/New(): error while `net.ParseCIDR()` calling: %w", err)
	}

	return &IPChecker{
		trustedSubnet:     allowedNet,
		trustProxyHeaders: options.trustProxyHeaders,
	}, nil
}

// Allowed reports whether clientIP may reach guarded endpoints.
func (checker *IPChecker) Allowed(clientIP net.IP) bool {
	if checker.trustedSubnet == nil {
		return true
	}

	return clientIP != nil && checker.trustedSubnet.Contains(clientIP)
}

// ClientIP takes the client address from X-Real-IP, then the first
// X-Forwarded-For entry, then the connection's remote address.
func ClientIP(request *http.Request) net.IP {
	if ip := net.ParseIP(request.Header.Get("X-Real-IP")); ip != nil {
		return ip
	}

	if xff := request.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return net.ParseIP(strings.TrimSpace(first))
	}

	return RemoteIP(request)
}

// RemoteIP is the address of the peer that opened the connection.
func RemoteIP(request *http.Request) net.IP {
	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return nil
	}

	return net.ParseIP(host)
}

func (checker *IPChecker) clientIP(request *http.Request) net.IP {
	if checker.trustProxyHeaders {
		return ClientIP(request)
	}

	return RemoteIP(request)
}

// Middleware answers 403 to clients outside the trusted subnet.
func (checker *IPChecker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !checker.Allowed(checker.clientIP(r)) {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
