// Package fetch implements the fetch/install pipeline: protocol dispatch,
// a per-package queue directory, package-root detection, and handing the
// materialized tree to internal/catalog for archiving and installation.
package fetch

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient builds the *http.Client used by the default HTTP/zip
// protocol, with connection pooling and timeouts tuned for short-lived
// package downloads.
func NewHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{Transport: tr, Timeout: 2 * time.Minute}
}

// ShutdownClient closes idle connections held by c's transport.
func ShutdownClient(c *http.Client) {
	if tr, ok := c.Transport.(*http.Transport); ok {
		tr.CloseIdleConnections()
	}
}
