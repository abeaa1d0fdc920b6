package httpclient

import (
	"log"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// Default returns an HTTP client with timeouts so that dead upstreams don't hang tuner slots
// or materialization forever. Use for gateway streaming, probe, and materializer.
func Default() *http.Client {
	transport := &http.Transport{
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 5 * time.Second,
		IdleConnTimeout:       30 * time.Second,
	}
	configureH2(transport)
	return &http.Client{
		Timeout:   60 * time.Second,
		Transport: transport,
	}
}

// ForStreaming returns a client with no overall timeout (stream may be long-lived) but
// ResponseHeaderTimeout so that failover can happen when the upstream never responds.
func ForStreaming() *http.Client {
	transport := &http.Transport{
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 5 * time.Second,
		IdleConnTimeout:       90 * time.Second,
	}
	configureH2(transport)
	return &http.Client{Transport: transport}
}

// configureH2 enables HTTP/2 over TLS for transport. Most Xtream upstreams speak
// plain HTTP/1.1, but a growing number front their panel behind an HTTP/2-terminating
// CDN; this lets Go negotiate it instead of always falling back to 1.1.
func configureH2(transport *http.Transport) {
	if err := http2.ConfigureTransport(transport); err != nil {
		log.Printf("httpclient: http2 configure failed, continuing on http/1.1: %v", err)
	}
}
