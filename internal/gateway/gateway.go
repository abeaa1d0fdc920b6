// Package gateway serves the Xtream-compatible HTTP surface downstream
// clients (IPTV players, Plex, etc.) connect to: auth, catalog listing,
// EPG guide, playlist, and the live stream proxy itself.
package gateway

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snapetech/iptvcore/internal/config"
	"github.com/snapetech/iptvcore/internal/httpclient"
	"github.com/snapetech/iptvcore/internal/store"
)

// Gateway wires the Store and a streaming-friendly HTTP client behind the
// downstream-facing handlers.
type Gateway struct {
	Store  *store.Store
	Config *config.Config
	HTTP   *http.Client
}

// New builds a Gateway for cfg. Store must already be open.
func New(st *store.Store, cfg *config.Config) *Gateway {
	return &Gateway{
		Store:  st,
		Config: cfg,
		HTTP:   httpclient.ForStreaming(),
	}
}

// Mux builds the downstream-facing ServeMux: player_api/xmltv/get/live plus
// Prometheus exposition on the same handler (callers may mount metrics on a
// separate MetricsAddr listener instead; both share the same registry).
func (g *Gateway) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/player_api.php", g.withRequestID(g.handlePlayerAPI))
	mux.HandleFunc("/get.php", g.withRequestID(g.handleGetPHP))
	mux.HandleFunc("/xmltv.php", g.withRequestID(g.handleXMLTV))
	mux.HandleFunc("/live/", g.withRequestID(g.handleLive))
	mux.Handle("/metrics", MetricsHandler())
	return mux
}

// withRequestID assigns each inbound request a correlation id, logged
// alongside any error the handler reports and in the access-log line below.
func (g *Gateway) withRequestID(h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		start := time.Now()
		h(w, r, reqID)
		log.Printf("gateway: [%s] %s %s %s", reqID, r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	}
}

// streamIDFromPath extracts the {stream_id} segment of a
// /live/{username}/{password}/{stream_id}.ts path, stripping any extension.
func streamIDFromPath(path string) string {
	base := path
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndex(base, "."); idx >= 0 {
		base = base[:idx]
	}
	return base
}
