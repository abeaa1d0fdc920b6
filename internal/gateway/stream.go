package gateway

import (
	"context"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/snapetech/iptvcore/internal/connmgr"
	"github.com/snapetech/iptvcore/internal/model"
	"github.com/snapetech/iptvcore/internal/sync"
)

// heartbeatInterval is how often an open stream proxy touches its
// ActiveStream row so CleanupStaleConnections doesn't reclaim a session
// that's still actively being copied.
const heartbeatInterval = 10 * time.Second

// handleLive proxies a live channel at
// "/live/{username}/{password}/{stream_id}.ts": build the upstream request,
// forward the Range header and a whitelisted response header set, then
// copy the body.
func (g *Gateway) handleLive(w http.ResponseWriter, r *http.Request, reqID string) {
	username, password, channelIDStr, ok := parseLivePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	account, cred, err := g.Store.FindAccountByCredentials(username, password)
	if err != nil {
		writeError(w, reqID, "live auth", err)
		return
	}
	if account == nil {
		recordAuthFailure()
		http.Error(w, "invalid username or password", http.StatusUnauthorized)
		return
	}

	channelID, err := strconv.ParseInt(channelIDStr, 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	channel, err := g.Store.GetChannel(channelID)
	if err != nil {
		writeError(w, reqID, "live get channel", err)
		return
	}
	if channel == nil || channel.AccountID != account.ID || channel.StreamType != model.StreamTypeLive {
		http.NotFound(w, r)
		return
	}

	client, err := sync.NewUpstreamClient(g.Store, account)
	if err != nil {
		writeError(w, reqID, "live upstream client", err)
		return
	}
	extStreamID, err := strconv.Atoi(channel.ExternalStreamID)
	if err != nil {
		writeError(w, reqID, "live parse external stream id", err)
		return
	}
	upstreamURL := client.StreamURL(extStreamID, "ts")

	credentialID := int64(0)
	if cred != nil {
		credentialID = cred.ID
	}
	token, err := connmgr.AcquireConnection(g.Store, credentialID, channelIDStr, r.RemoteAddr)
	if err != nil {
		log.Printf("gateway: [%s] live acquire connection: %v", reqID, err)
		recordError("live acquire connection")
		http.Error(w, "no connection slots available", http.StatusServiceUnavailable)
		return
	}
	defer func() {
		if _, err := connmgr.ReleaseConnection(g.Store, token); err != nil {
			writeError(w, reqID, "live release connection", err)
		}
	}()

	stopHeartbeat := g.startHeartbeat(r.Context(), token)
	defer stopHeartbeat()

	upstreamReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstreamURL, nil)
	if err != nil {
		writeError(w, reqID, "live build request", err)
		return
	}
	if ua := account.UserAgent; ua != "" {
		upstreamReq.Header.Set("User-Agent", ua)
	}
	if rng := r.Header.Get("Range"); rng != "" {
		upstreamReq.Header.Set("Range", rng)
	}

	resp, err := g.HTTP.Do(upstreamReq)
	if err != nil {
		writeError(w, reqID, "live fetch upstream", err)
		return
	}
	defer resp.Body.Close()

	for _, h := range []string{"Content-Type", "Content-Length", "Accept-Ranges"} {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	recordStreamOpened()
	defer recordStreamClosed()

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				log.Printf("gateway: [%s] live stream read: %v", reqID, readErr)
			}
			return
		}
	}
}

func (g *Gateway) startHeartbeat(ctx context.Context, token string) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_, _ = connmgr.UpdateActivity(g.Store, token)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()
	return func() { close(stop) }
}

// parseLivePath splits "/live/{username}/{password}/{stream_id}.ts" into its
// three components.
func parseLivePath(path string) (username, password, streamID string, ok bool) {
	trimmed := strings.TrimPrefix(path, "/live/")
	parts := strings.SplitN(trimmed, "/", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], streamIDFromPath(parts[2]), true
}
