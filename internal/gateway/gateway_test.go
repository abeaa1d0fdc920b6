package gateway

import (
	"net/http/httptest"
	"testing"

	"github.com/snapetech/iptvcore/internal/config"
	"github.com/snapetech/iptvcore/internal/store"
)

func newTestGateway(t *testing.T) (*Gateway, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	cfg := &config.Config{
		BaseURL:       "http://iptvcore.local",
		BrotliEnabled: false,
	}
	return New(st, cfg), st
}

func TestMuxRoutesRegistered(t *testing.T) {
	g, _ := newTestGateway(t)
	mux := g.Mux()

	for _, path := range []string{"/player_api.php", "/get.php", "/xmltv.php", "/live/u/p/1.ts", "/metrics"} {
		req := httptest.NewRequest("GET", path, nil)
		_, pattern := mux.Handler(req)
		if pattern == "" {
			t.Fatalf("expected a registered handler for %s", path)
		}
	}
}

func TestStreamIDFromPath(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"1234.ts", "1234"},
		{"1234", "1234"},
		{"/live/u/p/1234.ts", "1234"},
	}
	for _, c := range cases {
		if got := streamIDFromPath(c.in); got != c.want {
			t.Errorf("streamIDFromPath(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseLivePath(t *testing.T) {
	username, password, streamID, ok := parseLivePath("/live/bob/secret/42.ts")
	if !ok {
		t.Fatalf("expected path to parse")
	}
	if username != "bob" || password != "secret" || streamID != "42" {
		t.Fatalf("got username=%q password=%q streamID=%q", username, password, streamID)
	}

	if _, _, _, ok := parseLivePath("/live/bob/secret"); ok {
		t.Fatalf("expected malformed path to fail parsing")
	}
}
