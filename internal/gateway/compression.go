package gateway

import (
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// negotiateCompression wraps w in a brotli writer when the client advertises
// "br" support and brotli is enabled, for the text-heavy /xmltv.php and
// /get.php bodies. The returned close func must be deferred by the caller;
// it is a no-op when no compression was applied.
func negotiateCompression(w http.ResponseWriter, r *http.Request, enabled bool) (io.Writer, func()) {
	if !enabled || !strings.Contains(r.Header.Get("Accept-Encoding"), "br") {
		return w, func() {}
	}
	w.Header().Set("Content-Encoding", "br")
	bw := brotli.NewWriterLevel(w, brotli.DefaultCompression)
	return bw, func() { _ = bw.Close() }
}
