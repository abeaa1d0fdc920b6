package gateway

import (
	"log"
	"net/http"
)

// writeError logs err against reqID (when known) and reports a 502 to the
// downstream client. Gateway failures are never the caller's fault to
// diagnose, so the body stays terse; detail goes to the log line.
func writeError(w http.ResponseWriter, reqID string, op string, err error) {
	if reqID != "" {
		log.Printf("gateway: [%s] %s: %v", reqID, op, err)
	} else {
		log.Printf("gateway: %s: %v", op, err)
	}
	recordError(op)
	http.Error(w, "upstream error", http.StatusBadGateway)
}
