package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dgnsrekt/tv_trader/internal/stream"
)

// sseHandler streams broker events to the caller as server-sent events.
// An optional ?events=overlay,accounts query narrows the event types sent.
func sseHandler(events *stream.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		var wanted map[string]bool
		if raw := r.URL.Query().Get("events"); raw != "" {
			wanted = make(map[string]bool)
			for _, name := range strings.Split(raw, ",") {
				if name = strings.TrimSpace(name); name != "" {
					wanted[name] = true
				}
			}
		}

		// Subscribe before the headers go out so events published right
		// after the client connects are not lost.
		id, ch := events.Subscribe()
		defer events.Unsubscribe(id)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, open := <-ch:
				if !open {
					return
				}
				if wanted != nil && !wanted[evt.Type] {
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, evt.Payload); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
