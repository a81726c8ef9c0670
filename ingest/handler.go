// Package ingest exposes the HTTP endpoint that accepts captured flags and
// hands them to the queue.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"pkt.systems/pslog"

	"github.com/ctfpipe/flagrelay/queue"
)

const maxBodyBytes = 1 << 20

// Handler accepts POST /flags requests. The body is either text/plain with
// one flag per line, or a JSON array of flag strings. Flags that do not
// match the configured format are rejected and counted, not fatal.
type Handler struct {
	q      queue.Queue
	format *regexp.Regexp
	log    pslog.Logger
}

// NewHandler builds a handler enqueueing into q. format is a regular
// expression a submitted flag must fully match; empty accepts anything.
func NewHandler(q queue.Queue, format string, logger pslog.Logger) (*Handler, error) {
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	h := &Handler{q: q, log: logger}
	if format != "" {
		re, err := regexp.Compile("^(?:" + format + ")$")
		if err != nil {
			return nil, fmt.Errorf("ingest: bad flag format: %w", err)
		}
		h.format = re
	}
	return h, nil
}

// result is the response body for an ingestion request.
type result struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	flags, err := parseFlags(r.Header.Get("Content-Type"), body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	source := r.RemoteAddr
	var res result
	for _, value := range flags {
		if h.format != nil && !h.format.MatchString(value) {
			res.Rejected++
			continue
		}
		err := h.q.Put(r.Context(), queue.Flag{
			Value:      value,
			Source:     source,
			ReceivedAt: time.Now(),
		})
		switch err {
		case nil:
			res.Accepted++
		case queue.ErrFull:
			h.log.Warn("ingest.queue_full", "accepted", res.Accepted, "source", source)
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, res)
			return
		default:
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}

	h.log.Debug("ingest.batch", "accepted", res.Accepted, "rejected", res.Rejected, "source", source)
	writeJSON(w, http.StatusAccepted, res)
}

// parseFlags extracts flag strings from the request body. JSON bodies are a
// flat array of strings; anything else is treated as newline-separated text.
func parseFlags(contentType string, body []byte) ([]string, error) {
	if strings.HasPrefix(contentType, "application/json") {
		var flags []string
		if err := json.Unmarshal(body, &flags); err != nil {
			return nil, fmt.Errorf("invalid JSON body: expected array of strings")
		}
		return flags, nil
	}

	var flags []string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			flags = append(flags, line)
		}
	}
	return flags, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
