package health

import (
	"encoding/json"
	"maps"
	"net/http"
	"slices"
	"strings"
)

// LivenessHandler always answers OK while the process serves requests.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if wantsJSON(r) {
			writeJSON(w, http.StatusOK, &Response{Status: StatusHealthy})
			return
		}
		writeText(w, http.StatusOK, "OK")
	}
}

// ReadinessHandler runs checks on every request and answers 503 when any
// of them fails. The plain text body lists the failing checks, one per
// line, with their delivery failure reason when known.
func ReadinessHandler(checks Checks, opts ...Option) http.HandlerFunc {
	cfg := newConfig(opts...)

	return func(w http.ResponseWriter, r *http.Request) {
		resp := run(r.Context(), checks, cfg)

		status := http.StatusOK
		if resp.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		if wantsJSON(r) {
			writeJSON(w, status, resp)
			return
		}
		if status == http.StatusOK {
			writeText(w, status, "OK")
			return
		}

		lines := []string{"Service Unavailable"}
		for _, name := range slices.Sorted(maps.Keys(resp.Checks)) {
			c := resp.Checks[name]
			if c.Status == StatusHealthy {
				continue
			}
			detail := c.Error
			if c.Reason != "" {
				detail = string(c.Reason) + ": " + detail
			}
			lines = append(lines, name+": "+detail)
		}
		writeText(w, status, strings.Join(lines, "\n"))
	}
}

// wantsJSON reports whether the client asked for JSON with ?format=json
// or an Accept header.
func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
