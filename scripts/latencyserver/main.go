// Command latencyserver is a local HTTP target with controllable response times,
// used to check sron's timing against a known service profile.
//
// Per-request latency comes from the ?latency=<ms> query parameter or a
// /latency/<ms> path, falling back to -latency. With -stall-every N, every Nth
// request additionally sleeps for -stall, which makes queueing behind a slow
// response visible in the recorded latencies.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

type server struct {
	latency    time.Duration
	stall      time.Duration
	stallEvery int64
	status     int

	hits atomic.Int64
}

func main() {
	port := flag.Int("port", 8080, "Listening port")
	latency := flag.Duration("latency", 0, "Default response latency")
	stall := flag.Duration("stall", time.Second, "Extra latency added to stalled requests")
	stallEvery := flag.Int64("stall-every", 0, "Stall every Nth request (0 disables stalls)")
	status := flag.Int("status", http.StatusOK, "Default response status code")
	flag.Parse()

	if *port <= 0 {
		log.Fatalf("port must be > 0")
	}

	s := &server{
		latency:    *latency,
		stall:      *stall,
		stallEvery: *stallEvery,
		status:     *status,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/", s.handleRequest)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("latency server listening on %s (latency=%s stall-every=%d)", addr, s.latency, s.stallEvery)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func (s *server) handleRequest(w http.ResponseWriter, r *http.Request) {
	n := s.hits.Add(1)

	delay, err := s.requestLatency(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if s.stallEvery > 0 && n%s.stallEvery == 0 {
		delay += s.stall
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	status := s.status
	if raw := r.URL.Query().Get("status"); raw != "" {
		if code, err := strconv.Atoi(raw); err == nil && code >= 100 && code <= 599 {
			status = code
		}
	}
	respondJSON(w, status, map[string]any{
		"request":    n,
		"latency_ms": delay.Milliseconds(),
	})
}

func (s *server) requestLatency(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("latency")
	if rest, ok := strings.CutPrefix(r.URL.Path, "/latency/"); ok && raw == "" {
		raw = strings.Trim(rest, "/")
	}
	if raw == "" {
		return s.latency, nil
	}
	ms, err := strconv.ParseFloat(raw, 64)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("invalid latency %q", raw)
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}

func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"requests": s.hits.Load()})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
