package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRequestLatency(t *testing.T) {
	s := &server{latency: 5 * time.Millisecond}

	tests := []struct {
		name    string
		target  string
		want    time.Duration
		wantErr bool
	}{
		{"default", "/", 5 * time.Millisecond, false},
		{"query", "/?latency=20", 20 * time.Millisecond, false},
		{"path", "/latency/7", 7 * time.Millisecond, false},
		{"fractional", "/?latency=0.5", 500 * time.Microsecond, false},
		{"query wins over path", "/latency/7?latency=1", time.Millisecond, false},
		{"negative", "/?latency=-1", 0, true},
		{"garbage", "/latency/abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			got, err := s.requestLatency(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("requestLatency() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("requestLatency() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandleRequestStatusOverride(t *testing.T) {
	s := &server{status: http.StatusOK}

	rec := httptest.NewRecorder()
	s.handleRequest(rec, httptest.NewRequest(http.MethodGet, "/?status=503", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.handleRequest(rec, httptest.NewRequest(http.MethodGet, "/?latency=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if s.hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", s.hits.Load())
	}
}
