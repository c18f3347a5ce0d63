package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/qx/ledgerbot/api/internal/store"
)

type pinger struct {
	err error
}

func (p pinger) Ping(context.Context) error { return p.err }

func TestOpsRouterHealthz(t *testing.T) {
	tests := []struct {
		name       string
		backends   map[string]store.Pinger
		wantCode   int
		wantStatus string
	}{
		{
			name:       "memory only",
			backends:   map[string]store.Pinger{},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "all healthy",
			backends:   map[string]store.Pinger{"postgres": pinger{}, "redis": pinger{}},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "redis down",
			backends:   map[string]store.Pinger{"postgres": pinger{}, "redis": pinger{err: errors.New("refused")}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewOpsRouter(tt.backends).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var resp healthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if len(resp.Checks) != len(tt.backends) {
				t.Errorf("got %d checks, want %d", len(resp.Checks), len(tt.backends))
			}
		})
	}
}

func TestOpsRouterMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	NewOpsRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
}
