package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/qx/ledgerbot/api/internal/store"
)

type check struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
}

type healthResponse struct {
	Status string           `json:"status"`
	Checks map[string]check `json:"checks,omitempty"`
}

// NewOpsRouter serves the health and metrics endpoints.
func NewOpsRouter(backends map[string]store.Pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/healthz", healthz(backends))
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func healthz(backends map[string]store.Pinger) http.HandlerFunc {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]check, len(names))}
		for _, name := range names {
			start := time.Now()
			if err := backends[name].Ping(ctx); err != nil {
				resp.Checks[name] = check{Status: "fail"}
				resp.Status = "degraded"
				continue
			}
			resp.Checks[name] = check{Status: "pass", Latency: time.Since(start).String()}
		}

		code := http.StatusOK
		if resp.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		httpx.WriteJsonCtx(r.Context(), w, code, resp)
	}
}
