// Package health exposes the ops HTTP surface: liveness, metrics and a
// JSON snapshot of the server list status.
package health

import (
	"encoding/json"
	nethttp "net/http"

	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quartzmc/quartz/protocol"
)

type Server struct {
	*http.Server
}

// NewServer builds the ops server. status is sampled per request and must
// be safe to call from any goroutine.
func NewServer(addr string, status func() protocol.StatusInfo) *Server {
	s := http.NewServer(http.Address(addr))

	s.Handle("/metrics", promhttp.Handler())

	s.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
	})

	s.HandleFunc("/status", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(status()); err != nil {
			w.WriteHeader(nethttp.StatusInternalServerError)
		}
	})

	return &Server{s}
}
