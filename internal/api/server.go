package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"poolSnapshot/internal/config"
	"poolSnapshot/internal/model"
	"poolSnapshot/internal/pooldata"
	"poolSnapshot/internal/snapshot"
	"poolSnapshot/internal/storage"
)

// Snapshotter resolves pool snapshots.
type Snapshotter interface {
	Snapshot(ctx context.Context, req pooldata.Request) (*model.PoolSnapshot, error)
}

// Server exposes snapshots over HTTP.
type Server struct {
	snapshots Snapshotter
	sink      storage.Storage
	gatherer  prometheus.Gatherer
	logger    *zap.Logger
}

// NewServer returns a Server. sink may be nil; gatherer nil uses the default registry.
func NewServer(snapshots Snapshotter, sink storage.Storage, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{snapshots: snapshots, sink: sink, gatherer: gatherer, logger: logger}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/snapshots/{chain}/{address}", s.handleSnapshot)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	return mux
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	req := pooldata.Request{
		Address: r.PathValue("address"),
		Chain:   r.PathValue("chain"),
		Env:     r.URL.Query().Get("env"),
	}
	if end := r.URL.Query().Get("end"); end != "" {
		ts, err := config.ParseTimestamp(end)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end timestamp: "+err.Error())
			return
		}
		req.EndTs = &ts
	}

	snap, err := s.snapshots.Snapshot(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Warn("snapshot failed", zap.String("pool", req.Address), zap.String("chain", req.Chain), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}

	if s.sink != nil {
		if err := s.sink.PutSnapshot(r.Context(), snap); err != nil {
			s.logger.Warn("persist snapshot failed", zap.String("pool", snap.Address), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, snap)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pooldata.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, snapshot.ErrUnsupportedPoolFamily):
		return http.StatusUnprocessableEntity
	case pooldata.IsProviderFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
