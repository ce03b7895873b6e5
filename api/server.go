package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ceramicnetwork/go-pulse/models"
)

const shutdownWaitTime = 5 * time.Second

const (
	csvContentType = "text/csv; charset=utf-8"
	csvFilename    = "panic.csv"
)

// NewRouter serves the token-gated CSV export and a health check.
func NewRouter(exporter models.PollExporter, logger models.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Get("/panic/{token}", handleExport(exporter, logger))
	r.Get("/panic/{token}/{channel}", handleExport(exporter, logger))
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func handleExport(exporter models.PollExporter, logger models.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		channelName, err := url.PathUnescape(chi.URLParam(r, "channel"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), models.DefaultHttpWaitTime)
		defer cancel()

		body, ok, err := exporter.ExportCsv(ctx, token, channelName)
		if err != nil {
			logger.Errorf("api: error exporting %q: %v", channelName, err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		} else if !ok {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", csvContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", csvFilename))
		w.WriteHeader(http.StatusOK)
		if _, err = w.Write(body); err != nil {
			logger.Warnf("api: error writing export: %v", err)
		}
	}
}

func requestLogger(logger models.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Infow(
					"api: request",
					"method", r.Method,
					"route", chi.RouteContext(r.Context()).RoutePattern(),
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"requestId", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Server runs the HTTP listener until its context is done.
type Server struct {
	server *http.Server
	logger models.Logger
}

func NewServer(port int, handler http.Handler, logger models.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("api: listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Infof("api: shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api: server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTime)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
