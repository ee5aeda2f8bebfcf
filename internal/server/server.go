// Package server exposes the board as a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/apperr"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/board"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/metrics"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/timeline"
)

var tracer = otel.Tracer("growthlab/server")

// maxBody bounds request bodies.
const maxBody = 1 << 20

// Server routes API requests to a board.
type Server struct {
	board  *board.Board
	style  timeline.Style
	logger *slog.Logger
	mux    *http.ServeMux
}

// New builds the API over b. style is used for SVG timeline exports.
func New(b *board.Board, style timeline.Style, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		board:  b,
		style:  style,
		logger: logger.With(slog.String("component", "server")),
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.handle("GET /api/timeline", s.getTimeline)

	s.handle("GET /api/features", s.listFeatures)
	s.handle("POST /api/features", s.createFeature)
	s.handle("GET /api/features/{id}", s.getFeature)
	s.handle("PATCH /api/features/{id}", s.updateFeature)
	s.handle("DELETE /api/features/{id}", s.deleteFeature)
	s.handle("POST /api/features/{id}/outcome", s.recordOutcome)

	s.handle("GET /api/ideas", s.listIdeas)
	s.handle("POST /api/ideas", s.createIdea)
	s.handle("GET /api/ideas/{id}", s.getIdea)
	s.handle("PATCH /api/ideas/{id}", s.updateIdea)
	s.handle("DELETE /api/ideas/{id}", s.deleteIdea)
	s.handle("POST /api/ideas/{id}/convert", s.convertIdea)

	s.handle("GET /api/canvas", s.getCanvas)
	s.handle("POST /api/canvas/pointer", s.pointer)
	s.handle("POST /api/canvas/zoom", s.zoom)
	s.handle("POST /api/canvas/reset", s.reset)
	s.handle("POST /api/canvas/filter", s.filter)
	s.handle("POST /api/canvas/arrange", s.arrange)
	s.handle("GET /api/insights", s.insights)

	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
}

// handle registers h with tracing, request logging and the request
// duration histogram.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := tracer.Start(r.Context(), pattern, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		h(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
		metrics.HTTPRequests.WithLabelValues(pattern, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)))
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", slog.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type errorDetail struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// StatusOf maps an error code to an HTTP status.
func StatusOf(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.CodeValidationGap, apperr.CodeInvalidInput:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict, apperr.CodeBusy:
		return http.StatusConflict
	case apperr.CodeTransportFailure, apperr.CodePartialApply:
		return http.StatusBadGateway
	case apperr.CodeInvalidConfig:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newErrorBody(err error) errorBody {
	return errorBody{Error: errorDetail{Code: apperr.CodeOf(err), Message: err.Error()}}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()))
	}
	writeJSON(w, status, newErrorBody(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v. Unknown fields are rejected.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(err, apperr.CodeInvalidInput, "server.decode", "invalid JSON body")
	}
	return nil
}
