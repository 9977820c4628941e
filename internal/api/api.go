package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/joescharf/sessionhub/internal/coordinator"
	apperrors "github.com/joescharf/sessionhub/internal/errors"
)

const maxBodyBytes = 1 << 20

// Server provides the REST API handlers.
type Server struct {
	svc    *coordinator.Service
	logger zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(svc *coordinator.Service, logger zerolog.Logger) *Server {
	return &Server{svc: svc, logger: logger}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/session/create", s.createSession)
	mux.HandleFunc("POST /api/session/sync", s.syncProjectState)
	mux.HandleFunc("POST /api/session/deploy", s.deployToMaster)
	mux.HandleFunc("GET /api/session/status", s.status)
	mux.HandleFunc("POST /api/session/status", s.status)
	mux.HandleFunc("GET /api/session/{id}", s.getSession)
	mux.HandleFunc("DELETE /api/session/{id}", s.closeSession)

	mux.HandleFunc("GET /api/events", s.listEvents)

	mux.HandleFunc("GET /api/health", s.health)
	mux.HandleFunc("POST /api/health", s.health)

	return corsMiddleware(s.logMiddleware(s.recoverMiddleware(mux)))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		ev := s.logger.Debug()
		if rec.status >= 500 {
			ev = s.logger.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.logger.Error().Str("path", r.URL.Path).Interface("panic", v).Msg("handler panic")
				writeResponse(w, &coordinator.Response{
					Message: "Internal error",
					Err:     apperrors.ErrInternal,
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeResponse writes the envelope with the HTTP status matching its error.
func writeResponse(w http.ResponseWriter, resp *coordinator.Response) {
	writeJSON(w, StatusCode(resp), resp)
}

func writeMalformed(w http.ResponseWriter, err error) {
	writeResponse(w, &coordinator.Response{
		Message: fmt.Sprintf("Malformed request: %v", err),
		Err:     apperrors.Wrapf(apperrors.ErrMalformedRequest, "%v", err),
	})
}

// StatusCode maps an envelope to its HTTP status.
func StatusCode(resp *coordinator.Response) int {
	if resp.Success {
		return http.StatusOK
	}
	err := resp.Err
	switch {
	case apperrors.Is(err, apperrors.ErrMalformedRequest), apperrors.Is(err, apperrors.ErrInvalidToken):
		return http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrPermissionDenied):
		return http.StatusForbidden
	case apperrors.Is(err, apperrors.ErrSessionNotFound):
		return http.StatusNotFound
	case apperrors.Is(err, apperrors.ErrSessionInactive):
		return http.StatusConflict
	case apperrors.IsPlatform(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decodeBody reads a JSON body into v. An empty body is allowed when
// optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// sessionToken prefers the id in the body and falls back to the
// Authorization header.
func sessionToken(r *http.Request, fromBody string) string {
	if strings.TrimSpace(fromBody) != "" {
		return fromBody
	}
	return r.Header.Get("Authorization")
}

// --- Sessions ---

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req coordinator.CreateRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeMalformed(w, err)
		return
	}
	writeResponse(w, s.svc.CreateSession(r.Context(), req))
}

func (s *Server) syncProjectState(w http.ResponseWriter, r *http.Request) {
	var req coordinator.SyncRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeMalformed(w, err)
		return
	}
	req.SessionID = sessionToken(r, req.SessionID)
	writeResponse(w, s.svc.SyncProjectState(r.Context(), req))
}

func (s *Server) deployToMaster(w http.ResponseWriter, r *http.Request) {
	var req coordinator.DeployRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeMalformed(w, err)
		return
	}
	req.SessionID = sessionToken(r, req.SessionID)
	writeResponse(w, s.svc.DeployToMaster(r.Context(), req))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, s.svc.GetStatus(r.Context()))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, s.svc.GetSession(r.Context(), r.PathValue("id")))
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, s.svc.CloseSession(r.Context(), r.PathValue("id")))
}

// --- Events ---

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeMalformed(w, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}
	writeResponse(w, s.svc.ListEvents(r.Context(), q.Get("sessionId"), limit))
}

// --- Health ---

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.HealthCheck())
}
