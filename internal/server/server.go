// Package server exposes the interaction ledger over HTTP so that editors,
// browser extensions or shell hooks can report activity.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Tiliavir/work-hours/internal/model"
	"github.com/Tiliavir/work-hours/internal/storage"
	"github.com/Tiliavir/work-hours/internal/timecalc"
)

// Options configures a Server.
type Options struct {
	// Location is the zone activity times are recorded in. Nil means time.Local.
	Location *time.Location
	// Now overrides the clock. Nil means time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Server serves the interaction ledger.
type Server struct {
	ledger storage.Ledger
	loc    *time.Location
	now    func() time.Time
	log    *slog.Logger
}

// New creates a Server backed by l.
func New(l storage.Ledger, opts Options) *Server {
	s := &Server{ledger: l, loc: opts.Location, now: opts.Now, log: opts.Logger}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// touchRequest is the optional body of POST /interactions.
type touchRequest struct {
	// At is an RFC 3339 timestamp; empty means now.
	At string `json:"at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Route("/interactions", func(r chi.Router) {
		r.Post("/", s.handleTouch)
		r.Get("/", s.handleList)
		r.Delete("/", s.handlePrune)
		r.Get("/{date}", s.handleGet)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleTouch(w http.ResponseWriter, r *http.Request) {
	at := s.now()
	var req touchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.At != "" {
		t, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "at must be an RFC 3339 timestamp")
			return
		}
		at = t
	}

	rec, err := s.ledger.Touch(at.In(s.loc))
	if err != nil {
		s.log.Error("touch failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "could not record interaction")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.ledger.List()
	if err != nil {
		s.log.Error("list failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "could not read ledger")
		return
	}
	if recs == nil {
		recs = []model.Interaction{}
	}
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := timecalc.ParseDate(date, s.loc); err != nil {
		s.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	rec, ok, err := s.ledger.Get(date)
	if err != nil {
		s.log.Error("get failed", "date", date, "err", err)
		s.writeError(w, http.StatusInternalServerError, "could not read ledger")
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "no interactions recorded on "+date)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// handlePrune deletes every record up to and including ?until=YYYY-MM-DD.
func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	until := r.URL.Query().Get("until")
	if _, err := timecalc.ParseDate(until, s.loc); err != nil {
		s.writeError(w, http.StatusBadRequest, "until must be YYYY-MM-DD")
		return
	}
	n, err := s.ledger.PruneUntil(until)
	if err != nil {
		s.log.Error("prune failed", "until", until, "err", err)
		s.writeError(w, http.StatusInternalServerError, "could not prune ledger")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("writing response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
