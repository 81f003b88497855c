// Package server exposes the song pipeline over HTTP and a websocket stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-notemap/beatmap"
	"github.com/cwbudde/algo-notemap/melody"
	"github.com/cwbudde/algo-notemap/notemap"
	"github.com/cwbudde/algo-notemap/preset"
)

const (
	maxMelodyBytes = 64 << 10
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendQueue      = 256
)

// Message is one websocket frame sent to the client.
type Message struct {
	Type   string             `json:"type"`
	Note   *notemap.NoteEvent `json:"note,omitempty"`
	Notes  int                `json:"notes,omitempty"`
	Header string             `json:"header,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// Message types.
const (
	TypeNote  = "note"
	TypeDone  = "done"
	TypeError = "error"
)

// Server serves song generation requests.
type Server struct {
	opts     beatmap.Options
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
	jobs     chan struct{}
}

// New returns a server that runs every request with opts. At most
// maxJobs pipelines run at once; 0 means one.
func New(opts beatmap.Options, log logrus.FieldLogger, maxJobs int) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	opts.Logger = log
	return &Server{
		opts: opts,
		log:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		jobs: make(chan struct{}, max(maxJobs, 1)),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /run", s.handleRun)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.WithFields(logrus.Fields{
			"function": "ListenAndServe",
			"addr":     addr,
		}).Info("Server starting")
		errc <- srv.ListenAndServe()
	}()

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

func (s *Server) generate(ctx context.Context, source string, songID int, onNote func(notemap.NoteEvent)) (*beatmap.Artifacts, error) {
	select {
	case s.jobs <- struct{}{}:
		defer func() { <-s.jobs }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	opts := s.opts
	if songID > 0 {
		opts.SongID = songID
	}
	opts.OnNote = onNote
	return beatmap.Generate(ctx, source, opts)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMelodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	source := strings.TrimSpace(r.PostFormValue("input_str"))
	if source == "" {
		http.Error(w, "missing input_str", http.StatusBadRequest)
		return
	}
	songID := 0
	if raw := r.PostFormValue("song_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 0 {
			http.Error(w, fmt.Sprintf("invalid song_id %q", raw), http.StatusBadRequest)
			return
		}
		songID = id
	}

	art, err := s.generate(r.Context(), source, songID, nil)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	id := s.opts.SongID
	if songID > 0 {
		id = songID
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="song%d.h"`, id))
	fmt.Fprintln(w, art.Header)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, melody.ErrSyntax):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	f := preset.FromPreset(&preset.Preset{Config: s.opts.Config, Synth: s.opts.Synth})
	if err := json.NewEncoder(w).Encode(f); err != nil {
		s.log.WithFields(logrus.Fields{
			"function": "handleConfig",
			"error":    err,
		}).Warn("Config response failed")
	}
}
