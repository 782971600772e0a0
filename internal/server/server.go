package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"scankiosk/internal/mapping"
	"scankiosk/internal/panel"
)

type Config struct {
	Bind              string
	Port              int
	ReadHeaderTimeout time.Duration
	Title             string
	Labels            panel.Labels
}

// Kiosk is what the page drives.
type Kiosk interface {
	Input(ctx context.Context, raw string) (string, error)
	Blur(ctx context.Context) error
	Focus(ctx context.Context) error
	Reload(ctx context.Context) error
	Display() panel.State
}

const (
	EventDisplay = "display"
	EventFocus   = "focus"
)

type Event struct {
	Type    string       `json:"type"`
	Status  panel.Status `json:"status,omitempty"`
	Label   string       `json:"label,omitempty"`
	Info    string       `json:"info"`
	Error   bool         `json:"error"`
	Version uint64       `json:"version,omitempty"`
}

type Server struct {
	cfg   Config
	log   zerolog.Logger
	kiosk Kiosk

	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

func New(cfg Config, log zerolog.Logger) *Server {
	if cfg.Bind == "" {
		cfg.Bind = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8092
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	if cfg.Labels == nil {
		cfg.Labels = panel.DefaultLabels()
	}

	return &Server{
		cfg:     cfg,
		log:     log,
		clients: make(map[chan []byte]struct{}),
	}
}

func (s *Server) Addr() string {
	return fmt.Sprintf("http://%s:%d", s.cfg.Bind, s.cfg.Port)
}

// Handler builds the routes for k. Start calls it; tests use it directly.
func (s *Server) Handler(k Kiosk) http.Handler {
	s.kiosk = k
	mux := http.NewServeMux()

	// UI
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/app.js", s.handleAppJS)

	// SSE stream
	mux.HandleFunc("/events", s.handleSSE)

	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/input", s.handleInput)
	mux.HandleFunc("/api/blur", s.handleFocusChange(Kiosk.Blur))
	mux.HandleFunc("/api/focus", s.handleFocusChange(Kiosk.Focus))
	mux.HandleFunc("/api/reload", s.handleReload)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) Start(ctx context.Context, k Kiosk) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.Port),
		Handler:           s.Handler(k),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	// shutdown
	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	s.log.Info().Str("addr", srv.Addr).Msg("http server listening")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// PanelChanged pushes the display to every connected page.
func (s *Server) PanelChanged(st panel.State) {
	s.Broadcast(s.displayEvent(st))
}

// Focus asks every connected page to focus its scan field.
func (s *Server) Focus() {
	s.Broadcast(Event{Type: EventFocus})
}

func (s *Server) displayEvent(st panel.State) Event {
	return Event{
		Type:    EventDisplay,
		Status:  st.Status,
		Label:   s.cfg.Labels.Label(st.Status),
		Info:    st.Info,
		Error:   st.InfoIsError,
		Version: st.Version,
	}
}

func (s *Server) Broadcast(ev Event) {
	b, _ := json.Marshal(ev)

	s.mu.Lock()
	for ch := range s.clients {
		select {
		case ch <- b:
		default:
			// slow client: drop
		}
	}
	s.mu.Unlock()
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientCh := make(chan []byte, 64)

	s.mu.Lock()
	s.clients[clientCh] = struct{}{}
	s.mu.Unlock()

	// initial: current display
	b, _ := json.Marshal(s.displayEvent(s.kiosk.Display()))
	fmt.Fprintf(w, "data: %s\n\n", b)
	flusher.Flush()

	notify := r.Context().Done()
	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	defer func() {
		s.mu.Lock()
		delete(s.clients, clientCh)
		close(clientCh)
		s.mu.Unlock()
	}()

	for {
		select {
		case <-notify:
			return
		case <-keepAlive.C:
			// comment line keeps connection alive
			fmt.Fprintf(w, ": ping %d\n\n", time.Now().Unix())
			flusher.Flush()
		case msg := <-clientCh:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.displayEvent(s.kiosk.Display()))
}

type inputRequest struct {
	Value string `json:"value"`
}

type inputResponse struct {
	Value      string `json:"value"`
	Dispatched bool   `json:"dispatched"`
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req inputRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		http.Error(w, "bad input body", http.StatusBadRequest)
		return
	}

	value, err := s.kiosk.Input(r.Context(), req.Value)
	if err != nil {
		s.log.Warn().Err(err).Msg("input not processed")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, inputResponse{
		Value:      value,
		Dispatched: value == "" && mapping.Digits(req.Value) != "",
	})
}

func (s *Server) handleFocusChange(fn func(Kiosk, context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := fn(s.kiosk, r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.kiosk.Reload(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
