// Package server provides the HTTP server for the storyview daemon.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/storyview/errors"
	"github.com/grovetools/storyview/internal/daemon/engine"
	"github.com/grovetools/storyview/internal/daemon/store"
	"github.com/grovetools/storyview/pkg/daemon"
	"github.com/grovetools/storyview/pkg/channel"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Server manages the daemon's HTTP server over a Unix socket or TCP.
type Server struct {
	logger        *logrus.Entry
	server        *http.Server
	engine        *engine.Engine
	runningConfig *daemon.RunningConfig
	upgrader      websocket.Upgrader
}

// New creates a new Server instance.
func New(logger *logrus.Entry) *Server {
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The daemon listens on a private socket or a local address.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// SetEngine sets the preview engine for the server.
func (s *Server) SetEngine(eng *engine.Engine) {
	s.engine = eng
}

// SetRunningConfig sets the running configuration for the server.
func (s *Server) SetRunningConfig(cfg *daemon.RunningConfig) {
	s.runningConfig = cfg
}

// Handler returns the daemon's HTTP API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/state", s.handleGetState)
	mux.HandleFunc("/api/stream", s.handleStreamState)
	mux.HandleFunc("/api/channel", s.handleChannel)
	mux.HandleFunc("/api/command", s.handleCommand)
	mux.HandleFunc("/api/render", s.handleRender)
	mux.HandleFunc("/api/extract", s.handleExtract)
	mux.HandleFunc("/api/config", s.handleGetConfig)

	return h2c.NewHandler(mux, &http2.Server{})
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	// Cleanup stale socket
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	// Set restrictive permissions on socket
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	return s.Serve(listener)
}

// ListenAndServeTCP starts the daemon on a TCP address.
func (s *Server) ListenAndServeTCP(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.logger.WithField("addr", listener.Addr().String()).Info("Daemon listening")
	return s.Serve(listener)
}

// Serve serves the API on an existing listener.
func (s *Server) Serve(listener net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.server.Serve(listener)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) ready(w http.ResponseWriter) bool {
	if s.engine == nil {
		http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, daemon.APIError{Code: errors.GetCode(err), Message: err.Error()})
}

// handleGetState returns the complete daemon state as JSON.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Store().Get())
}

// handleStreamState provides Server-Sent Events (SSE) for real-time state updates.
// Clients can subscribe to this endpoint to receive updates whenever the daemon state changes.
func (s *Server) handleStreamState(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.engine.Store().Subscribe()
	defer s.engine.Store().Unsubscribe(ch)

	// Send initial ping to confirm connection
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	s.logger.Debug("SSE client connected")

	// Send current state immediately so client has data right away
	state := s.engine.Store().Get()
	if data, err := json.Marshal(daemon.StreamUpdate{UpdateType: "initial", State: &state}); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			apiUpdate := convertToAPIUpdate(update)
			if apiUpdate == nil {
				continue
			}

			data, err := json.Marshal(apiUpdate)
			if err != nil {
				s.logger.WithError(err).Error("Failed to marshal update")
				continue
			}
			// SSE format: "data: {json}\n\n"
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// convertToAPIUpdate converts internal store.Update to the public API format.
func convertToAPIUpdate(u store.Update) *daemon.StreamUpdate {
	out := &daemon.StreamUpdate{UpdateType: string(u.Type), Source: u.Source}
	switch p := u.Payload.(type) {
	case store.Display:
		out.Display = &p
	case channel.Event:
		out.Event = &p
	case store.Sources:
		out.Sources = &p
	case string:
		if u.Type != store.UpdateConfigReload {
			return nil
		}
		out.ConfigFile = p
	default:
		if u.Type != store.UpdatePreview {
			return nil
		}
		out.Preview = p
	}
	return out
}

// handleChannel exposes the event channel over a WebSocket: commands are read
// from the client and every outbound event is written back.
func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	events := s.engine.Channel().Subscribe()
	defer s.engine.Channel().Unsubscribe(events)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Only this goroutine writes to the connection.
	outbound := make(chan daemon.ChannelMessage, 16)
	go func() {
		defer cancel()
		for {
			var cmd channel.Command
			if err := conn.ReadJSON(&cmd); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.WithError(err).Debug("Channel client read failed")
				}
				return
			}
			if err := s.engine.Dispatch(ctx, cmd); err != nil {
				select {
				case outbound <- daemon.ChannelMessage{Kind: "error", Error: &daemon.APIError{Code: errors.GetCode(err), Message: err.Error()}}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	s.logger.Debug("Channel client connected")
	for {
		var msg daemon.ChannelMessage
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg = daemon.ChannelMessage{Kind: "event", Event: &ev}
		case msg = <-outbound:
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.WithError(err).Debug("Channel client write failed")
			return
		}
	}
}

// handleCommand dispatches a single command posted as JSON.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var cmd channel.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid command body"))
		return
	}
	if err := s.engine.Dispatch(r.Context(), cmd); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleRender returns the content of the element in the main area.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	el := s.engine.View().MainElement()
	if el == nil {
		writeError(w, http.StatusNotFound, errors.NoSelection())
		return
	}
	writeJSON(w, http.StatusOK, el.Snapshot())
}

// handleExtract returns every story in the catalog.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	stories, err := s.engine.Preview().Extract(r.Context(), r.URL.Query().Get("docs_only") == "true")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stories)
}

// handleGetConfig returns the running configuration as JSON.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.runningConfig == nil {
		http.Error(w, "config not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.runningConfig)
}
