// Package server streams extracted audio features to websocket clients and
// accepts source control commands from them.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/richinsley/goreactive/analysis"
	"github.com/richinsley/goreactive/audio"
	"github.com/richinsley/goreactive/engine"
	"github.com/richinsley/goreactive/options"
)

// Engine is the control surface the server drives. *engine.Manager implements it.
type Engine interface {
	SetSource(ctx context.Context, kind audio.Kind, file audio.FileSource, monitor bool) error
	SetMonitor(enabled bool)
	Stop() error
	Status() engine.Status
}

// FeatureSource produces one feature vector per frame. It is only called
// from the broadcast goroutine.
type FeatureSource interface {
	Extract() analysis.FeatureVector
}

// Server is the websocket feature server.
type Server struct {
	opts     *options.EngineOptions
	engine   Engine
	features FeatureSource
	commands *commandHandler

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// New creates a server. Nothing runs until Run or Handler is used.
func New(opts *options.EngineOptions, eng Engine, features FeatureSource) *Server {
	return &Server{
		opts:     opts,
		engine:   eng,
		features: features,
		commands: newCommandHandler(eng),
		clients:  make(map[*client]struct{}),
	}
}

// Handler returns the HTTP routes: /ws for the feature stream and /status.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /status", s.handleStatus)
	return mux
}

// Run serves until ctx is cancelled, broadcasting features at the configured FPS.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.broadcast(ctx)

	errc := make(chan error, 1)
	go func() {
		slog.Info("feature server listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("feature server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.closeClients()
	s.commands.close()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.engine.Status()); err != nil {
		slog.Debug("status response failed", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	format, err := parseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn:   conn,
		format: format,
		send:   make(chan *websocket.PreparedMessage, 16),
	}
	s.register(c)
	slog.Debug("websocket client connected", "remote", r.RemoteAddr, "format", format)

	go c.writeLoop()
	c.reply(StatusFrame{Type: "status", Status: s.engine.Status()})
	s.readLoop(r.Context(), c)

	s.unregister(c)
	slog.Debug("websocket client disconnected", "remote", r.RemoteAddr)
}

// readLoop dispatches commands until the connection fails.
func (s *Server) readLoop(ctx context.Context, c *client) {
	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read failed", "error", err)
			}
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.reply(newErrorFrame("", fmt.Errorf("%w: %v", errBadCommand, err)))
			continue
		}
		for _, frame := range s.commands.handle(ctx, cmd) {
			c.reply(frame)
		}
	}
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.conn.Close()
	}
}

// broadcast extracts once per frame and fans the encoded frame out to every
// client. Slow clients miss frames instead of delaying the others.
func (s *Server) broadcast(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(s.opts.Render.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.RLock()
		if len(s.clients) == 0 {
			s.mu.RUnlock()
			continue
		}
		frame := newFeaturesFrame(s.features.Extract().Scaled(s.opts.Render.Sensitivity))
		var prepared [2]*websocket.PreparedMessage
		for c := range s.clients {
			msg := prepared[c.format]
			if msg == nil {
				var err error
				if msg, err = encode(c.format, frame); err != nil {
					slog.Error("failed to encode features", "error", err)
					continue
				}
				prepared[c.format] = msg
			}
			select {
			case c.send <- msg:
			default:
			}
		}
		s.mu.RUnlock()
	}
}

// client is one websocket connection. writeLoop is its only writer.
type client struct {
	conn   *websocket.Conn
	format Format
	send   chan *websocket.PreparedMessage
}

// reply queues a frame for this client. It is only called from the
// client's read goroutine, before unregister closes send.
func (c *client) reply(v any) {
	msg, err := encode(c.format, v)
	if err != nil {
		slog.Error("failed to encode reply", "error", err)
		return
	}
	c.send <- msg
}

func (c *client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WritePreparedMessage(msg); err != nil {
				c.drain()
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.drain()
				return
			}
		}
	}
}

// drain closes the connection so the reader fails, then discards frames
// until unregister closes send.
func (c *client) drain() {
	c.conn.Close()
	for range c.send {
	}
}
