package network

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// SessionCookie is the cookie (and query parameter) carrying the session token.
const SessionCookie = "session_id"

// Options tunes the WebSocket endpoint.
type Options struct {
	SendBuffer     int
	MaxMessageSize int64
	Logger         *slog.Logger
}

// Server upgrades HTTP requests to WebSocket clients and hands them to the EventHandler.
type Server struct {
	hub      *Hub
	handler  EventHandler
	upgrader websocket.Upgrader
	opts     Options
	logger   *slog.Logger
}

// NewServer wires handler to a fresh hub.
func NewServer(handler EventHandler, opts Options) *Server {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = DefaultMaxMessageSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		hub:     NewHub(),
		handler: handler,
		upgrader: websocket.Upgrader{
			// Browser clients are served from anywhere during development.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		opts:   opts,
		logger: opts.Logger.With("component", "network"),
	}
}

// Hub exposes the live client set.
func (s *Server) Hub() *Hub { return s.hub }

// ServeHTTP is the WebSocket entry point.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := TokenFromRequest(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := uuid.NewString()
	client := &Client{
		id:     id,
		token:  token,
		conn:   conn,
		hub:    s.hub,
		send:   make(chan Message, s.opts.SendBuffer),
		logger: s.logger.With("conn", id),
	}

	s.hub.register(client)
	client.logger.Info("client connected", "remote", client.RemoteAddr(), "clients", s.hub.Count())
	s.handler.OnConnect(r.Context(), client)

	go client.writeLoop()
	go client.readLoop(s.handler, s.opts.MaxMessageSize)
}

// TokenFromRequest extracts the session token from the session_id query
// parameter, the session_id cookie or a bearer Authorization header, in that order.
func TokenFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get(SessionCookie); t != "" {
		return t
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	return ""
}
