// Package gateway lets out-of-process scripting engines reach the bridge.
// Scripts connect over WebSocket and issue calls by method name; REST
// endpoints expose status, shortcuts and the tiling configuration.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tilebridge/pkg/bridge"
	"tilebridge/pkg/config"
	"tilebridge/pkg/logger"
	"tilebridge/pkg/shortcuts"
	"tilebridge/pkg/snapshot"
	"tilebridge/pkg/version"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message types.
const (
	TypeCall     = "call"
	TypeResult   = "result"
	TypeError    = "error"
	TypePing     = "ping"
	TypePong     = "pong"
	TypeSystem   = "system"
	TypeShortcut = "shortcut"
)

// WSMessage is the JSON format for WebSocket messages.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`     // Correlates a call with its result
	Method    string          `json:"method,omitempty"` // Bridge method for calls
	Args      []any           `json:"args,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Content   string          `json:"content,omitempty"` // Error text, shortcut id, system notice
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Client represents a connected script engine.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	subject string
}

// Server is the WebSocket/REST gateway server.
type Server struct {
	config    *config.Config
	logger    *logger.Logger
	bridge    *bridge.Bridge
	shortcuts *shortcuts.Registry
	snapshots *snapshot.Scheduler
	mux       *http.ServeMux
	server    *http.Server
	listener  net.Listener
	clients   map[string]*Client
	mu        sync.RWMutex
}

// NewServer creates a new gateway server. snapshots may be nil.
func NewServer(
	cfg *config.Config,
	log *logger.Logger,
	b *bridge.Bridge,
	registry *shortcuts.Registry,
	snapshots *snapshot.Scheduler,
) *Server {
	s := &Server{
		config:    cfg,
		logger:    log,
		bridge:    b,
		shortcuts: registry,
		snapshots: snapshots,
		clients:   make(map[string]*Client),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws/script", s.handleWSScript)

	// REST endpoints
	mux.HandleFunc("GET /api/v1/status", s.requireAuth(s.handleStatus))
	mux.HandleFunc("GET /api/v1/shortcuts", s.requireAuth(s.handleListShortcuts))
	mux.HandleFunc("POST /api/v1/shortcuts/{id}/trigger", s.requireAuth(s.handleTriggerShortcut))
	mux.HandleFunc("GET /api/v1/config", s.requireAuth(s.handleConfig))

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	s.mux = mux
}

// Handler returns the HTTP handler of the gateway.
func (s *Server) Handler() http.Handler { return s.mux }

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Gateway.Host, s.config.Gateway.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway listen %s: %w", addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Gateway server starting", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Gateway server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the gateway server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Gateway server stopping")

	s.mu.Lock()
	for id, client := range s.clients {
		close(client.send)
		client.conn.Close()
		delete(s.clients, id)
	}
	s.mu.Unlock()

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// --- WebSocket Handler ---

func (s *Server) handleWSScript(w http.ResponseWriter, r *http.Request) {
	subject, err := s.authenticate(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		id:      uuid.New().String(),
		conn:    conn,
		send:    make(chan []byte, 256),
		subject: subject,
	}

	s.mu.Lock()
	s.clients[client.id] = client
	s.mu.Unlock()

	s.logger.Info("Script client connected",
		zap.String("client_id", client.id),
		zap.String("subject", subject),
	)

	s.push(client, WSMessage{
		Type:    TypeSystem,
		ID:      client.id,
		Content: "Connected to tilebridge " + version.GetVersion(),
	})

	go s.readPump(client)
	go s.writePump(client)
}

func (s *Server) readPump(client *Client) {
	defer func() {
		s.removeClient(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(1 << 20)
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket read error",
					zap.String("client_id", client.id),
					zap.Error(err),
				)
			}
			return
		}
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendError(client, "", "invalid message format")
			continue
		}

		switch msg.Type {
		case TypePing:
			s.push(client, WSMessage{Type: TypePong, ID: msg.ID})
		case TypeCall:
			// Calls run in order on the read loop; scripts expect their
			// writes to be visible to the next call.
			s.handleCall(client, msg)
		default:
			s.sendError(client, msg.ID, fmt.Sprintf("unsupported message type %q", msg.Type))
		}
	}
}

func (s *Server) writePump(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleCall(client *Client, msg WSMessage) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	var (
		result any
		err    error
	)
	if msg.Method == bridge.MethodRegisterShortcut {
		err = s.registerClientShortcut(client, msg.Args)
	} else {
		result, err = s.bridge.Call(context.Background(), msg.Method, msg.Args)
	}
	if err != nil {
		s.sendError(client, msg.ID, err.Error())
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		s.sendError(client, msg.ID, "unencodable result")
		return
	}
	s.push(client, WSMessage{Type: TypeResult, ID: msg.ID, Result: raw})
}

// registerClientShortcut binds the shortcut to the calling client: when it
// fires, the client receives a shortcut message carrying the id.
func (s *Server) registerClientShortcut(client *Client, args []any) error {
	desc, err := bridge.ParseShortcutArgs(args)
	if err != nil {
		return err
	}

	id := shortcuts.NormalizeID(desc.ID)
	desc.Callback = func(ctx context.Context) error {
		if !s.push(client, WSMessage{Type: TypeShortcut, Content: id}) {
			return fmt.Errorf("script client %s is gone", client.id)
		}
		return nil
	}
	if err := s.bridge.TryRegisterShortcut(desc); err != nil {
		return fmt.Errorf("registering shortcut: %w", err)
	}
	return nil
}

// push queues msg for client. It reports false when the client has
// disconnected or its queue is full.
func (s *Server) push(client *Client, msg WSMessage) bool {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.clients[client.id]; !ok {
		return false
	}
	select {
	case client.send <- data:
		return true
	default:
		s.logger.Warn("Dropping message for slow client", zap.String("client_id", client.id))
		return false
	}
}

func (s *Server) sendError(client *Client, id, errMsg string) {
	s.push(client, WSMessage{Type: TypeError, ID: id, Content: errMsg})
}

func (s *Server) removeClient(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client.id]; ok {
		close(client.send)
		delete(s.clients, client.id)
		s.logger.Info("Script client disconnected",
			zap.String("client_id", client.id),
		)
	}
}

// --- REST Handlers ---

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	connCount := len(s.clients)
	s.mu.RUnlock()

	status := map[string]any{
		"version":     version.Get(),
		"connections": connCount,
		"backend":     s.config.State.Backend,
		"methods":     bridge.Methods(),
		"shortcuts":   len(s.shortcuts.List()),
		"gateway": map[string]any{
			"host": s.config.Gateway.Host,
			"port": s.config.Gateway.Port,
		},
	}
	if s.snapshots != nil {
		status["snapshot"] = s.snapshots.Status()
	}

	writeJSON(w, http.StatusOK, status)
}

type shortcutView struct {
	ID                string `json:"id"`
	Description       string `json:"description"`
	DefaultKeybinding string `json:"default_keybinding"`
}

func (s *Server) handleListShortcuts(w http.ResponseWriter, r *http.Request) {
	actions := s.shortcuts.List()
	views := make([]shortcutView, 0, len(actions))
	for _, a := range actions {
		views = append(views, shortcutView{
			ID:                a.ID,
			Description:       a.Description,
			DefaultKeybinding: a.DefaultKeybinding,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleTriggerShortcut(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.shortcuts.Trigger(r.Context(), id); err != nil {
		if errors.Is(err, shortcuts.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("Shortcut trigger failed", zap.String("id", id), zap.Error(err))
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "triggered", "id": shortcuts.NormalizeID(id)})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.JSConfig())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
