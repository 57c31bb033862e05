package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tilebridge/pkg/bridge"
	"tilebridge/pkg/config"
	"tilebridge/pkg/logger"
	"tilebridge/pkg/shortcuts"
	"tilebridge/pkg/state"
)

type staticConfig map[string]any

func (c staticConfig) Snapshot() (map[string]any, error) { return c, nil }

func newTestServer(t *testing.T, secret string) *Server {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Gateway.Secret = secret

	log := logger.NewNop()
	registry := shortcuts.NewRegistry()
	b, err := bridge.New(bridge.Options{
		KV:        state.NewMemoryStore(),
		Shortcuts: bridge.NewRegistryRelay(registry),
		Config:    staticConfig(cfg.Tiling.Snapshot()),
		Log:       log,
	})
	if err != nil {
		t.Fatal(err)
	}

	return NewServer(cfg, log, b, registry, nil)
}

func dialScript(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/script" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Welcome message.
	if msg := readMessage(t, conn); msg.Type != TypeSystem {
		t.Fatalf("expected system welcome, got %+v", msg)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func call(t *testing.T, conn *websocket.Conn, id, method string, args ...any) WSMessage {
	t.Helper()
	if err := conn.WriteJSON(WSMessage{Type: TypeCall, ID: id, Method: method, Args: args}); err != nil {
		t.Fatalf("write: %v", err)
	}
	return readMessage(t, conn)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %s", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	json.NewDecoder(rec.Body).Decode(&body)

	if body["connections"] != float64(0) {
		t.Fatalf("expected 0 connections, got %v", body["connections"])
	}
	if body["backend"] != "memory" {
		t.Fatalf("expected memory backend, got %v", body["backend"])
	}
	if methods, _ := body["methods"].([]any); len(methods) != len(bridge.Methods()) {
		t.Fatalf("expected %d methods, got %v", len(bridge.Methods()), body["methods"])
	}
	if _, ok := body["snapshot"]; ok {
		t.Fatal("snapshot status must be absent without a scheduler")
	}
}

func TestConfigEndpoint(t *testing.T) {
	s := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/config", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	var body map[string]any
	json.NewDecoder(rec.Body).Decode(&body)
	if body["keepFloatingAbove"] != true {
		t.Fatalf("unexpected config body %v", body)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, "s3cret")

	for _, path := range []string{"/api/v1/status", "/api/v1/shortcuts", "/ws/script"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}

	// Health stays open.
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", rec.Code)
	}
}

func TestAuthAcceptsIssuedToken(t *testing.T) {
	s := newTestServer(t, "s3cret")

	token, err := IssueToken("s3cret", "kwin", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with bearer token, got %d", rec.Code)
	}

	wrong, _ := IssueToken("other", "kwin", time.Hour)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/status?token="+wrong, nil)
	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign token, got %d", rec.Code)
	}
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	if _, err := IssueToken("", "x", 0); err == nil {
		t.Fatal("expected error without secret")
	}
}

func TestWSScriptCalls(t *testing.T) {
	s := newTestServer(t, "")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialScript(t, ts, "")

	res := call(t, conn, "1", "getWindowState", "geom")
	if res.Type != TypeResult || res.ID != "1" || string(res.Result) != `""` {
		t.Fatalf("unexpected result %+v", res)
	}

	if res := call(t, conn, "2", "putWindowState", "geom", "100,200,800,600"); res.Type != TypeResult {
		t.Fatalf("put failed: %+v", res)
	}
	res = call(t, conn, "3", "getWindowState", "geom")
	if string(res.Result) != `"100,200,800,600"` {
		t.Fatalf("geom = %s", res.Result)
	}

	res = call(t, conn, "4", "getSurfaceGroup", 1, 0)
	if string(res.Result) != "-1" {
		t.Fatalf("unset group = %s", res.Result)
	}
	call(t, conn, "5", "setSurfaceGroup", 1, 0, 3)
	if res := call(t, conn, "6", "getSurfaceGroup", 1, 0); string(res.Result) != "3" {
		t.Fatalf("group = %s", res.Result)
	}

	res = call(t, conn, "7", "getSurfaceGroup", 1.5, 0)
	if res.Type != TypeError || res.ID != "7" || !strings.Contains(res.Content, "bad arguments") {
		t.Fatalf("expected bad arguments error, got %+v", res)
	}
	res = call(t, conn, "8", "rm -rf")
	if res.Type != TypeError || !strings.Contains(res.Content, "unknown method") {
		t.Fatalf("expected unknown method error, got %+v", res)
	}

	if err := conn.WriteJSON(WSMessage{Type: TypePing, ID: "p"}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Type != TypePong || msg.ID != "p" {
		t.Fatalf("expected pong, got %+v", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Type != TypeError {
		t.Fatalf("expected error for malformed frame, got %+v", msg)
	}
}

func TestWSShortcutBoundToClient(t *testing.T) {
	s := newTestServer(t, "")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialScript(t, ts, "")

	res := call(t, conn, "r1", "registerShortcut", "Bismuth_Focus_Next", "Focus next window", "Meta+J")
	if res.Type != TypeResult {
		t.Fatalf("register failed: %+v", res)
	}

	resp, err := http.Get(ts.URL + "/api/v1/shortcuts")
	if err != nil {
		t.Fatal(err)
	}
	var list []shortcutView
	json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if len(list) != 1 || list[0].ID != "bismuth_focus_next" || list[0].DefaultKeybinding != "Meta+J" {
		t.Fatalf("unexpected shortcut list %+v", list)
	}

	resp, err = http.Post(ts.URL+"/api/v1/shortcuts/bismuth_focus_next/trigger", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("trigger status %d", resp.StatusCode)
	}

	if msg := readMessage(t, conn); msg.Type != TypeShortcut || msg.Content != "bismuth_focus_next" {
		t.Fatalf("expected shortcut push, got %+v", msg)
	}

	resp, err = http.Post(ts.URL+"/api/v1/shortcuts/missing/trigger", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown shortcut, got %d", resp.StatusCode)
	}
}

func TestWSRegisterShortcutReportsRejection(t *testing.T) {
	s := newTestServer(t, "")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialScript(t, ts, "")

	res := call(t, conn, "r1", "registerShortcut", "   ", "Blank id", "Meta+B")
	if res.Type != TypeError || res.ID != "r1" || !strings.Contains(res.Content, "empty") {
		t.Fatalf("expected rejection error, got %+v", res)
	}
	if got := len(s.shortcuts.List()); got != 0 {
		t.Fatalf("rejected shortcut was registered (%d entries)", got)
	}
}

func TestTriggerAfterDisconnectFails(t *testing.T) {
	s := newTestServer(t, "")
	client := &Client{id: "gone", send: make(chan []byte, 1)}

	if err := s.registerClientShortcut(client, []any{"orphan", "", ""}); err != nil {
		t.Fatalf("register: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/shortcuts/orphan/trigger", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for a disconnected owner, got %d", rec.Code)
	}
}

func TestRemoveClientIdempotent(t *testing.T) {
	s := newTestServer(t, "")

	client := &Client{
		id:   "test-client",
		send: make(chan []byte, 10),
	}
	s.clients["test-client"] = client

	s.removeClient(client)
	// Second removal should not panic
	s.removeClient(client)

	if len(s.clients) != 0 {
		t.Fatalf("expected 0 clients, got %d", len(s.clients))
	}
	if s.push(client, WSMessage{Type: TypePong}) {
		t.Fatal("push to a removed client must fail")
	}
}
