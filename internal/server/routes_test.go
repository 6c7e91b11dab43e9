package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/huddle/internal/directory"
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestServer(t *testing.T, origins ...string) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	hub := directory.NewHub(directory.NewDirectory(directory.NewMetrics(reg), logger), logger)
	go hub.Run()

	srv := httptest.NewServer(NewRouter(hub, Options{
		AllowedOrigins: origins,
		Gatherer:       reg,
		Logger:         logger,
	}))
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) *protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg protocol.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return &msg
}

// connected dials and returns the connection with its participant id.
func connected(t *testing.T, srv *httptest.Server) (*websocket.Conn, string) {
	t.Helper()
	conn := dial(t, srv)
	msg := read(t, conn)
	if msg.Type != protocol.TypeConnected || msg.ParticipantID == "" {
		t.Fatalf("expected connected, got %+v", msg)
	}
	return conn, msg.ParticipantID
}

func TestJoinScenarioOverWebsocket(t *testing.T) {
	srv := newTestServer(t)
	c1, id1 := connected(t, srv)
	c2, id2 := connected(t, srv)

	c1.WriteJSON(protocol.JoinRoom("r1", "alice"))
	if msg := read(t, c1); msg.Type != protocol.TypeRoomJoined {
		t.Fatalf("c1 got %+v", msg)
	}
	if msg := read(t, c1); msg.Type != protocol.TypeExistingParticipants || len(msg.Participants) != 0 {
		t.Fatalf("c1 got %+v", msg)
	}

	c2.WriteJSON(protocol.JoinRoom("r1", "bob"))
	if msg := read(t, c1); msg.Type != protocol.TypeParticipantJoined || msg.ParticipantID != id2 {
		t.Fatalf("c1 got %+v", msg)
	}
	read(t, c2)
	msg := read(t, c2)
	if msg.Type != protocol.TypeExistingParticipants || len(msg.Participants) != 1 || msg.Participants[0].ParticipantID != id1 {
		t.Fatalf("c2 got %+v", msg)
	}

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	c1.WriteJSON(protocol.OutboundSignal(id2, "", payload))
	msg = read(t, c2)
	if msg.Type != protocol.TypeSignal || msg.From != id1 || string(msg.Signal) != string(payload) {
		t.Fatalf("c2 got %+v", msg)
	}

	c2.Close()
	if msg := read(t, c1); msg.Type != protocol.TypeParticipantLeft || msg.ParticipantID != id2 {
		t.Fatalf("c1 got %+v", msg)
	}
}

func TestSignalPayloadBytesSurviveRelay(t *testing.T) {
	srv := newTestServer(t)
	c1, id1 := connected(t, srv)
	c2, id2 := connected(t, srv)

	payload := "{\n  \"type\": \"offer\",\n  \"sdp\": \"v=0 <x> & y\"\n}"
	frame := `{"type":"signal","to":"` + id2 + `","signal":` + payload + `}`
	if err := c1.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}

	c2.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := c2.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"signal":`+payload) {
		t.Fatalf("payload bytes changed on the wire: %s", data)
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.From != id1 || string(msg.Signal) != payload {
		t.Errorf("got from=%q signal=%s", msg.From, msg.Signal)
	}
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	srv := newTestServer(t)
	conn, _ := connected(t, srv)

	conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
	if msg := read(t, conn); msg.Type != protocol.TypeError {
		t.Fatalf("got %+v", msg)
	}

	conn.WriteJSON(protocol.JoinRoom("r1", "alice"))
	if msg := read(t, conn); msg.Type != protocol.TypeRoomJoined {
		t.Fatalf("connection unusable after malformed frame: %+v", msg)
	}
}

func TestSignalToUnknownParticipantIsSilent(t *testing.T) {
	srv := newTestServer(t)
	conn, _ := connected(t, srv)

	conn.WriteJSON(protocol.OutboundSignal("ghost", "", json.RawMessage(`{}`)))
	conn.WriteJSON(protocol.LeaveRoom())
	conn.WriteJSON(protocol.JoinRoom("r1", "alice"))

	// The first thing back is the join, not an error for the signal or
	// anything for the no-op leave.
	if msg := read(t, conn); msg.Type != protocol.TypeRoomJoined {
		t.Fatalf("got %+v", msg)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	connected(t, srv)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" || health.Participants != 1 {
		t.Errorf("health = %+v", health)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "huddle_relay_participants 1") {
		t.Errorf("metrics missing participant gauge:\n%s", body)
	}
}

func TestOriginCheck(t *testing.T) {
	srv := newTestServer(t, "https://huddle.example")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	header := http.Header{"Origin": []string{"https://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Error("expected a foreign origin to be rejected")
	}

	header = http.Header{"Origin": []string{"https://huddle.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	conn.Close()
}
