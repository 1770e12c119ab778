package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
)

func TestWebSocketPlayFlow(t *testing.T) {
	engine, scores := newTestEngine()
	server := httptest.NewServer(NewRouter(NewWSHandler(engine, nil), NewAPIHandler(engine, nil), nil))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?category=science&amount=2&userId=player-1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect hello event first.
	var hello helloPayload
	readInto(t, conn, "hello", &hello)
	if hello.UserID != "player-1" || hello.SessionID == "" {
		t.Fatalf("unexpected hello: %+v", hello)
	}

	waitSnapshot(t, conn, func(s domain.SessionSnapshot) bool { return s.Phase == domain.PhaseInProgress })

	send(t, conn, "select", selectPayload{Index: 0, Option: "4"})
	var selectAck ackPayload
	readInto(t, conn, "ack", &selectAck)
	if !selectAck.Accepted {
		t.Fatalf("expected selection accepted")
	}

	send(t, conn, "select", selectPayload{Index: 0, Option: "3"})
	var repeatAck ackPayload
	readInto(t, conn, "ack", &repeatAck)
	if repeatAck.Accepted {
		t.Fatalf("expected repeated selection to be ignored")
	}

	send(t, conn, "next", nextPayload{Index: 0})
	waitSnapshot(t, conn, func(s domain.SessionSnapshot) bool { return s.CurrentIndex == 1 })

	send(t, conn, "next", nextPayload{Index: 1})
	var result domain.Result
	readInto(t, conn, "result", &result)
	if result.Score != 1 || result.Total != 2 || result.Percentage != 50 {
		t.Fatalf("unexpected result: %+v", result)
	}

	conn.Close()
	engine.Wait()
	waitFor(t, func() bool {
		records, _ := scores.RecentScores(context.Background(), 0)
		return len(records) == 1 && records[0].UserID == "player-1"
	})
}

func TestWebSocketRejectsUnknownCategory(t *testing.T) {
	engine, _ := newTestEngine()
	router := NewRouter(NewWSHandler(engine, nil), NewAPIHandler(engine, nil), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?category=astrology", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), domain.ErrInvalidCategory.Error()) {
		t.Fatalf("expected invalid category message, got %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?category=science&amount=lots", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad amount, got %d", rec.Code)
	}
}

func TestWebSocketReportsUnsupportedMessages(t *testing.T) {
	engine, _ := newTestEngine()
	server := httptest.NewServer(NewRouter(NewWSHandler(engine, nil), NewAPIHandler(engine, nil), nil))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[len("http"):]+"/ws?category=science", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var hello helloPayload
	readInto(t, conn, "hello", &hello)
	if len(hello.ShortID) != 6 || !strings.HasPrefix(hello.UserID, hello.ShortID) {
		t.Fatalf("expected anonymous user with short id, got %+v", hello)
	}

	send(t, conn, "dance", nil)
	var payload errorPayload
	readInto(t, conn, "error", &payload)
	if payload.Message != "unsupported message type" {
		t.Fatalf("unexpected error: %q", payload.Message)
	}

	send(t, conn, "configure", domain.QuizConfig{Category: "nope"})
	readInto(t, conn, "error", &payload)
	if !strings.Contains(payload.Message, domain.ErrInvalidCategory.Error()) {
		t.Fatalf("expected invalid category, got %q", payload.Message)
	}
}

func TestWebSocketClosedOnEngineShutdown(t *testing.T) {
	engine, _ := newTestEngine()
	server := httptest.NewServer(NewRouter(NewWSHandler(engine, nil), NewAPIHandler(engine, nil), nil))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[len("http"):]+"/ws?category=science&amount=2", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var hello helloPayload
	readInto(t, conn, "hello", &hello)
	waitSnapshot(t, conn, func(s domain.SessionSnapshot) bool { return s.Phase == domain.PhaseInProgress })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := engine.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, ok := engine.Session(hello.SessionID); ok {
		t.Fatalf("expected session to be released")
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseGoingAway {
				t.Fatalf("unexpected close code %d", closeErr.Code)
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				t.Fatalf("connection still open after shutdown")
			}
			return
		}
	}
}

func TestWebSocketRefusedAfterShutdown(t *testing.T) {
	engine, _ := newTestEngine()
	server := httptest.NewServer(NewRouter(NewWSHandler(engine, nil), NewAPIHandler(engine, nil), nil))
	defer server.Close()
	if err := engine.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[len("http"):]+"/ws?category=science", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var payload errorPayload
	readInto(t, conn, "error", &payload)
	if payload.Message != domain.ErrEngineClosed.Error() {
		t.Fatalf("unexpected error: %q", payload.Message)
	}
}

func newTestEngine() (*app.Engine, *memory.ScoreStore) {
	scores := memory.NewScoreStore()
	cache := memory.NewQuestionCache(memory.NewStaticQuestionLoader(sampleQuestions()), time.Second, nil)
	return app.NewEngine(cache, scores, memory.NewSessionStore(), app.Options{}), scores
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readInto reads messages until one of type want arrives and decodes its payload.
func readInto(t *testing.T, conn *websocket.Conn, want string, out any) {
	t.Helper()
	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", want, err)
		}
		if msg.Type != want {
			continue
		}
		if err := json.Unmarshal(msg.Payload, out); err != nil {
			t.Fatalf("decode %s: %v", want, err)
		}
		return
	}
}

func waitSnapshot(t *testing.T, conn *websocket.Conn, cond func(domain.SessionSnapshot) bool) domain.SessionSnapshot {
	t.Helper()
	for {
		var snap domain.SessionSnapshot
		readInto(t, conn, "snapshot", &snap)
		if cond(snap) {
			return snap
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func sampleQuestions() map[string][]domain.Question {
	return map[string][]domain.Question{
		"science": {
			{Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4"},
			{Prompt: "Symbol for gold?", Options: []string{"Au", "Ag"}, CorrectAnswer: "Au"},
		},
	}
}
