package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"treasure-quest-service/internal/app"
	"treasure-quest-service/internal/domain"
	"treasure-quest-service/internal/infra/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	server *httptest.Server
	board  *app.Leaderboard
	clock  *testClock
}

func newTestEnv(t *testing.T, levels []domain.Level) *testEnv {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	board := app.NewLeaderboardWithClock(memory.NewLeaderboardStore(), memory.NewHub(), time.UTC, nil, clock.Now)
	service := app.NewGameService(app.GameServiceDeps{
		Runs:        memory.NewRunRegistry(),
		Levels:      memory.NewLevelRepository(memory.NewStaticLevelLoader(levels), time.Minute),
		Settings:    memory.StaticSettings{DurationMinutes: 30},
		Snapshots:   memory.NewSnapshotStore(),
		Leaderboard: board,
		Now:         clock.Now,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(service, WSOptions{TickInterval: 10 * time.Millisecond}).ServeWS)
	NewLeaderboardHandler(board, app.NewAdminGate("", "admin123"), nil).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &testEnv{server: server, board: board, clock: clock}
}

func (e *testEnv) dial(t *testing.T, clientID string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?clientId=" + clientID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil skips periodic messages until one of type expect arrives.
func readUntil(t *testing.T, conn *websocket.Conn, expect string, target any) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg envelope
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read waiting for %s: %v", expect, err)
		}
		if msg.Type == expect {
			if target != nil {
				if err := json.Unmarshal(msg.Payload, target); err != nil {
					t.Fatalf("decode %s: %v", expect, err)
				}
			}
			return
		}
		switch msg.Type {
		case "tick", "leaderboardChanged", "state":
			// the tick loop may republish state as a run finishes
			continue
		}
		t.Fatalf("expected %s, got %s: %s", expect, msg.Type, msg.Payload)
	}
}

func riddleSet(n int) []domain.Level {
	answers := []string{"zoho", "microsoft", "google"}
	levels := make([]domain.Level, n)
	for i := range levels {
		levels[i] = domain.Level{
			Number:       i + 1,
			Prompt:       "riddle " + answers[i],
			Answer:       answers[i],
			Hint:         "starts with " + answers[i][:1],
			HintPassword: "pw-" + answers[i],
		}
	}
	return levels
}

func TestWebSocketPlayFlow(t *testing.T) {
	env := newTestEnv(t, riddleSet(2))
	conn := env.dial(t, "client-1")

	var state statePayload
	readUntil(t, conn, "state", &state)
	if state.State != app.StateStart || state.ClientID != "client-1" {
		t.Fatalf("unexpected initial state: %+v", state)
	}

	send(t, conn, "start", startPayload{Name: "Alice"})
	readUntil(t, conn, "state", &state)
	if state.State != app.StatePlaying || state.Level == nil || state.Level.Number != 1 {
		t.Fatalf("expected level 1 in play, got %+v", state)
	}
	if state.Tick == nil || state.Tick.RemainingSeconds != 1800 {
		t.Fatalf("expected full clock, got %+v", state.Tick)
	}

	for i := 1; i <= 2; i++ {
		send(t, conn, "answer", answerPayload{Answer: "yahoo"})
		var res domain.AnswerResult
		readUntil(t, conn, "answerResult", &res)
		if res.Correct || res.LevelAttempts != i {
			t.Fatalf("attempt %d: unexpected result %+v", i, res)
		}
	}

	send(t, conn, "hint", hintPayload{Password: "nope"})
	var hint domain.HintResult
	readUntil(t, conn, "hintResult", &hint)
	if hint.Unlocked {
		t.Fatalf("wrong password must not unlock")
	}
	send(t, conn, "hint", hintPayload{Password: "PW-ZOHO"})
	readUntil(t, conn, "hintResult", &hint)
	if !hint.Unlocked || hint.Hint != "starts with z" {
		t.Fatalf("expected hint unlocked, got %+v", hint)
	}

	send(t, conn, "answer", answerPayload{Answer: " Zoho "})
	var res domain.AnswerResult
	readUntil(t, conn, "answerResult", &res)
	if !res.Correct {
		t.Fatalf("expected correct answer")
	}
	var next domain.LevelView
	readUntil(t, conn, "levelAdvanced", &next)
	if next.Number != 2 || next.HintUnlocked {
		t.Fatalf("unexpected next level %+v", next)
	}

	env.clock.Advance(90 * time.Second)
	send(t, conn, "answer", answerPayload{Answer: "microsoft"})
	readUntil(t, conn, "answerResult", &res)
	var result domain.RunResult
	readUntil(t, conn, "completed", &result)
	if result.Outcome != domain.OutcomeCompleted || result.Attempts != 2 || result.TimeTakenSeconds != 90 {
		t.Fatalf("unexpected result %+v", result)
	}

	send(t, conn, "leaderboard", leaderboardPayload{Filter: "today"})
	var board domain.Leaderboard
	readUntil(t, conn, "leaderboard", &board)
	if len(board.Entries) != 1 || board.Entries[0].DisplayName != "Alice" {
		t.Fatalf("unexpected leaderboard %+v", board)
	}
}

func TestWebSocketResumesAfterReconnect(t *testing.T) {
	env := newTestEnv(t, riddleSet(3))
	conn := env.dial(t, "client-2")
	readUntil(t, conn, "state", nil)
	send(t, conn, "start", startPayload{Anonymous: true})
	readUntil(t, conn, "state", nil)
	send(t, conn, "answer", answerPayload{Answer: "zoho"})
	readUntil(t, conn, "levelAdvanced", nil)
	_ = conn.Close()

	env.clock.Advance(100 * time.Second)
	again := env.dial(t, "client-2")
	var state statePayload
	readUntil(t, again, "state", &state)
	if state.State != app.StatePlaying || state.Level.Number != 2 {
		t.Fatalf("expected resumed level 2, got %+v", state)
	}
	if state.Tick.RemainingSeconds != 1700 {
		t.Fatalf("expected 1700s remaining, got %d", state.Tick.RemainingSeconds)
	}
	if !strings.HasPrefix(state.DisplayName, "Seeker-") {
		t.Fatalf("expected anonymous name, got %q", state.DisplayName)
	}
}

func TestWebSocketExpiryCompletesRun(t *testing.T) {
	env := newTestEnv(t, riddleSet(3))
	conn := env.dial(t, "client-3")
	readUntil(t, conn, "state", nil)
	send(t, conn, "start", startPayload{Name: "Bob"})
	readUntil(t, conn, "state", nil)

	env.clock.Advance(31 * time.Minute)
	var result domain.RunResult
	readUntil(t, conn, "completed", &result)
	if result.Outcome != domain.OutcomeExpired || result.LevelReached != 1 || result.Attempts != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	board, err := env.board.Query(context.Background(), domain.FilterAll)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(board.Entries) != 1 {
		t.Fatalf("expected one leaderboard entry, got %d", len(board.Entries))
	}
}

func TestWebSocketRejectsUnknownMessages(t *testing.T) {
	env := newTestEnv(t, riddleSet(1))
	conn := env.dial(t, "client-4")
	readUntil(t, conn, "state", nil)

	send(t, conn, "dance", nil)
	var errPayload errorPayload
	readUntil(t, conn, "error", &errPayload)
	if errPayload.Message != "unsupported message type" {
		t.Fatalf("unexpected error %q", errPayload.Message)
	}

	send(t, conn, "answer", answerPayload{Answer: "zoho"})
	readUntil(t, conn, "error", &errPayload)
	if errPayload.Message != domain.ErrNotPlaying.Error() {
		t.Fatalf("expected not-playing error, got %q", errPayload.Message)
	}
}
