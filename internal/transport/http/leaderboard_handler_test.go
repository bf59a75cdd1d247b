package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"treasure-quest-service/internal/domain"
)

func TestLeaderboardEndpoint(t *testing.T) {
	env := newTestEnv(t, riddleSet(1))
	secs := 42
	if _, err := env.board.Submit(context.Background(), domain.LeaderboardEntry{DisplayName: "Ada", LevelReached: 1, Attempts: 1, TimeTakenSeconds: &secs}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	resp, err := http.Get(env.server.URL + "/leaderboard?filter=week")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var board domain.Leaderboard
	if err := json.NewDecoder(resp.Body).Decode(&board); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if board.Filter != domain.FilterWeek || len(board.Entries) != 1 || *board.Entries[0].TimeTakenSeconds != 42 {
		t.Fatalf("unexpected board %+v", board)
	}

	bad, err := http.Get(env.server.URL + "/leaderboard?filter=month")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", bad.StatusCode)
	}
}

func postReset(t *testing.T, env *testEnv, password string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/admin/leaderboard/reset", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if password != "" {
		req.Header.Set(AdminPasswordHeader, password)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestAdminResetRequiresPassword(t *testing.T) {
	env := newTestEnv(t, riddleSet(1))
	for i := 0; i < 3; i++ {
		if _, err := env.board.Submit(context.Background(), domain.LeaderboardEntry{DisplayName: "p"}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	resp := postReset(t, env, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without password, got %d", resp.StatusCode)
	}
	resp = postReset(t, env, "wrong")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong password, got %d", resp.StatusCode)
	}

	resp = postReset(t, env, "admin123")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out resetResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Removed != 3 {
		t.Fatalf("expected 3 removed, got %d", out.Removed)
	}
}

func TestAdminResetIsRateLimited(t *testing.T) {
	env := newTestEnv(t, riddleSet(1))
	limited := false
	for i := 0; i < 10; i++ {
		resp := postReset(t, env, "guess")
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatalf("expected repeated attempts to be throttled")
	}
}
