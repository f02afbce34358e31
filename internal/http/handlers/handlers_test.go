package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/economy"
	"rps_arena/internal/game"
	"rps_arena/internal/http/middleware"
	"rps_arena/internal/logger"
	"rps_arena/internal/matchmaking"
	"rps_arena/internal/protocol"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.InitWriter(io.Discard, "error", false)
}

type discard struct{}

func (discard) Notify(int64, protocol.Event) {}

type history []*domain.MatchSession

func (h history) ListByPlayer(context.Context, int64, int) ([]*domain.MatchSession, error) {
	return h, nil
}

type fixture struct {
	h      *Handler
	bank   *economy.Memory
	router *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bank := economy.NewMemory()
	bank.Deposit(1, 500)
	bank.Deposit(2, 500)
	engine := game.NewEngine(game.DefaultConfig(), bank, discard{}, game.WithClock(clockwork.NewFakeClock()))
	coord := matchmaking.NewCoordinator(matchmaking.DefaultConfig(), engine, discard{})

	h := &Handler{
		Engine:      engine,
		Coordinator: coord,
		Balances: BalanceFunc(func(_ context.Context, id int64) (int64, error) {
			return bank.Balance(id), nil
		}),
	}

	r := gin.New()
	// stands in for middleware.JWT: the X-Player header carries the identity
	authed := r.Group("", func(c *gin.Context) {
		if v := c.GetHeader("X-Player"); v != "" {
			c.Set(middleware.CtxPlayerID, int64(v[0]-'0'))
		}
		c.Next()
	})
	authed.GET("/me", h.Me)
	authed.GET("/match/session", h.SessionStatus)
	authed.POST("/match/surrender", h.Surrender)
	authed.GET("/match/limits", h.Limits)
	authed.GET("/matches", h.Matches)
	authed.GET("/transactions", h.Transactions)

	return &fixture{h: h, bank: bank, router: r}
}

func (f *fixture) do(t *testing.T, method, path, player, body string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if player != "" {
		req.Header.Set("X-Player", player)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

func (f *fixture) startMatch(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	_ = f.h.Coordinator.Enqueue(ctx, domain.Player{ID: 1, Name: "a"}, 50)
	_ = f.h.Coordinator.Enqueue(ctx, domain.Player{ID: 2, Name: "b"}, 50)
	id, ok := f.h.Engine.ActiveMatch(1)
	if !ok {
		t.Fatal("players were not paired")
	}
	return id
}

func TestSessionStatusEndpoint(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/match/session", "1", "")
	if code != http.StatusOK || body["status"] != nil {
		t.Fatalf("idle: %d %v", code, body)
	}

	matchID := f.startMatch(t)
	if err := f.h.Engine.SubmitMove(context.Background(), matchID, 1, 1, domain.Rock); err != nil {
		t.Fatal(err)
	}

	code, body = f.do(t, http.MethodGet, "/match/session", "1", "")
	st, _ := body["status"].(map[string]any)
	if code != http.StatusOK || st["matchId"] != matchID || st["moveSubmitted"] != true || st["bet"] != float64(50) {
		t.Fatalf("active: %d %v", code, body)
	}

	code, body = f.do(t, http.MethodGet, "/match/session?matchId=gone", "1", "")
	if code != http.StatusOK || body["status"] != nil {
		t.Fatalf("unknown match id: %d %v", code, body)
	}
	if code, _ = f.do(t, http.MethodGet, "/match/session?matchId="+matchID, "3", ""); code != http.StatusForbidden {
		t.Fatalf("outsider got %d; want 403", code)
	}
	if code, _ = f.do(t, http.MethodGet, "/match/session", "", ""); code != http.StatusUnauthorized {
		t.Fatalf("anonymous got %d; want 401", code)
	}
}

func TestSurrenderEndpoint(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/match/surrender", "1", "")
	if code != http.StatusNotFound || body["code"] != protocol.CodeUnknownMatch {
		t.Fatalf("no match: %d %v", code, body)
	}

	f.startMatch(t)
	code, body = f.do(t, http.MethodPost, "/match/surrender", "1", "")
	st, _ := body["status"].(map[string]any)
	if code != http.StatusOK || st["reason"] != string(domain.ReasonSurrender) || st["finished"] != true {
		t.Fatalf("surrender: %d %v", code, body)
	}
	if f.bank.Balance(2) != 550 || f.bank.Balance(1) != 450 {
		t.Fatalf("balances = %d / %d", f.bank.Balance(1), f.bank.Balance(2))
	}

	code, body = f.do(t, http.MethodPost, "/match/surrender", "1", `{"matchId":"nope"}`)
	if code != http.StatusNotFound {
		t.Fatalf("unknown match: %d %v", code, body)
	}
}

func TestMeAndLimits(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/me", "1", "")
	if code != http.StatusOK || body["balance"] != float64(500) || body["active_match"] != nil {
		t.Fatalf("me: %d %v", code, body)
	}
	id := f.startMatch(t)
	_, body = f.do(t, http.MethodGet, "/me", "1", "")
	if body["balance"] != float64(450) || body["active_match"] != id {
		t.Fatalf("me during match: %v", body)
	}

	code, body = f.do(t, http.MethodGet, "/match/limits", "", "")
	if code != http.StatusOK || body["min_bet"] != float64(10) || body["round_cap"] != float64(5) {
		t.Fatalf("limits: %d %v", code, body)
	}
}

func TestMatchesEndpoint(t *testing.T) {
	f := newFixture(t)
	if code, _ := f.do(t, http.MethodGet, "/matches", "1", ""); code != http.StatusServiceUnavailable {
		t.Fatalf("without history got %d; want 503", code)
	}

	winner := int64(2)
	ended := time.Now()
	f.h.History = history{{
		ID:       "m1",
		Mode:     domain.ModePublic,
		Players:  [2]domain.Player{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}},
		Bet:      50,
		Rounds:   []domain.Round{domain.NewRound(1, domain.Rock, domain.Paper, ended)},
		WinnerID: &winner,
		Reason:   domain.ReasonForfeit,
		EndedAt:  &ended,
	}}

	code, body := f.do(t, http.MethodGet, "/matches?limit=5", "1", "")
	list, _ := body["matches"].([]any)
	if code != http.StatusOK || len(list) != 1 {
		t.Fatalf("matches: %d %v", code, body)
	}
	m := list[0].(map[string]any)
	scores := m["scores"].(map[string]any)
	if m["outcome"] != "lose" || m["opponent"].(map[string]any)["name"] != "b" || scores["second"] != float64(1) {
		t.Fatalf("summary = %v", m)
	}
}

func TestTransactionsEndpoint(t *testing.T) {
	f := newFixture(t)
	if code, _ := f.do(t, http.MethodGet, "/transactions", "1", ""); code != http.StatusServiceUnavailable {
		t.Fatalf("without ledger got %d; want 503", code)
	}

	f.h.Statements = f.bank
	f.startMatch(t)
	code, body := f.do(t, http.MethodGet, "/transactions?limit=1", "1", "")
	list, _ := body["transactions"].([]any)
	if code != http.StatusOK || len(list) != 1 {
		t.Fatalf("transactions: %d %v", code, body)
	}
	if tx := list[0].(map[string]any); tx["type"] != domain.TxEscrow || tx["amount"] != float64(-50) {
		t.Fatalf("latest entry = %v", tx)
	}
}

func TestFailMapsCodes(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrUnknownMatch, http.StatusNotFound},
		{domain.ErrMatchOver, http.StatusConflict},
		{domain.ErrInvalidBet, http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		fail(c, tc.err)
		if w.Code != tc.want {
			t.Fatalf("%v: got %d; want %d", tc.err, w.Code, tc.want)
		}
	}
}
