package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-bot/internal/bet"
	"casino-bot/internal/cooldown"
	"casino-bot/internal/game"
	"casino-bot/internal/game/blackjack"
	"casino-bot/internal/ledger"
	"casino-bot/internal/model"
	"casino-bot/internal/pkg/lock"
	"casino-bot/internal/repository"
	"casino-bot/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeHealth struct{ err error }

func (f fakeHealth) HealthCheck(context.Context) error { return f.err }

func newTestServer(t *testing.T, health HealthChecker) (*Server, *ledger.Ledger) {
	t.Helper()
	journal := repository.NewMemoryTransactionRepository()
	l := ledger.New(2000, ledger.WithJournal(journal))
	locks := lock.NewUserLock()
	ranking := service.NewRankingService(l)

	d := service.NewDispatcher(game.NewRegistry())
	require.NoError(t, d.Register(service.Handlers(
		service.NewAccountService(l, cooldown.NewTracker(cooldown.FixedZone(9)), locks, service.DefaultDaily),
		service.NewTransferService(l, locks),
		ranking,
	)...))

	engine := blackjack.New(l, locks, blackjack.DefaultConfig, blackjack.WithNotifier(nil))
	t.Cleanup(engine.Close)
	require.NoError(t, d.Register(engine.Handlers()...))

	return NewServer(d, ranking, journal, nil, health), l
}

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestRouter_Status(t *testing.T) {
	s, _ := newTestServer(t, nil)
	router := s.Router()

	w, body := do(t, router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Server is running.", body["message"])

	w, body = do(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	w, body = do(t, router, http.MethodGet, "/api/actions", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["actions"], service.ActionDaily)
	assert.Contains(t, body["actions"], blackjack.ActionHit)

	w, _ = do(t, router, http.MethodOptions, "/api/actions", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_HealthDatabaseDown(t *testing.T) {
	s, _ := newTestServer(t, fakeHealth{err: errors.New("connection refused")})

	w, body := do(t, s.Router(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "connection refused", body["details"])
}

func TestRouter_Dispatch(t *testing.T) {
	s, l := newTestServer(t, nil)
	router := s.Router()

	w, body := do(t, router, http.MethodPost, "/api/actions", `{"user_id":1,"type":"daily"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "granted", body["type"])
	assert.Equal(t, int64(2100), l.Balance(1))

	w, _ = do(t, router, http.MethodPost, "/api/actions", `{"user_id":1,"type":"daily"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w, body = do(t, router, http.MethodPost, "/api/actions", `{"user_id":1,"type":"give","params":{"to":2,"amount":"600"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["type"])
	assert.Equal(t, int64(1500), l.Balance(1))
	assert.Equal(t, int64(2600), l.Balance(2))
}

func TestRouter_DispatchErrors(t *testing.T) {
	s, _ := newTestServer(t, nil)
	router := s.Router()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"user_id":`, http.StatusBadRequest},
		{"missing type", `{"user_id":1}`, http.StatusBadRequest},
		{"unknown action", `{"user_id":1,"type":"poker"}`, http.StatusBadRequest},
		{"invalid amount", `{"user_id":1,"type":"give","params":{"to":2,"amount":"-5"}}`, http.StatusBadRequest},
		{"insufficient funds", `{"user_id":1,"type":"give","params":{"to":2,"amount":"9999"}}`, http.StatusPaymentRequired},
		{"no active game", `{"user_id":1,"type":"blackjack_hit","channel_id":5}`, http.StatusConflict},
		{"bet over limit", `{"user_id":1,"type":"blackjack_start","channel_id":5,"params":{"amount":"9000"}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := do(t, router, http.MethodPost, "/api/actions", tt.body)
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRouter_ListBalances(t *testing.T) {
	s, l := newTestServer(t, nil)
	router := s.Router()
	ctx := context.Background()
	l.Adjust(ctx, 2, 500, "test", "")
	l.Adjust(ctx, 3, -100, "test", "")

	w, body := do(t, router, http.MethodGet, "/api/balances?pool=1,2,3&limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	entries := body["balances"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, float64(2), entries[0].(map[string]any)["user_id"])
	assert.Equal(t, float64(2500), entries[0].(map[string]any)["balance"])

	w, body = do(t, router, http.MethodGet, "/api/balances?pool=1,2,3,2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["balances"], 3, "no limit lists the whole pool once")

	w, body = do(t, router, http.MethodGet, "/api/balances?pool=1,2,3&limit=0", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["balances"], 3, "non-positive limit is ignored")

	w, _ = do(t, router, http.MethodGet, "/api/balances?pool=1,x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_ListTransactions(t *testing.T) {
	s, _ := newTestServer(t, nil)
	router := s.Router()

	w, _ := do(t, router, http.MethodPost, "/api/actions", `{"user_id":1,"type":"give","params":{"to":2,"amount":50}}`)
	require.Equal(t, http.StatusOK, w.Code)

	w, body := do(t, router, http.MethodGet, "/api/users/2/transactions", "")
	require.Equal(t, http.StatusOK, w.Code)
	txs := body["transactions"].([]any)
	require.Len(t, txs, 1)
	assert.Equal(t, float64(50), txs[0].(map[string]any)["amount"])
	assert.NotEmpty(t, txs[0].(map[string]any)["ref"])

	w, body = do(t, router, http.MethodGet, "/api/users/3/transactions?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["transactions"])

	w, _ = do(t, router, http.MethodGet, "/api/users/abc/transactions", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_ListTransactionsByType(t *testing.T) {
	s, l := newTestServer(t, nil)
	router := s.Router()
	ctx := context.Background()
	l.Adjust(ctx, 1, -100, model.TxTypeRouletteBet, "")
	l.Adjust(ctx, 1, 300, model.TxTypeRouletteWin, "")
	l.Adjust(ctx, 1, -200, model.TxTypeRouletteBet, "")

	w, body := do(t, router, http.MethodGet, "/api/users/1/transactions?type="+model.TxTypeRouletteBet, "")
	require.Equal(t, http.StatusOK, w.Code)
	txs := body["transactions"].([]any)
	require.Len(t, txs, 2)
	assert.Equal(t, float64(-200), txs[0].(map[string]any)["amount"], "newest first")
	for _, tx := range txs {
		assert.Equal(t, model.TxTypeRouletteBet, tx.(map[string]any)["type"])
	}

	w, body = do(t, router, http.MethodGet, "/api/users/1/transactions?type="+model.TxTypeRouletteBet+"&limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["transactions"], 1)

	w, body = do(t, router, http.MethodGet, "/api/users/1/transactions?type="+model.TxTypeDaily, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["transactions"])
}

func TestRouter_GetProfit(t *testing.T) {
	s, l := newTestServer(t, nil)
	router := s.Router()
	ctx := context.Background()
	l.Adjust(ctx, 1, -100, model.TxTypeBlackjackBet, "")
	l.Adjust(ctx, 1, 250, model.TxTypeBlackjackNatural, "")
	l.Adjust(ctx, 1, 100, model.TxTypeDaily, "")

	w, body := do(t, router, http.MethodGet, "/api/users/1/profit", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(150), body["profit"], "daily rewards are not game profit")
	assert.Equal(t, float64(1), body["user_id"])

	past := time.Now().Add(-48 * time.Hour).UTC()
	path := "/api/users/1/profit?from=" + past.Format(time.RFC3339) + "&to=" + past.Add(time.Hour).Format(time.RFC3339)
	w, body = do(t, router, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["profit"])

	tests := []struct {
		name string
		path string
	}{
		{"bad user", "/api/users/abc/profit"},
		{"bad from", "/api/users/1/profit?from=yesterday"},
		{"bad to", "/api/users/1/profit?to=2024-13-01"},
		{"empty range", "/api/users/1/profit?from=2024-05-02T00:00:00Z&to=2024-05-01T00:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := do(t, router, http.MethodGet, tt.path, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{game.Invalid(bet.ErrInvalidAmount), http.StatusBadRequest},
		{fmt.Errorf("%w: %q", game.ErrUnknownAction, "x"), http.StatusBadRequest},
		{service.ErrInsufficientFunds, http.StatusPaymentRequired},
		{blackjack.ErrCannotAffordDouble, http.StatusPaymentRequired},
		{fmt.Errorf("%w (next %s)", game.ErrAlreadyAttemptedToday, "tomorrow"), http.StatusTooManyRequests},
		{game.ErrNoEligibleTargets, http.StatusNotFound},
		{game.ErrNotYourTurn, http.StatusConflict},
		{blackjack.ErrLobbyFull, http.StatusConflict},
		{lock.ErrLockTimeout, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestHub_BroadcastsEvents(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	// The client registers asynchronously; publish until the first event lands.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				hub.Publish(game.Event{Type: game.EventTurnStarted, Table: "multi:7", UserID: 10})
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt game.Event
	require.NoError(t, json.Unmarshal(msg, &evt))
	assert.Equal(t, game.EventTurnStarted, evt.Type)
	assert.Equal(t, "multi:7", evt.Table)
	assert.Equal(t, int64(10), evt.UserID)
}
