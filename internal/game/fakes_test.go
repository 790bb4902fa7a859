package game

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/neurochess/internal/agent"
	"github.com/ashureev/neurochess/internal/board"
	"github.com/ashureev/neurochess/internal/domain"
	"github.com/ashureev/neurochess/internal/identity"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
)

const testPlayer = "anon_0123456789abcdef0123456789abcdef"

type fakeRepo struct {
	mu      sync.Mutex
	players map[string]*domain.Player
	stats   map[string]domain.PlayerStats
	pruned  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		players: make(map[string]*domain.Player),
		stats:   make(map[string]domain.PlayerStats),
	}
}

func (f *fakeRepo) GetPlayer(_ context.Context, id string) (*domain.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) UpsertPlayer(_ context.Context, p *domain.Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.players[p.PlayerID] = &cp
	return nil
}

func (f *fakeRepo) UpdateLastSeen(_ context.Context, id string, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.players[id]; ok {
		p.LastSeenAt = t
	}
	return nil
}

func (f *fakeRepo) GetStats(_ context.Context, id string) (*domain.PlayerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stats[id]
	s.PlayerID = id
	return &s, nil
}

func (f *fakeRepo) AddStats(_ context.Context, id string, d domain.StatsDelta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stats[id]
	s.Games += d.Games
	s.HumanMoves += d.HumanMoves
	s.AgentMoves += d.AgentMoves
	s.Fallbacks += d.Fallbacks
	s.Attempts += d.Attempts
	f.stats[id] = s
	return nil
}

func (f *fakeRepo) DeleteInactivePlayers(context.Context, time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruned++
	return 0, nil
}

func (f *fakeRepo) Ping(context.Context) error { return nil }
func (f *fakeRepo) Close() error               { return nil }

// scriptedDecider replies with moves in order and records how often it ran.
type scriptedDecider struct {
	mu    sync.Mutex
	moves []string
	calls int
}

func (d *scriptedDecider) Decide(_ context.Context, pos board.Position) (agent.Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	move := pos.LegalMoves()[0]
	if len(d.moves) > 0 {
		move, d.moves = d.moves[0], d.moves[1:]
	}
	return agent.Decision{Move: move, Commentary: "Take that.", Attempts: 2}, nil
}

func (d *scriptedDecider) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type countingObserver struct {
	mu       sync.Mutex
	started  int
	closed   int
	finished []string
}

func (o *countingObserver) GameStarted() { o.mu.Lock(); o.started++; o.mu.Unlock() }
func (o *countingObserver) GameClosed()  { o.mu.Lock(); o.closed++; o.mu.Unlock() }
func (o *countingObserver) GameFinished(r string) {
	o.mu.Lock()
	o.finished = append(o.finished, r)
	o.mu.Unlock()
}

type testEnv struct {
	t        *testing.T
	repo     *fakeRepo
	registry *Registry
	handler  *Handler
	srv      *httptest.Server
	conn     *websocket.Conn
}

func newTestEnv(t *testing.T, decider Decider, observer Observer) *testEnv {
	t.Helper()
	env := &testEnv{t: t, repo: newFakeRepo(), registry: NewRegistry()}
	env.handler = NewHandler(env.repo, decider, env.registry, "", true)
	env.handler.SetObserver(observer)

	env.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := identity.WithPlayer(r.Context(), testPlayer, "tab-1")
		env.handler.ServeHTTP(w, r.WithContext(ctx))
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(env.srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	env.conn = conn
	return env
}

func (e *testEnv) send(msg string) {
	e.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(e.t, e.conn.Write(ctx, websocket.MessageText, []byte(msg)))
}

func (e *testEnv) next() BoardUpdate {
	e.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var u BoardUpdate
	_, data, err := e.conn.Read(ctx)
	require.NoError(e.t, err)
	require.NoError(e.t, json.Unmarshal(data, &u))
	return u
}

func (e *testEnv) close() {
	_ = e.conn.CloseNow()
	e.srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(e.t, e.handler.Wait(ctx))
}
