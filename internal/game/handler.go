package game

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/neurochess/internal/agent"
	"github.com/ashureev/neurochess/internal/board"
	"github.com/ashureev/neurochess/internal/domain"
	"github.com/ashureev/neurochess/internal/identity"
	"github.com/ashureev/neurochess/internal/store"
	"github.com/coder/websocket"
)

const (
	writeTimeout = 10 * time.Second
	storeTimeout = 5 * time.Second
	inboxSize    = 8
)

// Decider picks the engine's reply. *agent.Agent implements it.
type Decider interface {
	Decide(ctx context.Context, pos board.Position) (agent.Decision, error)
}

var _ Decider = (*agent.Agent)(nil)

// Observer is notified about game lifecycle events.
type Observer interface {
	GameStarted()
	GameClosed()
	GameFinished(result string)
}

type nopObserver struct{}

func (nopObserver) GameStarted()        {}
func (nopObserver) GameClosed()         {}
func (nopObserver) GameFinished(string) {}

// Handler serves one game per websocket connection.
type Handler struct {
	repo          store.Repository
	decider       Decider
	registry      *Registry
	observer      Observer
	allowedOrigin string
	isDev         bool

	live    sync.WaitGroup
	pending sync.WaitGroup
}

// NewHandler creates a game websocket handler.
func NewHandler(repo store.Repository, decider Decider, registry *Registry, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		repo:          repo,
		decider:       decider,
		registry:      registry,
		observer:      nopObserver{},
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// SetObserver installs a lifecycle observer such as the metrics collector.
func (h *Handler) SetObserver(o Observer) {
	if o != nil {
		h.observer = o
	}
}

// Wait blocks until every connection has been served and queued store
// writes have finished, or ctx is done. Call it after the server stopped
// accepting connections.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.live.Wait()
		h.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// conn is the per-connection game state. Only the game loop touches match.
type conn struct {
	ws       *websocket.Conn
	playerID string
	tabID    string
	match    *board.Match
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Hijacked connections outlive http.Server.Shutdown.
	h.live.Add(1)
	defer h.live.Done()

	playerID := identity.PlayerIDFromContext(r.Context())
	tabID := identity.TabIDFromContext(r.Context())
	slog.Info("Client connected", "player_id", playerID, "tab_id", tabID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "player_id", playerID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "game ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "player_id", playerID)
		}
	}()

	h.registry.Register(playerID, tabID, ws)
	defer h.registry.Unregister(playerID, tabID, ws)

	h.observer.GameStarted()
	defer h.observer.GameClosed()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &conn{ws: ws, playerID: playerID, tabID: tabID}
	if err := h.newGame(ctx, c); err != nil {
		slog.Debug("Failed to send initial board", "error", err, "player_id", playerID)
		return
	}

	inbox := make(chan clientMessage, inboxSize)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		h.readLoop(ctx, c, inbox)
	}()

	h.gameLoop(ctx, c, inbox)
	cancel()
	wg.Wait()
	slog.Info("Client disconnected", "player_id", playerID, "tab_id", tabID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || h.allowedOrigin == "" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// readLoop keeps reading while the agent thinks so a disconnect cancels the
// decision in flight.
func (h *Handler) readLoop(ctx context.Context, c *conn, inbox chan<- clientMessage) {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("WebSocket closed", "player_id", c.playerID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "player_id", c.playerID)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Malformed client message", "error", err, "player_id", c.playerID)
			msg = clientMessage{}
		}

		select {
		case inbox <- msg:
		default:
			slog.Warn("Dropping client message, game busy", "action", msg.Action, "player_id", c.playerID)
		}
	}
}

func (h *Handler) gameLoop(ctx context.Context, c *conn, inbox <-chan clientMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-inbox:
			if err := h.dispatch(ctx, c, msg); err != nil {
				if ctx.Err() == nil {
					slog.Warn("Game loop stopped", "error", err, "player_id", c.playerID)
				}
				return
			}
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, c *conn, msg clientMessage) error {
	// Only moves and new games count as activity; pings keep idle tabs open.
	switch msg.Action {
	case ActionHumanMove:
		h.touch(c.playerID)
		return h.humanMove(ctx, c, msg.MoveUCI)
	case ActionNewGame:
		h.touch(c.playerID)
		return h.newGame(ctx, c)
	case ActionPing:
		return h.write(ctx, c, Notice{Action: ActionPong})
	default:
		return h.write(ctx, c, Notice{Action: ActionError, Error: "unknown action"})
	}
}

func (h *Handler) newGame(ctx context.Context, c *conn) error {
	c.match = board.NewMatch()
	h.record(c.playerID, domain.StatsDelta{Games: 1})
	return h.write(ctx, c, h.snapshot(c, ""))
}

// humanMove plays the human's move and, unless the game ended, the agent's
// reply. Every path sends exactly one update_board.
func (h *Handler) humanMove(ctx context.Context, c *conn, moveUCI string) error {
	move := strings.TrimSpace(moveUCI)
	slog.Info("Received move", "move", move, "player_id", c.playerID)

	if err := c.match.Push(move); err != nil {
		slog.Warn("Illegal move attempted", "move", move, "error", err, "player_id", c.playerID)
		update := h.snapshot(c, "")
		update.Error = humanMoveError(err)
		return h.write(ctx, c, update)
	}
	h.record(c.playerID, domain.StatsDelta{HumanMoves: 1})

	if c.match.Over() {
		h.finish(c)
		return h.write(ctx, c, h.snapshot(c, move))
	}

	if err := h.write(ctx, c, Notice{Action: ActionThinking}); err != nil {
		return err
	}

	decision, err := h.decider.Decide(ctx, c.match.Position())
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		slog.Error("Agent failed to decide", "error", err, "player_id", c.playerID)
		update := h.snapshot(c, move)
		update.Error = "agent failed to move"
		return h.write(ctx, c, update)
	}

	if err := c.match.Push(decision.Move); err != nil {
		slog.Error("Agent move rejected by match", "move", decision.Move, "error", err, "player_id", c.playerID)
		update := h.snapshot(c, move)
		update.Error = "agent failed to move"
		return h.write(ctx, c, update)
	}

	delta := domain.StatsDelta{AgentMoves: 1, Attempts: int64(decision.Attempts)}
	if decision.Fallback {
		delta.Fallbacks = 1
	}
	h.record(c.playerID, delta)

	if c.match.Over() {
		h.finish(c)
	}

	update := h.snapshot(c, decision.Move)
	update.Commentary = decision.Commentary
	update.Attempts = decision.Attempts
	update.Fallback = decision.Fallback
	return h.write(ctx, c, update)
}

func humanMoveError(err error) string {
	switch {
	case errors.Is(err, board.ErrGameOver):
		return "game is over"
	default:
		return "illegal move"
	}
}

func (h *Handler) finish(c *conn) {
	result := c.match.Outcome()
	slog.Info("Game finished", "result", result, "method", c.match.Method(), "player_id", c.playerID)
	h.observer.GameFinished(result)
}

func (h *Handler) snapshot(c *conn, lastMove string) BoardUpdate {
	update := BoardUpdate{
		Action:   ActionUpdateBoard,
		FEN:      c.match.Position().FEN(),
		LastMove: lastMove,
		Status:   StatusOngoing,
	}
	if c.match.Over() {
		update.Status = StatusFinished
		update.Result = c.match.Outcome()
		update.Method = c.match.Method()
	}
	return update
}

func (h *Handler) write(ctx context.Context, c *conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.ws.Write(writeCtx, websocket.MessageText, data)
}

// record applies counters in the background with a bounded timeout.
func (h *Handler) record(playerID string, delta domain.StatsDelta) {
	h.async(func(ctx context.Context) error {
		return h.repo.AddStats(ctx, playerID, delta)
	}, "Failed to record stats", playerID)
}

func (h *Handler) touch(playerID string) {
	h.async(func(ctx context.Context) error {
		return h.repo.UpdateLastSeen(ctx, playerID, time.Now())
	}, "Failed to update last seen", playerID)
}

func (h *Handler) async(op func(context.Context) error, failure, playerID string) {
	if playerID == "" {
		return
	}
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := op(ctx); err != nil {
			slog.Warn(failure, "error", err, "player_id", playerID)
		}
	}()
}
