// Package game serves chess games over websockets: the human moves, the
// agent answers, and every turn is reported with one board update.
package game

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Registry tracks live game connections per player and browser tab.
type Registry struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Get returns the live connection for a player and tab.
func (r *Registry) Get(playerID, tabID string) *websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tabs, ok := r.active[playerID]; ok {
		return tabs[tabID]
	}
	return nil
}

// Register adds a connection, closing any other connection for the same tab.
func (r *Registry) Register(playerID, tabID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[playerID]; !exists {
		r.active[playerID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := r.active[playerID][tabID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "game replaced")
	}

	r.active[playerID][tabID] = conn
	slog.Info("Game connection registered", "player_id", playerID, "tab_id", tabID)
}

// Unregister removes conn if it is still the current one for the tab.
func (r *Registry) Unregister(playerID, tabID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tabs, ok := r.active[playerID]
	if !ok {
		return
	}
	if current, exists := tabs[tabID]; exists && current == conn {
		delete(tabs, tabID)
		if len(tabs) == 0 {
			delete(r.active, playerID)
		}
		slog.Info("Game connection unregistered", "player_id", playerID, "tab_id", tabID)
	}
}

// ClosePlayer closes every tab of a player.
func (r *Registry) ClosePlayer(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tabs, ok := r.active[playerID]
	if !ok {
		return
	}
	for tid, conn := range tabs {
		_ = conn.Close(websocket.StatusGoingAway, "idle timeout")
		slog.Info("Game connection closed", "player_id", playerID, "tab_id", tid)
	}
	delete(r.active, playerID)
}

// Players returns the IDs of players with at least one live connection.
func (r *Registry) Players() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.active))
	for id := range r.active {
		out = append(out, id)
	}
	return out
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, tabs := range r.active {
		n += len(tabs)
	}
	return n
}

// CloseAll closes every live connection, e.g. on server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for pid, tabs := range r.active {
		for _, conn := range tabs {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(r.active, pid)
	}
	slog.Info("All game connections closed")
}
