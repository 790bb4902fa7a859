package game

// Websocket actions. Clients send human_move, new_game and ping; the server
// sends update_board, thinking, pong and error.
const (
	ActionHumanMove   = "human_move"
	ActionNewGame     = "new_game"
	ActionPing        = "ping"
	ActionPong        = "pong"
	ActionThinking    = "thinking"
	ActionUpdateBoard = "update_board"
	ActionError       = "error"
)

// Game status values carried by update_board.
const (
	StatusOngoing  = "ongoing"
	StatusFinished = "finished"
)

type clientMessage struct {
	Action  string `json:"action"`
	MoveUCI string `json:"move_uci,omitempty"`
}

// Notice is a message without board state.
type Notice struct {
	Action string `json:"action"`
	Error  string `json:"error,omitempty"`
}

// BoardUpdate reports the position after a turn.
type BoardUpdate struct {
	Action     string `json:"action"`
	FEN        string `json:"fen"`
	LastMove   string `json:"last_move,omitempty"`
	Commentary string `json:"commentary,omitempty"`
	Status     string `json:"status"`
	Result     string `json:"result,omitempty"`
	Method     string `json:"method,omitempty"`
	Attempts   int    `json:"attempts,omitempty"`
	Fallback   bool   `json:"fallback,omitempty"`
	Error      string `json:"error,omitempty"`
}
