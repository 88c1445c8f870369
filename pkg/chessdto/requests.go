package chessdto

type PlayerRequest struct {
	Type    string `json:"type" validate:"required,oneof=human ai"`
	ModelID string `json:"modelId" validate:"required_if=Type ai"`
}

type NewGameRequest struct {
	Mode        string        `json:"mode" validate:"required,oneof=human-vs-ai ai-vs-ai"`
	WhitePlayer PlayerRequest `json:"whitePlayer"`
	BlackPlayer PlayerRequest `json:"blackPlayer"`
	TimeControl *TimeControl  `json:"timeControl,omitempty"`
}

type MoveRequest struct {
	Move string `json:"move" validate:"required,min=4,max=5"`
}

type AIMoveRequest struct {
	ModelID string `json:"modelId"`
	FEN     string `json:"fen"`
	PGN     string `json:"pgn"`
}

type AIMoveResponse struct {
	Thought Thought `json:"thought"`
}

type DebugRequest struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type LegalMovesResponse struct {
	Square string   `json:"square"`
	Moves  []string `json:"moves"`
}

type ResetResponse struct {
	Previous string `json:"previousGameId"`
	Game     Game   `json:"game"`
}

// StoredGame is a snapshot read back from the store.
type StoredGame struct {
	ID        string     `json:"id"`
	Config    GameConfig `json:"config"`
	MovesUCI  []string   `json:"movesUci"`
	Analysis  []Analysis `json:"analysis"`
	Result    string     `json:"result,omitempty"`
	Method    string     `json:"method,omitempty"`
	PGN       string     `json:"pgn,omitempty"`
	StartTime int64      `json:"startTime"`
	UpdatedAt int64      `json:"updatedAt"`
}
