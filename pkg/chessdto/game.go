package chessdto

// Player mirrors one side of a game config. Model is set for ai players.
type Player struct {
	Type  string `json:"type"`
	Model *Model `json:"model,omitempty"`
}

type TimeControl struct {
	Time      int `json:"time"`
	Increment int `json:"increment"`
}

type GameConfig struct {
	Mode        string       `json:"mode"`
	WhitePlayer Player       `json:"whitePlayer"`
	BlackPlayer Player       `json:"blackPlayer"`
	TimeControl *TimeControl `json:"timeControl,omitempty"`
}

type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san"`
	FEN       string `json:"fen"`
	Timestamp int64  `json:"timestamp"`
}

type Opening struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

type Material struct {
	White int `json:"white"`
	Black int `json:"black"`
}

type GameState struct {
	FEN                  string   `json:"fen"`
	PGN                  string   `json:"pgn"`
	Moves                []Move   `json:"moves"`
	CurrentPlayer        string   `json:"currentPlayer"`
	IsGameOver           bool     `json:"isGameOver"`
	Result               string   `json:"result,omitempty"`
	Method               string   `json:"method,omitempty"`
	InCheck              bool     `json:"inCheck"`
	Checkmate            bool     `json:"checkmate"`
	Stalemate            bool     `json:"stalemate"`
	Draw                 bool     `json:"draw"`
	ThreefoldRepetition  bool     `json:"threefoldRepetition"`
	InsufficientMaterial bool     `json:"insufficientMaterial"`
	Opening              *Opening `json:"opening,omitempty"`
	Material             Material `json:"material"`
}

type Alternative struct {
	Move       string  `json:"move"`
	Evaluation float64 `json:"evaluation"`
	Reasoning  string  `json:"reasoning"`
}

type Thought struct {
	Move         string        `json:"move"`
	Reasoning    string        `json:"reasoning"`
	Evaluation   float64       `json:"evaluation"`
	Depth        int           `json:"depth"`
	Alternatives []Alternative `json:"alternatives"`
	Timestamp    int64         `json:"timestamp"`
}

type Analysis struct {
	Move       Move    `json:"move"`
	Thought    Thought `json:"thought"`
	PlayerType string  `json:"playerType"`
	Model      *Model  `json:"model,omitempty"`
}

// Game is the full view of the live game. Timestamps are unix milliseconds.
type Game struct {
	ID        string     `json:"id"`
	Config    GameConfig `json:"config"`
	State     GameState  `json:"state"`
	Analysis  []Analysis `json:"analysis"`
	Phase     string     `json:"phase"`
	Thinking  bool       `json:"isAIThinking"`
	LastError string     `json:"lastError,omitempty"`
	StartTime int64      `json:"startTime"`
	UpdatedAt int64      `json:"updatedAt"`
}
