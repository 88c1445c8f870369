package chessdto

// Event is one message on the game stream.
type Event struct {
	Type  string `json:"type"`
	Game  Game   `json:"game"`
	Move  *Move  `json:"move,omitempty"`
	Error string `json:"error,omitempty"`
}
