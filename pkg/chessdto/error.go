package chessdto

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeIllegalMove    = "ILLEGAL_MOVE"
	CodeWrongTurn      = "WRONG_TURN"
	CodeGameOver       = "GAME_OVER"
	CodeBusy           = "AI_THINKING"
	CodeThrottled      = "THROTTLED"
	CodeNotFound       = "NOT_FOUND"
	CodeUpstream       = "UPSTREAM_ERROR"
	CodeInternal       = "INTERNAL_ERROR"
	CodeRateLimited    = "RATE_LIMIT_EXCEEDED"
)
