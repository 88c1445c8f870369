package domain

import "time"

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderReplicate Provider = "replicate"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderReplicate:
		return true
	default:
		return false
	}
}

// ModelDescriptor identifies a hosted model and how to reach it.
type ModelDescriptor struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	Provider        Provider `json:"provider" yaml:"provider"`
	Description     string   `json:"description" yaml:"description"`
	Strength        int      `json:"strength" yaml:"strength"`
	AzureDeployment string   `json:"azureDeploymentName,omitempty" yaml:"azure_deployment,omitempty"`
	AzureAPIVersion string   `json:"azureApiVersion,omitempty" yaml:"azure_api_version,omitempty"`
}

type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

type PlayerKind string

const (
	Human PlayerKind = "human"
	AI    PlayerKind = "ai"
)

type Mode string

const (
	ModeHumanVsAI Mode = "human-vs-ai"
	ModeAIVsAI    Mode = "ai-vs-ai"
)

type SideConfig struct {
	Kind  PlayerKind
	Model *ModelDescriptor
}

// TimeControl is recorded for display and PGN headers only; clocks are not enforced.
type TimeControl struct {
	Minutes      int
	IncrementSec int
}

type GameConfig struct {
	Mode        Mode
	White       SideConfig
	Black       SideConfig
	TimeControl *TimeControl
}

func (c GameConfig) Side(color Color) SideConfig {
	if color == Black {
		return c.Black
	}
	return c.White
}

type Position struct {
	FEN string
	PGN string
}

type MoveRecord struct {
	From      string
	To        string
	Promotion string
	SAN       string
	Position  Position
	CreatedAt time.Time
}

// UCI returns the move in coordinate notation.
func (m MoveRecord) UCI() string {
	return m.From + m.To + m.Promotion
}

type Alternative struct {
	Move       string
	Evaluation float64
	Reasoning  string
}

// Thought is what a model claims about its move. Only Move is acted on.
type Thought struct {
	Move         string
	Reasoning    string
	Evaluation   float64
	Depth        int
	Alternatives []Alternative
	Timestamp    time.Time
}

type Result string

const (
	ResultNone  Result = ""
	ResultWhite Result = "white"
	ResultBlack Result = "black"
	ResultDraw  Result = "draw"
)

type Opening struct {
	Code  string
	Title string
}

type Material struct {
	White int
	Black int
}

func (m Material) Diff() int { return m.White - m.Black }

type GameState struct {
	Position             Position
	Moves                []MoveRecord
	SideToMove           Color
	IsGameOver           bool
	InCheck              bool
	Checkmate            bool
	Stalemate            bool
	Draw                 bool
	ThreefoldRepetition  bool
	InsufficientMaterial bool
	Result               Result
	Method               string
	Opening              Opening
	Material             Material
}

type Analysis struct {
	Move       MoveRecord
	Thought    Thought
	PlayerKind PlayerKind
	Model      *ModelDescriptor
}
