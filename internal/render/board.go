package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/park285/chesslm/internal/domain"
	"github.com/park285/chesslm/internal/rules"
)

// Highlight marks the last move in coordinate squares such as "e2" and "e4".
type Highlight struct {
	From string
	To   string
}

type Options struct {
	LastMove *Highlight
	Title    string
	Turn     string
	Material domain.Material
}

type BoardRenderer interface {
	RenderPNG(ctx context.Context, fen string, opts Options) ([]byte, error)
}

type pngRenderer struct{}

func New() BoardRenderer { return pngRenderer{} }

const (
	squareSize   = 64
	boardSize    = squareSize * 8
	sideMargin   = 32
	topMargin    = 72
	bottomMargin = 32
	hudHeight    = 32
	hudGap       = 16
	panelRadius  = 10
)

var (
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{187, 136, 96, 255}
	backgroundColor     = color.RGBA{22, 24, 35, 255}
	whiteMoveFill       = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	blackMoveArrow      = color.NRGBA{R: 148, G: 207, B: 255, A: 170}
	neutralMoveArrow    = color.NRGBA{R: 182, G: 184, B: 190, A: 140}
	hudPanelColor       = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	hudTextPrimary      = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	coordinateTextColor = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

var (
	ranks = []nchess.Rank{nchess.Rank8, nchess.Rank7, nchess.Rank6, nchess.Rank5, nchess.Rank4, nchess.Rank3, nchess.Rank2, nchess.Rank1}
	files = []nchess.File{nchess.FileA, nchess.FileB, nchess.FileC, nchess.FileD, nchess.FileE, nchess.FileF, nchess.FileG, nchess.FileH}
)

func (pngRenderer) RenderPNG(ctx context.Context, fen string, opts Options) ([]byte, error) {
	b, err := rules.FromFEN(fen)
	if err != nil {
		return nil, err
	}
	board := b.View()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	totalWidth := boardSize + sideMargin*2
	totalHeight := boardSize + topMargin + bottomMargin
	origin := image.Point{X: sideMargin, Y: topMargin}
	boardRect := image.Rect(origin.X, origin.Y, origin.X+boardSize, origin.Y+boardSize)

	img := image.NewRGBA(image.Rect(0, 0, totalWidth, totalHeight))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	drawHUD(img, opts, boardRect)
	drawSquares(img, origin)
	if hl, ok := parseHighlight(opts.LastMove); ok {
		drawHighlight(img, board, hl, origin)
	}
	if err := drawPieces(img, board, origin); err != nil {
		return nil, err
	}
	drawCoordinates(img, origin)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

type squarePair struct {
	from nchess.Square
	to   nchess.Square
}

func parseHighlight(h *Highlight) (squarePair, bool) {
	if h == nil {
		return squarePair{}, false
	}
	from, ok1 := parseSquare(h.From)
	to, ok2 := parseSquare(h.To)
	return squarePair{from: from, to: to}, ok1 && ok2
}

func parseSquare(s string) (nchess.Square, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return nchess.NoSquare, false
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), true
}

func drawSquares(dst imagedraw.Image, origin image.Point) {
	for row, rank := range ranks {
		for col, file := range files {
			x := origin.X + col*squareSize
			y := origin.Y + row*squareSize
			clr := squareColor(nchess.NewSquare(file, rank))
			imagedraw.Draw(dst, image.Rect(x, y, x+squareSize, y+squareSize), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func drawPieces(dst imagedraw.Image, board *nchess.Board, origin image.Point) error {
	for _, rank := range ranks {
		for _, file := range files {
			sq := nchess.NewSquare(file, rank)
			piece := board.Piece(sq)
			if piece == nchess.NoPiece {
				continue
			}
			img, err := renderPieceImage(piece, squareSize)
			if err != nil {
				return err
			}
			imagedraw.Draw(dst, squareRect(sq, origin), img, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

// drawHighlight fills both squares of a white move and draws an arrow for a black one.
func drawHighlight(img *image.RGBA, board *nchess.Board, hl squarePair, origin image.Point) {
	mover := nchess.NoColor
	if p := board.Piece(hl.to); p != nchess.NoPiece {
		mover = p.Color()
	}
	switch mover {
	case nchess.White:
		drawSquareOverlay(img, hl.from, origin, whiteMoveFill)
		drawSquareOverlay(img, hl.to, origin, whiteMoveFill)
	case nchess.Black:
		drawArrow(img, squareRect(hl.from, origin), squareRect(hl.to, origin), blackMoveArrow)
	default:
		drawArrow(img, squareRect(hl.from, origin), squareRect(hl.to, origin), neutralMoveArrow)
	}
}

func drawSquareOverlay(img *image.RGBA, sq nchess.Square, origin image.Point, clr color.Color) {
	imagedraw.Draw(img, squareRect(sq, origin), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawHUD(img *image.RGBA, opts Options, boardRect image.Rectangle) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Face: face}

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "ChessLM"
	}
	turn := strings.TrimSpace(opts.Turn)
	score := formatMaterialDiff(opts.Material)

	bottom := boardRect.Min.Y - hudGap
	top := bottom - hudHeight
	scoreWidth := drawer.MeasureString(score).Round() + 32
	turnWidth := 0
	if turn != "" {
		turnWidth = drawer.MeasureString(turn).Round() + 32
	}
	titleWidth := boardRect.Dx() - scoreWidth - turnWidth - 2*hudGap
	if turnWidth == 0 {
		titleWidth += hudGap
	}

	titleRect := image.Rect(boardRect.Min.X, top, boardRect.Min.X+titleWidth, bottom)
	scoreRect := image.Rect(boardRect.Max.X-scoreWidth, top, boardRect.Max.X, bottom)
	drawRoundedPanel(img, titleRect, panelRadius, hudPanelColor)
	drawRoundedPanel(img, scoreRect, panelRadius, hudPanelColor)
	drawCenteredString(drawer, titleRect, truncateWithEllipsis(face, title, titleRect.Dx()-24), hudTextPrimary)
	drawCenteredString(drawer, scoreRect, score, hudTextPrimary)

	if turnWidth > 0 {
		turnRect := image.Rect(titleRect.Max.X+hudGap, top, titleRect.Max.X+hudGap+turnWidth, bottom)
		drawRoundedPanel(img, turnRect, panelRadius, hudPanelColor)
		drawCenteredString(drawer, turnRect, turn, hudTextPrimary)
	}
}

func formatMaterialDiff(m domain.Material) string {
	diff := m.Diff()
	if diff == 0 {
		return "0"
	}
	return fmt.Sprintf("%+d", diff)
}

func drawCoordinates(dst imagedraw.Image, origin image.Point) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(coordinateTextColor)}
	ascent := face.Metrics().Ascent.Ceil()
	boardEndY := origin.Y + len(ranks)*squareSize

	for row, rank := range ranks {
		baseline := origin.Y + row*squareSize + squareSize/2 + ascent/2
		drawCenteredText(drawer, rank.String(), origin.X-sideMargin/2, baseline)
	}
	for col, file := range files {
		center := origin.X + col*squareSize + squareSize/2
		drawCenteredText(drawer, file.String(), center, boardEndY+ascent+4)
	}
}

func squareRect(sq nchess.Square, origin image.Point) image.Rectangle {
	row := 7 - int(sq.Rank())
	col := int(sq.File())
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}
