package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/fixed"
)

// tokenSVG is the disc every piece sits on. Fill and stroke vary by color.
const tokenSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">` +
	`<circle cx="50" cy="50" r="38" fill="%s" stroke="%s" stroke-width="6"/></svg>`

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	fill, stroke, ink := "#f7f2e6", "#23211f", color.RGBA{35, 33, 31, 255}
	if piece.Color() == nchess.Black {
		fill, stroke, ink = "#2b2927", "#f0ebe0", color.RGBA{240, 235, 224, 255}
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(sanitizeSVG([]byte(fmt.Sprintf(tokenSVG, fill, stroke)))))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	drawGlyph(img, pieceLetter(piece.Type()), ink)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}

// drawGlyph draws letter from the 7x13 bitmap face and scales it into the middle of dst.
func drawGlyph(dst *image.RGBA, letter string, ink color.Color) {
	face := basicfont.Face7x13
	m := face.Metrics()
	w := font.MeasureString(face, letter).Ceil()
	h := (m.Ascent + m.Descent).Ceil()
	if w <= 0 || h <= 0 {
		return
	}
	glyph := image.NewRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{Dst: glyph, Src: image.NewUniform(ink), Face: face, Dot: fixed.P(0, m.Ascent.Ceil())}
	d.DrawString(letter)

	size := dst.Bounds().Dx()
	gh := size * 45 / 100
	gw := gh * w / h
	x0 := (size - gw) / 2
	y0 := (size - gh) / 2
	xdraw.ApproxBiLinear.Scale(dst, image.Rect(x0, y0, x0+gw, y0+gh), glyph, glyph.Bounds(), xdraw.Over, nil)
}

func pieceLetter(t nchess.PieceType) string {
	switch t {
	case nchess.King:
		return "K"
	case nchess.Queen:
		return "Q"
	case nchess.Rook:
		return "R"
	case nchess.Bishop:
		return "B"
	case nchess.Knight:
		return "N"
	default:
		return "P"
	}
}

func sanitizeSVG(svg []byte) []byte {
	out := bytes.ReplaceAll(svg, []byte("fill: #"), []byte("fill:#"))
	out = bytes.ReplaceAll(out, []byte("stroke: #"), []byte("stroke:#"))
	return out
}
