// Package photos resizes uploaded images and stores the results.
package photos

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxDimension = 1600
	DefaultQuality      = 82

	// MaxPixels bounds the decoded size of an upload, whatever its byte size.
	MaxPixels = 50_000_000
)

var (
	ErrDecode = errors.New("image decode failed")
	ErrEncode = errors.New("image encode failed")
)

type Compressed struct {
	Bytes  []byte
	Width  int
	Height int
}

// Compress decodes r, scales it down so the longer edge is at most maxDim
// (never up), and re-encodes it as a baseline JPEG.
func Compress(r io.Reader, maxDim, quality int) (Compressed, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Compressed{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Compressed{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Compressed{}, fmt.Errorf("%w: empty image", ErrDecode)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return Compressed{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Compressed{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return Compressed{}, fmt.Errorf("%w: empty image", ErrDecode)
	}
	nw, nh := ScaledSize(w, h, maxDim)

	// JPEG has no alpha channel; flatten transparent pixels onto white.
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return Compressed{}, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return Compressed{Bytes: buf.Bytes(), Width: nw, Height: nh}, nil
}

// ScaledSize fits w x h inside maxDim on the longer edge, keeping the aspect
// ratio. Sizes already inside the bound are returned unchanged.
func ScaledSize(w, h, maxDim int) (int, int) {
	if maxDim <= 0 {
		return w, h
	}
	scale := math.Min(1, float64(maxDim)/float64(max(w, h)))
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	return max(nw, 1), max(nh, 1)
}
