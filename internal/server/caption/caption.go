// Package caption draws classic meme captions (white text, black outline)
// onto generated images.
package caption

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"github.com/dmitrijs2005/memeforge/internal/common"
)

const (
	// sizeRatio is font size as a fraction of image width.
	sizeRatio = 0.09
	minSize   = 14.0
	// marginRatio is the horizontal and vertical padding as a fraction of width.
	marginRatio = 0.04

	// MaxDimension bounds decoded width and height.
	MaxDimension = 4096
)

// Compositor overlays captions using the Go Bold typeface.
type Compositor struct {
	font *opentype.Font
}

func NewCompositor() (*Compositor, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Compositor{font: f}, nil
}

// Composite decodes img (PNG, JPEG or WebP), draws top and bottom text and
// returns the result as PNG. Empty captions are skipped. Images larger than
// MaxDimension on either side fail with common.ErrPayloadTooLarge before any
// pixels are decoded.
func (c *Compositor) Composite(ctx context.Context, img []byte, top, bottom string) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("decode image: empty %dx%d image", cfg.Width, cfg.Height)
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return nil, fmt.Errorf("%w: image is %dx%d, limit %dx%d", common.ErrPayloadTooLarge,
			cfg.Width, cfg.Height, MaxDimension, MaxDimension)
	}

	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Copy(dst, image.Point{}, src, b, draw.Src, nil)

	width := dst.Bounds().Dx()
	size := float64(width) * sizeRatio
	if size < minSize {
		size = minSize
	}

	face, err := opentype.NewFace(c.font, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("font face: %w", err)
	}
	defer face.Close()

	margin := int(float64(width) * marginRatio)
	maxWidth := fixed.I(width - 2*margin)
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	outline := int(size / 14)
	if outline < 1 {
		outline = 1
	}

	if lines := wrap(face, top, maxWidth); len(lines) > 0 {
		y := margin + metrics.Ascent.Ceil()
		for _, line := range lines {
			if err := drawOutlined(ctx, dst, face, line, y, outline); err != nil {
				return nil, err
			}
			y += lineHeight
		}
	}

	if lines := wrap(face, bottom, maxWidth); len(lines) > 0 {
		y := dst.Bounds().Dy() - margin - metrics.Descent.Ceil() - (len(lines)-1)*lineHeight
		for _, line := range lines {
			if err := drawOutlined(ctx, dst, face, line, y, outline); err != nil {
				return nil, err
			}
			y += lineHeight
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}

// wrap breaks text into lines no wider than maxWidth. A single word wider
// than maxWidth gets a line of its own.
func wrap(face font.Face, text string, maxWidth fixed.Int26_6) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, w := range words[1:] {
		candidate := current + " " + w
		if font.MeasureString(face, candidate) <= maxWidth {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = w
	}
	return append(lines, current)
}

// drawOutlined centers line horizontally with its baseline at y. It stops
// early when ctx is done.
func drawOutlined(ctx context.Context, dst *image.RGBA, face font.Face, line string, y, outline int) error {
	width := font.MeasureString(face, line)
	x := (fixed.I(dst.Bounds().Dx()) - width) / 2

	d := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(color.Black)}
	for dx := -outline; dx <= outline; dx++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for dy := -outline; dy <= outline; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			d.Dot = fixed.Point26_6{X: x + fixed.I(dx), Y: fixed.I(y + dy)}
			d.DrawString(line)
		}
	}

	d.Src = image.NewUniform(color.White)
	d.Dot = fixed.Point26_6{X: x, Y: fixed.I(y)}
	d.DrawString(line)
	return nil
}
