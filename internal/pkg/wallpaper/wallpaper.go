// Package wallpaper fits a photo into a fixed portrait canvas without
// cropping or distorting it, filling the uncovered area with either a
// blurred stretched copy of the photo or a color sampled from its corners.
package wallpaper

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/imagetools/internal/entity"
)

const (
	TargetWidth  = 1200
	TargetHeight = 2600

	DefaultBlurRadius = 50.0
)

// Layout describes where the scaled foreground lands on the canvas.
type Layout struct {
	Scale  float64
	Width  int
	Height int
	X      int
	Y      int
}

// Bounds returns the foreground rectangle in canvas coordinates.
func (l Layout) Bounds() image.Rectangle {
	return image.Rect(l.X, l.Y, l.X+l.Width, l.Y+l.Height)
}

// Fit computes the largest aspect-preserving size of a w×h image that fits
// inside tw×th, and the offsets that center it. Upscaling is not capped.
func Fit(w, h, tw, th int) Layout {
	scale := math.Min(float64(tw)/float64(w), float64(th)/float64(h))

	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	return Layout{
		Scale:  scale,
		Width:  newW,
		Height: newH,
		X:      (tw - newW) / 2,
		Y:      (th - newH) / 2,
	}
}

type Composer struct {
	Width      int
	Height     int
	BlurRadius float64
}

func NewComposer(width, height int, blurRadius float64) *Composer {
	return &Composer{Width: width, Height: height, BlurRadius: blurRadius}
}

// Default returns a composer for the 1200×2600 phone canvas.
func Default() *Composer {
	return NewComposer(TargetWidth, TargetHeight, DefaultBlurRadius)
}

// Compose renders src onto the default canvas.
func Compose(src image.Image, method entity.Method) (*image.NRGBA, error) {
	return Default().Compose(src, method)
}

// Compose scales src to fit the canvas, builds the background for method and
// pastes the foreground centered on top of it. The foreground overwrites the
// background; no blending takes place.
func (c *Composer) Compose(src image.Image, method entity.Method) (*image.NRGBA, error) {
	return c.ComposeContext(context.Background(), src, method)
}

// ComposeContext is Compose with cancellation checked between the
// resampling steps.
func (c *Composer) ComposeContext(ctx context.Context, src image.Image, method entity.Method) (*image.NRGBA, error) {
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, entity.ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := Opaque(src)
	layout := Fit(b.Dx(), b.Dy(), c.Width, c.Height)

	background, err := c.background(img, method)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	foreground := imaging.Resize(img, layout.Width, layout.Height, imaging.Lanczos)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return imaging.Paste(background, foreground, image.Pt(layout.X, layout.Y)), nil
}

// Background builds the fill behind the foreground for method.
func (c *Composer) Background(src image.Image, method entity.Method) (*image.NRGBA, error) {
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, entity.ErrEmptyImage
	}
	return c.background(Opaque(src), method)
}

func (c *Composer) background(img *image.NRGBA, method entity.Method) (*image.NRGBA, error) {
	switch method {
	case entity.MethodBlurred:
		// the stretch distorts the aspect ratio; the blur hides it
		stretched := imaging.Resize(img, c.Width, c.Height, imaging.Lanczos)
		return imaging.Blur(stretched, c.BlurRadius), nil
	case entity.MethodSolid:
		return imaging.New(c.Width, c.Height, CornerColor(img)), nil
	default:
		return nil, fmt.Errorf("%w: %q", entity.ErrUnknownMethod, method)
	}
}

// CornerColor returns the most frequent color among the four corner pixels,
// visited top-left, top-right, bottom-left, bottom-right. Ties go to the
// corner visited first.
func CornerColor(src image.Image) color.NRGBA {
	img := Opaque(src)
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	corners := [4]color.NRGBA{
		img.NRGBAAt(0, 0),
		img.NRGBAAt(w-1, 0),
		img.NRGBAAt(0, h-1),
		img.NRGBAAt(w-1, h-1),
	}

	counts := make(map[color.NRGBA]int, len(corners))
	for _, c := range corners {
		counts[c]++
	}

	best, bestCount := corners[0], 0
	for _, c := range corners {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}

// Opaque converts img to a zero-origin NRGBA raster with every alpha set to
// 255, keeping the stored color of transparent pixels.
func Opaque(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Opaque() && nrgba.Bounds().Min == (image.Point{}) {
		return nrgba
	}

	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
