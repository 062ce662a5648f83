// Package rembg removes image backgrounds by delegating to a segmentation
// model. The model decides which pixels are foreground; this package only
// moves images across that boundary and checks what comes back.
package rembg

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/imagetools/internal/entity"
)

type Remover interface {
	Remove(ctx context.Context, img image.Image) (image.Image, error)
}

type checkedRemover struct {
	next Remover
}

// Checked wraps r so that every result has the input's dimensions and is
// returned as a zero-origin *image.NRGBA.
func Checked(r Remover) Remover {
	if c, ok := r.(*checkedRemover); ok {
		return c
	}
	return &checkedRemover{next: r}
}

func (c *checkedRemover) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	in := img.Bounds()
	if in.Dx() <= 0 || in.Dy() <= 0 {
		return nil, entity.ErrEmptyImage
	}

	out, err := c.next.Remove(ctx, img)
	if err != nil {
		return nil, err
	}

	if b := out.Bounds(); b.Dx() != in.Dx() || b.Dy() != in.Dy() {
		return nil, fmt.Errorf("%w: sent %dx%d, got %dx%d",
			entity.ErrDimensionMismatch, in.Dx(), in.Dy(), b.Dx(), b.Dy())
	}

	if nrgba, ok := out.(*image.NRGBA); ok && nrgba.Bounds().Min == (image.Point{}) {
		return nrgba, nil
	}
	return imaging.Clone(out), nil
}
