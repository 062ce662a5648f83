package rembg

import (
	"context"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const (
	DefaultThreshold    = 240
	DefaultFeatherSigma = 2.0
)

// ThresholdRemover is the offline stand-in for a model: pixels at or above
// the luminance threshold become transparent, with the mask edge feathered
// by a Gaussian blur. It only suits light, flat backgrounds.
type ThresholdRemover struct {
	Threshold    uint8
	FeatherSigma float64
}

func NewThresholdRemover(threshold uint8, featherSigma float64) *ThresholdRemover {
	return &ThresholdRemover{Threshold: threshold, FeatherSigma: featherSigma}
}

func (r *ThresholdRemover) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := imaging.Clone(img)
	bounds := dst.Bounds()

	// white = keep, black = background
	mask := image.NewGray(bounds)
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			c := dst.NRGBAAt(x, y)
			luminance := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
			if luminance < float64(r.Threshold) {
				mask.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	var alpha *image.NRGBA
	if r.FeatherSigma > 0 {
		alpha = imaging.Blur(mask, r.FeatherSigma)
	} else {
		alpha = imaging.Clone(mask)
	}

	// the mask is gray, so its red channel carries the weight
	for i := 3; i < len(dst.Pix); i += 4 {
		m := uint32(alpha.Pix[i-3])
		dst.Pix[i] = uint8(uint32(dst.Pix[i]) * m / 255)
	}
	return dst, nil
}
