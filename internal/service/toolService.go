package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/imagetools/internal/entity"
	"github.com/ds124wfegd/imagetools/internal/pkg/cache"
	"github.com/ds124wfegd/imagetools/internal/pkg/imageio"
	"github.com/sirupsen/logrus"
)

func (s *toolService) RemoveBackground(ctx context.Context, data []byte) (*entity.Result, error) {
	return s.Run(ctx, entity.ToolRemoveBackground, "", data)
}

func (s *toolService) ComposeWallpaper(ctx context.Context, data []byte, method entity.Method) (*entity.Result, error) {
	return s.Run(ctx, entity.ToolWallpaper, method, data)
}

// Run decodes data, applies tool and encodes the result as PNG. Results are
// served from the cache when the same bytes were processed before.
func (s *toolService) Run(ctx context.Context, tool entity.Tool, method entity.Method, data []byte) (*entity.Result, error) {
	switch tool {
	case entity.ToolWallpaper:
		if method == "" {
			method = s.defaultMethod
		}
	case entity.ToolRemoveBackground:
		method = ""
	default:
		return nil, fmt.Errorf("%w: %q", entity.ErrUnknownTool, tool)
	}

	log := logrus.WithFields(logrus.Fields{"tool": tool, "method": method})
	key := cache.Key(data, tool, method)

	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		log.WithError(err).Warn("Result cache lookup failed")
	} else if ok {
		if result, err := cachedResult(data, cached); err == nil {
			log.Debug("Result served from cache")
			return result, nil
		}
	}

	src, err := imageio.Decode(data)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var out image.Image
	switch tool {
	case entity.ToolWallpaper:
		out, err = s.composer.ComposeContext(ctx, src, method)
	case entity.ToolRemoveBackground:
		out, err = s.remover.Remove(ctx, imaging.Clone(src))
	}
	if err != nil {
		return nil, err
	}

	png, err := imageio.EncodePNG(out)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"source":   fmt.Sprintf("%dx%d", src.Bounds().Dx(), src.Bounds().Dy()),
		"result":   fmt.Sprintf("%dx%d", out.Bounds().Dx(), out.Bounds().Dy()),
		"duration": time.Since(start),
	}).Info("Image processed")

	if err := s.cache.Set(ctx, key, png); err != nil {
		log.WithError(err).Warn("Result cache store failed")
	}

	return &entity.Result{
		PNG:          png,
		SourceWidth:  src.Bounds().Dx(),
		SourceHeight: src.Bounds().Dy(),
		Width:        out.Bounds().Dx(),
		Height:       out.Bounds().Dy(),
	}, nil
}

func cachedResult(source, png []byte) (*entity.Result, error) {
	srcCfg, _, err := image.DecodeConfig(bytes.NewReader(source))
	if err != nil {
		return nil, err
	}
	outCfg, _, err := image.DecodeConfig(bytes.NewReader(png))
	if err != nil {
		return nil, err
	}
	return &entity.Result{
		PNG:          png,
		SourceWidth:  srcCfg.Width,
		SourceHeight: srcCfg.Height,
		Width:        outCfg.Width,
		Height:       outCfg.Height,
		Cached:       true,
	}, nil
}

func (s *toolService) Methods() entity.MethodsResponse {
	return entity.MethodsResponse{
		Default: s.defaultMethod,
		Methods: []entity.MethodInfo{
			{Value: entity.MethodBlurred, Label: entity.MethodBlurred.Label()},
			{Value: entity.MethodSolid, Label: entity.MethodSolid.Label()},
		},
		Width:  s.composer.Width,
		Height: s.composer.Height,
	}
}
