package entity

import "errors"

var (
	// Upload errors
	ErrNoImage         = errors.New("no image file provided")
	ErrUnsupportedType = errors.New("unsupported image type, supported: png, jpg, jpeg")
	ErrFileTooLarge    = errors.New("image file is too large")
	ErrDecode          = errors.New("failed to decode image")
	ErrEmptyImage      = errors.New("image has zero width or height")

	// Tool errors
	ErrUnknownMethod     = errors.New("unknown wallpaper method")
	ErrUnknownTool       = errors.New("unknown tool")
	ErrModelUnavailable  = errors.New("background removal model unavailable")
	ErrDimensionMismatch = errors.New("model returned image with different dimensions")

	// Job errors
	ErrJobNotFound = errors.New("job not found")
	ErrJobNotReady = errors.New("job result is not ready")
)
