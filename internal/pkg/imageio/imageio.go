// Package imageio reads uploaded images and encodes results as PNG.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/imagetools/internal/entity"
	"github.com/gabriel-vasile/mimetype"
)

const (
	DefaultMaxSize = 20 << 20

	ContentTypePNG = "image/png"
)

var DefaultAllowedTypes = []string{"image/png", "image/jpeg"}

type Validator struct {
	MaxSize      int64
	AllowedTypes []string
}

func NewValidator(maxSize int64, allowedTypes []string) *Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if len(allowedTypes) == 0 {
		allowedTypes = DefaultAllowedTypes
	}
	return &Validator{MaxSize: maxSize, AllowedTypes: allowedTypes}
}

// ReadUpload checks the extension and size of an uploaded file, reads it and
// verifies the sniffed content type.
func (v *Validator) ReadUpload(file *multipart.FileHeader) ([]byte, error) {
	if file == nil {
		return nil, entity.ErrNoImage
	}
	if !IsValidImageType(filepath.Ext(file.Filename)) {
		return nil, entity.ErrUnsupportedType
	}
	if file.Size > v.MaxSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", entity.ErrFileTooLarge, file.Size, v.MaxSize)
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return v.Read(src)
}

// Read consumes r up to the size limit and verifies the content type.
func (v *Validator) Read(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, v.MaxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > v.MaxSize {
		return nil, fmt.Errorf("%w: limit %d", entity.ErrFileTooLarge, v.MaxSize)
	}
	if len(data) == 0 {
		return nil, entity.ErrNoImage
	}

	mtype := mimetype.Detect(data)
	if !isAllowed(mtype, v.AllowedTypes) {
		return nil, fmt.Errorf("%w: detected %s", entity.ErrUnsupportedType, mtype.String())
	}
	return data, nil
}

func isAllowed(mtype *mimetype.MIME, types []string) bool {
	for _, t := range types {
		if mtype.Is(t) {
			return true
		}
	}
	return false
}

func IsValidImageType(ext string) bool {
	validTypes := map[string]bool{
		".jpg":  true,
		".jpeg": true,
		".png":  true,
	}
	return validTypes[strings.ToLower(ext)]
}

// Decode decodes PNG or JPEG bytes. Images without pixels are rejected.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrDecode, err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, entity.ErrEmptyImage
	}
	return img, nil
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
