// Package imaging turns browser frame payloads into model input tensors.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/nfnt/resize"
)

const (
	DefaultSize = 224
	Channels    = 3

	// MaxPixels bounds width*height before any pixel buffer is allocated.
	MaxPixels = 4096 * 4096
)

var (
	ErrMalformedDataURL = errors.New("malformed data url: missing ',' separator")
	ErrInvalidBase64    = errors.New("invalid base64 payload")
	ErrUnsupportedImage = errors.New("unsupported image format")
	ErrImageTooLarge    = errors.New("image dimensions exceed limit")
)

// Tensor is a dense float32 buffer in NHWC order.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// Len returns the number of elements the shape describes.
func (t *Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= int(d)
	}
	return n
}

// DecodeDataURL returns the bytes after the first comma of a data URL.
func DecodeDataURL(payload string) ([]byte, error) {
	idx := strings.IndexByte(payload, ',')
	if idx < 0 {
		return nil, ErrMalformedDataURL
	}

	raw := strings.TrimSpace(payload[idx+1:])
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		// canvas.toDataURL pads, hand-built payloads often don't
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(raw)
		if rawErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
		}
	}

	return data, nil
}

// DecodeImage reads the header first and refuses frames whose declared
// size is zero or above MaxPixels before any pixels are decoded.
func DecodeImage(data []byte) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, fmt.Errorf("%w: %dx%d has no pixels", ErrUnsupportedImage, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, format, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, format, nil
}

// Preprocessor resizes decoded frames to a square model input and scales
// 8-bit channels into [0, 1].
type Preprocessor struct {
	Size          int
	Interpolation resize.InterpolationFunction
}

func NewPreprocessor(size int) *Preprocessor {
	if size <= 0 {
		size = DefaultSize
	}
	return &Preprocessor{
		Size:          size,
		Interpolation: resize.Bilinear,
	}
}

// Shape is the batched input shape: (1, size, size, 3).
func (p *Preprocessor) Shape() []int64 {
	return []int64{1, int64(p.Size), int64(p.Size), Channels}
}

func (p *Preprocessor) Tensor(img image.Image) *Tensor {
	resized := resize.Resize(uint(p.Size), uint(p.Size), img, p.Interpolation)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	data := make([]float32, 0, width*height*Channels)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data = append(data,
				float32(r>>8)/255.0,
				float32(g>>8)/255.0,
				float32(b>>8)/255.0,
			)
		}
	}

	return &Tensor{
		Data:  data,
		Shape: []int64{1, int64(height), int64(width), Channels},
	}
}

// FromDataURL runs the full decode and preprocess chain on one frame payload.
func (p *Preprocessor) FromDataURL(payload string) (*Tensor, error) {
	data, err := DecodeDataURL(payload)
	if err != nil {
		return nil, err
	}

	img, _, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	return p.Tensor(img), nil
}
