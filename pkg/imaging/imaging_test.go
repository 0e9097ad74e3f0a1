package imaging

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngDataURL(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeDataURL(t *testing.T) {
	t.Run("missing separator", func(t *testing.T) {
		_, err := DecodeDataURL("data:image/png;base64")
		assert.ErrorIs(t, err, ErrMalformedDataURL)
	})

	t.Run("bad base64", func(t *testing.T) {
		_, err := DecodeDataURL("data:image/png;base64,@@not base64@@")
		assert.ErrorIs(t, err, ErrInvalidBase64)
	})

	t.Run("padded", func(t *testing.T) {
		data, err := DecodeDataURL("data:text/plain;base64,aGk=")
		require.NoError(t, err)
		assert.Equal(t, []byte("hi"), data)
	})

	t.Run("unpadded", func(t *testing.T) {
		data, err := DecodeDataURL("data:text/plain;base64,aGk")
		require.NoError(t, err)
		assert.Equal(t, []byte("hi"), data)
	})
}

func TestDecodeImageRejectsNonImage(t *testing.T) {
	_, _, err := DecodeImage([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

// pngWithHeader encodes a 1x1 gray PNG and rewrites the IHDR dimensions,
// leaving the pixel data untouched.
func pngWithHeader(t *testing.T, width, height uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))

	data := buf.Bytes()
	require.Equal(t, "IHDR", string(data[12:16]))
	binary.BigEndian.PutUint32(data[16:20], width)
	binary.BigEndian.PutUint32(data[20:24], height)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecodeImageRejectsOversizedHeader(t *testing.T) {
	_, _, err := DecodeImage(pngWithHeader(t, 12000, 12000))
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = NewPreprocessor(DefaultSize).FromDataURL(
		"data:image/png;base64," + base64.StdEncoding.EncodeToString(pngWithHeader(t, 1<<20, 1<<20)))
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestDecodeImageAcceptsLimit(t *testing.T) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(pngWithHeader(t, 4096, 4096)))
	require.NoError(t, err)
	assert.LessOrEqual(t, cfg.Width*cfg.Height, MaxPixels)

	// within the limit the header passes and the truncated body fails decoding
	_, _, err = DecodeImage(pngWithHeader(t, 4096, 4096))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
	assert.NotErrorIs(t, err, ErrImageTooLarge)
}

func TestDecodeImageJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solidImage(32, 16, color.White), nil))

	img, format, err := DecodeImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 32, img.Bounds().Dx())
}

func TestPreprocessorShapeAndRange(t *testing.T) {
	p := NewPreprocessor(0)
	require.Equal(t, DefaultSize, p.Size)

	tensor, err := p.FromDataURL(pngDataURL(t, solidImage(300, 260, color.RGBA{R: 255, G: 128, B: 0, A: 255})))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 224, 224, 3}, tensor.Shape)
	assert.Equal(t, p.Shape(), tensor.Shape)
	require.Len(t, tensor.Data, 224*224*3)
	assert.Equal(t, len(tensor.Data), tensor.Len())

	for i, v := range tensor.Data {
		require.GreaterOrEqual(t, v, float32(0), "index %d", i)
		require.LessOrEqual(t, v, float32(1), "index %d", i)
	}

	// NHWC: the first pixel's channels are adjacent.
	assert.InDelta(t, 1.0, tensor.Data[0], 1e-6)
	assert.InDelta(t, 128.0/255.0, tensor.Data[1], 1e-6)
	assert.InDelta(t, 0.0, tensor.Data[2], 1e-6)
}

func TestPreprocessorUpscalesSmallFrames(t *testing.T) {
	p := NewPreprocessor(8)

	tensor := p.Tensor(solidImage(2, 2, color.White))
	assert.Equal(t, []int64{1, 8, 8, 3}, tensor.Shape)
	for _, v := range tensor.Data {
		assert.InDelta(t, 1.0, v, 1e-6)
	}
}

func TestPreprocessorGrayscaleBecomesRGB(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range gray.Pix {
		gray.Pix[i] = 51
	}

	tensor := NewPreprocessor(4).Tensor(gray)
	require.Len(t, tensor.Data, 4*4*3)
	for _, v := range tensor.Data {
		assert.InDelta(t, 0.2, v, 1e-6)
	}
}

func TestFromDataURLPropagatesDecodeErrors(t *testing.T) {
	p := NewPreprocessor(DefaultSize)

	_, err := p.FromDataURL("no-comma-here")
	assert.ErrorIs(t, err, ErrMalformedDataURL)

	_, err = p.FromDataURL("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("plain text")))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}
