package imaging

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	// Декодеры входных форматов
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"face-analysis/internal/models"

	"github.com/corona10/goimagehash"
)

// Channels - детекция всегда получает трехканальное изображение
const Channels = 3

// DefaultQuality - качество JPEG при перекодировании
const DefaultQuality = 95

// DefaultMaxPixels - предел площади изображения, как у OpenCV по умолчанию
const DefaultMaxPixels = 1 << 30

// ErrDecode - байты не удалось декодировать как изображение
var ErrDecode = errors.New("не удалось декодировать изображение")

// Prepared - изображение, готовое к отправке в детекцию
type Prepared struct {
	JPEG   []byte
	Height int
	Width  int
	PHash  uint64
	Format string
}

// Prepare декодирует изображение, перекодирует его в JPEG
// и считает перцептивный хэш. Размеры из заголовка проверяются
// до декодирования: больше maxPixels пикселей не принимается.
func Prepare(data []byte, quality, maxPixels int) (*Prepared, error) {
	if len(data) == 0 {
		return nil, ErrDecode
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: пустое изображение", ErrDecode)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d больше %d пикселей", ErrDecode, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: пустое изображение", ErrDecode)
	}

	color := toColor(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, color, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("ошибка кодирования JPEG: %w", err)
	}

	prepared := &Prepared{
		JPEG:   buf.Bytes(),
		Height: bounds.Dy(),
		Width:  bounds.Dx(),
		Format: format,
	}

	if hash, err := goimagehash.PerceptionHash(color); err == nil {
		prepared.PHash = hash.GetHash()
	}

	return prepared, nil
}

// DetectionRequest формирует запрос к функции детекции
func (p *Prepared) DetectionRequest() models.DetectionRequest {
	return models.DetectionRequest{
		Image:      hex.EncodeToString(p.JPEG),
		ImageShape: [3]int{p.Height, p.Width, Channels},
	}
}

// toColor приводит изображение к RGB, чтобы JPEG всегда был трехканальным
func toColor(img image.Image) image.Image {
	switch img.(type) {
	case *image.YCbCr, *image.RGBA:
		return img
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}
