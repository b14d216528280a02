package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
)

// ProcessedArtifact holds the stored variants of a generated image.
type ProcessedArtifact struct {
	Original    []byte
	Thumbnail   []byte
	ContentType string
	Width       int
	Height      int
}

// Config for artifact processing
type Config struct {
	MaxWidth    int // max width of the stored original
	MaxHeight   int
	ThumbWidth  int
	ThumbHeight int
	Quality     int // JPEG quality 1-100
}

func DefaultConfig() Config {
	return Config{
		MaxWidth:    2048,
		MaxHeight:   2048,
		ThumbWidth:  320,
		ThumbHeight: 320,
		Quality:     85,
	}
}

// Processor downsizes generated images and builds preview thumbnails.
type Processor struct {
	config Config
}

func NewProcessor(config Config) *Processor {
	return &Processor{config: config}
}

// Process decodes a generated image, caps its dimensions and produces a
// center-cropped thumbnail.
func (p *Processor) Process(reader io.Reader) (*ProcessedArtifact, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}

	result := &ProcessedArtifact{
		ContentType: mimeFromFormat(format),
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
	}

	resized := img
	if result.Width > p.config.MaxWidth || result.Height > p.config.MaxHeight {
		resized = imaging.Fit(img, p.config.MaxWidth, p.config.MaxHeight, imaging.Lanczos)
		result.Width = resized.Bounds().Dx()
		result.Height = resized.Bounds().Dy()
	}

	original, err := p.encode(resized, format)
	if err != nil {
		return nil, fmt.Errorf("failed to encode original: %w", err)
	}
	result.Original = original

	thumb := imaging.Fill(img, p.config.ThumbWidth, p.config.ThumbHeight, imaging.Center, imaging.Lanczos)
	thumbnail, err := p.encode(thumb, format)
	if err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	result.Thumbnail = thumbnail

	return result, nil
}

// ArtifactPaths returns the storage keys for a job's original and thumbnail.
func ArtifactPaths(identityKey, jobID, format string) (original, thumb string) {
	ext := extFromFormat(format)
	original = fmt.Sprintf("artifacts/%s/%s%s", identityKey, jobID, ext)
	thumb = fmt.Sprintf("artifacts/%s/%s_thumb%s", identityKey, jobID, ext)
	return
}

func (p *Processor) encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.config.Quality}); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func mimeFromFormat(format string) string {
	switch format {
	case "png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}

func extFromFormat(format string) string {
	switch format {
	case "png":
		return ".png"
	default:
		return ".jpg"
	}
}
