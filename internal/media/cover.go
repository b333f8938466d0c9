// Package media produces cover images for posts: a provider fetches a
// photo for a prompt, then the image is resized and re-encoded to fit
// the site's featured-image dimensions and size cap.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/blogforge-agent/internal/config"
	"github.com/blogforge-agent/pkg/logger"
)

// Provider fetches a photo for a prompt, returning the raw bytes and
// an attribution line.
type Provider interface {
	Fetch(ctx context.Context, prompt string) ([]byte, string, error)
}

// Cover is a ready-to-upload featured image.
type Cover struct {
	Data        []byte
	ContentType string
	Attribution string
}

// Service builds covers.
type Service struct {
	provider Provider
	cfg      config.MediaConfig
	log      *logger.Logger
}

// NewService creates a cover service.
func NewService(provider Provider, cfg config.MediaConfig, log *logger.Logger) *Service {
	return &Service{
		provider: provider,
		cfg:      cfg,
		log:      log.WithComponent("media"),
	}
}

// Generate fetches a photo for the prompt and fits it to the target
// dimensions and byte budget. Callers treat errors as non-fatal; a
// post publishes fine without a featured image.
func (s *Service) Generate(ctx context.Context, prompt string) (*Cover, error) {
	raw, attribution, err := s.provider.Fetch(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("fetching cover: %w", err)
	}

	fitted, err := s.fit(raw)
	if err != nil {
		return nil, fmt.Errorf("processing cover: %w", err)
	}

	s.log.Info().
		Int("bytes", len(fitted)).
		Str("prompt", prompt).
		Msg("Cover image ready")

	return &Cover{
		Data:        fitted,
		ContentType: "image/jpeg",
		Attribution: attribution,
	}, nil
}

// fit scales the image to the configured dimensions (center-cropping
// to the target aspect ratio) and re-encodes JPEG, stepping the
// quality down until the result fits under MaxBytes.
func (s *Service) fit(raw []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, s.cfg.Width, s.cfg.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, cropRect(src.Bounds(), s.cfg.Width, s.cfg.Height), draw.Over, nil)

	quality := s.cfg.JpegQuality
	if quality <= 0 || quality > 100 {
		quality = 90
	}

	for ; quality >= 40; quality -= 10 {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encoding jpeg: %w", err)
		}
		if s.cfg.MaxBytes <= 0 || buf.Len() <= s.cfg.MaxBytes {
			return buf.Bytes(), nil
		}
		s.log.Debug().
			Int("quality", quality).
			Int("bytes", buf.Len()).
			Msg("Cover over size budget, lowering quality")
	}

	return nil, fmt.Errorf("image does not fit under %d bytes", s.cfg.MaxBytes)
}

// cropRect returns the largest centered sub-rectangle of bounds with
// the target aspect ratio.
func cropRect(bounds image.Rectangle, targetW, targetH int) image.Rectangle {
	if targetW <= 0 || targetH <= 0 {
		return bounds
	}
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	targetRatio := float64(targetW) / float64(targetH)
	srcRatio := float64(srcW) / float64(srcH)

	w, h := srcW, srcH
	if srcRatio > targetRatio {
		w = int(float64(srcH) * targetRatio)
	} else {
		h = int(float64(srcW) / targetRatio)
	}

	x0 := bounds.Min.X + (srcW-w)/2
	y0 := bounds.Min.Y + (srcH-h)/2
	return image.Rect(x0, y0, x0+w, y0+h)
}
