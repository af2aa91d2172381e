package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/faxe1008/dstylehub/internal/model"
)

// ThumbnailDir is the output subdirectory holding gallery thumbnails.
const ThumbnailDir = "thumbs"

// fileStorage defines the interface for file storage.
// It allows saving and loading files relative to the gallery output folder.
type fileStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader) (string, error)
	Load(ctx context.Context, path string) (io.ReadCloser, error)
}

// Processor post-processes developed images for the gallery: thumbnails,
// placeholder tiles for failed developments and color palettes.
type Processor struct {
	fileStorage fileStorage
	quality     int
}

// New creates a new Processor with the given file storage backend and the
// JPEG quality used for generated files.
func New(fs fileStorage, quality int) *Processor {
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &Processor{fileStorage: fs, quality: quality}
}

// Thumbnail writes a copy of the developed image filename, scaled down to at
// most width pixels wide, to ThumbnailDir. Smaller images are copied as-is.
func (p *Processor) Thumbnail(ctx context.Context, filename string, width int) (string, error) {
	img, err := p.decode(ctx, filename)
	if err != nil {
		return "", err
	}

	thumb := img
	if img.Bounds().Dx() > width {
		thumb = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	dst, err := p.save(ctx, ThumbnailDir, filename, thumb)
	if err != nil {
		return "", fmt.Errorf("failed to save thumbnail: %w", err)
	}

	return dst, nil
}

// Placeholder draws a neutral tile labelled with text and stores it as
// filename, so a gallery cell whose development failed still shows an image.
func (p *Processor) Placeholder(ctx context.Context, filename, text string, width, height int) (string, error) {
	dc := gg.NewContext(width, height)
	dc.SetColor(color.RGBA{R: 0x2b, G: 0x2b, B: 0x2b, A: 0xff})
	dc.Clear()

	dc.SetColor(color.RGBA{R: 0xc0, G: 0x39, B: 0x2b, A: 0xff})
	dc.SetLineWidth(4)
	dc.DrawRectangle(2, 2, float64(width)-4, float64(height)-4)
	dc.Stroke()

	// gg falls back to its built-in bitmap face.
	dc.SetColor(color.White)
	dc.DrawStringAnchored(text, float64(width)/2, float64(height)/2, 0.5, 0.5)

	dst, err := p.save(ctx, "", filename, dc.Image())
	if err != nil {
		return "", fmt.Errorf("failed to save placeholder: %w", err)
	}

	return dst, nil
}

// Palette extracts up to k dominant colors of the developed image filename.
func (p *Processor) Palette(ctx context.Context, filename string, k int, method PaletteMethod) ([]model.Swatch, error) {
	img, err := p.decode(ctx, filename)
	if err != nil {
		return nil, err
	}

	// Palette extraction does not need full resolution.
	if img.Bounds().Dx() > paletteSampleWidth {
		img = imaging.Resize(img, paletteSampleWidth, 0, imaging.Box)
	}

	return ExtractPalette(img, k, method), nil
}

func (p *Processor) decode(ctx context.Context, filename string) (image.Image, error) {
	src, err := p.fileStorage.Load(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load developed image: %w", err)
	}
	defer src.Close()

	img, err := imaging.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", filename, err)
	}

	return img, nil
}

func (p *Processor) save(ctx context.Context, subdir, filename string, img image.Image) (string, error) {
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	return p.fileStorage.Save(ctx, subdir, filename, buf)
}
