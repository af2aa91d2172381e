package preview

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/faxe1008/dstylehub/internal/darkroom"
	"github.com/faxe1008/dstylehub/internal/discover"
	"github.com/faxe1008/dstylehub/internal/gallery"
	"github.com/faxe1008/dstylehub/internal/metadata"
	"github.com/faxe1008/dstylehub/internal/model"
	"github.com/faxe1008/dstylehub/internal/naming"
	"github.com/faxe1008/dstylehub/internal/processor"
	"github.com/faxe1008/dstylehub/internal/style"
)

// placeholderText labels the tile drawn in place of a failed development.
const placeholderText = "development failed"

// runner defines the interface for running the development matrix.
type runner interface {
	Run(ctx context.Context, runID string, styles []model.Style, images []string) (model.Gallery, error)
}

// imageProcessor defines the post-processing applied to developed images.
type imageProcessor interface {
	Thumbnail(ctx context.Context, filename string, width int) (string, error)
	Placeholder(ctx context.Context, filename, text string, width, height int) (string, error)
	Palette(ctx context.Context, filename string, k int, method processor.PaletteMethod) ([]model.Swatch, error)
}

// renderer defines the interface for writing the gallery page.
type renderer interface {
	Render(ctx context.Context, v gallery.View) error
}

// Options configures a Service.
type Options struct {
	StyleDir        string
	ImageDir        string
	StyleExtensions []string
	ImageExtensions []string

	Title          string
	ThumbnailWidth int // 0 disables thumbnails
	PaletteSize    int // 0 disables palettes
	PaletteMethod  processor.PaletteMethod
	Captions       bool
}

// Service builds a style preview gallery: it discovers the inputs, runs the
// development matrix, decorates the result and renders the page.
type Service struct {
	runner    runner
	processor imageProcessor
	renderer  renderer
	opts      Options
}

// NewService creates a new Service.
func NewService(r runner, p imageProcessor, rd renderer, opts Options) *Service {
	return &Service{runner: r, processor: p, renderer: rd, opts: opts}
}

// Generate develops every discovered image without a style and with each
// style, then renders the gallery. The returned gallery may carry failures
// when the pipeline runs with the continue policy. Nothing is rendered when
// the pipeline returns an error.
func (s *Service) Generate(ctx context.Context, runID string) (model.Gallery, error) {
	stylePaths, err := discover.Files(s.opts.StyleDir, s.opts.StyleExtensions)
	if err != nil {
		return model.Gallery{}, fmt.Errorf("discover styles: %w", err)
	}
	images, err := discover.Files(s.opts.ImageDir, s.opts.ImageExtensions)
	if err != nil {
		return model.Gallery{}, fmt.Errorf("discover images: %w", err)
	}

	styles, err := style.LoadAll(stylePaths)
	if err != nil {
		return model.Gallery{}, err
	}

	zlog.Logger.Info().
		Int("styles", len(styles)).
		Int("images", len(images)).
		Int("jobs", len(images)*(1+len(styles))).
		Msg("starting run")

	warnCollisions(styles, images)

	g, err := s.runner.Run(ctx, runID, styles, images)
	if err != nil {
		return model.Gallery{}, err
	}

	v := gallery.View{
		Title:       s.opts.Title,
		Gallery:     g,
		Thumbnails:  map[string]string{},
		Captions:    map[string]model.Capture{},
		Palettes:    map[string][]model.Swatch{},
		Shifts:      map[string]float64{},
		GeneratedAt: time.Now(),
	}

	if err := s.decorate(ctx, &v); err != nil {
		return g, err
	}
	if s.opts.Captions {
		readCaptions(images, v.Captions)
	}

	if err := s.renderer.Render(ctx, v); err != nil {
		return g, fmt.Errorf("render gallery: %w", err)
	}

	zlog.Logger.Info().
		Int("cells", len(g.BaseImages)*(1+len(g.StyleOrder))).
		Int("failed", len(g.Failed)).
		Msg("gallery rendered")

	return g, nil
}

// decorate draws placeholders for failed cells and gathers thumbnails,
// palettes and per-style color shifts for developed cells. Only a missing
// placeholder is an error; everything else is best effort.
func (s *Service) decorate(ctx context.Context, v *gallery.View) error {
	g := v.Gallery

	for _, name := range cells(g) {
		if err := ctx.Err(); err != nil {
			return err
		}

		if g.Failed[name] {
			w := s.opts.ThumbnailWidth
			if w <= 0 {
				w = 480
			}
			if _, err := s.processor.Placeholder(ctx, name, placeholderText, w, w*2/3); err != nil {
				return fmt.Errorf("placeholder for %s: %w", name, err)
			}
			continue
		}

		if s.opts.ThumbnailWidth > 0 {
			if _, err := s.processor.Thumbnail(ctx, name, s.opts.ThumbnailWidth); err != nil {
				zlog.Logger.Warn().Err(err).Str("file", name).Msg("failed to create thumbnail")
			} else {
				v.Thumbnails[name] = path.Join(processor.ThumbnailDir, name)
			}
		}

		if s.opts.PaletteSize > 0 {
			palette, err := s.processor.Palette(ctx, name, s.opts.PaletteSize, s.opts.PaletteMethod)
			if err != nil {
				zlog.Logger.Warn().Err(err).Str("file", name).Msg("failed to extract palette")
				continue
			}
			v.Palettes[name] = palette
		}
	}

	for _, styleName := range g.StyleOrder {
		var shifts []float64
		for i, styled := range g.StyleResults[styleName] {
			base, ok := v.Palettes[g.BaseImages[i]]
			if !ok {
				continue
			}
			if p, ok := v.Palettes[styled]; ok {
				shifts = append(shifts, processor.ColorShift(base, p))
			}
		}
		if len(shifts) > 0 {
			v.Shifts[styleName] = processor.MeanShift(shifts)
		}
	}

	return nil
}

// readCaptions reads capture metadata of every source image into captions,
// keyed by file name. Unreadable files get no caption.
func readCaptions(images []string, captions map[string]model.Capture) {
	for _, img := range images {
		c, err := metadata.Read(img)
		if err != nil {
			zlog.Logger.Debug().Err(err).Str("image", filepath.Base(img)).Msg("no capture metadata")
			continue
		}
		if !c.Empty() {
			captions[filepath.Base(img)] = c
		}
	}
}

// warnCollisions logs output file names that several cells would write and
// names that only differ in Unicode composition. Later developments
// overwrite earlier ones in the first case.
func warnCollisions(styles []model.Style, images []string) {
	names := make([]string, 0, len(styles))
	for _, s := range styles {
		names = append(names, s.Name)
	}
	stems := make([]string, 0, len(images))
	for _, img := range images {
		stems = append(stems, strings.TrimSuffix(filepath.Base(img), filepath.Ext(img)))
	}

	for base, cells := range naming.OutputCollisions(stems, names) {
		zlog.Logger.Warn().
			Str("output", base+darkroom.OutputExt).
			Strs("cells", cells).
			Msg("gallery cells share an output file")
	}

	for _, group := range naming.Lookalikes(append(names, stems...)) {
		zlog.Logger.Warn().
			Strs("names", group).
			Msg("names differ only in Unicode composition")
	}
}

// cells lists every gallery cell in page order.
func cells(g model.Gallery) []string {
	out := append([]string{}, g.BaseImages...)
	for _, name := range g.StyleOrder {
		out = append(out, g.StyleResults[name]...)
	}
	return out
}
