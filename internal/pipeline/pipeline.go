// Package pipeline develops every raw image once without a style and once
// per style, and aggregates the outputs into a gallery model.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/faxe1008/dstylehub/internal/darkroom"
	"github.com/faxe1008/dstylehub/internal/model"
	"github.com/faxe1008/dstylehub/internal/naming"
)

// DefaultWidth replaces a zero Options.Width. DefaultQuality is the quality
// the configuration falls back to.
const (
	DefaultWidth   = 1920
	DefaultQuality = 70
)

// ErrDuplicateStyle is returned when two presets share a display name.
var ErrDuplicateStyle = errors.New("duplicate style name")

// Policy decides what happens after a job fails.
type Policy string

const (
	// PolicyAbort stops the batch at the first failed job.
	PolicyAbort Policy = "abort"
	// PolicyContinue records the failure in the gallery and keeps going.
	PolicyContinue Policy = "continue"
)

// developer defines the interface for developing one job into a file.
type developer interface {
	Develop(ctx context.Context, job model.Job) (string, error)
}

// Observer is notified about every finished job, successful or not.
// Observer errors are logged and never stop the batch.
type Observer interface {
	Observe(ctx context.Context, d model.Development) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, d model.Development) error

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, d model.Development) error {
	return f(ctx, d)
}

// Options configures a Pipeline. A zero Width selects DefaultWidth.
// Quality is passed through as given, so 0 is a valid setting.
type Options struct {
	OutputDir string
	Width     int
	Quality   int
	Policy    Policy
}

// Pipeline runs the development matrix sequentially.
type Pipeline struct {
	developer developer
	observers []Observer
	opts      Options
}

// New creates a Pipeline writing into opts.OutputDir.
func New(d developer, opts Options, observers ...Observer) *Pipeline {
	if opts.Width == 0 {
		opts.Width = DefaultWidth
	}
	if opts.Policy == "" {
		opts.Policy = PolicyAbort
	}
	return &Pipeline{developer: d, observers: observers, opts: opts}
}

// Run develops images in the given order, first without a style and then
// with each style ordered by name.
//
// With PolicyAbort the first failure is returned and no gallery is built.
// With PolicyContinue development failures are marked in Gallery.Failed and
// the returned error is nil; other errors still abort.
func (p *Pipeline) Run(ctx context.Context, runID string, styles []model.Style, images []string) (model.Gallery, error) {
	ordered, err := orderStyles(styles)
	if err != nil {
		return model.Gallery{}, err
	}

	gallery := model.NewGallery(runID)
	for _, img := range images {
		gallery.Sources = append(gallery.Sources, filepath.Base(img))
	}

	// Phase A: baseline development.
	for _, img := range images {
		zlog.Logger.Info().Str("image", filepath.Base(img)).Msg("developing base image")

		name, err := p.develop(ctx, img, nil, &gallery)
		if err != nil {
			return model.Gallery{}, err
		}
		gallery.BaseImages = append(gallery.BaseImages, name)
	}

	// Phase B: styled development.
	for i := range ordered {
		s := &ordered[i]
		results := make([]string, 0, len(images))

		for _, img := range images {
			zlog.Logger.Info().
				Str("style", s.Name).
				Str("image", filepath.Base(img)).
				Msg("applying style")

			name, err := p.develop(ctx, img, s, &gallery)
			if err != nil {
				return model.Gallery{}, err
			}
			results = append(results, name)
		}

		gallery.StyleResults[s.Name] = results
		gallery.StyleOrder = append(gallery.StyleOrder, s.Name)
		gallery.Styles[s.Name] = *s
	}

	return gallery, nil
}

// develop runs one job and returns the output filename for the gallery cell.
func (p *Pipeline) develop(ctx context.Context, img string, s *model.Style, gallery *model.Gallery) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	job := p.job(img, s)
	d := model.Development{Job: job, Output: darkroom.OutputPath(job.OutputBase)}

	start := time.Now()
	output, err := p.developer.Develop(ctx, job)
	d.Duration = time.Since(start)
	d.FinishedAt = time.Now()

	if err != nil {
		d.Status = model.StatusFailed
		d.Err = err
		d.Error = err.Error()
		p.notify(ctx, d)

		if p.opts.Policy == PolicyContinue && errors.Is(err, darkroom.ErrDevelopmentFailed) {
			zlog.Logger.Error().Err(err).
				Str("output", d.Filename()).
				Msg("development failed, continuing")
			gallery.Failed[d.Filename()] = true
			return d.Filename(), nil
		}
		return "", err
	}

	d.Output = output
	d.Status = model.StatusDeveloped
	p.notify(ctx, d)

	return d.Filename(), nil
}

func (p *Pipeline) job(img string, s *model.Style) model.Job {
	stem := strings.TrimSuffix(filepath.Base(img), filepath.Ext(img))

	var styleName string
	if s != nil {
		styleName = s.Name
	}

	return model.Job{
		ID:         uuid.New(),
		Source:     img,
		OutputBase: filepath.Join(p.opts.OutputDir, naming.OutputBase(stem, styleName)),
		Style:      s,
		Width:      p.opts.Width,
		Quality:    p.opts.Quality,
	}
}

func (p *Pipeline) notify(ctx context.Context, d model.Development) {
	for _, o := range p.observers {
		if err := o.Observe(ctx, d); err != nil {
			zlog.Logger.Warn().Err(err).
				Str("job", d.Job.ID.String()).
				Msg("failed to record development")
		}
	}
}

// orderStyles returns a copy of styles sorted by name and rejects duplicate
// names, which would merge two result rows.
func orderStyles(styles []model.Style) ([]model.Style, error) {
	ordered := make([]model.Style, len(styles))
	copy(ordered, styles)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	for i := 1; i < len(ordered); i++ {
		if ordered[i].Name == ordered[i-1].Name {
			return nil, fmt.Errorf("%w: %q (%s, %s)", ErrDuplicateStyle,
				ordered[i].Name, ordered[i-1].Path, ordered[i].Path)
		}
	}
	return ordered, nil
}
