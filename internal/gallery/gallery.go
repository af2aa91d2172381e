// Package gallery renders the comparison page for a batch run and copies
// its static assets into the output folder.
package gallery

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"path"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/faxe1008/dstylehub/internal/model"
)

const (
	IndexFile    = "index.html"
	ManifestFile = "manifest.yaml"
)

// StaticAssets are copied from the embedded templates into every gallery.
var StaticAssets = []string{"favicon.png", "favicon_large.png"}

//go:embed templates/index.html.tmpl templates/assets/*.png
var templatesFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html.tmpl"))

// fileStorage defines the interface for writing files into the output folder.
type fileStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader) (string, error)
}

// View is everything the page shows: the gallery model plus optional
// decorations gathered after development.
type View struct {
	Title       string
	Gallery     model.Gallery
	Thumbnails  map[string]string         // output filename -> thumbnail path relative to the page
	Captions    map[string]model.Capture  // source filename -> capture metadata
	Palettes    map[string][]model.Swatch // output filename -> palette
	Shifts      map[string]float64        // style name -> mean color shift
	GeneratedAt time.Time
}

// Renderer writes index.html, manifest.yaml and the static assets.
type Renderer struct {
	fileStorage fileStorage
}

// NewRenderer creates a Renderer writing through fs.
func NewRenderer(fs fileStorage) *Renderer {
	return &Renderer{fileStorage: fs}
}

type page struct {
	Title       string
	RunID       string
	GeneratedAt string
	BaseImages  []string
	Styles      map[string][]string
	Failures    int
	Columns     []column
	Rows        []row
}

type column struct {
	Name        string
	Description string
	Shift       float64
	HasShift    bool
}

type row struct {
	Source  string
	Caption []string
	Cells   []cell
}

type cell struct {
	File    string
	Thumb   string
	Failed  bool
	Palette []model.Swatch
}

// manifest is the machine-readable companion of index.html.
type manifest struct {
	RunID       string                    `yaml:"run_id"`
	GeneratedAt time.Time                 `yaml:"generated_at"`
	Sources     []string                  `yaml:"sources"`
	BaseImages  []string                  `yaml:"base_images"`
	Styles      []manifestStyle           `yaml:"styles"`
	Failed      []string                  `yaml:"failed,omitempty"`
	Palettes    map[string][]model.Swatch `yaml:"palettes,omitempty"`
}

type manifestStyle struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	File        string   `yaml:"file,omitempty"`
	Shift       *float64 `yaml:"color_shift,omitempty"`
	Images      []string `yaml:"images"`
}

// Render writes the gallery page, its manifest and the static assets.
// Existing files are overwritten.
func (r *Renderer) Render(ctx context.Context, v View) error {
	html, err := RenderHTML(v)
	if err != nil {
		return err
	}
	if _, err := r.fileStorage.Save(ctx, "", IndexFile, bytes.NewReader(html)); err != nil {
		return fmt.Errorf("write %s: %w", IndexFile, err)
	}

	data, err := yaml.Marshal(buildManifest(v))
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if _, err := r.fileStorage.Save(ctx, "", ManifestFile, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", ManifestFile, err)
	}

	return r.copyAssets(ctx)
}

// RenderHTML executes the page template for v.
func RenderHTML(v View) ([]byte, error) {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, buildPage(v)); err != nil {
		return nil, fmt.Errorf("render %s: %w", IndexFile, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) copyAssets(ctx context.Context) error {
	for _, name := range StaticAssets {
		data, err := templatesFS.ReadFile(path.Join("templates", "assets", name))
		if err != nil {
			return fmt.Errorf("read asset %s: %w", name, err)
		}
		if _, err := r.fileStorage.Save(ctx, "", name, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("copy asset %s: %w", name, err)
		}
	}
	return nil
}

func buildPage(v View) page {
	g := v.Gallery

	title := v.Title
	if title == "" {
		title = "darktable style preview"
	}

	p := page{
		Title:       title,
		RunID:       g.RunID,
		GeneratedAt: v.GeneratedAt.Format("2006-01-02 15:04"),
		BaseImages:  g.BaseImages,
		Styles:      g.StyleResults,
		Failures:    len(g.Failed),
	}

	p.Columns = append(p.Columns, column{Name: "Original"})
	for _, name := range g.StyleOrder {
		shift, ok := v.Shifts[name]
		p.Columns = append(p.Columns, column{
			Name:        name,
			Description: g.Styles[name].Description,
			Shift:       shift,
			HasShift:    ok,
		})
	}

	for i, base := range g.BaseImages {
		var source string
		if i < len(g.Sources) {
			source = g.Sources[i]
		}

		rw := row{Source: source, Caption: captionLines(v.Captions[source])}
		rw.Cells = append(rw.Cells, v.cell(base))
		for _, name := range g.StyleOrder {
			rw.Cells = append(rw.Cells, v.cell(g.StyleResults[name][i]))
		}
		p.Rows = append(p.Rows, rw)
	}

	return p
}

func (v View) cell(file string) cell {
	thumb, ok := v.Thumbnails[file]
	if !ok {
		thumb = file
	}
	return cell{
		File:    file,
		Thumb:   thumb,
		Failed:  v.Gallery.Failed[file],
		Palette: v.Palettes[file],
	}
}

func captionLines(c model.Capture) []string {
	var lines []string
	if c.Camera != "" {
		lines = append(lines, c.Camera)
	}
	if c.Lens != "" {
		lines = append(lines, c.Lens)
	}
	if !c.TakenAt.IsZero() {
		lines = append(lines, c.TakenAt.Format("2006-01-02 15:04"))
	}

	var exposure string
	for _, s := range []string{c.Exposure, c.FNumber, c.ISO} {
		if s == "" {
			continue
		}
		if exposure != "" {
			exposure += " "
		}
		exposure += s
	}
	if exposure != "" {
		lines = append(lines, exposure)
	}
	return lines
}

func buildManifest(v View) manifest {
	g := v.Gallery
	m := manifest{
		RunID:       g.RunID,
		GeneratedAt: v.GeneratedAt,
		Sources:     g.Sources,
		BaseImages:  g.BaseImages,
		Palettes:    v.Palettes,
	}

	for _, name := range g.StyleOrder {
		s := manifestStyle{
			Name:        name,
			Description: g.Styles[name].Description,
			Images:      g.StyleResults[name],
		}
		if p := g.Styles[name].Path; p != "" {
			s.File = filepath.Base(p)
		}
		if shift, ok := v.Shifts[name]; ok {
			s.Shift = &shift
		}
		m.Styles = append(m.Styles, s)
	}

	// Iterate in cell order so the list is deterministic.
	for _, f := range allCells(g) {
		if g.Failed[f] {
			m.Failed = append(m.Failed, f)
		}
	}

	return m
}

func allCells(g model.Gallery) []string {
	cells := append([]string{}, g.BaseImages...)
	for _, name := range g.StyleOrder {
		cells = append(cells, g.StyleResults[name]...)
	}
	return cells
}
