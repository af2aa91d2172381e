package preview

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/faxe1008/dstylehub/internal/gallery"
	"github.com/faxe1008/dstylehub/internal/model"
	"github.com/faxe1008/dstylehub/internal/processor"
	"github.com/faxe1008/dstylehub/internal/style"
)

type fakeRunner struct {
	styles  []model.Style
	images  []string
	gallery model.Gallery
	err     error
}

func (f *fakeRunner) Run(_ context.Context, runID string, styles []model.Style, images []string) (model.Gallery, error) {
	f.styles = styles
	f.images = images
	if f.err != nil {
		return model.Gallery{}, f.err
	}
	g := f.gallery
	g.RunID = runID
	return g, nil
}

type fakeProcessor struct {
	thumbs       []string
	placeholders []string
	palettes     map[string][]model.Swatch
	thumbErr     error
}

func (f *fakeProcessor) Thumbnail(_ context.Context, filename string, _ int) (string, error) {
	if f.thumbErr != nil {
		return "", f.thumbErr
	}
	f.thumbs = append(f.thumbs, filename)
	return filepath.Join("/out", processor.ThumbnailDir, filename), nil
}

func (f *fakeProcessor) Placeholder(_ context.Context, filename, _ string, _, _ int) (string, error) {
	f.placeholders = append(f.placeholders, filename)
	return filepath.Join("/out", filename), nil
}

func (f *fakeProcessor) Palette(_ context.Context, filename string, _ int, _ processor.PaletteMethod) ([]model.Swatch, error) {
	p, ok := f.palettes[filename]
	if !ok {
		return nil, errors.New("no palette")
	}
	return p, nil
}

type fakeRenderer struct {
	views []gallery.View
}

func (f *fakeRenderer) Render(_ context.Context, v gallery.View) error {
	f.views = append(f.views, v)
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func inputs(t *testing.T) (styleDir, imageDir string) {
	t.Helper()
	styleDir, imageDir = t.TempDir(), t.TempDir()

	writeFile(t, styleDir, "vintage.dtstyle",
		`<darktable_style version="1.0"><info><name>Vintage</name><description>warm fade</description></info></darktable_style>`)
	writeFile(t, styleDir, "notes.txt", "ignored")

	writeFile(t, imageDir, "IMG_0002.NEF", "raw")
	writeFile(t, imageDir, "IMG_0001.NEF", "raw")
	writeFile(t, imageDir, "IMG_0003.jpg", "ignored")
	return styleDir, imageDir
}

func matrix() model.Gallery {
	g := model.NewGallery("")
	g.Sources = []string{"IMG_0001.NEF", "IMG_0002.NEF"}
	g.BaseImages = []string{"developed_IMG_0001.jpg", "developed_IMG_0002.jpg"}
	g.StyleResults["Vintage"] = []string{"Vintage_IMG_0001.jpg", "Vintage_IMG_0002.jpg"}
	g.StyleOrder = []string{"Vintage"}
	g.Styles["Vintage"] = model.Style{Name: "Vintage", Description: "warm fade"}
	return g
}

func options(styleDir, imageDir string) Options {
	return Options{
		StyleDir:        styleDir,
		ImageDir:        imageDir,
		StyleExtensions: []string{".dtstyle"},
		ImageExtensions: []string{".NEF"},
		Title:           "previews",
		ThumbnailWidth:  320,
		PaletteSize:     2,
		PaletteMethod:   processor.PaletteDominantColor,
		Captions:        true,
	}
}

func TestService_Generate(t *testing.T) {
	styleDir, imageDir := inputs(t)

	red := []model.Swatch{{Hex: "#ff0000", Weight: 1}}
	run := &fakeRunner{gallery: matrix()}
	proc := &fakeProcessor{palettes: map[string][]model.Swatch{
		"developed_IMG_0001.jpg": red,
		"developed_IMG_0002.jpg": red,
		"Vintage_IMG_0001.jpg":   red,
		"Vintage_IMG_0002.jpg":   red,
	}}
	rend := &fakeRenderer{}

	svc := NewService(run, proc, rend, options(styleDir, imageDir))
	g, err := svc.Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if g.RunID != "run-1" {
		t.Errorf("RunID = %q", g.RunID)
	}

	wantImages := []string{filepath.Join(imageDir, "IMG_0001.NEF"), filepath.Join(imageDir, "IMG_0002.NEF")}
	if !reflect.DeepEqual(run.images, wantImages) {
		t.Errorf("runner images = %v, want %v", run.images, wantImages)
	}
	wantStyles := []model.Style{{Name: "Vintage", Description: "warm fade", Path: filepath.Join(styleDir, "vintage.dtstyle")}}
	if !reflect.DeepEqual(run.styles, wantStyles) {
		t.Errorf("runner styles = %+v, want %+v", run.styles, wantStyles)
	}

	wantCells := []string{"developed_IMG_0001.jpg", "developed_IMG_0002.jpg", "Vintage_IMG_0001.jpg", "Vintage_IMG_0002.jpg"}
	if !reflect.DeepEqual(proc.thumbs, wantCells) {
		t.Errorf("thumbnails = %v, want %v", proc.thumbs, wantCells)
	}
	if len(proc.placeholders) != 0 {
		t.Errorf("placeholders = %v, want none", proc.placeholders)
	}

	if len(rend.views) != 1 {
		t.Fatalf("Render() called %d times, want 1", len(rend.views))
	}
	v := rend.views[0]
	if v.Title != "previews" {
		t.Errorf("Title = %q", v.Title)
	}
	if got := v.Thumbnails["Vintage_IMG_0002.jpg"]; got != "thumbs/Vintage_IMG_0002.jpg" {
		t.Errorf("thumbnail path = %q, want thumbs/Vintage_IMG_0002.jpg", got)
	}
	if len(v.Palettes) != 4 {
		t.Errorf("palettes = %d, want 4", len(v.Palettes))
	}
	if shift, ok := v.Shifts["Vintage"]; !ok || shift != 0 {
		t.Errorf("Vintage shift = %v (%v), want 0", shift, ok)
	}
	if len(v.Captions) != 0 {
		t.Errorf("captions = %v, want none for files without EXIF", v.Captions)
	}
}

func TestService_GenerateWithFailures(t *testing.T) {
	styleDir, imageDir := inputs(t)

	g := matrix()
	g.Failed["Vintage_IMG_0002.jpg"] = true

	proc := &fakeProcessor{}
	rend := &fakeRenderer{}
	svc := NewService(&fakeRunner{gallery: g}, proc, rend, options(styleDir, imageDir))

	got, err := svc.Generate(context.Background(), "run")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !got.HasFailures() {
		t.Error("HasFailures() = false")
	}

	if !reflect.DeepEqual(proc.placeholders, []string{"Vintage_IMG_0002.jpg"}) {
		t.Errorf("placeholders = %v", proc.placeholders)
	}
	for _, f := range proc.thumbs {
		if f == "Vintage_IMG_0002.jpg" {
			t.Error("thumbnail created for failed cell")
		}
	}
	if len(rend.views) != 1 {
		t.Fatal("gallery not rendered")
	}
	if len(rend.views[0].Shifts) != 0 {
		t.Errorf("shifts = %v, want none without palettes", rend.views[0].Shifts)
	}
}

func TestService_GenerateBestEffortDecorations(t *testing.T) {
	styleDir, imageDir := inputs(t)

	proc := &fakeProcessor{thumbErr: errors.New("decode failed")}
	rend := &fakeRenderer{}
	svc := NewService(&fakeRunner{gallery: matrix()}, proc, rend, options(styleDir, imageDir))

	if _, err := svc.Generate(context.Background(), "run"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(rend.views) != 1 || len(rend.views[0].Thumbnails) != 0 {
		t.Error("failed thumbnails must be skipped, not fatal")
	}
}

func TestService_GenerateRunError(t *testing.T) {
	styleDir, imageDir := inputs(t)

	boom := errors.New("exit status 1")
	rend := &fakeRenderer{}
	svc := NewService(&fakeRunner{err: boom}, &fakeProcessor{}, rend, options(styleDir, imageDir))

	if _, err := svc.Generate(context.Background(), "run"); !errors.Is(err, boom) {
		t.Errorf("Generate() error = %v, want %v", err, boom)
	}
	if len(rend.views) != 0 {
		t.Error("gallery rendered after an aborted run")
	}
}

func TestService_GenerateInputErrors(t *testing.T) {
	styleDir, imageDir := inputs(t)
	writeFile(t, styleDir, "broken.dtstyle", "<darktable_style><info>")

	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"missing style folder", options(filepath.Join(styleDir, "missing"), imageDir), nil},
		{"missing image folder", options(styleDir, filepath.Join(imageDir, "missing")), nil},
		{"malformed style", options(styleDir, imageDir), style.ErrMalformedStyleFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := &fakeRunner{gallery: matrix()}
			svc := NewService(run, &fakeProcessor{}, &fakeRenderer{}, tt.opts)

			_, err := svc.Generate(context.Background(), "run")
			if err == nil {
				t.Fatal("Generate() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Generate() error = %v, want %v", err, tt.wantErr)
			}
			if run.images != nil {
				t.Error("runner called despite input error")
			}
		})
	}
}
