package processor

import (
	"context"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/faxe1008/dstylehub/internal/model"
	"github.com/faxe1008/dstylehub/internal/storage/file"
)

// twoTone returns an image whose left half is red and right half is blue.
func twoTone(w, h int) image.Image {
	img := imaging.New(w, h, color.NRGBA{R: 255, A: 255})
	blue := imaging.New(w/2, h, color.NRGBA{B: 255, A: 255})
	return imaging.Paste(img, blue, image.Pt(w/2, 0))
}

func writeJPEG(t *testing.T, dir, name string, img image.Image) {
	t.Helper()
	if err := imaging.Save(img, filepath.Join(dir, name)); err != nil {
		t.Fatal(err)
	}
}

func TestProcessor_Thumbnail(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, dir, "developed_a.jpg", twoTone(1000, 500))
	writeJPEG(t, dir, "developed_small.jpg", twoTone(100, 50))

	p := New(file.NewLocal(dir), 80)

	tests := []struct {
		name  string
		file  string
		wantW int
		wantH int
	}{
		{"scaled down", "developed_a.jpg", 200, 100},
		{"not upscaled", "developed_small.jpg", 100, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst, err := p.Thumbnail(context.Background(), tt.file, 200)
			if err != nil {
				t.Fatalf("Thumbnail() error = %v", err)
			}
			if want := filepath.Join(dir, ThumbnailDir, tt.file); dst != want {
				t.Errorf("Thumbnail() = %q, want %q", dst, want)
			}

			img, err := imaging.Open(dst)
			if err != nil {
				t.Fatalf("open thumbnail: %v", err)
			}
			if b := img.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("thumbnail size = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestProcessor_Thumbnail_MissingSource(t *testing.T) {
	p := New(file.NewLocal(t.TempDir()), 80)
	if _, err := p.Thumbnail(context.Background(), "missing.jpg", 200); err == nil {
		t.Error("Thumbnail() expected error for missing source")
	}
}

func TestProcessor_Thumbnail_NotAnImage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.jpg"), []byte("not a jpeg"), 0644); err != nil {
		t.Fatal(err)
	}
	p := New(file.NewLocal(dir), 80)
	if _, err := p.Thumbnail(context.Background(), "broken.jpg", 200); err == nil {
		t.Error("Thumbnail() expected decode error")
	}
}

func TestProcessor_Placeholder(t *testing.T) {
	dir := t.TempDir()
	p := New(file.NewLocal(dir), 80)

	dst, err := p.Placeholder(context.Background(), "Vintage_IMG_0002.jpg", "development failed", 320, 240)
	if err != nil {
		t.Fatalf("Placeholder() error = %v", err)
	}
	if want := filepath.Join(dir, "Vintage_IMG_0002.jpg"); dst != want {
		t.Errorf("Placeholder() = %q, want %q", dst, want)
	}

	img, err := imaging.Open(dst)
	if err != nil {
		t.Fatalf("open placeholder: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Errorf("placeholder size = %dx%d, want 320x240", b.Dx(), b.Dy())
	}
}

func TestProcessor_Palette(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, dir, "developed_a.jpg", twoTone(600, 300))
	p := New(file.NewLocal(dir), 80)

	for _, method := range []PaletteMethod{PaletteDominantColor, PaletteKMeans} {
		t.Run(string(method), func(t *testing.T) {
			swatches, err := p.Palette(context.Background(), "developed_a.jpg", 3, method)
			if err != nil {
				t.Fatalf("Palette() error = %v", err)
			}
			if len(swatches) == 0 || len(swatches) > 3 {
				t.Fatalf("Palette() returned %d swatches, want 1-3", len(swatches))
			}

			var total float64
			for i, s := range swatches {
				if _, err := colorful.Hex(s.Hex); err != nil {
					t.Errorf("swatch %d hex %q: %v", i, s.Hex, err)
				}
				if i > 0 && s.Weight > swatches[i-1].Weight {
					t.Errorf("swatches not ordered by weight: %v", swatches)
				}
				total += s.Weight
			}
			if math.Abs(total-1) > 1e-9 {
				t.Errorf("weights sum to %f, want 1", total)
			}
		})
	}
}

func TestExtractPalette_ZeroK(t *testing.T) {
	if got := ExtractPalette(twoTone(10, 10), 0, PaletteDominantColor); got != nil {
		t.Errorf("ExtractPalette(k=0) = %v, want nil", got)
	}
}

func TestColorShift(t *testing.T) {
	base := []model.Swatch{{Hex: "#ff0000", Weight: 0.7}, {Hex: "#0000ff", Weight: 0.3}}

	if got := ColorShift(base, base); got != 0 {
		t.Errorf("ColorShift(identical) = %f, want 0", got)
	}

	shifted := []model.Swatch{{Hex: "#00ff00", Weight: 0.7}, {Hex: "#0000ff", Weight: 0.3}}
	if got := ColorShift(base, shifted); got <= 0 {
		t.Errorf("ColorShift(shifted) = %f, want > 0", got)
	}

	// Only the first swatch differs, so a heavier first weight increases the shift.
	light := []model.Swatch{{Hex: "#ff0000", Weight: 0.1}, {Hex: "#0000ff", Weight: 0.9}}
	if math.Abs(ColorShift(light, shifted[:1])-ColorShift(base, shifted[:1])) > 1e-9 {
		t.Error("single pair shift must not depend on weight")
	}
	if ColorShift(light, shifted) >= ColorShift(base, shifted) {
		t.Error("shift must follow baseline weights")
	}

	if got := ColorShift(nil, shifted); got != 0 {
		t.Errorf("ColorShift(nil) = %f, want 0", got)
	}
	if got := ColorShift([]model.Swatch{{Hex: "bogus"}}, shifted); got != 0 {
		t.Errorf("ColorShift(unparsable) = %f, want 0", got)
	}
}

func TestMeanShift(t *testing.T) {
	if got := MeanShift(nil); got != 0 {
		t.Errorf("MeanShift(nil) = %f, want 0", got)
	}
	if got := MeanShift([]float64{0.1, 0.3}); math.Abs(got-0.2) > 1e-12 {
		t.Errorf("MeanShift() = %f, want 0.2", got)
	}
}
