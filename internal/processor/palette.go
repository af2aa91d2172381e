package processor

import (
	"image"
	"math"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"github.com/wb-go/wbf/zlog"
	"gonum.org/v1/gonum/stat"

	"github.com/faxe1008/dstylehub/internal/model"
)

const (
	paletteSampleWidth = 256
	maxKMeansSamples   = 12000
)

// PaletteMethod selects the palette extraction algorithm.
type PaletteMethod string

const (
	PaletteDominantColor PaletteMethod = "dominantcolor"
	PaletteKMeans        PaletteMethod = "kmeans"
)

// ExtractPalette returns up to k swatches ordered by weight, heaviest first.
// Weights sum to 1. An empty k-means result falls back to dominantcolor.
func ExtractPalette(img image.Image, k int, method PaletteMethod) []model.Swatch {
	if k <= 0 {
		return nil
	}

	var swatches []model.Swatch
	if method == PaletteKMeans {
		swatches = kmeansPalette(img, k)
		if len(swatches) == 0 {
			zlog.Logger.Warn().Msg("kmeans returned empty palette, falling back to dominantcolor")
		}
	}
	if len(swatches) == 0 {
		swatches = dominantPalette(img, k)
	}

	return normalize(swatches)
}

func dominantPalette(img image.Image, k int) []model.Swatch {
	candidates := dominantcolor.FindWeight(img, k)

	out := make([]model.Swatch, 0, len(candidates))
	for _, c := range candidates {
		col, _ := colorful.MakeColor(c.RGBA)
		out = append(out, model.Swatch{Hex: col.Clamped().Hex(), Weight: c.Weight})
	}
	return out
}

func kmeansPalette(img image.Image, k int) []model.Swatch {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	step := 1
	if width*height > maxKMeansSamples {
		step = int(math.Sqrt(float64(width*height)/float64(maxKMeansSamples))) + 1
	}

	dataset := make(clusters.Observations, 0, min(width*height, maxKMeansSamples))
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			dataset = append(dataset, clusters.Coordinates{
				float64(r) / 65535.0,
				float64(g) / 65535.0,
				float64(bl) / 65535.0,
			})
		}
	}
	if len(dataset) == 0 {
		return nil
	}

	cc, err := kmeans.New().Partition(dataset, min(k, len(dataset)))
	if err != nil {
		return nil
	}

	out := make([]model.Swatch, 0, len(cc))
	for _, c := range cc {
		if len(c.Observations) == 0 || len(c.Center) < 3 {
			continue
		}
		col := colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}.Clamped()
		out = append(out, model.Swatch{Hex: col.Hex(), Weight: float64(len(c.Observations))})
	}
	return out
}

// normalize sorts swatches by weight and scales the weights to sum to 1.
func normalize(swatches []model.Swatch) []model.Swatch {
	var total float64
	for _, s := range swatches {
		total += s.Weight
	}
	if total <= 0 {
		return swatches
	}

	for i := range swatches {
		swatches[i].Weight /= total
	}
	slices.SortStableFunc(swatches, func(a, b model.Swatch) int {
		switch {
		case a.Weight > b.Weight:
			return -1
		case a.Weight < b.Weight:
			return 1
		}
		return 0
	})
	return swatches
}

// ColorShift measures how far a styled palette moved away from the baseline
// palette: the CIEDE2000 distance of index-aligned swatches, averaged with the
// baseline weights. Unparsable or missing swatches are skipped.
func ColorShift(base, styled []model.Swatch) float64 {
	n := min(len(base), len(styled))

	distances := make([]float64, 0, n)
	weights := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		a, err := colorful.Hex(base[i].Hex)
		if err != nil {
			continue
		}
		b, err := colorful.Hex(styled[i].Hex)
		if err != nil {
			continue
		}
		distances = append(distances, a.DistanceCIEDE2000(b))
		weights = append(weights, base[i].Weight)
	}

	if len(distances) == 0 {
		return 0
	}

	var wsum float64
	for _, w := range weights {
		wsum += w
	}
	if wsum <= 0 {
		return stat.Mean(distances, nil)
	}
	return stat.Mean(distances, weights)
}

// MeanShift averages per-image color shifts, e.g. across a style row.
func MeanShift(shifts []float64) float64 {
	if len(shifts) == 0 {
		return 0
	}
	return stat.Mean(shifts, nil)
}
