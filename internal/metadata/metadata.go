// Package metadata reads camera capture information from raw image files.
package metadata

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/faxe1008/dstylehub/internal/model"
)

// Read extracts capture metadata from the EXIF block of the raw file at path.
// Raw formats such as NEF are TIFF containers, so the EXIF decoder reads them
// directly. Fields that are missing are left empty.
func Read(path string) (model.Capture, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Capture{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return model.Capture{}, fmt.Errorf("decode exif %s: %w", path, err)
	}

	c := model.Capture{
		Camera: camera(x),
		Lens:   str(x, exif.LensModel),
	}

	if t, err := x.DateTime(); err == nil {
		c.TakenAt = t
	}
	if r := rat(x, exif.ExposureTime); r != nil {
		c.Exposure = formatExposure(r)
	}
	if r := rat(x, exif.FNumber); r != nil {
		c.FNumber = formatFNumber(r)
	}
	if tag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if iso, err := tag.Int(0); err == nil {
			c.ISO = fmt.Sprintf("ISO %d", iso)
		}
	}

	return c, nil
}

// camera joins make and model, dropping the make when the model repeats it
// ("NIKON CORPORATION" + "NIKON Z 6" -> "NIKON Z 6").
func camera(x *exif.Exif) string {
	mk := str(x, exif.Make)
	mdl := str(x, exif.Model)
	switch {
	case mdl == "":
		return mk
	case mk == "":
		return mdl
	case strings.HasPrefix(mdl, strings.Fields(mk)[0]):
		return mdl
	default:
		return mk + " " + mdl
	}
}

func str(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

func rat(x *exif.Exif, name exif.FieldName) *big.Rat {
	tag, err := x.Get(name)
	if err != nil {
		return nil
	}
	r, err := tag.Rat(0)
	if err != nil || r.Sign() <= 0 {
		return nil
	}
	return r
}

// formatExposure renders exposure times below one second as fractions.
func formatExposure(r *big.Rat) string {
	f, _ := r.Float64()
	if f >= 1 {
		return fmt.Sprintf("%gs", f)
	}
	return fmt.Sprintf("1/%.0f", 1/f)
}

func formatFNumber(r *big.Rat) string {
	f, _ := r.Float64()
	return fmt.Sprintf("f/%g", float64(int(f*10+0.5))/10)
}
