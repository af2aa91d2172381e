// Package style loads darktable style presets (.dtstyle files).
package style

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/faxe1008/dstylehub/internal/model"
)

// Extension is the file extension of darktable style presets.
const Extension = ".dtstyle"

// ErrMalformedStyleFile is returned when a style file is not well-formed XML
// or has no info element.
var ErrMalformedStyleFile = errors.New("malformed style file")

// document mirrors the parts of a .dtstyle file that are read.
type document struct {
	XMLName xml.Name
	Info    *info `xml:"info"`
}

type info struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
}

// Load reads the style preset at path.
//
// A missing or empty name falls back to the file name without extension,
// a missing description becomes an empty string.
func Load(path string) (model.Style, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Style{}, fmt.Errorf("read style %s: %w", path, err)
	}

	return Parse(path, data)
}

// Parse decodes style metadata from data. The path is used for the name
// fallback and is stored in the returned style. Name and description are
// taken verbatim; only an empty name falls back to the stem.
func Parse(path string, data []byte) (model.Style, error) {
	doc, err := decode(data)
	if err != nil {
		return model.Style{}, fmt.Errorf("%w: %s: %v", ErrMalformedStyleFile, path, err)
	}
	if doc.Info == nil {
		return model.Style{}, fmt.Errorf("%w: %s: missing info element", ErrMalformedStyleFile, path)
	}

	name := doc.Info.Name
	if name == "" {
		name = stem(path)
	}

	return model.Style{
		Name:        name,
		Description: doc.Info.Description,
		Path:        path,
	}, nil
}

// decode reads exactly one root element. Text or elements outside the root
// make the document malformed.
func decode(data []byte) (document, error) {
	var doc document
	d := xml.NewDecoder(bytes.NewReader(data))

	root := false
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return document{}, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root {
				return document{}, fmt.Errorf("junk after document element: <%s>", t.Name.Local)
			}
			if err := d.DecodeElement(&doc, &t); err != nil {
				return document{}, err
			}
			root = true
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return document{}, errors.New("text outside the document element")
			}
		}
	}

	if !root {
		return document{}, errors.New("no document element")
	}
	return doc, nil
}

// LoadAll loads every style in paths, stopping at the first failure.
func LoadAll(paths []string) ([]model.Style, error) {
	styles := make([]model.Style, 0, len(paths))
	for _, p := range paths {
		s, err := Load(p)
		if err != nil {
			return nil, err
		}
		styles = append(styles, s)
	}
	return styles, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
