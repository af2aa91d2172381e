package model

// Gallery is the aggregated result of a batch run consumed by the renderer.
//
// Every StyleResults entry has len(BaseImages) filenames and index i of
// every sequence refers to the same source image.
type Gallery struct {
	RunID        string              `json:"run_id" yaml:"run_id"`
	Sources      []string            `json:"sources" yaml:"sources"`         // raw filenames, index aligned
	BaseImages   []string            `json:"base_images" yaml:"base_images"` // baseline outputs
	StyleResults map[string][]string `json:"styles" yaml:"styles"`           // style name -> outputs
	StyleOrder   []string            `json:"style_order" yaml:"style_order"`
	Styles       map[string]Style    `json:"-" yaml:"-"`
	Failed       map[string]bool     `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// NewGallery returns an empty gallery ready to be filled by a run.
func NewGallery(runID string) Gallery {
	return Gallery{
		RunID:        runID,
		BaseImages:   []string{},
		StyleResults: map[string][]string{},
		Styles:       map[string]Style{},
		Failed:       map[string]bool{},
	}
}

// HasFailures reports whether any cell of the gallery failed to develop.
func (g Gallery) HasFailures() bool {
	return len(g.Failed) > 0
}
