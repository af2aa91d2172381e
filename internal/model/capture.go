package model

import "time"

// Capture holds camera metadata read from a raw file.
type Capture struct {
	Camera   string    `json:"camera,omitempty"`
	Lens     string    `json:"lens,omitempty"`
	TakenAt  time.Time `json:"taken_at,omitempty"`
	Exposure string    `json:"exposure,omitempty"` // e.g. "1/250"
	FNumber  string    `json:"f_number,omitempty"` // e.g. "f/5.6"
	ISO      string    `json:"iso,omitempty"`
}

// Empty reports whether no metadata could be read.
func (c Capture) Empty() bool {
	return c.Camera == "" && c.Lens == "" && c.TakenAt.IsZero() &&
		c.Exposure == "" && c.FNumber == "" && c.ISO == ""
}

// Swatch is one palette color of a developed image.
type Swatch struct {
	Hex    string  `json:"hex" yaml:"hex"`
	Weight float64 `json:"weight" yaml:"weight"`
}
