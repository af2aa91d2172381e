package model

import "github.com/google/uuid"

// Job is a single development of one raw image, optionally with one style.
type Job struct {
	ID         uuid.UUID `json:"id"`
	Source     string    `json:"source"`      // raw image path
	OutputBase string    `json:"output_base"` // output path without extension
	Style      *Style    `json:"style"`       // nil for the baseline development
	Width      int       `json:"width"`
	Quality    int       `json:"quality"` // JPEG quality, 0-100
}

// StyleName returns the name of the job's style or an empty string for
// baseline jobs.
func (j Job) StyleName() string {
	if j.Style == nil {
		return ""
	}
	return j.Style.Name
}
