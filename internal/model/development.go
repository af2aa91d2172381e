package model

import (
	"path/filepath"
	"time"
)

// Status is the outcome of a development job.
type Status string

const (
	StatusDeveloped Status = "developed"
	StatusFailed    Status = "failed"
)

// Development is the result of running a Job through the development tool.
type Development struct {
	Job        Job           `json:"job"`
	Output     string        `json:"output"` // produced .jpg path
	Status     Status        `json:"status"`
	Err        error         `json:"-"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Filename returns the base name of the produced file.
func (d Development) Filename() string {
	return filepath.Base(d.Output)
}
