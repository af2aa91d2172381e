package model

// Style describes a darktable style preset loaded from a .dtstyle file.
type Style struct {
	Name        string `json:"name" yaml:"name"`               // display name, never empty
	Description string `json:"description" yaml:"description"` // may be empty
	Path        string `json:"path" yaml:"path"`               // path to the preset file
}
