package models

// DTCEntry represents a diagnostic trouble code with description.
type DTCEntry struct {
	Code        string `json:"code" yaml:"code"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}
