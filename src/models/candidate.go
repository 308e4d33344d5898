package models

// MCandidate is a tracked subject. The list is fixed at startup and immutable
// for the process lifetime.
type MCandidate struct {
	Name    string   `yaml:"name" json:"name"`
	Aliases []string `yaml:"aliases" json:"aliases,omitempty"`
}
