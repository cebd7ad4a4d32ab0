package domain

import (
	"errors"
	"strings"
)

// ErrEmptyVersion indicates a missing version string.
var ErrEmptyVersion = errors.New("version is required")

// Version is one published or pending release of an addon.
type Version struct {
	Version string `json:"version"`
	License string `json:"license,omitempty"`
	// Filename is set only for manually uploaded artifacts.
	Filename string `json:"filename,omitempty"`
	// Dependencies are populated only via import.
	Dependencies []Dependency `json:"dependencies,omitempty"`
}

// Dependency is one requirement declared by a version's manifest.
type Dependency struct {
	PackageName       string `json:"package_name"`
	VersionConstraint string `json:"version_constraint"`
}

// VersionInput carries the fields of the manual version step.
type VersionInput struct {
	Version  string
	License  string
	Filename string
}

// NewVersion builds a version from manual entry.
func NewVersion(input VersionInput) (Version, error) {
	number := strings.TrimSpace(input.Version)
	if number == "" {
		return Version{}, ErrEmptyVersion
	}
	return Version{
		Version:  number,
		License:  strings.TrimSpace(input.License),
		Filename: strings.TrimSpace(input.Filename),
	}, nil
}
