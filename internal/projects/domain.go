// Package projects exposes the minimal project header used on reports.
package projects

import "errors"

// Project identifies a construction project.
type Project struct {
	ID   int64
	Name string
}

// ErrNotFound indicates the project is missing.
var ErrNotFound = errors.New("projects: not found")
