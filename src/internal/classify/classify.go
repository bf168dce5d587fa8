// FILE: logthrottle/src/internal/classify/classify.go
package classify

import "logthrottle/src/internal/group"

// Classifier binds watched files to group states
type Classifier interface {
	// Assign adds path to its group when the file starts being watched
	Assign(path string) *group.State

	// Release removes path from its group when the file stops being watched
	Release(path string)

	// StateFor returns the group currently holding path, or nil
	StateFor(path string) *group.State

	// Groups returns every group the classifier can assign to
	Groups() []GroupStats
}

// GroupStats pairs a group name with its counters
type GroupStats struct {
	Name  string
	Stats map[string]any
}
