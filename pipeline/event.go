package pipeline

import "fmt"

// EventKind is the kind of an asset change notification.
type EventKind int

const (
	Added EventKind = iota
	Modified
	Removed
)

func (k EventKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event notifies the pipeline that the sprite file Name changed.
type Event struct {
	Kind EventKind
	Name string
}
