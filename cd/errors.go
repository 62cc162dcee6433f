package cd

import "fmt"

// MalformedError is an archive-level structural failure: the run cannot continue past it.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "malformed archive: " + e.Reason
}

// InconsistentEntryError is a disagreement between an entry's central directory record and its local file
// header on a field that both declare.
type InconsistentEntryError struct {
	Name  string
	Field string
}

func (e *InconsistentEntryError) Error() string {
	return fmt.Sprintf("entry %q: local header disagrees with central directory on %s", e.Name, e.Field)
}
