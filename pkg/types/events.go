package types

// CausalEvent is one completed system call linking a process to an object.
// It is created from an exit record and never modified afterwards.
type CausalEvent struct {
	// Index is the exit record's sequence number; unique within a trace.
	Index     int64  `json:"index"`
	Process   string `json:"process"`
	Operation string `json:"operation"`
	Object    string `json:"object"`
	Start     Time   `json:"start"`
	End       Time   `json:"end"`

	// Unmatched marks an exit that had no preceding entry for its
	// (process, operation) pair. Start is then a copy of End.
	Unmatched bool `json:"unmatched,omitempty"`
}

// Duration returns End-Start in nanoseconds.
func (e CausalEvent) Duration() int64 {
	return e.End.Sub(e.Start)
}
