package domain

import "fmt"

type ReportState int

const (
	ReportIdle ReportState = iota
	ReportDirectoryEnsured
	ReportDocumentWritten
	ReportStreamed
	ReportCleaned
	ReportFailed
)

var reportStateNames = map[ReportState]string{
	ReportIdle:             "idle",
	ReportDirectoryEnsured: "directory_ensured",
	ReportDocumentWritten:  "document_written",
	ReportStreamed:         "streamed",
	ReportCleaned:          "cleaned",
	ReportFailed:           "failed",
}

func (s ReportState) String() string {
	if name, ok := reportStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ReportState(%d)", int(s))
}

func (s ReportState) Terminal() bool {
	return s == ReportCleaned || s == ReportFailed
}

// next lists the forward transitions. Failed is reachable from every
// non-terminal state and is handled separately.
var next = map[ReportState]ReportState{
	ReportIdle:             ReportDirectoryEnsured,
	ReportDirectoryEnsured: ReportDocumentWritten,
	ReportDocumentWritten:  ReportStreamed,
	ReportStreamed:         ReportCleaned,
}

// Advance moves the report to the given state.
func (r *Report) Advance(to ReportState) error {
	if r.State.Terminal() {
		return fmt.Errorf("report %s: cannot leave terminal state %s", r.Filename, r.State)
	}
	if to == ReportFailed {
		r.State = to
		return nil
	}
	if next[r.State] != to {
		return fmt.Errorf("report %s: invalid transition %s -> %s", r.Filename, r.State, to)
	}
	r.State = to
	return nil
}
