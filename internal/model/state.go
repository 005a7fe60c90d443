package model

import "time"

// ImportStatus tracks where a source file is in its import lifecycle.
type ImportStatus string

// Import statuses. Anything other than finished marks the file as needing
// a re-import on the next run.
const (
	StatusFinished   ImportStatus = "finished"
	StatusProcessing ImportStatus = "processing"
	StatusError      ImportStatus = "error"
)

// StateTimeLayout is how last-modified timestamps are stored in the
// import-state sheet.
const StateTimeLayout = time.RFC3339

// ImportState is the per-source-file import record. Entries are created
// before an import starts and never deleted.
type ImportState struct {
	ModifiedAt time.Time
	Filename   string
	Status     ImportStatus
	Row        int // 1-based sheet row holding this entry; 0 if not yet stored
}
