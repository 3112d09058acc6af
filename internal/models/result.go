package models

import "fmt"

// ImportResult is the per-file outcome reported back to the orchestrator.
type ImportResult struct {
	RunID            string
	Filename         string
	Opened           int
	Closed           int
	Orphaned         int
	SkippedDuplicate int
	Malformed        int
}

func (r *ImportResult) String() string {
	return fmt.Sprintf("%s: opened=%d closed=%d orphaned=%d skipped=%d malformed=%d",
		r.Filename, r.Opened, r.Closed, r.Orphaned, r.SkippedDuplicate, r.Malformed)
}
