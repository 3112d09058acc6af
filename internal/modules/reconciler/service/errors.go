package service

import (
	"errors"
	"fmt"
)

// ErrAlreadyImported is returned when the file's content hash is already in
// the ledger. Orchestrators treat it as a successful no-op, not a failure.
var ErrAlreadyImported = errors.New("file already imported")

// MalformedRecordError identifies a single rejected row. It never aborts the
// surrounding file unless the caller asked for abort-on-error.
type MalformedRecordError struct {
	Filename string
	Line     int
	Reason   string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record %s:%d: %s", e.Filename, e.Line, e.Reason)
}
