package ingest

import "errors"

// ErrIngestion is matched by every fatal run failure.
var ErrIngestion = errors.New("ingestion failed")

// Error is a fatal storage failure during a run. The run must be abandoned.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "ingestion failed: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrIngestion) hold for every *Error.
func (e *Error) Is(target error) bool { return target == ErrIngestion }

func fatal(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
