package metrics

// Status tells a caller whether a read produced rows, produced nothing, or failed
type Status int

const (
	StatusOK Status = iota
	StatusNoData
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoData:
		return "no_data"
	default:
		return "failed"
	}
}

// Result carries the rows of one read, or the error that prevented it
type Result[T any] struct {
	Rows []T
	Err  error
}

// Status derives the outcome from Rows and Err
func (r Result[T]) Status() Status {
	switch {
	case r.Err != nil:
		return StatusFailed
	case len(r.Rows) == 0:
		return StatusNoData
	default:
		return StatusOK
	}
}

// One returns the single row of a one-row result
func (r Result[T]) One() (T, bool) {
	var zero T
	if r.Err != nil || len(r.Rows) == 0 {
		return zero, false
	}
	return r.Rows[0], true
}
