package crud

import "strings"

// ErrValidation wraps error occuring during input validation, with the list of
// columns that failed
type ErrValidation struct {
	Fields []string
	Err    error
}

func (e ErrValidation) Error() string {
	if len(e.Fields) == 0 {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + strings.Join(e.Fields, ",")
}

func (e ErrValidation) Unwrap() error {
	return e.Err
}
