package crud

// HelperError wraps original error with operation/step where the error occured
// and the table it was building a Helper for
type HelperError struct {
	Op    string
	Table string
	Err   error
}

func (e HelperError) Error() string {
	return e.Table + ": " + e.Err.Error()
}

func (e HelperError) Unwrap() error {
	return e.Err
}
