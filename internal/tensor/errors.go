package tensor

import "fmt"

// ShapeError reports operands whose shapes an operator cannot accept.
//
// Operators panic with a *ShapeError instead of returning an error so that
// the network graph reads as straight-line code. The boundary that runs a
// graph converts the panic back into an error with Recover.
type ShapeError struct {
	Op  string // Operator that rejected its inputs (e.g. "conv2d").
	Msg string // Human readable description.
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// Errorf builds a *ShapeError for op.
func Errorf(op, format string, args ...any) *ShapeError {
	return &ShapeError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Recover turns a *ShapeError panic into an error stored in *errp.
// Any other panic value is re-raised unchanged. It must be deferred directly:
//
//	defer tensor.Recover(&err)
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if se, ok := r.(*ShapeError); ok {
		*errp = se
		return
	}
	panic(r)
}
