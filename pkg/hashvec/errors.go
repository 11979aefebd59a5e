package hashvec

import "errors"

// ErrDimensionMismatch is returned by every vector operation when its
// operands differ in length.
var ErrDimensionMismatch = errors.New("hashvec: dimension mismatch")
