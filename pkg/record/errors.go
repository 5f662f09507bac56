package record

import "errors"

// Accessor failures. They are structural: the transition itself cannot be
// read, so verification aborts instead of treating the record as absent.
var (
	ErrIndexOutOfBound = errors.New("record: index out of bound")
	ErrItemMissing     = errors.New("record: item missing")
	ErrEncoding        = errors.New("record: encoding error")
)
