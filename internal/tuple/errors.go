package tuple

import "errors"

// ErrRowNotFound is returned by RowSource.LoadKey when the locator no
// longer names a live row.
var ErrRowNotFound = errors.New("tuple: row not found")
