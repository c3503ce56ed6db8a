package export

import "errors"

// ErrUnsupportedData is returned when a value cannot be written in the
// requested format (for example plain text to Excel).
var ErrUnsupportedData = errors.New("export: unsupported data type")
