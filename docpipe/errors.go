package docpipe

import "errors"

var (
	// ErrUnsupported is returned for extensions no extractor handles.
	ErrUnsupported = errors.New("docpipe: unsupported file type")

	// ErrFileTooLarge is returned when a file exceeds Config.MaxFileSize.
	ErrFileTooLarge = errors.New("docpipe: file too large")

	// ErrEmptyFile is returned for zero-byte files.
	ErrEmptyFile = errors.New("docpipe: file is empty")

	// ErrOCRUnavailable is returned when an image needs OCR and no engine
	// is installed.
	ErrOCRUnavailable = errors.New("docpipe: OCR engine unavailable")
)
