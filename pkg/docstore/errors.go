package docstore

import "errors"

// ErrIngestion is returned when an uploaded document cannot be turned into
// chunks. The store is left empty.
var ErrIngestion = errors.New("ingestion error")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("document store is closed")
