package domain

import "errors"

var (
	// ErrMissingHeader indicates the table has no header row.
	ErrMissingHeader = errors.New("missing header row")

	// ErrMalformedRow indicates a row whose indicator count does not match the header.
	ErrMalformedRow = errors.New("malformed input row")

	// ErrDuplicateID indicates two documents of one build share an id.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrStoreUnavailable indicates the document store could not be opened or fetched.
	// Queries are refused until the store is available.
	ErrStoreUnavailable = errors.New("document store unavailable")

	// ErrChatUnavailable indicates the chat model is not configured or is failing.
	ErrChatUnavailable = errors.New("chat model unavailable")
)
