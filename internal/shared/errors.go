package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrAuthorization      = fmt.Errorf("authorization failed")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Catalog and playlist errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrSearchFailed       = fmt.Errorf("catalog search failed")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrRevisionConflict   = fmt.Errorf("playlist revision conflict")
	ErrInsertRejected     = fmt.Errorf("track insertion rejected")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Source errors
	ErrExtractFailed     = fmt.Errorf("playlist extraction failed")
	ErrFetchFailed       = fmt.Errorf("audio fetch failed")
	ErrSourceUnavailable = fmt.Errorf("source item unavailable")

	// Upload errors
	ErrUploadTarget    = fmt.Errorf("upload target request failed")
	ErrUploadTLS       = fmt.Errorf("secure channel failure")
	ErrUploadTimeout   = fmt.Errorf("upload timed out")
	ErrUploadTransport = fmt.Errorf("upload transport failure")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")

	// Ledger errors
	ErrRecordNotFound = fmt.Errorf("record not found")
)
