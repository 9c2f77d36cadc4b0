package models

// TrackDescriptor is one entry of the source playlist.
//
// Title is rewritten once by the normalizer before matching; Ordinal orders the run and its log, it is
// not an identity on the destination side.
type TrackDescriptor struct {
	Ordinal   int
	Title     string
	SourceURL string
}

// Window selects a slice of the source playlist: Skip entries are dropped, then at most Count are kept.
// A zero Count means "until the end".
type Window struct {
	Skip  int
	Count int
}

// PlaylistHandle identifies the destination playlist for the duration of a run.
//
// The revision is deliberately absent: it must be fetched immediately before every mutation.
type PlaylistHandle struct {
	ID      string
	OwnerID string
	Name    string
}

// UploadTarget is a short-lived, single-use submission URL issued for one file.
type UploadTarget struct {
	PostURL    string
	Filename   string
	PlaylistID string // categorization hint the target was issued for
	TrackID    string // user-generated track id when the service reports one
}

// UploadReceipt is the destination's reply to a successful upload.
type UploadReceipt struct {
	StatusCode int
	Body       string // JSON body, kept verbatim
}
