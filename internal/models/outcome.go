package models

// Outcome is what happened to one track during a run.
type Outcome int

const (
	OutcomeInserted Outcome = iota // matched and linked into the playlist
	OutcomeUploaded                // not matched (or not a track), fetched and uploaded
	OutcomeUploadFailed
	OutcomeFetchFailed
	OutcomeInsertFailed
	OutcomeSearchFailed
	OutcomeUploadUnlinked // uploaded, but the follow-up insert into the playlist failed
)

var outcomeNames = map[Outcome]string{
	OutcomeInserted:     "inserted",
	OutcomeUploaded:     "uploaded",
	OutcomeUploadFailed: "upload_failed",
	OutcomeFetchFailed:  "fetch_failed",
	OutcomeInsertFailed: "insert_failed",
	OutcomeSearchFailed: "search_failed",

	OutcomeUploadUnlinked: "upload_unlinked",
}

func (o Outcome) String() string {
	return outcomeNames[o]
}

// Failed reports whether the track did not end up in the destination playlist.
func (o Outcome) Failed() bool {
	return o != OutcomeInserted && o != OutcomeUploaded
}

// ParseOutcome is the inverse of [Outcome.String]; ok is false for unknown names.
func ParseOutcome(s string) (o Outcome, ok bool) {
	for k, v := range outcomeNames {
		if v == s {
			return k, true
		}
	}
	return 0, false
}

// UploadErrorKind separates the upload failure branches that get distinct log lines.
type UploadErrorKind int

const (
	UploadErrNone UploadErrorKind = iota
	UploadErrTLS
	UploadErrTimeout
	UploadErrTransport
	UploadErrTarget
)

func (k UploadErrorKind) String() string {
	switch k {
	case UploadErrTLS:
		return "tls"
	case UploadErrTimeout:
		return "timeout"
	case UploadErrTransport:
		return "transport"
	case UploadErrTarget:
		return "target"
	default:
		return ""
	}
}

// ParseUploadErrorKind is the inverse of [UploadErrorKind.String].
func ParseUploadErrorKind(s string) UploadErrorKind {
	switch s {
	case "tls":
		return UploadErrTLS
	case "timeout":
		return UploadErrTimeout
	case "transport":
		return UploadErrTransport
	case "target":
		return UploadErrTarget
	default:
		return UploadErrNone
	}
}

// LogEntry is the single record written for a track ordinal.
type LogEntry struct {
	Ordinal     int
	Title       string
	SourceURL   string
	Match       MatchKind
	Outcome     Outcome
	UploadError UploadErrorKind
	Response    string // verbatim upload reply for OutcomeUploaded and OutcomeUploadUnlinked
	PlaylistID  string // playlist the track was linked or uploaded into
	Err         error
}

// Detail is the free-text part persisted alongside the outcome.
func (e LogEntry) Detail() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Response
}
