package models

// MatchKind discriminates the variants of [MatchResult].
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchTrack
	MatchNonTrack
)

func (k MatchKind) String() string {
	switch k {
	case MatchNone:
		return "not_found"
	case MatchTrack:
		return "track"
	case MatchNonTrack:
		return "not_a_track"
	default:
		return ""
	}
}

// ParseMatchKind is the inverse of [MatchKind.String].
func ParseMatchKind(s string) MatchKind {
	switch s {
	case "track":
		return MatchTrack
	case "not_a_track":
		return MatchNonTrack
	default:
		return MatchNone
	}
}

// MatchResult is the classified best search hit: one of [NoMatch], [CatalogTrack] or [NonTrackHit].
type MatchResult interface {
	Kind() MatchKind
	isMatchResult()
}

// NoMatch means the catalog returned no best result.
type NoMatch struct{}

// CatalogTrack is a playable catalog track, the only variant eligible for playlist insertion.
type CatalogTrack struct {
	ID      string
	AlbumID string
	Title   string
}

// NonTrackHit is a best result that is not a track, e.g. an album or artist page.
type NonTrackHit struct {
	Type string
}

func (NoMatch) Kind() MatchKind      { return MatchNone }
func (CatalogTrack) Kind() MatchKind { return MatchTrack }
func (NonTrackHit) Kind() MatchKind  { return MatchNonTrack }

func (NoMatch) isMatchResult()      {}
func (CatalogTrack) isMatchResult() {}
func (NonTrackHit) isMatchResult()  {}
