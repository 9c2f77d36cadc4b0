package services

import (
	"context"

	"github.com/desertthunder/yms/internal/models"
)

// Catalog is the destination music service: search, playlist lookup/creation/mutation and upload targets.
type Catalog interface {
	// Search returns the single best-ranked hit for query, or nil when the service reports none.
	Search(ctx context.Context, query string) (*SearchHit, error)

	// Playlists lists the authenticated user's playlists.
	Playlists(ctx context.Context) ([]models.PlaylistHandle, error)

	// CreatePlaylist creates a playlist named name and returns its handle.
	CreatePlaylist(ctx context.Context, name string) (*models.PlaylistHandle, error)

	// Revision fetches the current revision of a playlist.
	Revision(ctx context.Context, playlist models.PlaylistHandle) (int, error)

	// InsertTrack links a catalog track into a playlist at the given revision.
	// A stale revision yields [shared.ErrRevisionConflict].
	InsertTrack(ctx context.Context, req InsertRequest) error

	// UploadTarget issues a single-use upload URL for filename, categorized under playlistID.
	UploadTarget(ctx context.Context, filename, playlistID string) (*models.UploadTarget, error)

	// Name returns the name of the service (e.g., "Yandex Music")
	Name() string
}

// Source is the media site the playlist is read from.
type Source interface {
	// Extract lists playlist entries inside window without downloading media.
	Extract(ctx context.Context, playlistURL string, window models.Window) ([]models.TrackDescriptor, error)

	// Fetch downloads the audio of mediaURL to destPath and returns the final path.
	// Items that can never be fetched are reported with [shared.ErrSourceUnavailable].
	Fetch(ctx context.Context, mediaURL, destPath string) (string, error)
}

// SearchHit is the best search result with its entity type discriminator.
type SearchHit struct {
	Type     string // "track", "album", "artist", "playlist", ...
	ID       string
	Title    string
	AlbumIDs []string
}

// InsertRequest carries everything the insert call needs; Revision must be freshly fetched.
type InsertRequest struct {
	PlaylistID string
	OwnerID    string
	TrackID    string
	AlbumID    string
	Revision   int
}
