package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/yms/internal/models"
	"github.com/desertthunder/yms/internal/services"
	"github.com/desertthunder/yms/internal/shared"
)

// PlaylistMutator resolves the destination playlist and links catalog tracks into it.
type PlaylistMutator struct {
	catalog  services.Catalog
	attempts int
	logger   *log.Logger
}

// NewPlaylistMutator creates a mutator. attempts below 1 mean a single attempt.
func NewPlaylistMutator(catalog services.Catalog, attempts int, logger *log.Logger) *PlaylistMutator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PlaylistMutator{
		catalog:  catalog,
		attempts: max(attempts, 1),
		logger:   shared.WithLogger(logger, "component", "playlist"),
	}
}

// Resolve finds the playlist named name by exact match, creating it when absent.
//
// created reports whether a new playlist was made.
func (p *PlaylistMutator) Resolve(ctx context.Context, name string) (handle models.PlaylistHandle, created bool, err error) {
	playlists, err := p.catalog.Playlists(ctx)
	if err != nil {
		return handle, false, fmt.Errorf("failed to list playlists: %w", err)
	}

	for _, pl := range playlists {
		if pl.Name == name {
			p.logger.Debug("resolved playlist", "name", name, "id", pl.ID)
			return pl, false, nil
		}
	}

	newPl, err := p.catalog.CreatePlaylist(ctx, name)
	if err != nil {
		return handle, false, err
	}
	p.logger.Info("created playlist", "name", name, "id", newPl.ID)
	return *newPl, true, nil
}

// Insert links track into the playlist.
//
// The revision is fetched immediately before every insert call. Extra attempts, when configured, are made only
// after a revision conflict.
func (p *PlaylistMutator) Insert(ctx context.Context, handle models.PlaylistHandle, track models.CatalogTrack) error {
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		var revision int
		revision, err = p.catalog.Revision(ctx, handle)
		if err != nil {
			return err
		}

		err = p.catalog.InsertTrack(ctx, services.InsertRequest{
			PlaylistID: handle.ID,
			OwnerID:    handle.OwnerID,
			TrackID:    track.ID,
			AlbumID:    track.AlbumID,
			Revision:   revision,
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrRevisionConflict) {
			break
		}
		p.logger.Warn("stale playlist revision", "track", track.ID, "revision", revision, "attempt", attempt)
	}
	return fmt.Errorf("%w: %w", shared.ErrInsertRejected, err)
}
