package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/yms/internal/models"
	"github.com/desertthunder/yms/internal/services"
	"github.com/desertthunder/yms/internal/shared"
)

const trackEntityType = "track"

// Matcher classifies the catalog's single best search result for a title.
type Matcher struct {
	catalog services.Catalog
}

// NewMatcher creates a Matcher over catalog.
func NewMatcher(catalog services.Catalog) *Matcher {
	return &Matcher{catalog: catalog}
}

// Match searches for cleanTitle and classifies the best hit.
//
// A failed search call is an error wrapping [shared.ErrSearchFailed]; an empty result is [models.NoMatch].
func (m *Matcher) Match(ctx context.Context, cleanTitle string) (models.MatchResult, error) {
	if m.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	hit, err := m.catalog.Search(ctx, cleanTitle)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSearchFailed, err)
	}
	return classifyHit(hit), nil
}

func classifyHit(hit *services.SearchHit) models.MatchResult {
	switch {
	case hit == nil:
		return models.NoMatch{}
	case hit.Type != trackEntityType:
		return models.NonTrackHit{Type: hit.Type}
	}

	track := models.CatalogTrack{ID: hit.ID, Title: hit.Title}
	if len(hit.AlbumIDs) > 0 {
		track.AlbumID = hit.AlbumIDs[0]
	}
	return track
}
