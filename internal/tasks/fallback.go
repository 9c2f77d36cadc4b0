package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/yms/internal/services"
	"github.com/desertthunder/yms/internal/shared"
	"github.com/gosimple/slug"
)

const defaultFetchAttempts = 5

// FetchCompletion is the single event an [Acquirer.Fetch] call delivers.
type FetchCompletion struct {
	SourceURL string
	Path      string // final local file path, empty on failure
	Attempts  int
	Err       error
}

// Acquirer fetches source audio for tracks the catalog could not link.
type Acquirer struct {
	source    services.Source
	outputDir string
	extension string
	attempts  int
	delay     time.Duration
	logger    *log.Logger
}

// NewAcquirer creates an acquirer writing into cfg.OutputDir.
func NewAcquirer(source services.Source, cfg shared.SourceConfig, logger *log.Logger) *Acquirer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	attempts := cfg.FetchAttempts
	if attempts < 1 {
		attempts = defaultFetchAttempts
	}
	ext := strings.TrimPrefix(cfg.Extension, ".")
	if ext == "" {
		ext = "m4a"
	}
	return &Acquirer{
		source:    source,
		outputDir: cfg.OutputDir,
		extension: ext,
		attempts:  attempts,
		delay:     cfg.RetryDelay.Duration,
		logger:    shared.WithLogger(logger, "component", "acquirer"),
	}
}

// LocalPath returns the file path a track titled title is fetched to.
func (a *Acquirer) LocalPath(title string) string {
	name := slug.Make(title)
	if name == "" {
		name = shared.GenerateID()
	}
	return filepath.Join(a.outputDir, name+"."+a.extension)
}

// Fetch starts fetching sourceURL and returns a channel that receives exactly one [FetchCompletion] before it is
// closed.
//
// Transient errors are retried; items reported as [shared.ErrSourceUnavailable] are not.
func (a *Acquirer) Fetch(ctx context.Context, sourceURL, title string) <-chan FetchCompletion {
	done := make(chan FetchCompletion, 1)
	go func() {
		defer close(done)
		done <- a.fetch(ctx, sourceURL, a.LocalPath(title))
	}()
	return done
}

func (a *Acquirer) fetch(ctx context.Context, sourceURL, dest string) FetchCompletion {
	completion := FetchCompletion{SourceURL: sourceURL}
	if a.source == nil {
		completion.Err = fmt.Errorf("%w: source not initialized", shared.ErrServiceUnavailable)
		return completion
	}

	for attempt := 1; attempt <= a.attempts; attempt++ {
		completion.Attempts = attempt

		path, err := a.source.Fetch(ctx, sourceURL, dest)
		if err == nil {
			completion.Path = path
			completion.Err = nil
			return completion
		}
		completion.Err = err

		if errors.Is(err, shared.ErrSourceUnavailable) || ctx.Err() != nil {
			break
		}
		a.logger.Warn("fetch failed", "url", sourceURL, "attempt", attempt, "of", a.attempts, "err", err)

		if attempt < a.attempts && a.delay > 0 {
			select {
			case <-ctx.Done():
				completion.Err = ctx.Err()
				return completion
			case <-time.After(a.delay):
			}
		}
	}

	if !errors.Is(completion.Err, shared.ErrSourceUnavailable) && !errors.Is(completion.Err, shared.ErrFetchFailed) {
		completion.Err = fmt.Errorf("%w: %w", shared.ErrFetchFailed, completion.Err)
	}
	return completion
}
