package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/yms/internal/models"
	"github.com/desertthunder/yms/internal/shared"
	"github.com/wader/goutubedl"
)

const defaultAudioFormat = "bestaudio[ext=m4a]/bestaudio"

// yt-dlp error fragments for items that will never download.
var unavailableMarkers = []string{
	"video unavailable",
	"private video",
	"this video is private",
	"has been removed",
	"members-only",
	"members only",
	"not available in your country",
	"copyright claim",
	"account associated with this video has been terminated",
	"sign in to confirm your age",
}

// YTDLP implements [Source] by driving the yt-dlp binary through goutubedl.
type YTDLP struct {
	format string
	logger *log.Logger
}

// NewYTDLP creates a source. An empty cfg.YTDLPPath keeps goutubedl's binary lookup.
func NewYTDLP(cfg shared.SourceConfig, logger *log.Logger) *YTDLP {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if cfg.YTDLPPath != "" {
		goutubedl.Path = cfg.YTDLPPath
	}
	format := cfg.Format
	if format == "" {
		format = defaultAudioFormat
	}
	return &YTDLP{format: format, logger: shared.WithLogger(logger, "service", "ytdlp")}
}

// ytdlpLogger adapts [log.Logger] to [goutubedl.Printer].
type ytdlpLogger struct {
	l *log.Logger
}

func (p ytdlpLogger) Print(v ...any) {
	p.l.Debug(strings.TrimSpace(fmt.Sprint(v...)))
}

// Extract lists the playlist entries inside window without downloading media.
//
// The listing is flat: private or deleted videos keep their position and fail later, at fetch time.
func (y *YTDLP) Extract(ctx context.Context, playlistURL string, window models.Window) ([]models.TrackDescriptor, error) {
	start, end := playlistRange(window)
	result, err := goutubedl.New(ctx, playlistURL, goutubedl.Options{
		Type:          goutubedl.TypePlaylist,
		PlaylistStart: start,
		PlaylistEnd:   end,
		FlatPlaylist:  true,
		DebugLog:      ytdlpLogger{y.logger},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrExtractFailed, err)
	}

	tracks := entriesToTracks(result.Info.Entries, window.Skip)
	y.logger.Info("extracted playlist", "title", result.Info.Title, "entries", len(tracks))
	return tracks, nil
}

// Fetch downloads mediaURL with the configured format filter to destPath.
//
// The stream is written to destPath+".part" and renamed on success.
func (y *YTDLP) Fetch(ctx context.Context, mediaURL, destPath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}

	result, err := goutubedl.New(ctx, mediaURL, goutubedl.Options{
		Type:     goutubedl.TypeSingle,
		DebugLog: ytdlpLogger{y.logger},
	})
	if err != nil {
		return "", classifyFetchError(err)
	}

	download, err := result.Download(ctx, y.format)
	if err != nil {
		return "", classifyFetchError(err)
	}
	defer download.Close()

	partPath := destPath + ".part"
	out, err := os.Create(partPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}

	n, copyErr := io.Copy(out, download)
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(partPath)
		return "", classifyFetchError(err)
	}
	if n == 0 {
		os.Remove(partPath)
		return "", fmt.Errorf("%w: empty stream for %s", shared.ErrFetchFailed, mediaURL)
	}

	if err := os.Rename(partPath, destPath); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}

	y.logger.Debug("fetched", "url", mediaURL, "path", destPath, "bytes", n)
	return destPath, nil
}

// playlistRange converts a window to yt-dlp's 1-based inclusive playlist bounds. Zero end means "to the end".
func playlistRange(window models.Window) (start, end uint) {
	start = uint(max(window.Skip, 0)) + 1
	if window.Count > 0 {
		end = start + uint(window.Count) - 1
	}
	return start, end
}

// entriesToTracks keeps extraction order; ordinals continue from skip.
func entriesToTracks(entries []goutubedl.Info, skip int) []models.TrackDescriptor {
	tracks := make([]models.TrackDescriptor, 0, len(entries))
	for i, e := range entries {
		tracks = append(tracks, models.TrackDescriptor{
			Ordinal:   skip + i + 1,
			Title:     e.Title,
			SourceURL: entryURL(e),
		})
	}
	return tracks
}

func entryURL(e goutubedl.Info) string {
	switch {
	case e.WebpageURL != "":
		return e.WebpageURL
	case strings.HasPrefix(e.URL, "http"):
		return e.URL
	case e.ID != "":
		return "https://www.youtube.com/watch?v=" + e.ID
	default:
		return e.URL
	}
}

// classifyFetchError marks permanently unavailable items with [shared.ErrSourceUnavailable].
func classifyFetchError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range unavailableMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", shared.ErrSourceUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
}
