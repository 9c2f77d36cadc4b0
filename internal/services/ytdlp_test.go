package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/desertthunder/yms/internal/models"
	"github.com/desertthunder/yms/internal/shared"
	"github.com/wader/goutubedl"
)

func TestPlaylistRange(t *testing.T) {
	tests := []struct {
		name      string
		window    models.Window
		wantStart uint
		wantEnd   uint
	}{
		{"whole playlist", models.Window{}, 1, 0},
		{"skip only", models.Window{Skip: 10}, 11, 0},
		{"count only", models.Window{Count: 5}, 1, 5},
		{"skip and count", models.Window{Skip: 2, Count: 3}, 3, 5},
		{"negative skip clamps", models.Window{Skip: -4, Count: 1}, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := playlistRange(tt.window)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("expected (%d, %d), got (%d, %d)", tt.wantStart, tt.wantEnd, start, end)
			}
		})
	}
}

func TestEntriesToTracks(t *testing.T) {
	entries := []goutubedl.Info{
		{ID: "aaa", Title: "Song A (Live)", URL: "https://www.youtube.com/watch?v=aaa"},
		{ID: "bbb", Title: "Song B", WebpageURL: "https://youtu.be/bbb"},
		{ID: "ccc", Title: "Song C", URL: "ccc"},
	}

	tracks := entriesToTracks(entries, 4)
	if len(tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(tracks))
	}

	want := []models.TrackDescriptor{
		{Ordinal: 5, Title: "Song A (Live)", SourceURL: "https://www.youtube.com/watch?v=aaa"},
		{Ordinal: 6, Title: "Song B", SourceURL: "https://youtu.be/bbb"},
		{Ordinal: 7, Title: "Song C", SourceURL: "https://www.youtube.com/watch?v=ccc"},
	}
	for i := range want {
		if tracks[i] != want[i] {
			t.Errorf("track %d: expected %+v, got %+v", i, want[i], tracks[i])
		}
	}
}

func TestClassifyFetchError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"private", fmt.Errorf("ERROR: [youtube] x: Private video. Sign in"), shared.ErrSourceUnavailable},
		{"removed", fmt.Errorf("ERROR: Video unavailable. This video has been removed by the uploader"), shared.ErrSourceUnavailable},
		{"fragment", fmt.Errorf("ERROR: fragment 3 not found, unable to continue"), shared.ErrFetchFailed},
		{"network", fmt.Errorf("connection reset by peer"), shared.ErrFetchFailed},
		{"cancelled", context.Canceled, context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyFetchError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNewYTDLP(t *testing.T) {
	t.Run("defaults format", func(t *testing.T) {
		if src := NewYTDLP(shared.SourceConfig{}, nil); src.format != defaultAudioFormat {
			t.Errorf("expected %s, got %s", defaultAudioFormat, src.format)
		}
	})

	t.Run("keeps configured format", func(t *testing.T) {
		if src := NewYTDLP(shared.SourceConfig{Format: "ba[ext=m4a]"}, nil); src.format != "ba[ext=m4a]" {
			t.Errorf("expected ba[ext=m4a], got %s", src.format)
		}
	})
}

// fakeYTDLP installs body as a shell script standing in for the yt-dlp binary.
// The script finds the path of its argv file in $YMS_FAKE_ARGS; that path is returned.
func fakeYTDLP(t *testing.T, body string) (*YTDLP, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake yt-dlp is a shell script")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "yt-dlp")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("failed to write fake yt-dlp: %v", err)
	}
	argsPath := filepath.Join(dir, "args")
	t.Setenv("YMS_FAKE_ARGS", argsPath)

	orig := goutubedl.Path
	t.Cleanup(func() { goutubedl.Path = orig })

	return NewYTDLP(shared.SourceConfig{YTDLPPath: script}, nil), argsPath
}

func readArgs(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read argv file: %v", err)
	}
	return string(content)
}

const fakePlaylist = `printf '%s\n' "$@" > "$YMS_FAKE_ARGS"
cat > /dev/null
printf '%s' '{"_type":"playlist","id":"PL1","title":"Mix","entries":[
{"_type":"url","id":"bbb","title":"Song B","url":"https://www.youtube.com/watch?v=bbb"},
{"_type":"url","id":"ccc","title":"[Private video]","url":"https://www.youtube.com/watch?v=ccc"}]}'
`

// fakeMedia answers the metadata call for one video, failing with infoErr when it is set, and streams
// stream on download.
func fakeMedia(stream, infoErr string) string {
	return `case " $* " in
*" --dump-single-json "*)
  cat > /dev/null
  if [ -n "` + infoErr + `" ]; then
    echo "ERROR: ` + infoErr + `" >&2
    exit 1
  fi
  printf '%s' '{"_type":"video","id":"abc","title":"Song"}'
  ;;
*)
  printf '%s\n' "$@" > "$YMS_FAKE_ARGS"
  echo "[download] Destination: -" >&2
  printf '%s' '` + stream + `'
  ;;
esac
`
}

func TestYTDLP_Extract(t *testing.T) {
	const playlistURL = "https://www.youtube.com/playlist?list=PL1"

	t.Run("window maps to a flat playlist range", func(t *testing.T) {
		src, argsPath := fakeYTDLP(t, fakePlaylist)

		tracks, err := src.Extract(context.Background(), playlistURL, models.Window{Skip: 1, Count: 2})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		args := readArgs(t, argsPath)
		for _, want := range []string{"--flat-playlist\n", "--yes-playlist\n", "--playlist-start\n2\n", "--playlist-end\n3\n"} {
			if !strings.Contains(args, want) {
				t.Errorf("expected argv to contain %q, got:\n%s", want, args)
			}
		}

		want := []models.TrackDescriptor{
			{Ordinal: 2, Title: "Song B", SourceURL: "https://www.youtube.com/watch?v=bbb"},
			{Ordinal: 3, Title: "[Private video]", SourceURL: "https://www.youtube.com/watch?v=ccc"},
		}
		if len(tracks) != len(want) {
			t.Fatalf("expected %d tracks, got %+v", len(want), tracks)
		}
		for i := range want {
			if tracks[i] != want[i] {
				t.Errorf("track %d: expected %+v, got %+v", i, want[i], tracks[i])
			}
		}
	})

	t.Run("whole playlist has no end bound", func(t *testing.T) {
		src, argsPath := fakeYTDLP(t, fakePlaylist)

		if _, err := src.Extract(context.Background(), playlistURL, models.Window{}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if args := readArgs(t, argsPath); strings.Contains(args, "--playlist-end") {
			t.Errorf("expected no --playlist-end, got:\n%s", args)
		}
	})

	t.Run("failure is an extraction error", func(t *testing.T) {
		src, _ := fakeYTDLP(t, "cat > /dev/null\necho 'ERROR: [youtube:tab] PL1: The playlist does not exist' >&2\nexit 1\n")

		_, err := src.Extract(context.Background(), playlistURL, models.Window{})
		if !errors.Is(err, shared.ErrExtractFailed) {
			t.Errorf("expected ErrExtractFailed, got %v", err)
		}
	})
}

func TestYTDLP_Fetch(t *testing.T) {
	const mediaURL = "https://www.youtube.com/watch?v=abc"

	t.Run("stream is renamed from the partial file", func(t *testing.T) {
		src, argsPath := fakeYTDLP(t, fakeMedia("AUDIO", ""))
		dest := filepath.Join(t.TempDir(), "audio", "001.m4a")

		path, err := src.Fetch(context.Background(), mediaURL, dest)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if path != dest {
			t.Errorf("expected %s, got %s", dest, path)
		}
		if content, _ := os.ReadFile(dest); string(content) != "AUDIO" {
			t.Errorf("expected AUDIO, got %q", content)
		}
		if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
			t.Errorf("partial file should be gone, stat returned %v", err)
		}
		if args := readArgs(t, argsPath); !strings.Contains(args, "-f\n"+defaultAudioFormat+"\n") {
			t.Errorf("expected format filter in argv, got:\n%s", args)
		}
	})

	t.Run("empty stream", func(t *testing.T) {
		src, _ := fakeYTDLP(t, fakeMedia("", ""))
		dest := filepath.Join(t.TempDir(), "001.m4a")

		_, err := src.Fetch(context.Background(), mediaURL, dest)
		if !errors.Is(err, shared.ErrFetchFailed) {
			t.Fatalf("expected ErrFetchFailed, got %v", err)
		}
		for _, p := range []string{dest, dest + ".part"} {
			if _, err := os.Stat(p); !os.IsNotExist(err) {
				t.Errorf("%s should not exist, stat returned %v", p, err)
			}
		}
	})

	t.Run("unavailable video", func(t *testing.T) {
		src, _ := fakeYTDLP(t, fakeMedia("AUDIO", "[youtube] abc: Video unavailable"))

		_, err := src.Fetch(context.Background(), mediaURL, filepath.Join(t.TempDir(), "001.m4a"))
		if !errors.Is(err, shared.ErrSourceUnavailable) {
			t.Errorf("expected ErrSourceUnavailable, got %v", err)
		}
	})
}
