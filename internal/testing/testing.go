// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/yms/internal/models"
	"github.com/desertthunder/yms/internal/services"
)

// MockCatalog is a test double for [services.Catalog].
//
// Revision returns an increasing value on every call so tests can check which revision an insert used.
type MockCatalog struct {
	mu sync.Mutex

	Hits        map[string]*services.SearchHit // keyed by query
	SearchErr   error
	Existing    []models.PlaylistHandle
	ListErr     error
	CreateErr   error
	RevisionErr error
	InsertErrs  []error // consumed one per insert call
	TargetErr   error
	TargetURL   string
	NoTrackID   bool // issue upload targets without a track id

	Queries         []string
	Created         []string
	RevisionsServed []int
	Inserts         []services.InsertRequest
	Targets         []models.UploadTarget

	revision int
}

func (m *MockCatalog) Name() string { return "mock" }

func (m *MockCatalog) Search(ctx context.Context, query string) (*services.SearchHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, query)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return m.Hits[query], nil
}

func (m *MockCatalog) Playlists(ctx context.Context) ([]models.PlaylistHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Existing, nil
}

func (m *MockCatalog) CreatePlaylist(ctx context.Context, name string) (*models.PlaylistHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.Created = append(m.Created, name)
	handle := models.PlaylistHandle{ID: fmt.Sprintf("%d", 1000+len(m.Created)), OwnerID: "42", Name: name}
	m.Existing = append(m.Existing, handle)
	return &handle, nil
}

func (m *MockCatalog) Revision(ctx context.Context, playlist models.PlaylistHandle) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RevisionErr != nil {
		return 0, m.RevisionErr
	}
	m.revision++
	m.RevisionsServed = append(m.RevisionsServed, m.revision)
	return m.revision, nil
}

func (m *MockCatalog) InsertTrack(ctx context.Context, req services.InsertRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inserts = append(m.Inserts, req)
	if len(m.InsertErrs) > 0 {
		err := m.InsertErrs[0]
		m.InsertErrs = m.InsertErrs[1:]
		return err
	}
	return nil
}

func (m *MockCatalog) UploadTarget(ctx context.Context, filename, playlistID string) (*models.UploadTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TargetErr != nil {
		return nil, m.TargetErr
	}
	target := models.UploadTarget{PostURL: m.TargetURL, Filename: filename, PlaylistID: playlistID}
	if !m.NoTrackID {
		target.TrackID = fmt.Sprintf("u-%d", len(m.Targets)+1)
	}
	m.Targets = append(m.Targets, target)
	return &target, nil
}

// MockSource is a test double for [services.Source].
//
// Fetch writes a small file at destPath unless an error is queued for the URL.
type MockSource struct {
	mu sync.Mutex

	Tracks     []models.TrackDescriptor
	ExtractErr error
	FetchErrs  map[string][]error // per URL, consumed one per attempt

	Windows []models.Window
	Fetches []string
}

func (m *MockSource) Extract(ctx context.Context, playlistURL string, window models.Window) ([]models.TrackDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Windows = append(m.Windows, window)
	if m.ExtractErr != nil {
		return nil, m.ExtractErr
	}
	return m.Tracks, nil
}

func (m *MockSource) Fetch(ctx context.Context, mediaURL, destPath string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fetches = append(m.Fetches, mediaURL)

	if errs := m.FetchErrs[mediaURL]; len(errs) > 0 {
		m.FetchErrs[mediaURL] = errs[1:]
		return "", errs[0]
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(destPath, []byte("audio:"+mediaURL), 0644); err != nil {
		return "", err
	}
	return destPath, nil
}

// FetchCount returns how many times url was fetched.
func (m *MockSource) FetchCount(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.Fetches {
		if u == url {
			n++
		}
	}
	return n
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
