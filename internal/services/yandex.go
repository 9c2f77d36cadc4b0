// Yandex Music API [Catalog] implementation
//
// Endpoints follow the public mobile API used by the official clients (api.music.yandex.net).
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/yms/internal/models"
	"github.com/desertthunder/yms/internal/shared"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultYandexAPIURL    = "https://api.music.yandex.net"
	defaultYandexUploadURL = "https://music.yandex.ru/handlers/ugc-upload.jsx"
	yandexRequestTimeout   = 30 * time.Second
	wrongRevisionError     = "wrong-revision"
)

// YandexMusic implements [Catalog] for Yandex Music.
type YandexMusic struct {
	apiURL    string
	uploadURL string
	api       *http.Client
	uploads   *http.Client
	limiter   *rate.Limiter
	logger    *log.Logger
	uid       string
}

// NewYandexMusic creates a client authenticated with cfg.Token.
//
// base is the underlying transport and defaults to [http.DefaultTransport].
func NewYandexMusic(cfg shared.DestinationConfig, logger *log.Logger, base http.RoundTripper) (*YandexMusic, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("%w: destination token is empty", shared.ErrMissingCredentials)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultYandexAPIURL
	}
	if cfg.UploadURL == "" {
		cfg.UploadURL = defaultYandexUploadURL
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &YandexMusic{
		apiURL:    strings.TrimRight(cfg.APIURL, "/"),
		uploadURL: cfg.UploadURL,
		api:       authorizedClient(cfg.Token, "OAuth", base),
		uploads:   authorizedClient(cfg.Token, "Bearer", base),
		limiter:   rate.NewLimiter(limit, 1),
		logger:    shared.WithLogger(logger, "service", "yandex"),
	}, nil
}

// authorizedClient returns a client whose requests carry "Authorization: <scheme> <token>".
func authorizedClient(token, scheme string, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: scheme})
	return &http.Client{
		Transport: &oauth2.Transport{Source: src, Base: base},
		Timeout:   yandexRequestTimeout,
	}
}

// Name returns the service name.
func (y *YandexMusic) Name() string {
	return "Yandex Music"
}

func (y *YandexMusic) doRequest(ctx context.Context, client *http.Client, method, rawURL string, form url.Values) (gjson.Result, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read response: %w", err)
	}

	y.logger.Debug("catalog response", "method", method, "url", req.URL.Path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		name := gjson.GetBytes(data, "error.name").String()
		if resp.StatusCode == http.StatusPreconditionFailed || name == wrongRevisionError {
			return gjson.Result{}, fmt.Errorf("%w: status %d", shared.ErrRevisionConflict, resp.StatusCode)
		}
		if msg := gjson.GetBytes(data, "error.message").String(); msg != "" {
			return gjson.Result{}, fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, msg)
		}
		return gjson.Result{}, fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("%w: response is not JSON", shared.ErrAPIRequest)
	}
	return gjson.ParseBytes(data), nil
}

func (y *YandexMusic) call(ctx context.Context, method, endpoint string, form url.Values) (gjson.Result, error) {
	doc, err := y.doRequest(ctx, y.api, method, y.apiURL+endpoint, form)
	if err != nil {
		return doc, err
	}
	return doc.Get("result"), nil
}

// userID returns the account uid, fetched once via GET /account/status.
func (y *YandexMusic) userID(ctx context.Context) (string, error) {
	if y.uid != "" {
		return y.uid, nil
	}

	result, err := y.call(ctx, http.MethodGet, "/account/status", nil)
	if err != nil {
		return "", fmt.Errorf("failed to read account status: %w", err)
	}

	uid := result.Get("account.uid").String()
	if uid == "" {
		return "", fmt.Errorf("%w: account status has no uid", shared.ErrMissingCredentials)
	}
	y.uid = uid
	return uid, nil
}

// Search returns the best search result for query.
//
// Calls GET /search?text={query}&type=all.
func (y *YandexMusic) Search(ctx context.Context, query string) (*SearchHit, error) {
	params := url.Values{}
	params.Set("text", query)
	params.Set("type", "all")
	params.Set("page", "0")
	params.Set("nocorrect", "false")

	result, err := y.call(ctx, http.MethodGet, "/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", shared.ErrSearchFailed, query, err)
	}

	best := result.Get("best")
	if !best.Exists() || best.Type == gjson.Null || !best.Get("result").Exists() {
		return nil, nil
	}

	entity := best.Get("result")
	hit := &SearchHit{
		Type:  best.Get("type").String(),
		ID:    entity.Get("id").String(),
		Title: entity.Get("title").String(),
	}
	for _, album := range entity.Get("albums.#.id").Array() {
		hit.AlbumIDs = append(hit.AlbumIDs, album.String())
	}
	return hit, nil
}

func playlistHandle(p gjson.Result, fallbackOwner string) models.PlaylistHandle {
	owner := p.Get("owner.uid").String()
	if owner == "" {
		owner = p.Get("uid").String()
	}
	if owner == "" {
		owner = fallbackOwner
	}
	return models.PlaylistHandle{
		ID:      p.Get("kind").String(),
		OwnerID: owner,
		Name:    p.Get("title").String(),
	}
}

// Playlists lists the account's playlists.
//
// Calls GET /users/{uid}/playlists/list.
func (y *YandexMusic) Playlists(ctx context.Context) ([]models.PlaylistHandle, error) {
	uid, err := y.userID(ctx)
	if err != nil {
		return nil, err
	}

	result, err := y.call(ctx, http.MethodGet, fmt.Sprintf("/users/%s/playlists/list", url.PathEscape(uid)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	var playlists []models.PlaylistHandle
	for _, p := range result.Array() {
		playlists = append(playlists, playlistHandle(p, uid))
	}
	return playlists, nil
}

// CreatePlaylist creates a private playlist.
//
// Calls POST /users/{uid}/playlists/create.
func (y *YandexMusic) CreatePlaylist(ctx context.Context, name string) (*models.PlaylistHandle, error) {
	uid, err := y.userID(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("title", name)
	form.Set("visibility", "private")

	result, err := y.call(ctx, http.MethodPost, fmt.Sprintf("/users/%s/playlists/create", url.PathEscape(uid)), form)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist %q: %w", name, err)
	}

	handle := playlistHandle(result, uid)
	if handle.ID == "" {
		return nil, fmt.Errorf("%w: create response has no playlist kind", shared.ErrAPIRequest)
	}
	if handle.Name == "" {
		handle.Name = name
	}
	return &handle, nil
}

// Revision fetches the playlist's current revision.
//
// Calls GET /users/{owner}/playlists/{kind}.
func (y *YandexMusic) Revision(ctx context.Context, playlist models.PlaylistHandle) (int, error) {
	endpoint := fmt.Sprintf("/users/%s/playlists/%s", url.PathEscape(playlist.OwnerID), url.PathEscape(playlist.ID))
	result, err := y.call(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch playlist %s: %w", playlist.ID, err)
	}

	revision := result.Get("revision")
	if !revision.Exists() {
		return 0, fmt.Errorf("%w: %s has no revision", shared.ErrPlaylistNotFound, playlist.ID)
	}
	return int(revision.Int()), nil
}

type insertDiff struct {
	Op     string        `json:"op"`
	At     int           `json:"at"`
	Tracks []insertTrack `json:"tracks"`
}

type insertTrack struct {
	ID      string `json:"id"`
	AlbumID string `json:"albumId"`
}

// InsertTrack inserts a track at the top of the playlist.
//
// Calls POST /users/{owner}/playlists/{kind}/change-relative with an insert diff.
func (y *YandexMusic) InsertTrack(ctx context.Context, req InsertRequest) error {
	diff, err := json.Marshal([]insertDiff{{
		Op:     "insert",
		At:     0,
		Tracks: []insertTrack{{ID: req.TrackID, AlbumID: req.AlbumID}},
	}})
	if err != nil {
		return fmt.Errorf("failed to marshal diff: %w", err)
	}

	form := url.Values{}
	form.Set("diff", string(diff))
	form.Set("revision", fmt.Sprint(req.Revision))

	endpoint := fmt.Sprintf("/users/%s/playlists/%s/change-relative", url.PathEscape(req.OwnerID), url.PathEscape(req.PlaylistID))
	if _, err := y.call(ctx, http.MethodPost, endpoint, form); err != nil {
		return fmt.Errorf("failed to insert track %s: %w", req.TrackID, err)
	}
	return nil
}

// UploadTarget requests a single-use upload URL.
//
// Calls GET ugc-upload.jsx?kind={playlistID}&filename={filename} with a Bearer credential.
func (y *YandexMusic) UploadTarget(ctx context.Context, filename, playlistID string) (*models.UploadTarget, error) {
	target, err := url.Parse(y.uploadURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid upload url: %v", shared.ErrUploadTarget, err)
	}
	q := target.Query()
	q.Set("kind", playlistID)
	q.Set("filename", filename)
	target.RawQuery = q.Encode()

	doc, err := y.doRequest(ctx, y.uploads, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUploadTarget, err)
	}

	postURL := doc.Get("post-target").String()
	if postURL == "" {
		return nil, fmt.Errorf("%w: response has no post-target", shared.ErrUploadTarget)
	}

	return &models.UploadTarget{
		PostURL:    postURL,
		Filename:   filename,
		PlaylistID: playlistID,
		TrackID:    doc.Get("ugc-track-id").String(),
	}, nil
}
