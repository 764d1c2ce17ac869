// TIDAL API implementation of [Session] and the catalog capabilities
//
// Response shapes follow the v1 JSON API (api.tidal.com/v1), the v2 collection API and the JSON:API openapi surface.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jriverox/tidal-top7/internal/models"
	"github.com/jriverox/tidal-top7/internal/shared"
)

const (
	defaultTidalBaseURL    = "https://api.tidal.com/v1/"
	defaultTidalV2URL      = "https://api.tidal.com/v2/"
	defaultTidalOpenAPIURL = "https://openapi.tidal.com/v2/"
)

// catalogID decodes ids that the API returns either as numbers or strings.
type catalogID string

func (c *catalogID) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = catalogID(stringID(v))
	return nil
}

func stringID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

// trackID decodes a track id leniently. Ids that are not positive integers decode to 0 and are skipped later.
type trackID models.TrackID

func (t *trackID) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	id, _ := models.ParseTrackID(v)
	*t = trackID(id)
	return nil
}

// TidalArtist represents an artist in v1 responses.
type TidalArtist struct {
	ID   catalogID `json:"id"`
	Name string    `json:"name"`
}

func (a TidalArtist) identity() models.ArtistIdentity {
	return models.ArtistIdentity{ID: string(a.ID), Name: a.Name}
}

// TidalTrack represents a track in v1 responses.
type TidalTrack struct {
	ID    trackID `json:"id"`
	Title string  `json:"title"`
}

type artistPage struct {
	Items []TidalArtist `json:"items"`
}

type trackPage struct {
	Items []TidalTrack `json:"items"`
}

// TidalPlaylistData represents a playlist in v1 responses.
type TidalPlaylistData struct {
	UUID        string `json:"uuid"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type sessionInfo struct {
	SessionID   string    `json:"sessionId"`
	UserID      catalogID `json:"userId"`
	CountryCode string    `json:"countryCode"`
}

// TidalOptions configures a [TidalService].
type TidalOptions struct {
	BaseURL    string
	V2URL      string
	OpenAPIURL string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// TidalService implements [Session] and every catalog capability against the TIDAL APIs.
//
// The HTTP client is expected to attach credentials, as the [oauth2] client returned by [Authenticator.Client] does.
type TidalService struct {
	baseURL     string
	v2URL       string
	openAPIURL  string
	httpClient  *http.Client
	logger      *log.Logger
	countryCode string
	userID      string
	sessionID   string
}

// NewTidalService creates a new TIDAL service. Call [TidalService.CheckSession] before using it.
func NewTidalService(opts TidalOptions) *TidalService {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultTidalBaseURL
	}
	if opts.V2URL == "" {
		opts.V2URL = defaultTidalV2URL
	}
	if opts.OpenAPIURL == "" {
		opts.OpenAPIURL = defaultTidalOpenAPIURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &TidalService{
		baseURL:    withSlash(opts.BaseURL),
		v2URL:      withSlash(opts.V2URL),
		openAPIURL: withSlash(opts.OpenAPIURL),
		httpClient: opts.HTTPClient,
		logger:     shared.WithLogger(opts.Logger, "service", "tidal"),
	}
}

func withSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}

func (s *TidalService) CountryCode() string {
	return s.countryCode
}

func (s *TidalService) UserID() string {
	return s.userID
}

// CheckSession verifies the login by fetching the current session, recording the user id and country code.
func (s *TidalService) CheckSession(ctx context.Context) error {
	var info sessionInfo
	if _, err := s.do(ctx, s.baseURL, RawRequest{Method: http.MethodGet, Path: "sessions"}, &info); err != nil {
		return err
	}

	if info.UserID == "" {
		return fmt.Errorf("%w: session has no user", shared.ErrNotAuthenticated)
	}

	s.sessionID = info.SessionID
	s.userID = string(info.UserID)
	s.countryCode = info.CountryCode
	s.logger.Debug("session checked", "user", s.userID, "country", s.countryCode, "session", s.sessionID)
	return nil
}

// do performs a request against base and decodes the JSON response into result when it is non-nil.
func (s *TidalService) do(ctx context.Context, base string, r RawRequest, result any) (http.Header, error) {
	if r.Method == "" {
		r.Method = http.MethodGet
	}

	query := url.Values{}
	for k, v := range r.Query {
		query[k] = v
	}
	if query.Get("countryCode") == "" && s.countryCode != "" {
		query.Set("countryCode", s.countryCode)
	}

	apiURL := base + strings.TrimPrefix(r.Path, "/")
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case r.JSON != nil:
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, apiURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, values := range r.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	s.logger.Debug("request", "method", r.Method, "url", apiURL, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(resp.StatusCode, data)
	}

	if result != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.Header, nil
}

func apiError(status int, body []byte) error {
	sentinel := shared.ErrAPIRequest
	if status == http.StatusUnauthorized {
		sentinel = shared.ErrNotAuthenticated
	}

	var errResp struct {
		UserMessage string `json:"userMessage"`
		Detail      string `json:"detail"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		if msg := errResp.UserMessage + errResp.Detail; msg != "" {
			return fmt.Errorf("%w: tidal API error (status %d): %s", sentinel, status, msg)
		}
	}
	return fmt.Errorf("%w: tidal API error: status %d", sentinel, status)
}

// Request dispatches a raw request against the v1 base URL.
func (s *TidalService) Request(ctx context.Context, r RawRequest) (map[string]any, error) {
	result := map[string]any{}
	if _, err := s.do(ctx, s.baseURL, r, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// SearchArtists calls GET search/artists.
func (s *TidalService) SearchArtists(ctx context.Context, query string, limit int) ([]models.ArtistIdentity, error) {
	var page artistPage
	req := RawRequest{
		Path:  "search/artists",
		Query: url.Values{"query": {query}, "limit": {strconv.Itoa(limit)}},
	}
	if _, err := s.do(ctx, s.baseURL, req, &page); err != nil {
		return nil, err
	}

	artists := make([]models.ArtistIdentity, 0, len(page.Items))
	for _, a := range page.Items {
		artists = append(artists, a.identity())
	}
	return artists, nil
}

// Search calls GET search filtered by types (e.g. ARTISTS, TRACKS).
func (s *TidalService) Search(ctx context.Context, query string, types []string, limit int) (*SearchResult, error) {
	var resp struct {
		Artists artistPage `json:"artists"`
		Tracks  trackPage  `json:"tracks"`
	}
	req := RawRequest{
		Path: "search",
		Query: url.Values{
			"query": {query},
			"types": {strings.Join(types, ",")},
			"limit": {strconv.Itoa(limit)},
		},
	}
	if _, err := s.do(ctx, s.baseURL, req, &resp); err != nil {
		return nil, err
	}

	result := &SearchResult{}
	for _, a := range resp.Artists.Items {
		result.Artists = append(result.Artists, a.identity())
	}
	for _, t := range resp.Tracks.Items {
		result.Tracks = append(result.Tracks, t.track())
	}
	return result, nil
}

func (t TidalTrack) track() models.Track {
	return models.Track{ID: models.TrackID(t.ID), Title: t.Title}
}

func (s *TidalService) tracks(ctx context.Context, base string, req RawRequest) ([]models.Track, error) {
	var page trackPage
	if _, err := s.do(ctx, base, req, &page); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(page.Items))
	for _, t := range page.Items {
		tracks = append(tracks, t.track())
	}
	return tracks, nil
}

// TopTracks calls GET artists/{id}/toptracks with a limit.
func (s *TidalService) TopTracks(ctx context.Context, artistID string, limit int) ([]models.Track, error) {
	return s.tracks(ctx, s.baseURL, RawRequest{
		Path:  fmt.Sprintf("artists/%s/toptracks", url.PathEscape(artistID)),
		Query: url.Values{"limit": {strconv.Itoa(limit)}, "offset": {"0"}},
	})
}

// ArtistTopTracks calls GET artists/{id}/toptracks with the service's default page size.
func (s *TidalService) ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error) {
	return s.tracks(ctx, s.baseURL, RawRequest{
		Path: fmt.Sprintf("artists/%s/toptracks", url.PathEscape(artistID)),
	})
}

// ArtistTracks calls GET artists/{id}/tracks in the given order, most popular first for "POPULARITY".
func (s *TidalService) ArtistTracks(ctx context.Context, artistID string, limit int, order string) ([]models.Track, error) {
	return s.tracks(ctx, s.baseURL, RawRequest{
		Path: fmt.Sprintf("artists/%s/tracks", url.PathEscape(artistID)),
		Query: url.Values{
			"limit":          {strconv.Itoa(limit)},
			"order":          {order},
			"orderDirection": {"DESC"},
		},
	})
}

// GetTopTracks reads the artist's track relationship from the openapi surface, which lists tracks by popularity.
func (s *TidalService) GetTopTracks(ctx context.Context, artistID string, limit int) ([]models.Track, error) {
	var doc struct {
		Data []struct {
			ID   trackID `json:"id"`
			Type string  `json:"type"`
		} `json:"data"`
	}
	req := RawRequest{
		Path:   fmt.Sprintf("artists/%s/relationships/tracks", url.PathEscape(artistID)),
		Query:  url.Values{"collapseBy": {"FINGERPRINT"}},
		Header: http.Header{"Accept": {"application/vnd.api+json"}},
	}
	if _, err := s.do(ctx, s.openAPIURL, req, &doc); err != nil {
		return nil, err
	}

	var tracks []models.Track
	for _, d := range doc.Data {
		if d.ID <= 0 || (d.Type != "" && d.Type != "tracks") {
			continue
		}
		tracks = append(tracks, models.Track{ID: models.TrackID(d.ID)})
		if limit > 0 && len(tracks) >= limit {
			break
		}
	}
	return tracks, nil
}

// CreatePlaylist calls POST users/{uid}/playlists.
func (s *TidalService) CreatePlaylist(ctx context.Context, title, description string) (PlaylistHandle, error) {
	if s.userID == "" {
		return nil, fmt.Errorf("%w: no user id", shared.ErrNotAuthenticated)
	}

	var data TidalPlaylistData
	req := RawRequest{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("users/%s/playlists", url.PathEscape(s.userID)),
		Form:   url.Values{"title": {title}, "description": {description}},
	}
	if _, err := s.do(ctx, s.baseURL, req, &data); err != nil {
		return nil, err
	}
	if data.UUID == "" {
		return nil, fmt.Errorf("%w: create response has no uuid", shared.ErrMissingPlaylist)
	}

	return s.playlist(data), nil
}

// CreatePlaylistWithVisibility calls PUT my-collection/playlists/folders/create-playlist on the v2 API.
func (s *TidalService) CreatePlaylistWithVisibility(ctx context.Context, title, description string, public bool) (PlaylistHandle, error) {
	result := map[string]any{}
	req := RawRequest{
		Method: http.MethodPut,
		Path:   "my-collection/playlists/folders/create-playlist",
		Query: url.Values{
			"name":        {title},
			"description": {description},
			"folderId":    {"root"},
			"isPublic":    {strconv.FormatBool(public)},
		},
	}
	if _, err := s.do(ctx, s.v2URL, req, &result); err != nil {
		return nil, err
	}
	return s.ParsePlaylist(result)
}

// ParsePlaylist builds a playlist handle from a v1 playlist object or a v2 envelope ({"data": {...}}).
func (s *TidalService) ParsePlaylist(data map[string]any) (PlaylistHandle, error) {
	obj := data
	if inner, ok := data["data"].(map[string]any); ok {
		obj = inner
	}

	uuid, _ := obj["uuid"].(string)
	if uuid == "" {
		return nil, fmt.Errorf("%w: response has no uuid", shared.ErrMissingPlaylist)
	}

	title, _ := obj["title"].(string)
	if title == "" {
		title, _ = obj["name"].(string)
	}
	description, _ := obj["description"].(string)
	link, _ := obj["url"].(string)

	return s.playlist(TidalPlaylistData{UUID: uuid, Title: title, Description: description, URL: link}), nil
}

func (s *TidalService) playlist(data TidalPlaylistData) *TidalPlaylist {
	share, listen := PlaylistURLs(data.UUID)
	if data.URL != "" {
		share = data.URL
	}
	return &TidalPlaylist{
		service: s,
		info: models.Playlist{
			ID:          data.UUID,
			Name:        data.Title,
			Description: data.Description,
			ShareURL:    share,
			ListenURL:   listen,
		},
	}
}

// TidalPlaylist is a playlist handle that adds tracks through the playlist items endpoint.
type TidalPlaylist struct {
	service *TidalService
	info    models.Playlist
}

func (p *TidalPlaylist) Playlist() models.Playlist {
	return p.info
}

// Add appends ids to the playlist. The items endpoint requires the playlist's current ETag in If-None-Match.
func (p *TidalPlaylist) Add(ctx context.Context, ids []models.TrackID) error {
	if len(ids) == 0 {
		return nil
	}

	path := fmt.Sprintf("playlists/%s", url.PathEscape(p.info.ID))
	headers, err := p.service.do(ctx, p.service.baseURL, RawRequest{Path: path}, nil)
	if err != nil {
		return fmt.Errorf("failed to read playlist etag: %w", err)
	}
	etag := headers.Get("ETag")
	if etag == "" {
		return errors.New("playlist response has no etag")
	}

	req := RawRequest{
		Method: http.MethodPost,
		Path:   path + "/items",
		Form: url.Values{
			"trackIds":           {models.JoinTrackIDs(ids)},
			"onArtifactNotFound": {"SKIP"},
			"onDupes":            {"SKIP"},
		},
		Header: http.Header{"If-None-Match": {etag}},
	}
	if _, err := p.service.do(ctx, p.service.baseURL, req, nil); err != nil {
		return err
	}
	return nil
}
