package tasks

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jriverox/tidal-top7/internal/models"
	"github.com/jriverox/tidal-top7/internal/services"
	"github.com/jriverox/tidal-top7/internal/shared"
)

// rawSession implements only the base [services.Session].
type rawSession struct {
	mu       sync.Mutex
	country  string
	user     string
	requests []services.RawRequest
	respond  func(req services.RawRequest) (map[string]any, error)
}

func (s *rawSession) CountryCode() string { return s.country }
func (s *rawSession) UserID() string      { return s.user }

func (s *rawSession) Request(ctx context.Context, req services.RawRequest) (map[string]any, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.respond == nil {
		return nil, shared.ErrAPIRequest
	}
	return s.respond(req)
}

func (s *rawSession) requestsTo(prefix string) []services.RawRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []services.RawRequest
	for _, r := range s.requests {
		if strings.HasPrefix(r.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

// catalogSession implements every capability. Unset funcs fail with [shared.ErrUnsupported].
type catalogSession struct {
	rawSession

	searchArtists   func(query string) ([]models.ArtistIdentity, error)
	search          func(query string, types []string) (*services.SearchResult, error)
	topTracks       func(id string, limit int) ([]models.Track, error)
	getTopTracks    func(id string, limit int) ([]models.Track, error)
	artistTopTracks func(id string) ([]models.Track, error)
	artistTracks    func(id string, limit int, order string) ([]models.Track, error)
	create          func(title, desc string) (services.PlaylistHandle, error)
	createVisible   func(title, desc string, public bool) (services.PlaylistHandle, error)
	parse           func(data map[string]any) (services.PlaylistHandle, error)

	calls []string
}

func (s *catalogSession) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *catalogSession) SearchArtists(ctx context.Context, query string, limit int) ([]models.ArtistIdentity, error) {
	s.record("search_artists:" + query)
	if s.searchArtists == nil {
		return nil, shared.ErrUnsupported
	}
	return s.searchArtists(query)
}

func (s *catalogSession) Search(ctx context.Context, query string, types []string, limit int) (*services.SearchResult, error) {
	s.record("catalog_search:" + query)
	if s.search == nil {
		return nil, shared.ErrUnsupported
	}
	return s.search(query, types)
}

func (s *catalogSession) TopTracks(ctx context.Context, id string, limit int) ([]models.Track, error) {
	s.record("top_tracks:" + id)
	if s.topTracks == nil {
		return nil, shared.ErrUnsupported
	}
	return s.topTracks(id, limit)
}

func (s *catalogSession) GetTopTracks(ctx context.Context, id string, limit int) ([]models.Track, error) {
	s.record("get_top_tracks:" + id)
	if s.getTopTracks == nil {
		return nil, shared.ErrUnsupported
	}
	return s.getTopTracks(id, limit)
}

func (s *catalogSession) ArtistTopTracks(ctx context.Context, id string) ([]models.Track, error) {
	s.record("artist_top_tracks:" + id)
	if s.artistTopTracks == nil {
		return nil, shared.ErrUnsupported
	}
	return s.artistTopTracks(id)
}

func (s *catalogSession) ArtistTracks(ctx context.Context, id string, limit int, order string) ([]models.Track, error) {
	s.record("artist_tracks:" + id)
	if s.artistTracks == nil {
		return nil, shared.ErrUnsupported
	}
	return s.artistTracks(id, limit, order)
}

func (s *catalogSession) CreatePlaylist(ctx context.Context, title, desc string) (services.PlaylistHandle, error) {
	s.record("create_playlist")
	if s.create == nil {
		return nil, shared.ErrUnsupported
	}
	return s.create(title, desc)
}

func (s *catalogSession) CreatePlaylistWithVisibility(ctx context.Context, title, desc string, public bool) (services.PlaylistHandle, error) {
	s.record("create_playlist_with_visibility")
	if s.createVisible == nil {
		return nil, shared.ErrUnsupported
	}
	return s.createVisible(title, desc, public)
}

func (s *catalogSession) ParsePlaylist(data map[string]any) (services.PlaylistHandle, error) {
	s.record("parse_playlist")
	if s.parse == nil {
		return nil, shared.ErrUnsupported
	}
	return s.parse(data)
}

func (s *catalogSession) callsWithPrefix(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// bulkPlaylist is a handle that records the batches added to it.
type bulkPlaylist struct {
	info    models.Playlist
	batches [][]models.TrackID
	err     error
}

func (p *bulkPlaylist) Playlist() models.Playlist { return p.info }

func (p *bulkPlaylist) Add(ctx context.Context, ids []models.TrackID) error {
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, append([]models.TrackID(nil), ids...))
	return nil
}

func tracksOf(ids ...int64) []models.Track {
	tracks := make([]models.Track, len(ids))
	for i, id := range ids {
		tracks[i] = models.Track{ID: models.TrackID(id)}
	}
	return tracks
}

func idsOf(ids ...int64) []models.TrackID {
	out := make([]models.TrackID, len(ids))
	for i, id := range ids {
		out[i] = models.TrackID(id)
	}
	return out
}

func testConfig() *shared.Config {
	cfg := shared.DefaultConfig()
	cfg.Build.ArtistDelay = 0
	return cfg
}

func testLogger() *log.Logger {
	return shared.NewLogger(io.Discard)
}
