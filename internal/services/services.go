// package services defines the catalog session capabilities used to build playlists
//
// TIDAL (v1, v2 and openapi surfaces)
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jriverox/tidal-top7/internal/models"
)

const (
	shareURLFormat  = "https://tidal.com/browse/playlist/%s"
	listenURLFormat = "https://listen.tidal.com/playlist/%s"
)

// RawRequest describes a request dispatched directly against the catalog API.
//
// Path is relative to the session's base URL. At most one of Form and JSON is sent as the body.
type RawRequest struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	JSON   any
	Header http.Header
}

// Session is the authenticated catalog session every build depends on.
//
// Request is the raw dispatch path the compatibility fallbacks use when no typed capability applies.
type Session interface {
	// CountryCode returns the session's region code as reported by the service, possibly empty.
	CountryCode() string

	// UserID returns the authenticated user's id, possibly empty.
	UserID() string

	// Request dispatches req and decodes the JSON response body into a map.
	Request(ctx context.Context, req RawRequest) (map[string]any, error)
}

// ArtistSearcher is a structured catalog search restricted to artists.
type ArtistSearcher interface {
	SearchArtists(ctx context.Context, query string, limit int) ([]models.ArtistIdentity, error)
}

// SearchResult holds the typed results of a multi-type catalog search.
type SearchResult struct {
	Artists []models.ArtistIdentity
	Tracks  []models.Track
}

// CatalogSearcher is the generic search call convention, filtered by entity types.
type CatalogSearcher interface {
	Search(ctx context.Context, query string, types []string, limit int) (*SearchResult, error)
}

// TopTracker returns an artist's top tracks with a limit.
type TopTracker interface {
	TopTracks(ctx context.Context, artistID string, limit int) ([]models.Track, error)
}

// TopTracksGetter is the alternate top tracks call convention.
type TopTracksGetter interface {
	GetTopTracks(ctx context.Context, artistID string, limit int) ([]models.Track, error)
}

// ArtistTopTracker is the session-scoped top tracks lookup, without a limit.
type ArtistTopTracker interface {
	ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error)
}

// TrackLister lists an artist's tracks in the given order.
type TrackLister interface {
	ArtistTracks(ctx context.Context, artistID string, limit int, order string) ([]models.Track, error)
}

// PlaylistHandle is a created playlist.
type PlaylistHandle interface {
	Playlist() models.Playlist
}

// BulkAdder is implemented by playlist handles that can add tracks themselves.
type BulkAdder interface {
	Add(ctx context.Context, ids []models.TrackID) error
}

// PlaylistCreator creates a playlist from a title and description.
type PlaylistCreator interface {
	CreatePlaylist(ctx context.Context, title, description string) (PlaylistHandle, error)
}

// VisibilityPlaylistCreator creates a playlist with an explicit visibility.
type VisibilityPlaylistCreator interface {
	CreatePlaylistWithVisibility(ctx context.Context, title, description string, public bool) (PlaylistHandle, error)
}

// PlaylistParser turns a raw playlist response into a handle.
type PlaylistParser interface {
	ParsePlaylist(data map[string]any) (PlaylistHandle, error)
}

// StaticPlaylist is a minimal handle built from a playlist id. It cannot add tracks on its own.
type StaticPlaylist struct {
	info models.Playlist
}

// NewStaticPlaylist builds a minimal handle for the playlist with the given id.
func NewStaticPlaylist(id, name string) StaticPlaylist {
	share, listen := PlaylistURLs(id)
	return StaticPlaylist{info: models.Playlist{ID: id, Name: name, ShareURL: share, ListenURL: listen}}
}

func (p StaticPlaylist) Playlist() models.Playlist {
	return p.info
}

// PlaylistURLs returns the share and listen URLs for a playlist id.
func PlaylistURLs(id string) (share, listen string) {
	if id == "" {
		return "", ""
	}
	return fmt.Sprintf(shareURLFormat, id), fmt.Sprintf(listenURLFormat, id)
}

// SafeCountryCode returns the session's country code when it is exactly two letters, and "US" otherwise.
func SafeCountryCode(s Session) string {
	cc := s.CountryCode()
	if len(cc) != 2 {
		return "US"
	}
	for _, r := range cc {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return "US"
		}
	}
	return cc
}
