package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// API and service errors
	ErrAPIRequest  = fmt.Errorf("API request failed")
	ErrUnsupported = fmt.Errorf("call convention not supported by session")

	// Build errors
	ErrArtistNotFound  = fmt.Errorf("artist not found")
	ErrNoTopTracks     = fmt.Errorf("no top tracks")
	ErrNoTracks        = fmt.Errorf("no tracks resolved for any artist")
	ErrChainExhausted  = fmt.Errorf("all strategies failed")
	ErrPlaylistCreate  = fmt.Errorf("playlist creation failed")
	ErrTrackAdd        = fmt.Errorf("adding tracks failed")
	ErrMissingPlaylist = fmt.Errorf("playlist has no id")

	// Input validation errors
	ErrNoArtists = fmt.Errorf("no artist names supplied")
)
