// Package services defines the catalog [Session] and its optional capability interfaces, and implements them for TIDAL.
//
// # Session and Capabilities
//
// Every build needs a [Session]: a country code, a user id, and a raw request dispatch path.
// Everything else is optional and expressed as a small interface:
//   - [ArtistSearcher], [CatalogSearcher] : artist lookup
//   - [TopTracker], [TopTracksGetter], [ArtistTopTracker], [TrackLister] : top track retrieval
//   - [PlaylistCreator], [VisibilityPlaylistCreator], [PlaylistParser] : playlist creation
//   - [BulkAdder] : implemented by playlist handles that can add tracks themselves
//
// Callers probe a session for these once, when they build their strategy chains, rather than per call.
//
// # TIDAL Implementation
//
// [TidalService] implements all of the above against three surfaces:
//   - v1 (api.tidal.com/v1) : search, top tracks, track listings, playlist creation and items
//   - v2 (api.tidal.com/v2) : collection folders, used to create playlists with a visibility flag
//   - openapi (openapi.tidal.com/v2) : JSON:API artist track relationships
//
// [TidalService.CheckSession] must be called first; it records the user id and country code.
// The countryCode query parameter is added to every request that does not set one.
//
// # Authentication
//
// [Authenticator] runs the OAuth2 device flow against auth.tidal.com.
// The resulting token is wrapped in an [oauth2.TokenSource] so expired access tokens are refreshed transparently.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : 401 responses or a session without a user
//   - [shared.ErrAPIRequest] : transport failures and other non-2xx responses
//   - [shared.ErrMissingPlaylist] : playlist responses without a uuid
//   - [shared.ErrAuthFailed] : device flow failures
package services
