// Package models defines the domain values passed between the tidal-top7 components.
//
// Values flow in one direction through a build:
//
//   - [ArtistQuery] : a raw artist name plus the spellings to try against the catalog
//   - [ArtistIdentity] : the catalog artist a query resolved to
//   - [Track] / [TrackID] : top tracks fetched for an identity
//   - [PlaylistSpec] : title, description and visibility for the playlist to create
//   - [Playlist] / [PlaylistResult] : the created playlist and how many tracks were added
//
// None of these values are mutated after construction.
package models
