package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ArtistQuery is a raw artist name and the ordered variants derived from it.
//
// Variants always begin with the trimmed name and never contain two entries that differ only by case.
type ArtistQuery struct {
	Raw      string   `json:"raw"`
	Variants []string `json:"variants"`
}

// ArtistIdentity is a resolved catalog artist.
type ArtistIdentity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TrackID is a catalog track identifier.
type TrackID int64

func (id TrackID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// UnmarshalJSON accepts both JSON numbers and numeric strings.
func (id *TrackID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	parsed, ok := ParseTrackID(v)
	if !ok {
		return fmt.Errorf("invalid track id %s", string(data))
	}
	*id = parsed
	return nil
}

// ParseTrackID converts an int-like value (number or numeric string) into a [TrackID].
//
// Returns false for zero, negative, fractional or non-numeric values.
func ParseTrackID(v any) (TrackID, bool) {
	switch n := v.(type) {
	case TrackID:
		return n, n > 0
	case int:
		return TrackID(n), n > 0
	case int64:
		return TrackID(n), n > 0
	case float64:
		if n <= 0 || n != math.Trunc(n) {
			return 0, false
		}
		return TrackID(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil || i <= 0 {
			return 0, false
		}
		return TrackID(i), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil || i <= 0 {
			return 0, false
		}
		return TrackID(i), true
	default:
		return 0, false
	}
}

// JoinTrackIDs renders ids as a comma separated list, the form the catalog expects in form bodies.
func JoinTrackIDs(ids []TrackID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

// Track is a catalog track as returned by any top-track call convention.
type Track struct {
	ID    TrackID `json:"id"`
	Title string  `json:"title"`
}

// PlaylistSpec describes the playlist to create.
type PlaylistSpec struct {
	Title       string
	Description string
	Public      bool
}

// Playlist identifies a created playlist.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ShareURL    string `json:"share_url,omitempty"`
	ListenURL   string `json:"listen_url,omitempty"`
}

// URL returns the share URL, falling back to the listen URL.
func (p Playlist) URL() string {
	if p.ShareURL != "" {
		return p.ShareURL
	}
	return p.ListenURL
}

// PlaylistResult is a created playlist plus the number of tracks submitted to it.
type PlaylistResult struct {
	Playlist
	Added int `json:"added"`
}
