package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jriverox/tidal-top7/internal/models"
	"github.com/jriverox/tidal-top7/internal/services"
	"github.com/jriverox/tidal-top7/internal/shared"
)

const (
	defaultTopN      = 7
	popularityOrder  = "POPULARITY"
	artistTrackLimit = 50
)

// Fetcher retrieves an artist's most popular track ids.
type Fetcher struct {
	chainFor func(artist models.ArtistIdentity) *chain[[]models.TrackID]
	topN     int
	logger   *log.Logger
}

// NewFetcher selects the top track strategies session supports, in priority order:
// limited top tracks, the alternate top tracks call, unlimited top tracks, then the artist's tracks by popularity.
func NewFetcher(session services.Session, cfg *shared.Config, logger *log.Logger) *Fetcher {
	f := &Fetcher{
		topN:   cfg.Build.TopN,
		logger: shared.WithLogger(logger, "component", "fetcher"),
	}
	if f.topN <= 0 {
		f.topN = defaultTopN
	}

	type trackStrategy struct {
		name  string
		fetch func(ctx context.Context, id string) ([]models.Track, error)
	}
	var strategies []trackStrategy

	if s, ok := session.(services.TopTracker); ok {
		strategies = append(strategies, trackStrategy{"top_tracks", func(ctx context.Context, id string) ([]models.Track, error) {
			return s.TopTracks(ctx, id, f.topN)
		}})
	}
	if s, ok := session.(services.TopTracksGetter); ok {
		strategies = append(strategies, trackStrategy{"get_top_tracks", func(ctx context.Context, id string) ([]models.Track, error) {
			return s.GetTopTracks(ctx, id, f.topN)
		}})
	}
	if s, ok := session.(services.ArtistTopTracker); ok {
		strategies = append(strategies, trackStrategy{"artist_top_tracks", s.ArtistTopTracks})
	}
	if s, ok := session.(services.TrackLister); ok {
		strategies = append(strategies, trackStrategy{"artist_tracks", func(ctx context.Context, id string) ([]models.Track, error) {
			return s.ArtistTracks(ctx, id, artistTrackLimit, popularityOrder)
		}})
	}

	f.chainFor = func(artist models.ArtistIdentity) *chain[[]models.TrackID] {
		c := newChain[[]models.TrackID]("top tracks "+artist.Name, f.logger)
		for _, s := range strategies {
			c.add(s.name, func(ctx context.Context) ([]models.TrackID, error) {
				tracks, err := s.fetch(ctx, artist.ID)
				if err != nil {
					return nil, err
				}
				ids := f.collect(tracks)
				f.logger.Debug("fetched", "strategy", s.name, "artist", artist.Name, "tracks", len(tracks), "ids", len(ids))
				if len(ids) == 0 {
					return nil, fmt.Errorf("%w: %s returned no ids", shared.ErrNoTopTracks, s.name)
				}
				return ids, nil
			})
		}
		return c
	}

	return f
}

// Fetch returns at most the configured number of distinct ids, possibly none.
// Strategy errors are logged and never returned; only context cancellation is.
func (f *Fetcher) Fetch(ctx context.Context, artist models.ArtistIdentity) ([]models.TrackID, error) {
	ids, err := f.chainFor(artist).run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, nil
	}
	return ids, nil
}

// collect keeps valid, distinct ids in order and stops at topN.
func (f *Fetcher) collect(tracks []models.Track) []models.TrackID {
	ids := make([]models.TrackID, 0, f.topN)
	seen := make(map[models.TrackID]struct{}, f.topN)
	for _, t := range tracks {
		if t.ID <= 0 {
			continue
		}
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		ids = append(ids, t.ID)
		if len(ids) == f.topN {
			break
		}
	}
	return ids
}
