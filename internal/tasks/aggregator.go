package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jriverox/tidal-top7/internal/models"
	"github.com/jriverox/tidal-top7/internal/shared"
	"golang.org/x/time/rate"
)

// WarningKind identifies why an artist contributed no tracks.
type WarningKind string

const (
	WarnNotFound WarningKind = "not_found"
	WarnNoTracks WarningKind = "no_tracks"
)

// Warning is a non-fatal, per-artist problem reported to the user.
type Warning struct {
	Artist string      `json:"artist"`
	Kind   WarningKind `json:"kind"`
}

func (w Warning) String() string {
	switch w.Kind {
	case WarnNotFound:
		return fmt.Sprintf("Artist not found: %s", w.Artist)
	case WarnNoTracks:
		return fmt.Sprintf("No top tracks for: %s", w.Artist)
	default:
		return w.Artist
	}
}

// ArtistOutcome records what happened to one input name.
type ArtistOutcome struct {
	Query    models.ArtistQuery     `json:"query"`
	Artist   *models.ArtistIdentity `json:"artist,omitempty"`
	TrackIDs []models.TrackID       `json:"track_ids"`
}

// AggregateResult is the ordered, deduplicated id sequence plus per-artist details.
type AggregateResult struct {
	TrackIDs []models.TrackID `json:"track_ids"`
	Artists  []ArtistOutcome  `json:"artists"`
	Warnings []Warning        `json:"warnings,omitempty"`
}

// Aggregator drives resolution and fetching over an ordered list of names.
type Aggregator struct {
	normalizer *Normalizer
	resolver   *Resolver
	fetcher    *Fetcher
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewAggregator paces artists at one per cfg.Build.ArtistDelay. A zero delay disables pacing.
func NewAggregator(normalizer *Normalizer, resolver *Resolver, fetcher *Fetcher, cfg *shared.Config, logger *log.Logger) *Aggregator {
	limit := rate.Inf
	if cfg.Build.ArtistDelay > 0 {
		limit = rate.Every(cfg.Build.ArtistDelay)
	}

	return &Aggregator{
		normalizer: normalizer,
		resolver:   resolver,
		fetcher:    fetcher,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     shared.WithLogger(logger, "component", "aggregator"),
	}
}

// Aggregate resolves and fetches each name in order. Names that fail become warnings.
// The only error returned is context cancellation.
func (a *Aggregator) Aggregate(ctx context.Context, names []string, progress chan<- ProgressUpdate) (*AggregateResult, error) {
	result := &AggregateResult{TrackIDs: []models.TrackID{}}
	seen := make(map[models.TrackID]struct{})
	total := len(names)

	for i, name := range names {
		step := i + 1
		if err := a.limiter.Wait(ctx); err != nil {
			return result, err
		}

		query := a.normalizer.Query(name)
		outcome := ArtistOutcome{Query: query, TrackIDs: []models.TrackID{}}

		sendProgress(progress, resolveArtistUpdate(step, total, name))
		artist, err := a.resolver.ResolveQuery(ctx, query)
		if err != nil {
			if !errors.Is(err, shared.ErrArtistNotFound) {
				return result, err
			}
			a.warn(result, progress, step, total, Warning{Artist: name, Kind: WarnNotFound})
			result.Artists = append(result.Artists, outcome)
			continue
		}
		outcome.Artist = artist

		sendProgress(progress, fetchTracksUpdate(step, total, artist))
		ids, err := a.fetcher.Fetch(ctx, *artist)
		if err != nil {
			return result, err
		}
		outcome.TrackIDs = ids
		result.Artists = append(result.Artists, outcome)

		if len(ids) == 0 {
			a.warn(result, progress, step, total, Warning{Artist: name, Kind: WarnNoTracks})
			continue
		}

		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			result.TrackIDs = append(result.TrackIDs, id)
		}
		a.logger.Debug("artist done", "name", name, "artist", artist.Name, "id", artist.ID, "tracks", len(ids))
	}

	return result, nil
}

func (a *Aggregator) warn(result *AggregateResult, progress chan<- ProgressUpdate, step, total int, w Warning) {
	a.logger.Debug("artist skipped", "name", w.Artist, "kind", w.Kind)
	result.Warnings = append(result.Warnings, w)
	sendProgress(progress, warningUpdate(step, total, w))
}
