// package tasks builds a playlist of top tracks from a list of artist names.
//
// The core abstraction is PlaylistEngine, which aggregates track ids across artists and publishes them.
// Operations emit progress updates via channels for non-blocking status reporting to the CLI layer.
package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jriverox/tidal-top7/internal/models"
	"github.com/jriverox/tidal-top7/internal/services"
	"github.com/jriverox/tidal-top7/internal/shared"
)

// BuildResult contains all data from a playlist build.
type BuildResult struct {
	Playlist *models.PlaylistResult `json:"playlist"`
	Artists  []ArtistOutcome        `json:"artists"`
	Warnings []Warning              `json:"warnings,omitempty"`
}

// BuildEngine defines the playlist build operations.
type BuildEngine interface {
	// Aggregate resolves each name and collects the ordered, deduplicated track ids.
	Aggregate(ctx context.Context, names []string, progress chan<- ProgressUpdate) (*AggregateResult, error)

	// Run aggregates names and publishes the result as a new playlist.
	Run(ctx context.Context, names []string, spec models.PlaylistSpec, progress chan<- ProgressUpdate) (*BuildResult, error)
}

// PlaylistEngine implements BuildEngine against a single catalog session.
type PlaylistEngine struct {
	aggregator *Aggregator
	publisher  *Publisher
	logger     *log.Logger
}

// NewPlaylistEngine wires the normalizer, resolver, fetcher, aggregator and publisher for session.
// Capability detection happens once, here.
func NewPlaylistEngine(session services.Session, cfg *shared.Config, logger *log.Logger) *PlaylistEngine {
	if cfg == nil {
		cfg = shared.DefaultConfig()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	normalizer := NewNormalizer(cfg.Names)
	resolver := NewResolver(session, normalizer, cfg, logger)
	fetcher := NewFetcher(session, cfg, logger)

	logger.Debug("strategies selected", "resolve", resolver.Strategies())

	return &PlaylistEngine{
		aggregator: NewAggregator(normalizer, resolver, fetcher, cfg, logger),
		publisher:  NewPublisher(session, cfg, logger),
		logger:     logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *PlaylistEngine) Aggregate(ctx context.Context, names []string, progress chan<- ProgressUpdate) (*AggregateResult, error) {
	return e.aggregator.Aggregate(ctx, names, progress)
}

// Run builds the playlist. It fails with [shared.ErrNoTracks] before creating anything when no ids were found.
func (e *PlaylistEngine) Run(ctx context.Context, names []string, spec models.PlaylistSpec, progress chan<- ProgressUpdate) (*BuildResult, error) {
	if len(names) == 0 {
		return nil, shared.ErrNoArtists
	}

	agg, err := e.aggregator.Aggregate(ctx, names, progress)
	if err != nil {
		return nil, err
	}

	result := &BuildResult{Artists: agg.Artists, Warnings: agg.Warnings}
	if len(agg.TrackIDs) == 0 {
		return result, fmt.Errorf("%w: %d artists tried", shared.ErrNoTracks, len(names))
	}

	e.logger.Debug("aggregated", "artists", len(names), "tracks", len(agg.TrackIDs), "warnings", len(agg.Warnings))

	playlist, err := e.publisher.Publish(ctx, spec, agg.TrackIDs, progress)
	if err != nil {
		return result, err
	}
	result.Playlist = playlist

	return result, nil
}
