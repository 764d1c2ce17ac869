package tasks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jriverox/tidal-top7/internal/models"
	"github.com/jriverox/tidal-top7/internal/services"
	"github.com/jriverox/tidal-top7/internal/shared"
)

const defaultBatchSize = 50

// Publisher creates the playlist and adds the aggregated tracks to it.
type Publisher struct {
	session   services.Session
	parser    services.PlaylistParser
	creators  []createStrategy
	batchSize int
	compat    shared.CompatConfig
	logger    *log.Logger
}

type createStrategy struct {
	name   string
	create func(ctx context.Context, spec models.PlaylistSpec) (services.PlaylistHandle, error)
}

// NewPublisher selects the creation strategies session supports, in priority order:
// the plain creator, the visibility-aware creator, then one raw request per configured path and encoding.
func NewPublisher(session services.Session, cfg *shared.Config, logger *log.Logger) *Publisher {
	p := &Publisher{
		session:   session,
		batchSize: cfg.Build.BatchSize,
		compat:    cfg.Compat,
		logger:    shared.WithLogger(logger, "component", "publisher"),
	}
	if p.batchSize <= 0 {
		p.batchSize = defaultBatchSize
	}
	if parser, ok := session.(services.PlaylistParser); ok {
		p.parser = parser
	}

	if c, ok := session.(services.PlaylistCreator); ok {
		p.creators = append(p.creators, createStrategy{"create_playlist", func(ctx context.Context, spec models.PlaylistSpec) (services.PlaylistHandle, error) {
			return c.CreatePlaylist(ctx, spec.Title, spec.Description)
		}})
	}
	if c, ok := session.(services.VisibilityPlaylistCreator); ok {
		p.creators = append(p.creators, createStrategy{"create_playlist_with_visibility", func(ctx context.Context, spec models.PlaylistSpec) (services.PlaylistHandle, error) {
			return c.CreatePlaylistWithVisibility(ctx, spec.Title, spec.Description, spec.Public)
		}})
	}
	for _, path := range cfg.Compat.CreatePaths {
		for _, encoding := range cfg.Compat.CreateEncodings {
			p.creators = append(p.creators, createStrategy{
				name: fmt.Sprintf("raw POST %s (%s)", path, encoding),
				create: func(ctx context.Context, spec models.PlaylistSpec) (services.PlaylistHandle, error) {
					return p.rawCreate(ctx, path, encoding, spec)
				},
			})
		}
	}

	return p
}

// Publish creates the playlist described by spec and adds ids in order.
func (p *Publisher) Publish(ctx context.Context, spec models.PlaylistSpec, ids []models.TrackID, progress chan<- ProgressUpdate) (*models.PlaylistResult, error) {
	sendProgress(progress, creatingPlaylistUpdate(spec.Title))
	handle, err := p.Create(ctx, spec)
	if err != nil {
		return nil, err
	}

	info := handle.Playlist()
	if info.Name == "" {
		info.Name = spec.Title
	}
	sendProgress(progress, createPlaylistUpdate(info))

	added, err := p.Add(ctx, handle, ids, progress)
	if err != nil {
		return nil, err
	}

	return &models.PlaylistResult{Playlist: info, Added: added}, nil
}

// Create runs the creation chain. Exhaustion yields [shared.ErrPlaylistCreate].
func (p *Publisher) Create(ctx context.Context, spec models.PlaylistSpec) (services.PlaylistHandle, error) {
	c := newChain[services.PlaylistHandle]("create playlist", p.logger)
	for _, s := range p.creators {
		c.add(s.name, func(ctx context.Context) (services.PlaylistHandle, error) {
			handle, err := s.create(ctx, spec)
			if err != nil {
				return nil, err
			}
			if handle == nil {
				return nil, fmt.Errorf("%w: no playlist returned", shared.ErrMissingPlaylist)
			}
			return handle, nil
		})
	}

	handle, err := c.run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrPlaylistCreate, err)
	}
	return handle, nil
}

func (p *Publisher) rawCreate(ctx context.Context, path, encoding string, spec models.PlaylistSpec) (services.PlaylistHandle, error) {
	if strings.Contains(path, "{user_id}") {
		uid := p.session.UserID()
		if uid == "" {
			return nil, fmt.Errorf("%w: no user id for %s", shared.ErrNotAuthenticated, path)
		}
		path = strings.ReplaceAll(path, "{user_id}", url.PathEscape(uid))
	}

	req := services.RawRequest{Method: http.MethodPost, Path: path}
	switch encoding {
	case "form":
		req.Form = url.Values{
			"title":       {spec.Title},
			"description": {spec.Description},
			"public":      {strconv.FormatBool(spec.Public)},
		}
	case "json":
		req.JSON = map[string]any{
			"title":       spec.Title,
			"description": spec.Description,
			"public":      spec.Public,
		}
	default:
		return nil, fmt.Errorf("%w: unknown create encoding %q", shared.ErrInvalidConfig, encoding)
	}

	data, err := p.session.Request(ctx, req)
	if err != nil {
		return nil, err
	}

	if p.parser != nil {
		handle, err := p.parser.ParsePlaylist(data)
		if err == nil && handle != nil {
			return handle, nil
		}
		p.logger.Debug("parse playlist failed", "path", path, "err", err)
	}

	id := playlistID(data)
	if id == "" {
		return nil, fmt.Errorf("%w: create response from %s", shared.ErrMissingPlaylist, path)
	}
	return services.NewStaticPlaylist(id, spec.Title), nil
}

// playlistID reads uuid, data.uuid or id from a raw create response.
func playlistID(data map[string]any) string {
	if id := rawID(data["uuid"]); id != "" {
		return id
	}
	if inner, ok := data["data"].(map[string]any); ok {
		if id := rawID(inner["uuid"]); id != "" {
			return id
		}
	}
	return rawID(data["id"])
}

// Add submits ids in sequential batches and returns how many were added.
//
// Handles implementing [services.BulkAdder] add their own batches. Others go through raw requests
// over the configured paths and duplicate policies. Any batch that cannot be added yields [shared.ErrTrackAdd].
func (p *Publisher) Add(ctx context.Context, handle services.PlaylistHandle, ids []models.TrackID, progress chan<- ProgressUpdate) (int, error) {
	batches := chunk(ids, p.batchSize)
	adder, bulk := handle.(services.BulkAdder)
	id := handle.Playlist().ID

	if !bulk && id == "" && len(batches) > 0 {
		return 0, fmt.Errorf("%w: %w", shared.ErrTrackAdd, shared.ErrMissingPlaylist)
	}

	added := 0
	for i, batch := range batches {
		var err error
		if bulk {
			err = adder.Add(ctx, batch)
		} else {
			err = p.rawAdd(ctx, id, batch)
		}
		if err != nil {
			if ctx.Err() != nil {
				return added, ctx.Err()
			}
			return added, fmt.Errorf("%w: batch %d/%d: %w", shared.ErrTrackAdd, i+1, len(batches), err)
		}

		added += len(batch)
		sendProgress(progress, addTracksUpdate(i+1, len(batches), added))
		p.logger.Debug("batch added", "batch", i+1, "size", len(batch), "bulk", bulk)
	}

	return added, nil
}

func (p *Publisher) rawAdd(ctx context.Context, id string, batch []models.TrackID) error {
	c := newChain[struct{}]("add tracks", p.logger)
	csv := models.JoinTrackIDs(batch)

	for _, path := range p.compat.AddPaths {
		path = strings.ReplaceAll(path, "{playlist_id}", url.PathEscape(id))
		for _, policy := range p.compat.AddDuplicatePolicies {
			form := url.Values{"trackIds": {csv}}
			name := "raw POST " + path
			if policy != "" {
				form.Set("onDuplicate", policy)
				name += " onDuplicate=" + policy
			}
			c.add(name, func(ctx context.Context) (struct{}, error) {
				_, err := p.session.Request(ctx, services.RawRequest{Method: http.MethodPost, Path: path, Form: form})
				return struct{}{}, err
			})
		}
	}

	_, err := c.run(ctx)
	return err
}

func chunk(ids []models.TrackID, size int) [][]models.TrackID {
	var batches [][]models.TrackID
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}
