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

// searchStrategy looks up artist candidates for a single name variant.
type searchStrategy struct {
	name   string
	search func(ctx context.Context, variant string) ([]models.ArtistIdentity, error)
}

// Resolver maps an artist name to a single catalog artist.
type Resolver struct {
	session    services.Session
	normalizer *Normalizer
	strategies []searchStrategy
	limit      int
	compat     shared.CompatConfig
	logger     *log.Logger
}

// NewResolver selects the search strategies session supports, in priority order:
// artist search, typed catalog search, then raw search over the configured paths and parameters.
func NewResolver(session services.Session, normalizer *Normalizer, cfg *shared.Config, logger *log.Logger) *Resolver {
	r := &Resolver{
		session:    session,
		normalizer: normalizer,
		limit:      cfg.Build.SearchLimit,
		compat:     cfg.Compat,
		logger:     shared.WithLogger(logger, "component", "resolver"),
	}
	if r.limit <= 0 {
		r.limit = 10
	}

	if s, ok := session.(services.ArtistSearcher); ok {
		r.strategies = append(r.strategies, searchStrategy{
			name: "search_artists",
			search: func(ctx context.Context, variant string) ([]models.ArtistIdentity, error) {
				return s.SearchArtists(ctx, variant, r.limit)
			},
		})
	}
	if s, ok := session.(services.CatalogSearcher); ok {
		r.strategies = append(r.strategies, searchStrategy{
			name: "catalog_search",
			search: func(ctx context.Context, variant string) ([]models.ArtistIdentity, error) {
				result, err := s.Search(ctx, variant, []string{"ARTISTS"}, r.limit)
				if err != nil || result == nil {
					return nil, err
				}
				return result.Artists, nil
			},
		})
	}
	r.strategies = append(r.strategies, searchStrategy{name: "raw_search", search: r.rawSearch})

	return r
}

// Strategies returns the names of the selected strategies in the order they are tried.
func (r *Resolver) Strategies() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.name
	}
	return names
}

// Resolve tries every variant of name in order and returns the first artist found.
// It returns [shared.ErrArtistNotFound] once all variants are exhausted.
func (r *Resolver) Resolve(ctx context.Context, name string) (*models.ArtistIdentity, error) {
	return r.ResolveQuery(ctx, r.normalizer.Query(name))
}

// ResolveQuery resolves a prepared query.
func (r *Resolver) ResolveQuery(ctx context.Context, q models.ArtistQuery) (*models.ArtistIdentity, error) {
	for _, variant := range q.Variants {
		c := newChain[*models.ArtistIdentity]("resolve "+variant, r.logger)
		for _, s := range r.strategies {
			c.add(s.name, func(ctx context.Context) (*models.ArtistIdentity, error) {
				candidates, err := s.search(ctx, variant)
				r.logger.Debug("search", "strategy", s.name, "query", variant, "results", len(candidates), "err", err)
				if err != nil {
					return nil, err
				}
				if len(candidates) == 0 {
					return nil, fmt.Errorf("%w: no candidates", shared.ErrArtistNotFound)
				}
				return pickArtist(candidates, variant), nil
			})
		}

		artist, err := c.run(ctx)
		if err == nil {
			return artist, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w: %s", shared.ErrArtistNotFound, q.Raw)
}

// pickArtist prefers a case-insensitive exact name match and falls back to the first candidate.
func pickArtist(candidates []models.ArtistIdentity, variant string) *models.ArtistIdentity {
	want := strings.ToLower(strings.TrimSpace(variant))
	for _, c := range candidates {
		if strings.ToLower(strings.TrimSpace(c.Name)) == want {
			return &c
		}
	}
	return &candidates[0]
}

// rawSearch walks the configured search paths and parameter encodings until one returns artists.
func (r *Resolver) rawSearch(ctx context.Context, variant string) ([]models.ArtistIdentity, error) {
	country := services.SafeCountryCode(r.session)
	var lastErr error

	for _, path := range r.compat.SearchPaths {
		for i, p := range r.compat.SearchParams {
			query := url.Values{
				"query":       {variant},
				p.Key:         {p.Value},
				"limit":       {strconv.Itoa(r.limit)},
				"countryCode": {country},
			}
			data, err := r.session.Request(ctx, services.RawRequest{Method: http.MethodGet, Path: path, Query: query})
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				r.logger.Debug("raw search failed", "path", path, "try", i+1, "err", err)
				lastErr = err
				continue
			}

			artists := artistItems(data)
			r.logger.Debug("raw search", "path", path, "try", i+1, "query", variant, "results", len(artists))
			if len(artists) > 0 {
				return artists, nil
			}
		}
	}

	return nil, lastErr
}

// artistItems reads artists.items[] from a raw search response.
func artistItems(data map[string]any) []models.ArtistIdentity {
	block, _ := data["artists"].(map[string]any)
	items, _ := block["items"].([]any)

	artists := make([]models.ArtistIdentity, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := rawID(obj["id"])
		if id == "" {
			continue
		}
		name, _ := obj["name"].(string)
		artists = append(artists, models.ArtistIdentity{ID: id, Name: name})
	}
	return artists
}

func rawID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}
