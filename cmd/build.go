package main

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/log"
	"github.com/jriverox/tidal-top7/internal/models"
	"github.com/jriverox/tidal-top7/internal/shared"
	"github.com/jriverox/tidal-top7/internal/tasks"
	"github.com/jriverox/tidal-top7/internal/ui"
	"github.com/urfave/cli/v3"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

// Build resolves the artists, collects their top tracks and creates the playlist.
//
// Exit codes: 2 when the playlist name or the artist list is missing (checked before any network access),
// 1 when no tracks were found or login, creation or adding fails.
func (r *Runner) Build(ctx context.Context, cmd *cli.Command) error {
	title := strings.TrimSpace(cmd.String("playlist-name"))
	if title == "" {
		return cli.Exit(ui.Error("--playlist-name is required"), exitUsage)
	}

	names, err := shared.CollectArtists(cmd.String("artists"), cmd.String("artists-file"))
	if errors.Is(err, shared.ErrNoArtists) {
		return cli.Exit(ui.Error("No artists supplied. Use --artists and/or --artists-file."), exitUsage)
	}
	if err != nil {
		return cli.Exit(ui.Error("%v", err), exitFailure)
	}

	spec := models.PlaylistSpec{
		Title:       title,
		Description: cmd.String("playlist-desc"),
		Public:      !cmd.Bool("private"),
	}
	if !cmd.IsSet("playlist-desc") && r.config.Build.Description != "" {
		spec.Description = r.config.Build.Description
	}

	logger := r.logger.With("run", shared.RunID())
	logger.Debug("starting build", "artists", len(names), "playlist", spec.Title, "public", spec.Public)

	session, err := r.connect(ctx)
	if err != nil {
		return cli.Exit(ui.Error("Login failed: %v", err), exitFailure)
	}

	engine := tasks.NewPlaylistEngine(session, r.config, logger)
	spin := r.interactive() && !cmd.Bool("debug") && !cmd.Bool("json")
	result, err := r.runEngine(ctx, engine, names, spec, logger, spin)

	if result != nil {
		for _, w := range result.Warnings {
			r.writeErr("%s", ui.Warning("%s", w))
		}
	}

	switch {
	case errors.Is(err, shared.ErrNoTracks):
		return cli.Exit(ui.Error("No tracks found for any artist."), exitFailure)
	case err != nil:
		return cli.Exit(ui.Error("%v", err), exitFailure)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	pl := result.Playlist
	r.writePlain("%s\n", ui.Success("Playlist created: %s (%d tracks)", pl.Name, pl.Added))
	return r.writePlain("URL: %s\n", pl.URL())
}

// runEngine runs the build in its own goroutine and returns only after the engine has returned,
// even when the spinner exits early on cancellation. The progress channel is never closed
// so late sends from the engine cannot panic.
func (r *Runner) runEngine(ctx context.Context, engine tasks.BuildEngine, names []string, spec models.PlaylistSpec, logger *log.Logger, spin bool) (*tasks.BuildResult, error) {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	stop := make(chan struct{})
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for {
			select {
			case update := <-progressCh:
				logger.Debug(update.Message, "phase", update.Phase)
			case <-stop:
				return
			}
		}
	}()

	var (
		result *tasks.BuildResult
		err    error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		result, err = engine.Run(ctx, names, spec, progressCh)
	}()

	if spin {
		if spinErr := r.spinner(ctx, "Building playlist...", finished); spinErr != nil {
			logger.Debug("spinner stopped", "err", spinErr)
		}
	}
	<-finished

	close(stop)
	<-consumed

	return result, err
}

// spinWhile shows a spinner until done is closed or ctx is cancelled.
func spinWhile(ctx context.Context, title string, done <-chan struct{}) error {
	return spinner.New().Title(title).Context(ctx).Action(func() { <-done }).Run()
}
