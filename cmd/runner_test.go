package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jriverox/tidal-top7/internal/models"
	"github.com/jriverox/tidal-top7/internal/services"
	"github.com/jriverox/tidal-top7/internal/shared"
	"github.com/jriverox/tidal-top7/internal/tasks"
	"github.com/urfave/cli/v3"
)

// fakeSession serves artists by exact name and records created playlists.
type fakeSession struct {
	artists  map[string]string
	tracks   map[string][]models.TrackID
	created  []models.PlaylistSpec
	added    [][]models.TrackID
	requests int
}

func (f *fakeSession) CountryCode() string { return "US" }
func (f *fakeSession) UserID() string      { return "1" }

func (f *fakeSession) Request(ctx context.Context, req services.RawRequest) (map[string]any, error) {
	f.requests++
	return nil, shared.ErrAPIRequest
}

func (f *fakeSession) SearchArtists(ctx context.Context, query string, limit int) ([]models.ArtistIdentity, error) {
	f.requests++
	if id, ok := f.artists[query]; ok {
		return []models.ArtistIdentity{{ID: id, Name: query}}, nil
	}
	return nil, nil
}

func (f *fakeSession) TopTracks(ctx context.Context, id string, limit int) ([]models.Track, error) {
	f.requests++
	var tracks []models.Track
	for _, t := range f.tracks[id] {
		tracks = append(tracks, models.Track{ID: t})
	}
	return tracks, nil
}

func (f *fakeSession) CreatePlaylistWithVisibility(ctx context.Context, title, desc string, public bool) (services.PlaylistHandle, error) {
	f.requests++
	f.created = append(f.created, models.PlaylistSpec{Title: title, Description: desc, Public: public})
	return &fakePlaylist{session: f, info: models.Playlist{
		ID:        "pl-1",
		Name:      title,
		ShareURL:  "https://tidal.com/browse/playlist/pl-1",
		ListenURL: "https://listen.tidal.com/playlist/pl-1",
	}}, nil
}

type fakePlaylist struct {
	session *fakeSession
	info    models.Playlist
}

func (p *fakePlaylist) Playlist() models.Playlist { return p.info }

func (p *fakePlaylist) Add(ctx context.Context, ids []models.TrackID) error {
	p.session.added = append(p.session.added, ids)
	return nil
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		artists: map[string]string{"Radiohead": "1", "Fuel": "2"},
		tracks: map[string][]models.TrackID{
			"1": {11, 12, 13},
			"2": {21, 13, 22},
		},
	}
}

func testRunner(session services.Session) (*Runner, *bytes.Buffer, *bytes.Buffer) {
	config := shared.DefaultConfig()
	config.Build.ArtistDelay = 0

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:    config,
		Session:   session,
		Logger:    shared.NewLogger(stderr),
		Output:    stdout,
		ErrOutput: stderr,
	})
	return runner, stdout, stderr
}

func run(r *Runner, args ...string) error {
	return rootCommand(r).Run(context.Background(), append([]string{"tidal-top7"}, args...))
}

func exitCodeOf(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var exitErr cli.ExitCoder
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected an exit error, got %v", err)
	}
	return exitErr.ExitCode()
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			session := newFakeSession()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Session:    session,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if !runner.configFixed {
				t.Error("expected provided config to be kept")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.session != session {
				t.Error("expected session to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil || runner.configFixed {
				t.Error("expected default config to be loaded later")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout || runner.errOutput != os.Stderr {
				t.Error("expected output to default to os.Stdout and os.Stderr")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.spinner == nil {
				t.Error("expected default spinner to be set")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "{\"key\":\"value\"}\n" {
				t.Errorf("expected compact JSON, got %q", output.String())
			}
		})

		t.Run("fails on unsupported values", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			if err := runner.writeJSON(make(chan int), false); err == nil {
				t.Error("expected marshal error")
			}
		})
	})

	t.Run("interactive", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
		if runner.interactive() {
			t.Error("a buffer is never interactive")
		}
	})
}

func TestBuild(t *testing.T) {
	t.Run("creates playlist and prints confirmation", func(t *testing.T) {
		session := newFakeSession()
		runner, stdout, _ := testRunner(session)

		err := run(runner, "--artists", "Radiohead, Fuel", "--playlist-name", "Top 7")
		if code := exitCodeOf(t, err); code != 0 {
			t.Fatalf("expected exit 0, got %d (%v)", code, err)
		}

		out := stdout.String()
		if !strings.Contains(out, "Playlist created: Top 7 (5 tracks)") {
			t.Errorf("expected confirmation line, got %q", out)
		}
		if !strings.HasSuffix(out, "URL: https://tidal.com/browse/playlist/pl-1\n") {
			t.Errorf("expected share URL line, got %q", out)
		}
		if len(session.added) != 1 || len(session.added[0]) != 5 {
			t.Errorf("expected one batch of 5 ids, got %v", session.added)
		}
		if len(session.created) != 1 || !session.created[0].Public || session.created[0].Description != defaultDescription {
			t.Errorf("unexpected playlist spec %+v", session.created)
		}
	})

	t.Run("missing playlist name exits 2 without network", func(t *testing.T) {
		session := newFakeSession()
		runner, _, _ := testRunner(session)

		err := run(runner, "--artists", "Radiohead")
		if code := exitCodeOf(t, err); code != 2 {
			t.Errorf("expected exit 2, got %d", code)
		}
		if session.requests != 0 {
			t.Errorf("expected no requests, got %d", session.requests)
		}
	})

	t.Run("no artists exits 2 without network", func(t *testing.T) {
		session := newFakeSession()
		runner, _, _ := testRunner(session)

		err := run(runner, "--artists", " , ", "--playlist-name", "Top 7")
		if code := exitCodeOf(t, err); code != 2 {
			t.Errorf("expected exit 2, got %d", code)
		}
		if session.requests != 0 {
			t.Errorf("expected no requests, got %d", session.requests)
		}
	})

	t.Run("unreadable artists file exits 1", func(t *testing.T) {
		runner, _, _ := testRunner(newFakeSession())

		err := run(runner, "--artists-file", filepath.Join(t.TempDir(), "missing.txt"), "--playlist-name", "Top 7")
		if code := exitCodeOf(t, err); code != 1 {
			t.Errorf("expected exit 1, got %d", code)
		}
	})

	t.Run("no tracks exits 1 and warns", func(t *testing.T) {
		session := newFakeSession()
		runner, stdout, stderr := testRunner(session)

		err := run(runner, "--artists", "Nobody,Nothing", "--playlist-name", "Top 7")
		if code := exitCodeOf(t, err); code != 1 {
			t.Errorf("expected exit 1, got %d", code)
		}
		if len(session.created) != 0 {
			t.Error("no playlist should be created")
		}
		if stdout.Len() != 0 {
			t.Errorf("expected empty stdout, got %q", stdout.String())
		}
		if !strings.Contains(stderr.String(), "Artist not found: Nobody") || !strings.Contains(stderr.String(), "Artist not found: Nothing") {
			t.Errorf("expected warnings on stderr, got %q", stderr.String())
		}
	})

	t.Run("artists file and private flag", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "artists.txt")
		if err := os.WriteFile(path, []byte("Fuel\n\nGhost\n"), 0644); err != nil {
			t.Fatalf("failed to write artists file: %v", err)
		}

		session := newFakeSession()
		runner, _, stderr := testRunner(session)

		err := run(runner, "--artists", "Radiohead", "--artists-file", path, "--playlist-name", "Mix", "--playlist-desc", "mine", "--private")
		if code := exitCodeOf(t, err); code != 0 {
			t.Fatalf("expected exit 0, got %d (%v)", code, err)
		}
		if session.created[0].Public || session.created[0].Description != "mine" {
			t.Errorf("unexpected spec %+v", session.created[0])
		}
		if got := session.added[0]; len(got) != 5 || got[0] != 11 || got[3] != 21 {
			t.Errorf("expected list names before file names, got %v", got)
		}
		if !strings.Contains(stderr.String(), "Artist not found: Ghost") {
			t.Errorf("expected warning for Ghost, got %q", stderr.String())
		}
	})

	t.Run("json output", func(t *testing.T) {
		runner, stdout, _ := testRunner(newFakeSession())

		err := run(runner, "--artists", "Radiohead", "--playlist-name", "Top 7", "--json")
		if code := exitCodeOf(t, err); code != 0 {
			t.Fatalf("expected exit 0, got %d (%v)", code, err)
		}

		var result struct {
			Playlist struct {
				ID    string `json:"id"`
				Added int    `json:"added"`
			} `json:"playlist"`
			Artists []struct {
				TrackIDs []int64 `json:"track_ids"`
			} `json:"artists"`
		}
		if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", stdout.String(), err)
		}
		if result.Playlist.ID != "pl-1" || result.Playlist.Added != 3 || len(result.Artists) != 1 {
			t.Errorf("unexpected result %+v", result)
		}
	})
}

func TestBefore(t *testing.T) {
	t.Run("loads config file and env overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		data := "[credentials.tidal]\nclient_id = \"from-file\"\n\n[build]\nartist_delay = \"0s\"\n"
		if err := os.WriteFile(path, []byte(data), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		t.Setenv("TIDAL_CLIENT_SECRET", "from-env")

		runner := NewRunner(RunnerOpts{Session: newFakeSession(), Output: &bytes.Buffer{}, ErrOutput: &bytes.Buffer{}})
		if err := run(runner, "-c", path, "--artists", "Fuel", "--playlist-name", "x"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if runner.config.Credentials.Tidal.ClientID != "from-file" {
			t.Errorf("expected client id from file, got %s", runner.config.Credentials.Tidal.ClientID)
		}
		if runner.config.Credentials.Tidal.ClientSecret != "from-env" {
			t.Errorf("expected secret from env, got %s", runner.config.Credentials.Tidal.ClientSecret)
		}
		if runner.config.Build.TopN != 7 {
			t.Errorf("expected defaults for missing keys, got top_n=%d", runner.config.Build.TopN)
		}
	})

	t.Run("invalid config exits 1", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		os.WriteFile(path, []byte("this is not toml ="), 0600)

		runner := NewRunner(RunnerOpts{Session: newFakeSession(), Output: &bytes.Buffer{}, ErrOutput: &bytes.Buffer{}})
		err := run(runner, "-c", path, "--artists", "Fuel", "--playlist-name", "x")
		if code := exitCodeOf(t, err); code != 1 {
			t.Errorf("expected exit 1, got %d", code)
		}
	})
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, ErrOutput: &bytes.Buffer{}})

	if err := run(runner, "-c", path, "init"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := shared.LoadConfig(path); err != nil {
		t.Errorf("expected a loadable config, got %v", err)
	}

	runner = NewRunner(RunnerOpts{Output: &bytes.Buffer{}, ErrOutput: &bytes.Buffer{}})
	if code := exitCodeOf(t, run(runner, "-c", path, "init")); code != 1 {
		t.Errorf("expected exit 1 when the file exists, got %d", code)
	}
}

func TestConnect(t *testing.T) {
	t.Run("requires a client id", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Config: shared.DefaultConfig()})

		if _, err := runner.connect(context.Background()); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("reuses stored token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer stored-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"userId": 77, "countryCode": "CL", "sessionId": "s"})
		}))
		defer server.Close()

		config := shared.DefaultConfig()
		config.API.BaseURL = server.URL
		config.Credentials.Tidal.ClientID = "client"
		config.Credentials.Tidal.AccessToken = "stored-token"
		config.Credentials.Tidal.TokenType = "Bearer"

		runner := NewRunner(RunnerOpts{
			Config:      config,
			OpenBrowser: func(string) error { t.Error("browser should not open"); return nil },
		})

		session, err := runner.connect(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if session.UserID() != "77" || session.CountryCode() != "CL" {
			t.Errorf("unexpected session user=%s country=%s", session.UserID(), session.CountryCode())
		}
	})

	t.Run("injected session skips login", func(t *testing.T) {
		session := newFakeSession()
		runner := NewRunner(RunnerOpts{Session: session})

		got, err := runner.connect(context.Background())
		if err != nil || got != session {
			t.Errorf("expected injected session, got %v, %v", got, err)
		}
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: 0},
		{name: "usage", err: cli.Exit("", 2), want: 2},
		{name: "failure", err: cli.Exit("boom", 1), want: 1},
		{name: "plain error", err: errors.New("boom"), want: 1},
		{name: "interrupted", err: context.Canceled, want: 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

// lateEngine keeps reporting progress for a while after ctx is cancelled.
type lateEngine struct {
	returned atomic.Bool
}

func (e *lateEngine) Aggregate(ctx context.Context, names []string, progress chan<- tasks.ProgressUpdate) (*tasks.AggregateResult, error) {
	return &tasks.AggregateResult{}, nil
}

func (e *lateEngine) Run(ctx context.Context, names []string, spec models.PlaylistSpec, progress chan<- tasks.ProgressUpdate) (*tasks.BuildResult, error) {
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	for range 100 {
		select {
		case progress <- tasks.ProgressUpdate{Message: "late"}:
		default:
		}
	}
	e.returned.Store(true)
	return &tasks.BuildResult{}, ctx.Err()
}

type instantEngine struct{}

func (instantEngine) Aggregate(ctx context.Context, names []string, progress chan<- tasks.ProgressUpdate) (*tasks.AggregateResult, error) {
	return &tasks.AggregateResult{}, nil
}

func (instantEngine) Run(ctx context.Context, names []string, spec models.PlaylistSpec, progress chan<- tasks.ProgressUpdate) (*tasks.BuildResult, error) {
	progress <- tasks.ProgressUpdate{Message: "done"}
	return &tasks.BuildResult{Playlist: &models.PlaylistResult{Added: 3}}, nil
}

func TestRunEngine(t *testing.T) {
	spec := models.PlaylistSpec{Title: "Top 7"}

	t.Run("waits for the engine when the spinner stops on cancel", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{
			Config: shared.DefaultConfig(),
			Spinner: func(ctx context.Context, title string, done <-chan struct{}) error {
				<-ctx.Done()
				return ctx.Err()
			},
		})
		logger := shared.NewLogger(&bytes.Buffer{})
		shared.EnableDebug(logger)

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		engine := &lateEngine{}
		result, err := runner.runEngine(ctx, engine, []string{"Fuel"}, spec, logger, true)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if !engine.returned.Load() {
			t.Error("expected runEngine to return after the engine")
		}
		if result == nil {
			t.Error("expected the engine result")
		}
	})

	t.Run("spinner stops when the engine finishes", func(t *testing.T) {
		var shown atomic.Bool
		runner := NewRunner(RunnerOpts{
			Config: shared.DefaultConfig(),
			Spinner: func(ctx context.Context, title string, done <-chan struct{}) error {
				shown.Store(true)
				<-done
				return nil
			},
		})

		result, err := runner.runEngine(context.Background(), instantEngine{}, []string{"Fuel"}, spec, shared.NewLogger(&bytes.Buffer{}), true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !shown.Load() {
			t.Error("expected spinner to be shown")
		}
		if result.Playlist.Added != 3 {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("no spinner when not interactive", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{
			Config: shared.DefaultConfig(),
			Spinner: func(ctx context.Context, title string, done <-chan struct{}) error {
				t.Error("spinner should not be shown")
				return nil
			},
		})

		if _, err := runner.runEngine(context.Background(), instantEngine{}, nil, spec, shared.NewLogger(&bytes.Buffer{}), false); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}
