package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jriverox/tidal-top7/internal/services"
	"github.com/jriverox/tidal-top7/internal/shared"
	"github.com/jriverox/tidal-top7/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// before loads the config file and applies --debug ahead of every command.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.EnableDebug(r.logger)
	}

	if path := cmd.String("config"); cmd.IsSet("config") || r.configPath == "" {
		r.configPath = path
	}

	if r.configFixed {
		return ctx, nil
	}

	config, err := shared.LoadConfigOrDefault(r.configPath)
	if err != nil {
		return ctx, cli.Exit(ui.Error("%v", err), 1)
	}
	config.ApplyEnv()
	r.config = config
	r.logger.Debug("config loaded", "path", r.configPath)

	return ctx, nil
}

// Login runs the device login, saves the token and verifies the session.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	auth, err := services.NewAuthenticator(r.config.Credentials.Tidal, r.config.API.AuthURL)
	if err != nil {
		return cli.Exit(ui.Error("%v", err), 1)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.baseClient())
	token, err := r.deviceLogin(ctx, auth)
	if err != nil {
		return cli.Exit(ui.Error("%v", err), 1)
	}

	svc := r.tidal(ctx, auth, token)
	if err := svc.CheckSession(ctx); err != nil {
		return cli.Exit(ui.Error("%v", err), 1)
	}

	r.writePlain("%s\n", ui.Success("Logged in (user %s, country %s)", svc.UserID(), svc.CountryCode()))
	r.writePlain("Token saved to %s\n", r.configPath)
	return nil
}

// Init writes the default config file.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return cli.Exit(ui.Error("%v", err), 1)
	}

	r.writePlain("%s\n", ui.Success("Config written to %s", r.configPath))
	r.writePlain("Set client_id under [credentials.tidal], then run: tidal-top7 login\n")
	return nil
}

// connect returns an authenticated session, reusing the stored token when it still works.
func (r *Runner) connect(ctx context.Context) (services.Session, error) {
	if r.session != nil {
		return r.session, nil
	}

	auth, err := services.NewAuthenticator(r.config.Credentials.Tidal, r.config.API.AuthURL)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.baseClient())

	token := r.config.Credentials.Tidal.Token()
	stored := token != nil
	if !stored {
		if token, err = r.deviceLogin(ctx, auth); err != nil {
			return nil, err
		}
	}

	svc := r.tidal(ctx, auth, token)
	err = svc.CheckSession(ctx)
	if err != nil && stored && (errors.Is(err, shared.ErrNotAuthenticated) || isTokenError(err)) {
		r.logger.Warn("stored session rejected, logging in again", "err", err)
		if token, err = r.deviceLogin(ctx, auth); err != nil {
			return nil, err
		}
		svc = r.tidal(ctx, auth, token)
		err = svc.CheckSession(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}

	return svc, nil
}

func isTokenError(err error) bool {
	var re *oauth2.RetrieveError
	return errors.As(err, &re)
}

// tidal builds a service whose client refreshes token as needed and saves refreshed tokens.
func (r *Runner) tidal(ctx context.Context, auth *services.Authenticator, token *oauth2.Token) *services.TidalService {
	ts := &savingTokenSource{
		base:    auth.TokenSource(ctx, token),
		current: token,
		save:    r.saveToken,
	}

	return services.NewTidalService(services.TidalOptions{
		BaseURL:    r.config.API.BaseURL,
		V2URL:      r.config.API.V2URL,
		OpenAPIURL: r.config.API.OpenAPIURL,
		HTTPClient: services.Client(r.baseClient(), oauth2.ReuseTokenSource(token, ts)),
		Logger:     r.logger,
	})
}

func (r *Runner) baseClient() *http.Client {
	return &http.Client{
		Transport: r.httpClient.Transport,
		Timeout:   r.config.API.Timeout,
	}
}

// deviceLogin prints the verification URL, opens it in the browser and waits for the user.
func (r *Runner) deviceLogin(ctx context.Context, auth *services.Authenticator) (*oauth2.Token, error) {
	login, err := auth.Start(ctx)
	if err != nil {
		return nil, err
	}

	r.writeErr("%s", ui.Title("TIDAL login"))
	r.writeErr("%s", ui.Help("Open %s and confirm the code %s", login.URL(), login.UserCode()))
	if err := r.openBrowser(login.URL()); err != nil {
		r.logger.Debug("could not open browser", "err", err)
	}

	token, err := auth.Wait(ctx, login)
	if err != nil {
		return nil, err
	}

	r.saveToken(token)
	return token, nil
}

// saveToken stores token in the config file without writing env-provided credentials back.
func (r *Runner) saveToken(token *oauth2.Token) {
	if err := r.config.Credentials.Tidal.Update(token); err != nil {
		r.logger.Warn("token not saved", "err", err)
		return
	}
	if r.configPath == "" {
		return
	}

	onDisk, err := shared.LoadConfigOrDefault(r.configPath)
	if err != nil {
		r.logger.Warn("token not saved", "path", r.configPath, "err", err)
		return
	}
	if err := onDisk.Credentials.Tidal.Update(token); err != nil {
		return
	}
	if err := shared.SaveConfig(r.configPath, onDisk); err != nil {
		r.logger.Warn("token not saved", "path", r.configPath, "err", err)
		return
	}
	r.logger.Debug("token saved", "path", r.configPath)
}

// savingTokenSource calls save whenever the underlying source hands out a new access token.
type savingTokenSource struct {
	base    oauth2.TokenSource
	current *oauth2.Token
	save    func(*oauth2.Token)
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if s.current == nil || token.AccessToken != s.current.AccessToken {
		s.current = token
		s.save(token)
	}
	return token, nil
}
