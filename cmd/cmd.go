// submodule cmd contains command definitions
package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

const defaultDescription = "Generated automatically with tidal-top7."

// rootCommand builds the playlist. Flags declared here are visible to every subcommand.
func rootCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tidal-top7",
		Usage:   "Create a TIDAL playlist with the top 7 tracks of each artist",
		Version: "0.2.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "artists",
				Usage: "Comma separated artist names",
			},
			&cli.StringFlag{
				Name:  "artists-file",
				Usage: "Text file with one artist name per line",
			},
			&cli.StringFlag{
				Name:  "playlist-name",
				Usage: "Name of the playlist to create",
			},
			&cli.StringFlag{
				Name:  "playlist-desc",
				Usage: "Playlist description",
				Value: defaultDescription,
			},
			&cli.BoolFlag{
				Name:  "private",
				Usage: "Create the playlist as private",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the result as JSON",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log every request and fallback attempt",
			},
		},
		Before:         r.before,
		Action:         r.Build,
		Commands:       r.register(),
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

// loginCommand runs the device login and stores the token
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "login",
		Usage:  "Log in to TIDAL and save the session token to the config file",
		Action: r.Login,
	}
}

// initCommand writes an example config file
func initCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "init",
		Usage:  "Create a config file with default settings",
		Action: r.Init,
	}
}
