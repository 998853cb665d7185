// ABOUTME: HTTP server subcommand
// ABOUTME: Runs the API and the session janitor until interrupted
package cli

import (
	"context"
	"flag"
	"time"

	"github.com/naobregon27/kommo/web"
)

// ServeCommand runs the HTTP API until ctx is cancelled.
func ServeCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", app.Config.Server.Addr, "Listen address")
	_ = fs.Parse(args)

	go app.Sessions.RunJanitor(ctx, time.Minute)

	server := web.NewServer(app.Store, app.Sessions, web.Options{
		FrontendURL: app.Config.Server.FrontendURL,
		TokenTTL:    app.Config.Session.TokenTTL,
		CountryCode: app.Config.Sync.CountryCode,
		Validator:   Validator(app.Config),
	}, app.Logger)

	return server.Start(ctx, *addr)
}
