// ABOUTME: MCP server subcommand
// ABOUTME: Serves the CRM tools for one principal over stdio
package cli

import (
	"context"
	"flag"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/naobregon27/kommo/handlers"
	"go.uber.org/zap"
)

// MCPCommand starts the MCP server on stdio, acting as --user.
func MCPCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	username := fs.String("user", "", "Principal the tools act for (required)")
	_ = fs.Parse(args)

	user, err := app.lookupUser(ctx, *username)
	if err != nil {
		return err
	}

	app.Logger.Info("mcp: starting", zap.String("user", user.Username))

	h := handlers.NewCRMHandlers(app.Sessions, user.ID, Validator(app.Config), app.Config.Sync.CountryCode)
	return handlers.NewServer(h).Run(ctx, &mcp.StdioTransport{})
}
