// ABOUTME: Entry point for the kommo lead sync service and CLI
// ABOUTME: Routes to the HTTP server, MCP server or maintenance commands based on arguments
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/naobregon27/kommo/cli"
	"github.com/naobregon27/kommo/config"
	"github.com/naobregon27/kommo/logging"
	"go.uber.org/zap"
)

const version = "0.1.0"

func main() {
	showVersion := flag.Bool("version", false, "Show version and exit")
	configFile := flag.String("config", "", "Config file (default: ./config.yaml or the XDG config dir)")
	envFile := flag.String("env", "", "Path to .env file (default: ./.env when present)")

	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("kommo version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	command := args[0]
	commandArgs := args[1:]

	run, ok := commands[command]
	if !ok {
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(*envFile, *configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer func() { _ = app.Close() }()

	if err := run(ctx, app, commandArgs); err != nil {
		logger.Error("command failed", zap.String("command", command), zap.Error(err))
		_ = app.Close()
		os.Exit(1)
	}
}

var commands = map[string]func(context.Context, *cli.App, []string) error{
	"serve":     cli.ServeCommand,
	"mcp":       cli.MCPCommand,
	"import":    cli.ImportCommand,
	"pipelines": cli.PipelinesCommand,
	"users":     cli.UsersCommand,
	"register":  cli.RegisterCommand,
}

func printUsage() {
	fmt.Printf(`kommo v%s - Google contacts to Kommo lead sync

USAGE:
  kommo [global flags] <command> [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --config <file>        Config file (default: ./config.yaml)
  --env <file>           .env file loaded before configuration

COMMANDS:
  serve                  Run the HTTP API
    --addr <addr>          Listen address (default: server.addr)

  mcp                    Serve CRM tools over stdio for an MCP client
    --user <username>      Principal the tools act for (required)

  import [flags] <file>  Import a name,phone text file into a contact list
    --user <username>      Principal owning the contacts (required)
    Note: flags must come before the file

  pipelines              List CRM pipelines
    --user <username>      Principal whose CRM to query (required)
    --pipeline <id>        Show the stages of one pipeline

  users                  List registered principals

  register               Create a principal (password read from the terminal)
    --user <username>      Username (required)
    --crm-base-url <url>   CRM account URL
    --crm-client-id, --crm-client-secret, --crm-redirect-uri
    --crm-token, --crm-refresh-token

ENVIRONMENT:
  KOMMO_*                Overrides any config key (e.g. KOMMO_SYNC_INTERVAL=30s)
  GOOGLE_CLIENT_ID       Google OAuth client id
  GOOGLE_CLIENT_SECRET   Google OAuth client secret

EXAMPLES:
  # Run the API with a one second pacing interval
  KOMMO_SYNC_INTERVAL=1s kommo serve

  # Import contacts for a principal
  kommo import --user ana contacts.txt

  # Show the stages of pipeline 7
  kommo pipelines --user ana --pipeline 7

`, version)
}
