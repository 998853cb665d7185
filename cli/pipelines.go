// ABOUTME: CRM inspection CLI commands
// ABOUTME: Lists pipelines, pipeline stages and registered principals
package cli

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"
)

// PipelinesCommand lists the principal's CRM pipelines, or the stages of
// one pipeline when --pipeline is given.
func PipelinesCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("pipelines", flag.ExitOnError)
	username := fs.String("user", "", "Principal whose CRM to query (required)")
	pipelineID := fs.Int64("pipeline", 0, "Show the stages of this pipeline")
	_ = fs.Parse(args)

	user, err := app.lookupUser(ctx, *username)
	if err != nil {
		return err
	}
	sess, err := app.Sessions.EnsureSession(ctx, user.ID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)

	if *pipelineID != 0 {
		stages, err := sess.CRM.ListStages(ctx, *pipelineID)
		if err != nil {
			return fmt.Errorf("failed to list stages: %w", err)
		}
		_, _ = fmt.Fprintln(w, "ID\tNAME\tSORT\tCOLOR")
		for _, s := range stages {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", s.ID, s.Name, s.Sort, s.Color)
		}
		return w.Flush()
	}

	pipelines, err := sess.CRM.ListPipelines(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pipelines: %w", err)
	}
	_, _ = fmt.Fprintln(w, "ID\tNAME")
	for _, p := range pipelines {
		_, _ = fmt.Fprintf(w, "%d\t%s\n", p.ID, p.Name)
	}
	return w.Flush()
}

// UsersCommand lists registered principals.
func UsersCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("users", flag.ExitOnError)
	_ = fs.Parse(args)

	users, err := app.Store.ListUsers(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tUSERNAME\tCRM\tCREATED")
	for _, u := range users {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Username, u.CRMCredentials.BaseURL, u.CreatedAt.Format("2006-01-02"))
	}
	if len(users) == 0 {
		_, _ = fmt.Fprintln(w, "(no users registered)")
	}
	return w.Flush()
}
