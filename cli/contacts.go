// ABOUTME: Contact CLI commands
// ABOUTME: Imports a name,phone text file into a principal's contact list
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/naobregon27/kommo/sync"
)

// ImportCommand merges a contacts file into the principal's cached list.
func ImportCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	username := fs.String("user", "", "Principal owning the contacts (required)")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: import --user <username> <file>")
	}

	user, err := app.lookupUser(ctx, *username)
	if err != nil {
		return err
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to open contacts file: %w", err)
	}
	defer func() { _ = f.Close() }()

	result, err := sync.ParseContactFile(f)
	if err != nil {
		return err
	}

	sess, err := app.Sessions.EnsureSession(ctx, user.ID)
	if err != nil {
		return err
	}
	added, total, err := sess.Contacts.Merge(ctx, result.Contacts)
	if err != nil {
		return fmt.Errorf("failed to merge contacts: %w", err)
	}

	_, _ = fmt.Fprintf(app.Out, "Imported %d contacts (%d skipped lines, %d duplicates). Total: %d\n",
		added, result.Skipped, len(result.Contacts)-added, total)
	return nil
}
