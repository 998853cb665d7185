// ABOUTME: Principal registration from the command line
// ABOUTME: Prompts for a hidden password and stores CRM credentials for a new user
package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/naobregon27/kommo/db"
	"github.com/naobregon27/kommo/models"
	"golang.org/x/term"
)

// RegisterCommand creates a principal. The password is read from the
// terminal without echo, or as the first line of input when piped.
func RegisterCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.String("user", "", "Username (required)")
	clientID := fs.String("crm-client-id", "", "CRM integration client id")
	clientSecret := fs.String("crm-client-secret", "", "CRM integration client secret")
	redirectURI := fs.String("crm-redirect-uri", "", "CRM integration redirect URI")
	baseURL := fs.String("crm-base-url", "", "CRM account URL (https://<subdomain>.kommo.com)")
	authToken := fs.String("crm-token", "", "CRM access token")
	refreshToken := fs.String("crm-refresh-token", "", "CRM refresh token")
	_ = fs.Parse(args)

	name := strings.TrimSpace(*username)
	if name == "" {
		return fmt.Errorf("--user is required")
	}

	creds := models.CRMCredentials{
		ClientID:     *clientID,
		ClientSecret: *clientSecret,
		RedirectURI:  *redirectURI,
		BaseURL:      strings.TrimRight(*baseURL, "/"),
		AuthToken:    *authToken,
		RefreshToken: *refreshToken,
	}
	if missing := creds.Missing(); len(missing) > 0 {
		return fmt.Errorf("missing CRM credentials: %s", strings.Join(missing, ", "))
	}

	password, err := app.readPassword("Password: ")
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}

	hash, err := db.HashPassword(password)
	if err != nil {
		return err
	}
	user := &models.User{Username: name, PasswordHash: hash, CRMCredentials: creds}
	if err := app.Store.CreateUser(ctx, user); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(app.Out, "Registered %s (%s)\n", user.Username, user.ID)
	return nil
}

func (a *App) readPassword(prompt string) (string, error) {
	if f, ok := a.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(a.Out, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(a.Out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(a.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
