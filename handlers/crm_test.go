// ABOUTME: Tests for the CRM MCP tool handlers
// ABOUTME: Drives the tools against a fake CRM and over an in-memory MCP session
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/db"
	"github.com/naobregon27/kommo/models"
	"github.com/naobregon27/kommo/session"
	"github.com/naobregon27/kommo/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	handlers *CRMHandlers
	sessions *session.Manager
	user     *models.User
	leads    []map[string]any
}

func newFakeKommo(t *testing.T, f *fixture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		write := func(v any) { _ = json.NewEncoder(w).Encode(v) }

		switch {
		case r.URL.Path == "/api/v4/leads/pipelines":
			write(map[string]any{"_embedded": map[string]any{
				"pipelines": []map[string]any{{"id": 7, "name": "Ventas"}, {"id": 8, "name": "Soporte"}},
			}})
		case r.URL.Path == "/api/v4/leads/pipelines/7":
			write(map[string]any{"_embedded": map[string]any{
				"statuses": []map[string]any{{"id": 70, "name": "Nuevo", "sort": 10, "color": "#fff"}},
			}})
		case r.URL.Path == "/api/v4/contacts/custom_fields":
			write(map[string]any{"_embedded": map[string]any{
				"custom_fields": []map[string]any{{"id": 5, "name": "Phone", "type": "phone"}},
			}})
		case r.URL.Path == "/api/v4/contacts":
			write(map[string]any{"_embedded": map[string]any{"contacts": []map[string]any{{"id": 11}}}})
		case r.URL.Path == "/api/v4/leads":
			var body []map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.leads = append(f.leads, body...)
			write(map[string]any{"_embedded": map[string]any{"leads": []map[string]any{{"id": 22}}}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	store := db.NewSQLiteStore(database)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{}
	kommo := newFakeKommo(t, f)

	f.user = &models.User{
		Username:     "ana",
		PasswordHash: "hash",
		CRMCredentials: models.CRMCredentials{
			ClientID:     "client",
			ClientSecret: "secret",
			RedirectURI:  "https://app.example.com/cb",
			BaseURL:      kommo.URL,
			AuthToken:    "token",
		},
	}
	require.NoError(t, store.CreateUser(context.Background(), f.user))

	f.sessions = session.NewManager(store, session.Options{}, zap.NewNop())
	f.handlers = NewCRMHandlers(f.sessions, f.user.ID, sync.NewValidator(nil), "54")
	return f
}

func (f *fixture) seedContacts(t *testing.T, contacts ...models.Contact) {
	t.Helper()
	sess, err := f.sessions.EnsureSession(context.Background(), f.user.ID)
	require.NoError(t, err)
	_, _, err = sess.Contacts.Merge(context.Background(), contacts)
	require.NoError(t, err)
}

func TestListPipelines(t *testing.T) {
	f := setupFixture(t)

	_, out, err := f.handlers.ListPipelines(context.Background(), nil, ListPipelinesInput{})
	require.NoError(t, err)
	assert.Equal(t, []models.Pipeline{{ID: 7, Name: "Ventas"}, {ID: 8, Name: "Soporte"}}, out.Pipelines)
}

func TestListStatuses(t *testing.T) {
	f := setupFixture(t)

	_, _, err := f.handlers.ListStatuses(context.Background(), nil, ListStatusesInput{})
	assert.EqualError(t, err, "pipeline_id is required")

	_, out, err := f.handlers.ListStatuses(context.Background(), nil, ListStatusesInput{PipelineID: 7})
	require.NoError(t, err)
	assert.Equal(t, []models.Stage{{ID: 70, Name: "Nuevo", Sort: 10, Color: "#fff"}}, out.Statuses)
}

func TestListContactsWithoutSource(t *testing.T) {
	f := setupFixture(t)

	_, _, err := f.handlers.ListContacts(context.Background(), nil, ListContactsInput{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeAuth))

	f.seedContacts(t, models.Contact{ID: "txt-1", Name: "Luis", PhoneNumber: "541123456789", Source: models.SourceFile})
	_, out, err := f.handlers.ListContacts(context.Background(), nil, ListContactsInput{})
	require.NoError(t, err)
	require.Len(t, out.Contacts, 1)
	assert.Equal(t, "Luis", out.Contacts[0].Name)
}

func TestValidateNumbers(t *testing.T) {
	f := setupFixture(t)

	_, out, err := f.handlers.ValidateNumbers(context.Background(), nil, ValidateNumbersInput{
		Numbers: []string{"911", "11 2345-6789", "#31#"},
	})
	require.NoError(t, err)
	assert.Equal(t, []NumberCheck{
		{Number: "911", FormattedNumber: "54911", IsValid: false},
		{Number: "11 2345-6789", FormattedNumber: "541123456789", IsValid: true},
		{Number: "#31#", FormattedNumber: "5431", IsValid: false},
	}, out.Results)
}

func TestGenerateLeads(t *testing.T) {
	f := setupFixture(t)

	_, _, err := f.handlers.GenerateLeads(context.Background(), nil, GenerateLeadsInput{})
	assert.EqualError(t, err, "pipeline_id is required")
	assert.Empty(t, f.leads)

	f.seedContacts(t,
		models.Contact{ID: "txt-1", Name: "Ana", PhoneNumber: "911", Source: models.SourceFile},
		models.Contact{ID: "txt-2", Name: "Luis", PhoneNumber: "541123456789", Source: models.SourceFile},
	)

	_, job, err := f.handlers.GenerateLeads(context.Background(), nil, GenerateLeadsInput{PipelineID: 7, StatusID: 70})
	require.NoError(t, err)

	assert.Equal(t, 2, job.Total)
	assert.Equal(t, 1, job.Processed)
	assert.Equal(t, 1, job.Filtered)
	assert.Equal(t, models.LeadCreated("Luis", 11, 22), job.Contacts[1])

	require.Len(t, f.leads, 1)
	assert.Equal(t, "Lead - Luis", f.leads[0]["name"])
	assert.Equal(t, float64(7), f.leads[0]["pipeline_id"])
	assert.Equal(t, float64(70), f.leads[0]["status_id"])
}

func TestServerExposesTools(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := NewServer(f.handlers).Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "0.0.1"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer clientSession.Close()

	tools, err := clientSession.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"list_pipelines", "list_statuses", "list_contacts", "validate_numbers", "generate_leads"}, names)

	res, err := clientSession.CallTool(ctx, &mcp.CallToolParams{
		Name:      "validate_numbers",
		Arguments: map[string]any{"numbers": []string{"112"}},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = clientSession.CallTool(ctx, &mcp.CallToolParams{
		Name:      "generate_leads",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError, "tool errors are reported in the result")
}
