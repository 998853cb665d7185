package handlers

import "github.com/modelcontextprotocol/go-sdk/mcp"

// Version is reported to MCP clients.
const Version = "0.1.0"

// NewServer registers every CRM tool on a fresh MCP server.
func NewServer(h *CRMHandlers) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "kommo",
		Version: Version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_pipelines",
		Description: "List the CRM lead pipelines",
	}, h.ListPipelines)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_statuses",
		Description: "List the stages of one CRM pipeline",
	}, h.ListStatuses)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_contacts",
		Description: "List the cached contacts that a sync would process",
	}, h.ListContacts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_numbers",
		Description: "Check which phone numbers are eligible to become leads",
	}, h.ValidateNumbers)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_leads",
		Description: "Create a CRM contact and lead for every eligible contact, paced to respect CRM rate limits",
	}, h.GenerateLeads)

	return server
}
