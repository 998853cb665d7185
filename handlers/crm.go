// ABOUTME: CRM MCP tool handlers acting on behalf of one principal
// ABOUTME: Implements list_pipelines, list_statuses, list_contacts, validate_numbers and generate_leads
package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/naobregon27/kommo/models"
	"github.com/naobregon27/kommo/session"
	"github.com/naobregon27/kommo/sync"
)

type CRMHandlers struct {
	sessions    *session.Manager
	userID      uuid.UUID
	validator   sync.Validator
	countryCode string
}

func NewCRMHandlers(sessions *session.Manager, userID uuid.UUID, validator sync.Validator, countryCode string) *CRMHandlers {
	return &CRMHandlers{
		sessions:    sessions,
		userID:      userID,
		validator:   validator,
		countryCode: countryCode,
	}
}

type ListPipelinesInput struct{}

type PipelinesOutput struct {
	Pipelines []models.Pipeline `json:"pipelines"`
}

func (h *CRMHandlers) ListPipelines(ctx context.Context, _ *mcp.CallToolRequest, _ ListPipelinesInput) (*mcp.CallToolResult, PipelinesOutput, error) {
	sess, err := h.sessions.EnsureSession(ctx, h.userID)
	if err != nil {
		return nil, PipelinesOutput{}, err
	}
	pipelines, err := sess.CRM.ListPipelines(ctx)
	if err != nil {
		return nil, PipelinesOutput{}, fmt.Errorf("failed to list pipelines: %w", err)
	}
	return nil, PipelinesOutput{Pipelines: pipelines}, nil
}

type ListStatusesInput struct {
	PipelineID int64 `json:"pipeline_id" jsonschema:"Pipeline id (required)"`
}

type StatusesOutput struct {
	Statuses []models.Stage `json:"statuses"`
}

func (h *CRMHandlers) ListStatuses(ctx context.Context, _ *mcp.CallToolRequest, input ListStatusesInput) (*mcp.CallToolResult, StatusesOutput, error) {
	if input.PipelineID <= 0 {
		return nil, StatusesOutput{}, fmt.Errorf("pipeline_id is required")
	}

	sess, err := h.sessions.EnsureSession(ctx, h.userID)
	if err != nil {
		return nil, StatusesOutput{}, err
	}
	stages, err := sess.CRM.ListStages(ctx, input.PipelineID)
	if err != nil {
		return nil, StatusesOutput{}, fmt.Errorf("failed to list statuses: %w", err)
	}
	return nil, StatusesOutput{Statuses: stages}, nil
}

type ListContactsInput struct{}

type ContactsOutput struct {
	Contacts []models.Contact `json:"contacts"`
}

func (h *CRMHandlers) ListContacts(ctx context.Context, _ *mcp.CallToolRequest, _ ListContactsInput) (*mcp.CallToolResult, ContactsOutput, error) {
	sess, err := h.sessions.EnsureSession(ctx, h.userID)
	if err != nil {
		return nil, ContactsOutput{}, err
	}
	contacts, err := sess.Contacts.Contacts(ctx)
	if err != nil {
		return nil, ContactsOutput{}, err
	}
	return nil, ContactsOutput{Contacts: contacts}, nil
}

type ValidateNumbersInput struct {
	Numbers []string `json:"numbers" jsonschema:"Phone numbers to check"`
}

type NumberCheck struct {
	Number          string `json:"number"`
	FormattedNumber string `json:"formattedNumber"`
	IsValid         bool   `json:"isValid"`
}

type ValidateNumbersOutput struct {
	Results []NumberCheck `json:"results"`
}

// ValidateNumbers runs the eligibility filter without touching the CRM.
func (h *CRMHandlers) ValidateNumbers(_ context.Context, _ *mcp.CallToolRequest, input ValidateNumbersInput) (*mcp.CallToolResult, ValidateNumbersOutput, error) {
	results := make([]NumberCheck, 0, len(input.Numbers))
	for _, n := range input.Numbers {
		results = append(results, NumberCheck{
			Number:          n,
			FormattedNumber: sync.FormatNumber(n, h.countryCode),
			IsValid:         h.validator.IsEligible(n),
		})
	}
	return nil, ValidateNumbersOutput{Results: results}, nil
}

type GenerateLeadsInput struct {
	PipelineID int64    `json:"pipeline_id" jsonschema:"Target pipeline id (required)"`
	StatusID   int64    `json:"status_id,omitempty" jsonschema:"Target stage id, defaults to the pipeline's first stage"`
	ContactIDs []string `json:"contact_ids,omitempty" jsonschema:"Only sync these contact ids"`
}

// GenerateLeads runs a full paced sync. Running it twice over the same
// contacts creates duplicate CRM entities.
func (h *CRMHandlers) GenerateLeads(ctx context.Context, _ *mcp.CallToolRequest, input GenerateLeadsInput) (*mcp.CallToolResult, models.SyncJob, error) {
	if input.PipelineID <= 0 {
		return nil, models.SyncJob{}, fmt.Errorf("pipeline_id is required")
	}

	sess, err := h.sessions.EnsureSession(ctx, h.userID)
	if err != nil {
		return nil, models.SyncJob{}, err
	}
	job, err := sess.Orchestrator.RunSync(ctx, sync.SyncRequest{
		PipelineID: input.PipelineID,
		StatusID:   input.StatusID,
		ContactIDs: input.ContactIDs,
	})
	if err != nil {
		return nil, models.SyncJob{}, err
	}
	return nil, *job, nil
}
