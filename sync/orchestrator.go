// ABOUTME: Contact-to-lead sync job runner
// ABOUTME: Filters contacts, creates CRM contacts and leads sequentially and aggregates outcomes
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/models"
	"go.uber.org/zap"
)

// ReasonCancelled is recorded for contacts never reached because the job was cancelled.
const ReasonCancelled = "sync cancelled"

// ContactSource yields the principal's current contact list.
type ContactSource interface {
	Contacts(ctx context.Context) ([]models.Contact, error)
}

// LeadCreator is the part of the CRM client the sync drives.
type LeadCreator interface {
	CreateContact(ctx context.Context, name, phone, email string) (int64, error)
	CreateLead(ctx context.Context, contactID int64, name string, pipelineID, statusID int64) (int64, error)
}

// ValidationRecorder is implemented by sources that keep the validation
// result of each contact.
type ValidationRecorder interface {
	RecordValidation(ctx context.Context, contacts []models.Contact) error
}

// SyncRequest selects the target pipeline and, optionally, a stage and a
// subset of contact ids.
type SyncRequest struct {
	PipelineID int64
	StatusID   int64
	ContactIDs []string
}

type Orchestrator struct {
	source    ContactSource
	crm       LeadCreator
	pacer     Pacer
	validator Validator
	logger    *zap.Logger
	now       func() time.Time
}

func NewOrchestrator(source ContactSource, crm LeadCreator, pacer Pacer, validator Validator, logger *zap.Logger) *Orchestrator {
	if pacer == nil {
		pacer = NoopPacer{}
	}
	if validator.denylist == nil {
		validator = defaultValidator
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		source:    source,
		crm:       crm,
		pacer:     pacer,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// RunSync processes the selected contacts one at a time. Per-contact
// failures are recorded in the job; only a missing pipeline or a failed
// contact fetch abort it. Re-running over the same contacts creates
// duplicate CRM entities.
func (o *Orchestrator) RunSync(ctx context.Context, req SyncRequest) (*models.SyncJob, error) {
	if req.PipelineID <= 0 {
		return nil, apperr.Validation("pipeline required")
	}

	contacts, err := o.source.Contacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load contacts: %w", err)
	}
	contacts = o.markValidated(selectContacts(contacts, req.ContactIDs))
	if recorder, ok := o.source.(ValidationRecorder); ok {
		if err := recorder.RecordValidation(ctx, contacts); err != nil {
			o.logger.Warn("sync: failed to record validation", zap.Error(err))
		}
	}

	job := &models.SyncJob{
		PipelineID: req.PipelineID,
		StatusID:   req.StatusID,
		Total:      len(contacts),
		Contacts:   make([]models.SyncOutcome, 0, len(contacts)),
	}

	o.logger.Info("sync: starting",
		zap.Int64("pipeline_id", req.PipelineID),
		zap.Int64("status_id", req.StatusID),
		zap.Int("contacts", job.Total))

	for i, contact := range contacts {
		if ctx.Err() != nil {
			o.cancelRemaining(job, contacts[i:])
			break
		}

		if !contact.IsValid {
			job.Contacts = append(job.Contacts, models.FilteredOut(contact.Name, ReasonInvalidPhone))
			job.Filtered++
			o.logger.Debug("sync: contact filtered", zap.String("id", contact.ID))
			continue
		}

		if err := o.pacer.Wait(ctx); err != nil {
			o.cancelRemaining(job, contacts[i:])
			break
		}

		outcome := o.syncContact(ctx, contact, req)
		if outcome.Success {
			job.Processed++
		}
		job.Contacts = append(job.Contacts, outcome)
	}

	o.logger.Info("sync: finished",
		zap.Int64("pipeline_id", req.PipelineID),
		zap.Int("total", job.Total),
		zap.Int("processed", job.Processed),
		zap.Int("filtered", job.Filtered),
		zap.Int("failed", job.Failed()))

	return job, nil
}

func (o *Orchestrator) syncContact(ctx context.Context, contact models.Contact, req SyncRequest) models.SyncOutcome {
	contactID, err := o.crm.CreateContact(ctx, contact.Name, contact.PhoneNumber, contact.Email)
	if err != nil {
		o.logger.Warn("sync: contact creation failed", zap.String("id", contact.ID), zap.Error(err))
		return models.ContactCreateFailed(contact.Name, err.Error())
	}

	leadID, err := o.crm.CreateLead(ctx, contactID, contact.Name, req.PipelineID, req.StatusID)
	if err != nil {
		o.logger.Warn("sync: lead creation failed",
			zap.String("id", contact.ID),
			zap.Int64("contact_id", contactID),
			zap.Error(err))
		return models.LeadCreateFailed(contact.Name, contactID, err.Error())
	}

	o.logger.Debug("sync: lead created",
		zap.String("id", contact.ID),
		zap.Int64("contact_id", contactID),
		zap.Int64("lead_id", leadID))
	return models.LeadCreated(contact.Name, contactID, leadID)
}

func (o *Orchestrator) cancelRemaining(job *models.SyncJob, rest []models.Contact) {
	o.logger.Warn("sync: cancelled", zap.Int("remaining", len(rest)))
	for _, c := range rest {
		job.Contacts = append(job.Contacts, models.ContactCreateFailed(c.Name, ReasonCancelled))
	}
}

// markValidated returns copies of contacts carrying the eligibility of
// their phone number and the time it was checked.
func (o *Orchestrator) markValidated(contacts []models.Contact) []models.Contact {
	at := o.now().UTC()
	out := make([]models.Contact, len(contacts))
	for i, c := range contacts {
		c.IsValid = o.validator.IsEligible(c.PhoneNumber)
		c.ValidatedAt = &at
		out[i] = c
	}
	return out
}

// selectContacts keeps contacts whose id is in ids, in source order. An
// empty ids selects everything.
func selectContacts(contacts []models.Contact, ids []string) []models.Contact {
	if len(ids) == 0 {
		return contacts
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	selected := make([]models.Contact, 0, len(ids))
	for _, c := range contacts {
		if _, ok := wanted[c.ID]; ok {
			selected = append(selected, c)
		}
	}
	return selected
}
