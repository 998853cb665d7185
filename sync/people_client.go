// ABOUTME: Google People API contact source
// ABOUTME: Pages through the principal's connections and normalizes them into contacts
package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/models"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"
)

const (
	peoplePageSize     = 100
	peoplePersonFields = "names,phoneNumbers,emailAddresses"

	// DefaultContactName is used for connections without a display name.
	DefaultContactName = "Sin nombre"
)

type PeopleSource struct {
	service *people.Service
	logger  *zap.Logger
}

// NewPeopleSource creates a People API source. Pass option.WithTokenSource
// (or option.WithHTTPClient) to authenticate.
func NewPeopleSource(ctx context.Context, logger *zap.Logger, opts ...option.ClientOption) (*PeopleSource, error) {
	service, err := people.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create People service: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeopleSource{service: service, logger: logger}, nil
}

// FetchContacts pages through every connection and returns those with a
// phone number, deduplicated by phone digits.
func (p *PeopleSource) FetchContacts(ctx context.Context) ([]models.Contact, error) {
	var contacts []models.Contact
	pageToken := ""
	pages := 0

	for {
		call := p.service.People.Connections.List("people/me").
			PageSize(peoplePageSize).
			PersonFields(peoplePersonFields).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		response, err := call.Do()
		if err != nil {
			return nil, apperr.Upstream("failed to fetch contacts", 0, nil, err)
		}
		pages++

		if response == nil {
			break
		}
		for _, person := range response.Connections {
			if c, ok := convertPerson(person); ok {
				contacts = append(contacts, c)
			}
		}

		pageToken = response.NextPageToken
		if pageToken == "" {
			break
		}
	}

	unique := Dedupe(contacts)
	p.logger.Info("contacts: fetched from People API",
		zap.Int("pages", pages),
		zap.Int("contacts", len(unique)))
	return unique, nil
}

// convertPerson maps a connection to a contact. Connections without a
// phone number are skipped.
func convertPerson(person *people.Person) (models.Contact, bool) {
	phone := primaryPhone(person.PhoneNumbers)
	if phone == "" {
		return models.Contact{}, false
	}

	name := DefaultContactName
	if len(person.Names) > 0 && strings.TrimSpace(person.Names[0].DisplayName) != "" {
		name = strings.TrimSpace(person.Names[0].DisplayName)
	}

	return models.Contact{
		ID:          "people-" + strings.TrimPrefix(person.ResourceName, "people/"),
		Name:        name,
		PhoneNumber: stripSeparators(phone),
		Email:       primaryEmail(person.EmailAddresses),
		Source:      models.SourceAPI,
	}, true
}

// primaryPhone prefers the primary number, otherwise the first non-empty one.
func primaryPhone(numbers []*people.PhoneNumber) string {
	var first string
	for _, n := range numbers {
		if n == nil || n.Value == "" {
			continue
		}
		if first == "" {
			first = n.Value
		}
		if n.Metadata != nil && n.Metadata.Primary {
			return n.Value
		}
	}
	return first
}

func primaryEmail(emails []*people.EmailAddress) string {
	var first string
	for _, e := range emails {
		if e == nil || e.Value == "" {
			continue
		}
		if first == "" {
			first = e.Value
		}
		if e.Metadata != nil && e.Metadata.Primary {
			return e.Value
		}
	}
	return first
}

// stripSeparators removes whitespace, hyphens and parentheses but keeps a leading '+'.
func stripSeparators(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '-', '(', ')':
			return -1
		}
		return r
	}, phone)
}
