// ABOUTME: Contact deduplication by normalized phone number
// ABOUTME: Keeps the first contact seen for each digit string across sources
package sync

import "github.com/naobregon27/kommo/models"

type ContactMatcher struct {
	byPhone map[string]*models.Contact
}

// NewContactMatcher creates a matcher seeded with existing contacts.
func NewContactMatcher(contacts []models.Contact) *ContactMatcher {
	m := &ContactMatcher{
		byPhone: make(map[string]*models.Contact, len(contacts)),
	}
	for i := range contacts {
		m.AddContact(&contacts[i])
	}
	return m
}

// FindMatch looks for an existing contact with the same phone digits.
func (m *ContactMatcher) FindMatch(phone string) (*models.Contact, bool) {
	key := normalizePhone(phone)
	if key == "" {
		return nil, false
	}
	contact, found := m.byPhone[key]
	return contact, found
}

// AddContact records contact unless its phone is already known.
func (m *ContactMatcher) AddContact(contact *models.Contact) {
	key := normalizePhone(contact.PhoneNumber)
	if key == "" {
		return
	}
	if _, exists := m.byPhone[key]; !exists {
		m.byPhone[key] = contact
	}
}

func normalizePhone(phone string) string {
	return models.PhoneDigits(phone)
}

// Dedupe drops contacts whose phone digits match an earlier contact.
// Contacts without any digits are kept.
func Dedupe(contacts []models.Contact) []models.Contact {
	m := &ContactMatcher{byPhone: make(map[string]*models.Contact, len(contacts))}
	unique := make([]models.Contact, 0, len(contacts))
	for i := range contacts {
		if _, found := m.FindMatch(contacts[i].PhoneNumber); found {
			continue
		}
		m.AddContact(&contacts[i])
		unique = append(unique, contacts[i])
	}
	return unique
}
