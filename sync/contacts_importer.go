// ABOUTME: Flat-file contact importer
// ABOUTME: Parses "name,phone" lines from an uploaded text file into contacts
package sync

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/models"
	"github.com/oklog/ulid/v2"
)

// MaxImportBytes bounds an uploaded contacts file.
const MaxImportBytes = 5 << 20

// ImportResult summarizes a parsed file.
type ImportResult struct {
	Contacts []models.Contact
	Skipped  int
}

// ParseContactFile reads lines of "name,phone". Blank lines are ignored,
// CRLF endings are accepted and the phone is reduced to digits. Lines
// missing either part are skipped. A file that is not plain text or has no
// usable line is a ValidationError.
func ParseContactFile(r io.Reader) (*ImportResult, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImportBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read contacts file: %w", err)
	}
	if len(data) > MaxImportBytes {
		return nil, apperr.Validation("contacts file is too large")
	}
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return nil, apperr.Validation("contacts file must be plain text")
	}

	result := &ImportResult{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), MaxImportBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimSuffix(scanner.Text(), "\r"))
		if line == "" {
			continue
		}

		name, phone, ok := strings.Cut(line, ",")
		name = strings.Join(strings.Fields(name), " ")
		phone = models.PhoneDigits(phone)
		if !ok || name == "" || phone == "" {
			result.Skipped++
			continue
		}

		result.Contacts = append(result.Contacts, models.Contact{
			ID:          "txt-" + ulid.Make().String(),
			Name:        name,
			PhoneNumber: phone,
			Source:      models.SourceFile,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, apperr.Validation("contacts file could not be parsed")
	}

	if len(result.Contacts) == 0 {
		return nil, apperr.Validation("contacts file has no valid name,phone lines")
	}
	return result, nil
}
