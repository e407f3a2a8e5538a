package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex run_01J9Z6Y4QF8R2KQ6X9W1V3T5N7
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

// GenerateDeterministicID returns a name-based (SHA1) UUID for the given parts.
// The same parts always produce the same id.
func GenerateDeterministicID(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.Join(parts, "|"))).String()
}

const (
	// Prefixes for all domains and entities

	UUID_PREFIX_RUN         = "run"
	UUID_PREFIX_CORRELATION = "corr"

	// Deterministic notice and event identifiers
	NOTICE_ID_PREFIX = "NOTICE-"
	EVENT_ID_PREFIX  = "EVENT-"
)

// NoticeID returns the notice id for an invoice
func NoticeID(invoiceID string) string {
	return NOTICE_ID_PREFIX + invoiceID
}

// EventID returns the event id for a notice
func EventID(noticeID string) string {
	return EVENT_ID_PREFIX + noticeID
}
