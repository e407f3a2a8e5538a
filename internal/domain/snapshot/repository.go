package snapshot

import "context"

// Document names of the per-tenant state
const (
	DocApprovals  = "approvals"
	DocSentKeys   = "sent_keys"
	DocBounce     = "bounce_state"
	DocInbox      = "bounce_inbox"
	DocRateWindow = "rate_window"
)

// Repository is a durable, per-tenant partitioned store of named documents.
// Put replaces a whole document atomically: readers observe either the old
// or the new bytes, never a mix.
type Repository interface {
	// Get returns the document bytes, or an ErrNotFound-marked error
	Get(ctx context.Context, tenantID, name string) ([]byte, error)
	// Put writes the full document
	Put(ctx context.Context, tenantID, name string, data []byte) error
	// Delete removes the document; deleting a missing document is not an error
	Delete(ctx context.Context, tenantID, name string) error
	// Close releases backend resources
	Close() error
}
