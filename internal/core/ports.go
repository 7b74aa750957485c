package core

import (
	"context"
)

// MessageSource defines the interface for retrieving messages from a mail
// provider. Concrete providers (IMAP, SMTP gateway, eml directory) are
// interchangeable implementations selected by configuration.
type MessageSource interface {
	// Connect establishes the provider session.
	Connect() error

	// Fetch retrieves up to maxCount messages.
	Fetch(maxCount int) ([]Message, error)

	// Disconnect releases the provider session.
	Disconnect() error

	// Name identifies the provider for logging.
	Name() string
}

// ModelStore persists named model artifacts and JSON state. Implementations
// must tolerate a missing or corrupt artifact by reporting absence rather
// than failing, so callers can fall back to freshly-initialized defaults.
type ModelStore interface {
	// Load retrieves an artifact by key. The second return value reports
	// whether a usable artifact was found.
	Load(key string) ([]byte, bool)

	// Save stores an artifact under the given key, replacing any previous
	// version.
	Save(key string, data []byte) error

	// List returns all stored keys with the given prefix.
	List(prefix string) ([]string, error)
}

// Advisor is an LLM-backed advisory model that scores message text for
// spam/phishing likelihood.
type Advisor interface {
	Analyze(ctx context.Context, msg *Message) (*AdvisorResult, error)
}

// ThreatIntel is the contract the scoring engine expects from a
// threat-intelligence collaborator. All methods degrade to error statuses
// instead of failing the caller.
type ThreatIntel interface {
	// CheckURLs looks up a batch of URLs against reputation services.
	CheckURLs(ctx context.Context, urls []string) map[string]URLCheckResult

	// CheckSenderReputation queries DNS blocklists for a sender domain.
	CheckSenderReputation(ctx context.Context, domain string) ReputationResult

	// SpamScore computes a SpamAssassin-style score for raw message text.
	SpamScore(raw string) float64

	// AnalyzeAttachment hashes a file and queries attachment reputation.
	AnalyzeAttachment(ctx context.Context, path string) AttachmentScanResult

	// AnalyzeTextLocal runs the local advisory model over message text.
	AnalyzeTextLocal(ctx context.Context, text string) AdvisorResult
}
