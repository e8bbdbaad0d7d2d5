package events

import (
	"time"

	"github.com/secureshare/portal/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountRegistered EventType = "account_registered"
	EventEmailVerified     EventType = "email_verified"
	EventFileUploaded      EventType = "file_uploaded"
	EventLinkIssued        EventType = "link_issued"
	EventFileDownloaded    EventType = "file_downloaded"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	IdentityID string      `json:"identity_id,omitempty"`
	Role       domain.Role `json:"role,omitempty"`
}

// ActorFor builds an Actor from an identity; nil yields an anonymous actor.
func ActorFor(identity *domain.Identity) Actor {
	if identity == nil {
		return Actor{}
	}
	return Actor{IdentityID: identity.ID, Role: identity.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AccountRegisteredPayload payload.
type AccountRegisteredPayload struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	VerificationURL string `json:"verification_url"`
}

// EmailVerifiedPayload payload.
type EmailVerifiedPayload struct {
	Email string `json:"email"`
}

// FileUploadedPayload payload.
type FileUploadedPayload struct {
	Name      string `json:"name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// LinkIssuedPayload payload.
type LinkIssuedPayload struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// FileDownloadedPayload payload.
type FileDownloadedPayload struct {
	IssuedTo string `json:"issued_to"`
}
