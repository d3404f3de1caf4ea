package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
)

// IntegrationID is a UUID-based identifier for Integration
type IntegrationID string

// NewIntegrationID generates a new UUID v4 IntegrationID
func NewIntegrationID() IntegrationID {
	return IntegrationID(uuid.New().String())
}

// Integration is a user's connection to an external task tracker.
// Exactly one credential scheme is populated: an OAuth token pair or an API key pair.
type Integration struct {
	ID       IntegrationID
	UserID   UserID
	Type     types.IntegrationType
	IsActive bool

	AccessToken    string `masq:"secret"`
	RefreshToken   string `masq:"secret"`
	TokenExpiresAt *time.Time
	APIKey         string `masq:"secret"`
	APIToken       string `masq:"secret"`

	WorkspaceID   string
	WorkspaceName string
	ProjectID     string
	ProjectName   string
	BoardID       string
	BoardName     string
	ListID        string
	ListName      string

	AutoSyncEnabled bool
	LastSyncedAt    *time.Time
	LastError       string
	ErrorCount      int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasOAuthCredentials reports whether the OAuth token scheme is populated
func (i *Integration) HasOAuthCredentials() bool {
	return i.AccessToken != ""
}

// HasAPIKeyCredentials reports whether the API key scheme is populated
func (i *Integration) HasAPIKeyCredentials() bool {
	return i.APIKey != "" && i.APIToken != ""
}
