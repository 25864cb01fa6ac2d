package oauth

import (
	"context"

	"github.com/vytor/bizquest/internal/models"
)

// Provider performs the authorization code flow against an identity provider.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*models.ExternalIdentity, error)
}

// Ensure Client implements the interface
var _ Provider = (*Client)(nil)
