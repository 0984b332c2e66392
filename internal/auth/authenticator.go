package auth

import (
	"context"

	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// The service layer only depends on this, so the password scheme can be
// swapped without touching handlers.
type Authenticator interface {
	// Register creates a new cashier account with the given email and
	// credential.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate verifies the credentials and returns the user if valid.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's
	// requirements.
	ValidateCredential(credential string) error
}
