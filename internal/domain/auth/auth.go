// Package auth is the storefront identity provider: email/password and
// federated sign-in backed by the document store, with opaque bearer
// session tokens.
package auth

import (
	"time"

	"github.com/go-faster/errors"
)

// Collections used by the provider.
const (
	UsersCollection    = "users"
	SessionsCollection = "sessions"
)

// Sign-in providers recorded on the user profile.
const (
	ProviderPassword = "password"
)

// Sentinel errors for authentication.
var (
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired session token")
	ErrInvalidFederated   = errors.New("federated credential requires provider, subject and email")
)

// Principal is an authenticated user.
type Principal struct {
	UID         string
	Email       string
	DisplayName string
}

// FederatedCredential is an assertion from an external identity provider
// that has already been verified upstream.
type FederatedCredential struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
}

// Session is an issued bearer token.
type Session struct {
	Token     string
	Principal Principal
	ExpiresAt time.Time
}

// user is the profile document in UsersCollection. The shipping address is
// merged into the same document by the address manager, so the provider
// never replaces it.
type user struct {
	Email            string    `json:"email" bson:"email"`
	DisplayName      string    `json:"displayName" bson:"displayName"`
	Provider         string    `json:"provider" bson:"provider"`
	PasswordHash     string    `json:"passwordHash,omitempty" bson:"passwordHash,omitempty"`
	FederatedSubject string    `json:"federatedSubject,omitempty" bson:"federatedSubject,omitempty"`
	CreatedAt        time.Time `json:"createdAt" bson:"createdAt"`
}

// session is the document in SessionsCollection, keyed by TokenHash.
type session struct {
	TokenHash string    `json:"tokenHash" bson:"tokenHash"`
	UserID    string    `json:"userId" bson:"userId"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt" bson:"expiresAt"`
}
