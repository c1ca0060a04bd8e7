// Package address manages the shipping address kept on the user profile.
package address

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/greenhouse/internal/docstore"
)

// UsersCollection holds user profile documents keyed by principal uid.
const UsersCollection = "users"

// ErrNoPrincipal is returned when an operation needs a signed-in user.
var ErrNoPrincipal = errors.New("no authenticated principal")

// Address is a postal shipping address.
type Address struct {
	AddressLine1 string `json:"addressLine1" bson:"addressLine1"`
	AddressLine2 string `json:"addressLine2" bson:"addressLine2"`
	City         string `json:"city" bson:"city"`
	State        string `json:"state" bson:"state"`
	PostalCode   string `json:"postalCode" bson:"postalCode"`
	Country      string `json:"country" bson:"country"`
	Phone        string `json:"phone" bson:"phone"`
}

// ValidationError lists required fields that are blank.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required address fields: " + strings.Join(e.Missing, ", ")
}

// Validate checks that every required field is present.
func (a Address) Validate() error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"addressLine1", a.AddressLine1},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// profile is the part of the user document the manager reads.
type profile struct {
	ShippingAddress *Address `json:"shippingAddress" bson:"shippingAddress"`
}

// Manager loads and saves shipping addresses.
type Manager struct {
	store docstore.Store
}

// NewManager returns a Manager on store.
func NewManager(store docstore.Store) *Manager {
	return &Manager{store: store}
}

// Load returns the saved address of userID, or nil when the user has none.
func (m *Manager) Load(ctx context.Context, userID string) (*Address, error) {
	if userID == "" {
		return nil, ErrNoPrincipal
	}

	var p profile
	err := m.store.Get(ctx, UsersCollection, userID, &p)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load profile")
	}
	return p.ShippingAddress, nil
}

// Save validates addr and merges it into the profile of userID. Other
// profile fields are left intact.
func (m *Manager) Save(ctx context.Context, userID string, addr Address) error {
	if userID == "" {
		return ErrNoPrincipal
	}
	if err := addr.Validate(); err != nil {
		return err
	}

	if err := m.store.Merge(ctx, UsersCollection, userID, map[string]any{
		"shippingAddress": addr,
	}); err != nil {
		return errors.Wrap(err, "save shipping address")
	}
	return nil
}
