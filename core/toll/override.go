package toll

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"transport-cost/internal/errors"
)

// Override is a business-specific multiplier applied to the base toll rate
// for one country and vehicle class.
type Override struct {
	ID               uuid.UUID       `json:"id"`
	BusinessEntityID uuid.UUID       `json:"business_entity_id"`
	CountryCode      string          `json:"country_code"`
	VehicleClass     string          `json:"vehicle_class"`
	RateMultiplier   decimal.Decimal `json:"rate_multiplier"`
	RouteType        string          `json:"route_type,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Validate checks the override before it is stored
func (o *Override) Validate() error {
	var violations []errors.Violation
	if o.BusinessEntityID == uuid.Nil {
		violations = append(violations, errors.Violation{Key: "business_entity_id", Value: "nil", Reason: "required"})
	}
	if len(o.CountryCode) != 2 || strings.ToUpper(o.CountryCode) != o.CountryCode {
		violations = append(violations, errors.Violation{Key: "country_code", Value: o.CountryCode, Reason: "must be an ISO alpha-2 code"})
	}
	if strings.TrimSpace(o.VehicleClass) == "" {
		violations = append(violations, errors.Violation{Key: "vehicle_class", Value: o.VehicleClass, Reason: "required"})
	}
	if !o.RateMultiplier.IsPositive() {
		violations = append(violations, errors.Violation{Key: "rate_multiplier", Value: o.RateMultiplier.String(), Reason: "must be positive"})
	}
	if len(violations) > 0 {
		err := errors.InvalidRates(violations)
		err.Message = "invalid toll rate override"
		return err
	}
	return nil
}

// OverrideStore persists overrides. Lookups return (nil, nil) when no
// override exists for the exact tuple.
type OverrideStore interface {
	FindOverride(ctx context.Context, businessID uuid.UUID, country, vehicleClass string) (*Override, error)
	SaveOverride(ctx context.Context, o *Override) error
	ListOverrides(ctx context.Context, businessID uuid.UUID) ([]Override, error)
}

// Resolver answers "is there an override for this business, country and vehicle class?"
type Resolver struct {
	store OverrideStore
}

// NewResolver creates a resolver; a nil store resolves nothing
func NewResolver(store OverrideStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the override multiplier for the exact tuple, or an invalid
// NullDecimal when the base table applies.
func (r *Resolver) Resolve(ctx context.Context, businessID uuid.UUID, country, vehicleClass string) (decimal.NullDecimal, error) {
	if r == nil || r.store == nil {
		return decimal.NullDecimal{}, nil
	}
	o, err := r.store.FindOverride(ctx, businessID, country, vehicleClass)
	if err != nil {
		return decimal.NullDecimal{}, errors.Wrapf(errors.TypeInternal, err, "lookup toll override %s/%s", country, vehicleClass)
	}
	if o == nil {
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(o.RateMultiplier), nil
}

type overrideKey struct {
	business uuid.UUID
	country  string
	class    string
}

// MemoryOverrideStore is an in-process OverrideStore
type MemoryOverrideStore struct {
	mu        sync.RWMutex
	overrides map[overrideKey]Override
}

// NewMemoryOverrideStore creates an empty store
func NewMemoryOverrideStore() *MemoryOverrideStore {
	return &MemoryOverrideStore{overrides: make(map[overrideKey]Override)}
}

// FindOverride implements OverrideStore
func (m *MemoryOverrideStore) FindOverride(_ context.Context, businessID uuid.UUID, country, vehicleClass string) (*Override, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.overrides[overrideKey{businessID, country, vehicleClass}]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

// SaveOverride implements OverrideStore; a later save for the same tuple replaces the earlier one
func (m *MemoryOverrideStore) SaveOverride(_ context.Context, o *Override) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[overrideKey{o.BusinessEntityID, o.CountryCode, o.VehicleClass}] = *o
	return nil
}

// ListOverrides implements OverrideStore, sorted by country then vehicle class
func (m *MemoryOverrideStore) ListOverrides(_ context.Context, businessID uuid.UUID) ([]Override, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Override
	for k, o := range m.overrides {
		if k.business == businessID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CountryCode != out[j].CountryCode {
			return out[i].CountryCode < out[j].CountryCode
		}
		return out[i].VehicleClass < out[j].VehicleClass
	})
	return out, nil
}
