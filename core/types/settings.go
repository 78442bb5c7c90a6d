package types

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"transport-cost/core/driver"
	"transport-cost/internal/errors"
)

// Component is a cost category that can be switched on or off per route
type Component string

const (
	ComponentFuel     Component = "fuel"
	ComponentToll     Component = "toll"
	ComponentDriver   Component = "driver"
	ComponentOverhead Component = "overhead"
	ComponentEvent    Component = "event"
)

// AllComponentNames lists every component in breakdown order
var AllComponentNames = []Component{ComponentFuel, ComponentToll, ComponentDriver, ComponentOverhead, ComponentEvent}

var componentBits = map[Component]Components{
	ComponentFuel:     1 << 0,
	ComponentToll:     1 << 1,
	ComponentDriver:   1 << 2,
	ComponentOverhead: 1 << 3,
	ComponentEvent:    1 << 4,
}

// Components is a fixed set of capability tags
type Components uint8

// AllComponents enables every cost category
var AllComponents = NewComponents(AllComponentNames...)

// NewComponents builds a set from known components; unknown names are ignored
func NewComponents(cs ...Component) Components {
	var set Components
	for _, c := range cs {
		set |= componentBits[c]
	}
	return set
}

// ParseComponents parses component names. "events" is accepted for "event".
func ParseComponents(names []string) (Components, error) {
	var set Components
	var unknown []string
	for _, n := range names {
		c := Component(strings.ToLower(strings.TrimSpace(n)))
		if c == "events" {
			c = ComponentEvent
		}
		bit, ok := componentBits[c]
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		set |= bit
	}
	if len(unknown) > 0 {
		return 0, errors.Validationf("unknown cost component(s): %s", strings.Join(unknown, ", ")).
			WithContext("allowed", AllComponentNames)
	}
	return set, nil
}

// Has reports whether c is enabled
func (s Components) Has(c Component) bool {
	bit, ok := componentBits[c]
	return ok && s&bit != 0
}

// With returns the set with c enabled
func (s Components) With(c Component) Components {
	return s | componentBits[c]
}

// Without returns the set with c disabled
func (s Components) Without(c Component) Components {
	return s &^ componentBits[c]
}

// List returns enabled components in breakdown order
func (s Components) List() []Component {
	out := make([]Component, 0, len(AllComponentNames))
	for _, c := range AllComponentNames {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Strings returns enabled component names
func (s Components) Strings() []string {
	list := s.List()
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = string(c)
	}
	return out
}

// MarshalJSON encodes the set as a list of names
func (s Components) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON decodes a list of names
func (s *Components) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set, err := ParseComponents(names)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// CostSettings configures which components are active for a route and at what rates.
type CostSettings struct {
	ID               uuid.UUID
	RouteID          uuid.UUID
	BusinessEntityID uuid.UUID
	Enabled          Components
	Rates            map[string]decimal.Decimal

	// DriverRates is nil for settings created before driver pay models existed
	DriverRates driver.Rates

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Copy returns a deep copy; callers may modify the copy's rate map freely
func (s CostSettings) Copy() CostSettings {
	out := s
	out.Rates = make(map[string]decimal.Decimal, len(s.Rates))
	for k, v := range s.Rates {
		out.Rates[k] = v
	}
	return out
}

// Merged returns a copy with overrides applied on top of the existing rates
func (s CostSettings) Merged(overrides map[string]decimal.Decimal) CostSettings {
	out := s.Copy()
	for k, v := range overrides {
		out.Rates[k] = v
	}
	return out
}

// Rate returns the rate stored under key
func (s CostSettings) Rate(key string) (decimal.Decimal, bool) {
	v, ok := s.Rates[key]
	return v, ok
}

// RateKeys returns rate keys in sorted order
func (s CostSettings) RateKeys() []string {
	keys := make([]string, 0, len(s.Rates))
	for k := range s.Rates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type costSettingsJSON struct {
	ID               uuid.UUID                  `json:"id"`
	RouteID          uuid.UUID                  `json:"route_id"`
	BusinessEntityID uuid.UUID                  `json:"business_entity_id"`
	Enabled          Components                 `json:"enabled_components"`
	Rates            map[string]decimal.Decimal `json:"rates"`
	DriverRates      *driver.Spec               `json:"driver_rates,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

// MarshalJSON flattens driver rates into their serializable spec
func (s CostSettings) MarshalJSON() ([]byte, error) {
	out := costSettingsJSON{
		ID:               s.ID,
		RouteID:          s.RouteID,
		BusinessEntityID: s.BusinessEntityID,
		Enabled:          s.Enabled,
		Rates:            s.Rates,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	if s.DriverRates != nil {
		spec := driver.SpecOf(s.DriverRates)
		out.DriverRates = &spec
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds and validates driver rates
func (s *CostSettings) UnmarshalJSON(data []byte) error {
	var in costSettingsJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = CostSettings{
		ID:               in.ID,
		RouteID:          in.RouteID,
		BusinessEntityID: in.BusinessEntityID,
		Enabled:          in.Enabled,
		Rates:            in.Rates,
		CreatedAt:        in.CreatedAt,
		UpdatedAt:        in.UpdatedAt,
	}
	if s.Rates == nil {
		s.Rates = map[string]decimal.Decimal{}
	}
	if in.DriverRates != nil {
		r, err := in.DriverRates.Build()
		if err != nil {
			return err
		}
		s.DriverRates = r
	}
	return nil
}
