package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

var validate = validator.New()

// Optional is a field that may be absent but is never null.
type Optional[T any] struct {
	Set   bool
	Value T
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Nullable is a clearable field: Set with a nil Value clears it.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func SetTo[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

func Cleared[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

// ClientPatch is a partial update. Only Set fields were requested.
type ClientPatch struct {
	Name              Optional[string]
	CompanyName       Optional[string]
	Email             Optional[string]
	Phone             Nullable[string]
	Website           Nullable[string]
	LifecycleStatus   Optional[types.LifecycleStatus]
	Weightage         Optional[types.Weightage]
	RelationshipLevel Optional[types.RelationshipLevel]
	Source            Optional[types.ClientSource]
	IsHighRisk        Optional[bool]
	LeadScore         Nullable[int]
	ExpectedValue     Nullable[decimal.Decimal]
	OwnerID           Optional[string]
	Notes             Nullable[string]
}

// Fields lists the requested fields in a stable order.
func (p *ClientPatch) Fields() []ClientField {
	var out []ClientField
	add := func(set bool, f ClientField) {
		if set {
			out = append(out, f)
		}
	}
	add(p.Name.Set, FieldName)
	add(p.CompanyName.Set, FieldCompanyName)
	add(p.Email.Set, FieldEmail)
	add(p.Phone.Set, FieldPhone)
	add(p.Website.Set, FieldWebsite)
	add(p.LifecycleStatus.Set, FieldLifecycleStatus)
	add(p.Weightage.Set, FieldWeightage)
	add(p.RelationshipLevel.Set, FieldRelationshipLevel)
	add(p.Source.Set, FieldSource)
	add(p.IsHighRisk.Set, FieldIsHighRisk)
	add(p.LeadScore.Set, FieldLeadScore)
	add(p.ExpectedValue.Set, FieldExpectedValue)
	add(p.OwnerID.Set, FieldOwnerID)
	add(p.Notes.Set, FieldNotes)
	return out
}

// CreateClientRequest carries a new client. Enum fields left empty take
// their defaults.
type CreateClientRequest struct {
	Name              string
	CompanyName       string
	Email             string
	OwnerID           string
	Phone             *string
	Website           *string
	LifecycleStatus   types.LifecycleStatus
	Weightage         types.Weightage
	RelationshipLevel types.RelationshipLevel
	Source            types.ClientSource
	IsHighRisk        bool
	LeadScore         *int
	ExpectedValue     decimal.NullDecimal
	Notes             *string
}

// ============================================
// Boundary parsing
// ============================================

// RequestedFields lists the keys of a raw body for the permission gate.
// Unknown keys are kept, so a caller limited to notes is refused before
// learning which fields exist.
func RequestedFields(raw map[string]json.RawMessage) []ClientField {
	fields := make([]ClientField, 0, len(raw))
	for key := range raw {
		fields = append(fields, ClientField(key))
	}
	slices.Sort(fields)
	return fields
}

// ParseClientPatch decodes a partial field map. Numeric fields accept a
// number, a numeric string, an empty string or null; the last two clear.
func ParseClientPatch(raw map[string]json.RawMessage) (*ClientPatch, error) {
	p := &ClientPatch{}
	for key, value := range raw {
		var err error
		switch ClientField(key) {
		case FieldName:
			p.Name, err = requiredString(key, value)
		case FieldCompanyName:
			p.CompanyName, err = requiredString(key, value)
		case FieldEmail:
			p.Email, err = requiredString(key, value)
		case FieldPhone:
			p.Phone, err = optionalString(key, value, true)
		case FieldWebsite:
			p.Website, err = optionalString(key, value, true)
		case FieldNotes:
			p.Notes, err = optionalString(key, value, false)
		case FieldLifecycleStatus:
			p.LifecycleStatus, err = enumField(key, value, types.IsValidLifecycleStatus)
		case FieldWeightage:
			p.Weightage, err = enumField(key, value, types.IsValidWeightage)
		case FieldRelationshipLevel:
			p.RelationshipLevel, err = enumField(key, value, types.IsValidRelationshipLevel)
		case FieldSource:
			p.Source, err = enumField(key, value, types.IsValidSource)
		case FieldIsHighRisk:
			var b bool
			b, err = boolField(key, value)
			p.IsHighRisk = Some(b)
		case FieldLeadScore:
			p.LeadScore, err = leadScoreField(value)
		case FieldExpectedValue:
			p.ExpectedValue, err = expectedValueField(value)
		case FieldOwnerID:
			p.OwnerID, err = requiredString(key, value)
		case "isArchived":
			err = invalid("use the archive endpoint to change isArchived")
		default:
			err = invalid(fmt.Sprintf("unknown field %q", key))
		}
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ParseCreateClientRequest decodes and validates a creation payload.
func ParseCreateClientRequest(raw map[string]json.RawMessage) (*CreateClientRequest, error) {
	if _, ok := raw["isArchived"]; ok {
		return nil, invalid("clients cannot be created archived")
	}
	p, err := ParseClientPatch(raw)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, f := range []struct {
		set  bool
		name ClientField
	}{
		{p.Name.Set, FieldName},
		{p.CompanyName.Set, FieldCompanyName},
		{p.Email.Set, FieldEmail},
		{p.OwnerID.Set, FieldOwnerID},
	} {
		if !f.set {
			missing = append(missing, string(f.name))
		}
	}
	if len(missing) > 0 {
		return nil, invalid("missing required fields: " + strings.Join(missing, ", "))
	}

	req := &CreateClientRequest{
		Name:              p.Name.Value,
		CompanyName:       p.CompanyName.Value,
		Email:             p.Email.Value,
		OwnerID:           p.OwnerID.Value,
		Phone:             p.Phone.Value,
		Website:           p.Website.Value,
		LifecycleStatus:   p.LifecycleStatus.Value,
		Weightage:         p.Weightage.Value,
		RelationshipLevel: p.RelationshipLevel.Value,
		Source:            p.Source.Value,
		IsHighRisk:        p.IsHighRisk.Value,
		LeadScore:         p.LeadScore.Value,
		Notes:             p.Notes.Value,
	}
	if p.ExpectedValue.Value != nil {
		req.ExpectedValue = decimal.NewNullDecimal(*p.ExpectedValue.Value)
	}
	return req, nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

func requiredString(key string, value json.RawMessage) (Optional[string], error) {
	var s string
	if isNull(value) || json.Unmarshal(value, &s) != nil {
		return Optional[string]{}, invalid(key + " must be a string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return Optional[string]{}, invalid(key + " cannot be empty")
	}
	return Some(s), nil
}

func optionalString(key string, value json.RawMessage, trim bool) (Nullable[string], error) {
	if isNull(value) {
		return Cleared[string](), nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return Nullable[string]{}, invalid(key + " must be a string")
	}
	if trim {
		s = strings.TrimSpace(s)
	}
	if strings.TrimSpace(s) == "" {
		return Cleared[string](), nil
	}
	return SetTo(s), nil
}

func enumField[T ~string](key string, value json.RawMessage, valid func(T) bool) (Optional[T], error) {
	var s string
	if isNull(value) || json.Unmarshal(value, &s) != nil || !valid(T(s)) {
		return Optional[T]{}, invalid(fmt.Sprintf("invalid %s", key))
	}
	return Some(T(s)), nil
}

func boolField(key string, value json.RawMessage) (bool, error) {
	var b bool
	if isNull(value) || json.Unmarshal(value, &b) != nil {
		return false, invalid(key + " must be a boolean")
	}
	return b, nil
}

// numericField returns nil for null and "", otherwise the parsed number.
func numericField(key string, value json.RawMessage) (*decimal.Decimal, error) {
	if isNull(value) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
	} else {
		s = string(bytes.TrimSpace(value))
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, invalid(key + " must be a number")
	}
	if d.IsNegative() {
		return nil, invalid(key + " cannot be negative")
	}
	return &d, nil
}

func leadScoreField(value json.RawMessage) (Nullable[int], error) {
	d, err := numericField(string(FieldLeadScore), value)
	if err != nil {
		return Nullable[int]{}, err
	}
	if d == nil {
		return Cleared[int](), nil
	}
	if !d.IsInteger() || !d.LessThanOrEqual(decimal.NewFromInt(1<<31-1)) {
		return Nullable[int]{}, invalid("leadScore must be a whole number")
	}
	return SetTo(int(d.IntPart())), nil
}

func expectedValueField(value json.RawMessage) (Nullable[decimal.Decimal], error) {
	d, err := numericField(string(FieldExpectedValue), value)
	if err != nil {
		return Nullable[decimal.Decimal]{}, err
	}
	if d == nil {
		return Cleared[decimal.Decimal](), nil
	}
	return SetTo(d.Round(2)), nil
}

func validateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return invalid("invalid email address")
	}
	return nil
}
