package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

// fieldChange is one field whose requested value differs from the current one.
type fieldChange struct {
	Field    ClientField
	From, To string
}

// clientDiff holds the effective changes of a patch against one observed state.
type clientDiff struct {
	Changes []fieldChange
	// NewOwnerID is set when ownership moves.
	NewOwnerID string
}

func (d *clientDiff) Empty() bool {
	return len(d.Changes) == 0
}

func (d *clientDiff) Fields() []string {
	out := make([]string, len(d.Changes))
	for i, c := range d.Changes {
		out[i] = string(c.Field)
	}
	return out
}

func (d *clientDiff) has(f ClientField) bool {
	for _, c := range d.Changes {
		if c.Field == f {
			return true
		}
	}
	return false
}

const none = "none"

func strOrNone(p *string) string {
	if p == nil {
		return none
	}
	return *p
}

func intOrNone(p *int) string {
	if p == nil {
		return none
	}
	return strconv.Itoa(*p)
}

func decimalOrNone(d decimal.NullDecimal) string {
	if !d.Valid {
		return none
	}
	return d.Decimal.StringFixed(2)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalNullDecimal(a decimal.NullDecimal, b *decimal.Decimal) bool {
	if !a.Valid || b == nil {
		return !a.Valid && b == nil
	}
	return a.Decimal.Equal(*b)
}

// computeDiff compares the patch with current by value. Requested fields
// that equal the current value are dropped. It returns a validation error
// when the patch tries to change the immutable email.
func computeDiff(current *repository.Client, p *ClientPatch) (*clientDiff, error) {
	d := &clientDiff{}
	add := func(f ClientField, from, to string) {
		d.Changes = append(d.Changes, fieldChange{Field: f, From: from, To: to})
	}

	if p.Name.Set && p.Name.Value != current.Name {
		add(FieldName, current.Name, p.Name.Value)
	}
	if p.CompanyName.Set && p.CompanyName.Value != current.CompanyName {
		add(FieldCompanyName, current.CompanyName, p.CompanyName.Value)
	}
	if p.Email.Set && types.NormalizeEmail(p.Email.Value) != types.NormalizeEmail(current.Email) {
		return nil, invalid("email cannot be changed after creation")
	}
	if p.Phone.Set && !equalPtr(p.Phone.Value, current.Phone) {
		add(FieldPhone, strOrNone(current.Phone), strOrNone(p.Phone.Value))
	}
	if p.Website.Set && !equalPtr(p.Website.Value, current.Website) {
		add(FieldWebsite, strOrNone(current.Website), strOrNone(p.Website.Value))
	}
	if p.LifecycleStatus.Set && p.LifecycleStatus.Value != current.LifecycleStatus {
		add(FieldLifecycleStatus, string(current.LifecycleStatus), string(p.LifecycleStatus.Value))
	}
	if p.Weightage.Set && p.Weightage.Value != current.Weightage {
		add(FieldWeightage, string(current.Weightage), string(p.Weightage.Value))
	}
	if p.RelationshipLevel.Set && p.RelationshipLevel.Value != current.RelationshipLevel {
		add(FieldRelationshipLevel, string(current.RelationshipLevel), string(p.RelationshipLevel.Value))
	}
	if p.Source.Set && p.Source.Value != current.Source {
		add(FieldSource, string(current.Source), string(p.Source.Value))
	}
	if p.IsHighRisk.Set && p.IsHighRisk.Value != current.IsHighRisk {
		add(FieldIsHighRisk, strconv.FormatBool(current.IsHighRisk), strconv.FormatBool(p.IsHighRisk.Value))
	}
	if p.LeadScore.Set && !equalPtr(p.LeadScore.Value, current.LeadScore) {
		add(FieldLeadScore, intOrNone(current.LeadScore), intOrNone(p.LeadScore.Value))
	}
	if p.ExpectedValue.Set && !equalNullDecimal(current.ExpectedValue, p.ExpectedValue.Value) {
		to := none
		if p.ExpectedValue.Value != nil {
			to = p.ExpectedValue.Value.StringFixed(2)
		}
		add(FieldExpectedValue, decimalOrNone(current.ExpectedValue), to)
	}
	if p.OwnerID.Set && p.OwnerID.Value != current.OwnerID {
		add(FieldOwnerID, current.OwnerID, p.OwnerID.Value)
		d.NewOwnerID = p.OwnerID.Value
	}
	if p.Notes.Set && !equalPtr(p.Notes.Value, current.Notes) {
		add(FieldNotes, "", "")
	}
	return d, nil
}

// applyPatch writes the diffed fields onto c.
func applyPatch(c *repository.Client, p *ClientPatch, d *clientDiff) {
	for _, ch := range d.Changes {
		switch ch.Field {
		case FieldName:
			c.Name = p.Name.Value
		case FieldCompanyName:
			c.CompanyName = p.CompanyName.Value
		case FieldPhone:
			c.Phone = p.Phone.Value
		case FieldWebsite:
			c.Website = p.Website.Value
		case FieldLifecycleStatus:
			c.LifecycleStatus = p.LifecycleStatus.Value
		case FieldWeightage:
			c.Weightage = p.Weightage.Value
		case FieldRelationshipLevel:
			c.RelationshipLevel = p.RelationshipLevel.Value
		case FieldSource:
			c.Source = p.Source.Value
		case FieldIsHighRisk:
			c.IsHighRisk = p.IsHighRisk.Value
		case FieldLeadScore:
			c.LeadScore = p.LeadScore.Value
		case FieldExpectedValue:
			c.ExpectedValue = decimal.NullDecimal{}
			if p.ExpectedValue.Value != nil {
				c.ExpectedValue = decimal.NewNullDecimal(*p.ExpectedValue.Value)
			}
		case FieldOwnerID:
			c.OwnerID = p.OwnerID.Value
		case FieldNotes:
			c.Notes = p.Notes.Value
		}
	}
}

var fieldLabels = map[ClientField]string{
	FieldName:              "Name",
	FieldCompanyName:       "Company name",
	FieldPhone:             "Phone",
	FieldWebsite:           "Website",
	FieldLifecycleStatus:   "Status",
	FieldWeightage:         "Weightage",
	FieldRelationshipLevel: "Relationship level",
	FieldSource:            "Source",
	FieldLeadScore:         "Lead score",
	FieldExpectedValue:     "Expected value",
}

// describe renders one sentence per change. ownerNames maps user ids to
// display names for ownership changes.
func (d *clientDiff) describe(ownerNames map[string]string) string {
	parts := make([]string, 0, len(d.Changes))
	for _, c := range d.Changes {
		switch c.Field {
		case FieldIsHighRisk:
			if c.To == "true" {
				parts = append(parts, "Marked as high risk")
			} else {
				parts = append(parts, "High risk flag removed")
			}
		case FieldOwnerID:
			parts = append(parts, fmt.Sprintf("Owner changed from %s to %s",
				displayName(ownerNames, c.From), displayName(ownerNames, c.To)))
		case FieldNotes:
			parts = append(parts, "Notes updated")
		default:
			parts = append(parts, fmt.Sprintf("%s changed from %s to %s", fieldLabels[c.Field], c.From, c.To))
		}
	}
	return strings.Join(parts, "; ")
}

func displayName(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}

// actionType classifies the whole diff. A single lifecycle, weightage,
// owner or risk change gets its own type; notes-only and every other
// combination fall into NOTES_UPDATED.
func (d *clientDiff) actionType() types.HistoryAction {
	if len(d.Changes) != 1 {
		return types.HistoryNotesUpdated
	}
	switch d.Changes[0].Field {
	case FieldLifecycleStatus:
		return types.HistoryStatusChanged
	case FieldWeightage:
		return types.HistoryWeightageChanged
	case FieldOwnerID:
		return types.HistoryOwnerChanged
	case FieldIsHighRisk:
		return types.HistoryRiskMarked
	default:
		return types.HistoryNotesUpdated
	}
}
