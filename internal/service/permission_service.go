package service

import (
	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

// ============================================
// Permission Gate
// ============================================

type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionArchive   Action = "archive"
	ActionUnarchive Action = "unarchive"
	ActionView      Action = "view"
)

// ClientField names a client attribute as it appears in update requests.
type ClientField string

const (
	FieldName              ClientField = "name"
	FieldCompanyName       ClientField = "companyName"
	FieldEmail             ClientField = "email"
	FieldPhone             ClientField = "phone"
	FieldWebsite           ClientField = "website"
	FieldLifecycleStatus   ClientField = "lifecycleStatus"
	FieldWeightage         ClientField = "weightage"
	FieldRelationshipLevel ClientField = "relationshipLevel"
	FieldSource            ClientField = "source"
	FieldIsHighRisk        ClientField = "isHighRisk"
	FieldLeadScore         ClientField = "leadScore"
	FieldExpectedValue     ClientField = "expectedValue"
	FieldOwnerID           ClientField = "ownerId"
	FieldNotes             ClientField = "notes"
)

// ClientSnapshot is the part of a client the gate decides on.
type ClientSnapshot struct {
	OwnerID    string
	IsArchived bool
}

// employeeFields is everything an owning employee may touch.
var employeeFields = map[ClientField]bool{FieldNotes: true}

// CheckClientAccess decides whether actor may perform action on the client.
// It performs no I/O. Rules are evaluated in order; the first match wins.
// A nil error means allow, otherwise the error wraps ErrUnauthenticated or
// ErrForbidden with the reason.
func CheckClientAccess(actor Identity, action Action, client ClientSnapshot, fields []ClientField) error {
	if actor.UserID == "" || !types.IsValidRole(actor.Role) {
		return ErrUnauthenticated
	}

	switch action {
	case ActionCreate, ActionArchive, ActionUnarchive:
		if actor.IsAdmin() {
			return nil
		}
		return forbidden("insufficient permissions")

	case ActionUpdate:
		if actor.IsAdmin() {
			return nil
		}
		if actor.Role == types.RoleEmployee && client.OwnerID == actor.UserID {
			for _, f := range fields {
				if !employeeFields[f] {
					return forbidden("employees may only update notes")
				}
			}
			return nil
		}

	case ActionView:
		if actor.IsAdmin() || client.OwnerID == actor.UserID {
			return nil
		}
	}

	return forbidden("insufficient permissions")
}

// ============================================
// Role / Activation Guard
// ============================================

// AccessRequest is a requested change to a user's role and/or active flag.
// Nil fields are left as they are.
type AccessRequest struct {
	Role     *types.Role
	IsActive *bool
}

func (r AccessRequest) demotes(target Identity) bool {
	return r.Role != nil && *r.Role != types.RoleAdmin && target.Role == types.RoleAdmin
}

func (r AccessRequest) deactivates() bool {
	return r.IsActive != nil && !*r.IsActive
}

// CanChangeRoleOrActivity guards self-modification and the last active admin.
// activeAdmins must come from the same consistent read the change is
// applied under.
func CanChangeRoleOrActivity(actor, target Identity, req AccessRequest, activeAdmins int) error {
	if actor.UserID == target.UserID {
		if (req.Role != nil && *req.Role != target.Role) || req.deactivates() {
			return forbidden("cannot modify own role/self-disable")
		}
	}

	if target.Role == types.RoleAdmin && target.IsActive && (req.demotes(target) || req.deactivates()) {
		if activeAdmins <= 1 {
			return forbidden("cannot remove the last active admin")
		}
	}
	return nil
}
