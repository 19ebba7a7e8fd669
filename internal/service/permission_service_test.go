package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

func TestCheckClientAccess(t *testing.T) {
	admin := Identity{UserID: "a1", Role: types.RoleAdmin, IsActive: true}
	owner := Identity{UserID: "u1", Role: types.RoleEmployee, IsActive: true}
	other := Identity{UserID: "u2", Role: types.RoleEmployee, IsActive: true}
	owned := ClientSnapshot{OwnerID: "u1"}
	archivedOwned := ClientSnapshot{OwnerID: "u1", IsArchived: true}

	tests := []struct {
		name    string
		actor   Identity
		action  Action
		client  ClientSnapshot
		fields  []ClientField
		wantErr error
	}{
		{"missing role", Identity{UserID: "x"}, ActionUpdate, owned, nil, ErrUnauthenticated},
		{"unknown role", Identity{UserID: "x", Role: "GUEST"}, ActionCreate, owned, nil, ErrUnauthenticated},
		{"missing user", Identity{Role: types.RoleAdmin}, ActionCreate, owned, nil, ErrUnauthenticated},

		{"admin create", admin, ActionCreate, ClientSnapshot{}, nil, nil},
		{"employee create", owner, ActionCreate, ClientSnapshot{}, nil, ErrForbidden},

		{"admin archive", admin, ActionArchive, owned, nil, nil},
		{"admin unarchive", admin, ActionUnarchive, archivedOwned, nil, nil},
		{"owner archive", owner, ActionArchive, owned, nil, ErrForbidden},
		{"owner unarchive", owner, ActionUnarchive, archivedOwned, nil, ErrForbidden},

		{"admin any fields", admin, ActionUpdate, owned,
			[]ClientField{FieldLifecycleStatus, FieldOwnerID, FieldNotes, FieldLeadScore}, nil},
		{"owner notes", owner, ActionUpdate, owned, []ClientField{FieldNotes}, nil},
		{"owner empty field set", owner, ActionUpdate, owned, nil, nil},
		{"owner notes and lead score", owner, ActionUpdate, owned,
			[]ClientField{FieldNotes, FieldLeadScore}, ErrForbidden},
		{"owner status", owner, ActionUpdate, owned, []ClientField{FieldLifecycleStatus}, ErrForbidden},
		{"owner notes on archived", owner, ActionUpdate, archivedOwned, []ClientField{FieldNotes}, nil},
		{"non-owner notes", other, ActionUpdate, owned, []ClientField{FieldNotes}, ErrForbidden},

		{"admin view", admin, ActionView, owned, nil, nil},
		{"owner view", owner, ActionView, owned, nil, nil},
		{"non-owner view", other, ActionView, owned, nil, ErrForbidden},
		{"unknown action", admin, Action("delete"), owned, nil, ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckClientAccess(tt.actor, tt.action, tt.client, tt.fields)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheckClientAccessReasons(t *testing.T) {
	owner := Identity{UserID: "u1", Role: types.RoleEmployee, IsActive: true}

	err := CheckClientAccess(owner, ActionUpdate, ClientSnapshot{OwnerID: "u1"}, []ClientField{FieldWeightage})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "employees may only update notes")

	err = CheckClientAccess(owner, ActionUpdate, ClientSnapshot{OwnerID: "u2"}, []ClientField{FieldNotes})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient permissions")
}

func TestCanChangeRoleOrActivity(t *testing.T) {
	employee := types.RoleEmployee
	admin := types.RoleAdmin
	off := false
	on := true

	self := Identity{UserID: "a1", Role: types.RoleAdmin, IsActive: true}
	otherAdmin := Identity{UserID: "a2", Role: types.RoleAdmin, IsActive: true}
	staff := Identity{UserID: "u1", Role: types.RoleEmployee, IsActive: true}
	inactiveAdmin := Identity{UserID: "a3", Role: types.RoleAdmin, IsActive: false}

	tests := []struct {
		name         string
		target       Identity
		req          AccessRequest
		activeAdmins int
		wantErr      string
	}{
		{"self demote", self, AccessRequest{Role: &employee}, 3, "cannot modify own role/self-disable"},
		{"self disable", self, AccessRequest{IsActive: &off}, 3, "cannot modify own role/self-disable"},
		{"self no-op role", self, AccessRequest{Role: &admin, IsActive: &on}, 1, ""},
		{"demote last admin", otherAdmin, AccessRequest{Role: &employee}, 1, "cannot remove the last active admin"},
		{"disable last admin", otherAdmin, AccessRequest{IsActive: &off}, 1, "cannot remove the last active admin"},
		{"demote one of two", otherAdmin, AccessRequest{Role: &employee}, 2, ""},
		{"promote employee", staff, AccessRequest{Role: &admin}, 1, ""},
		{"disable employee", staff, AccessRequest{IsActive: &off}, 1, ""},
		// An inactive admin is not counted, so changing it never removes the last active one.
		{"demote inactive admin", inactiveAdmin, AccessRequest{Role: &employee}, 1, ""},
		{"disable inactive admin", inactiveAdmin, AccessRequest{IsActive: &off}, 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanChangeRoleOrActivity(self, tt.target, tt.req, tt.activeAdmins)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrForbidden)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
