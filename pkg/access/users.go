package access

import (
	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/auth"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/store"
)

// UserOp names a mutating operation against a user account.
type UserOp string

const (
	UserOpUpdate        UserOp = "update"
	UserOpDelete        UserOp = "delete"
	UserOpResetPassword UserOp = "reset-password"
	UserOpApprove       UserOp = "approve"
	UserOpReject        UserOp = "reject"
)

// selfProtected ops may never be applied to one's own account, whatever
// the role. Super admins are not exempt.
func (op UserOp) selfProtected() bool {
	switch op {
	case UserOpDelete, UserOpResetPassword, UserOpApprove, UserOpReject:
		return true
	}
	return false
}

// CheckUserMutation enforces the self-protection and admin-hierarchy
// rules for a mutating operation by actor against target. These run
// before, and override, the admin capability bypass.
func (r *Resolver) CheckUserMutation(actor *auth.Principal, target *store.User, op UserOp) error {
	if actor == nil {
		return apperrors.Unauthenticated("authentication required")
	}

	if actor.UserID == target.ID {
		if op.selfProtected() {
			return apperrors.Forbidden("cannot " + string(op) + " your own account")
		}
		if op == UserOpUpdate {
			// Self-edit goes through the profile endpoint, not user admin.
			return apperrors.Forbidden("cannot edit your own account here")
		}
	}

	if !actor.Role.Can(rbac.CapManageUsers) {
		return apperrors.Forbidden("missing capability " + string(rbac.CapManageUsers))
	}

	// Only super admins may touch admin-class accounts.
	if target.Role.IsAdmin() && !actor.IsSuperAdmin() {
		return apperrors.Forbidden("cannot manage admin users")
	}
	return nil
}

// CheckRoleAssignment guards handing out roles: only a super admin may
// grant the admin or super_admin role.
func (r *Resolver) CheckRoleAssignment(actor *auth.Principal, role rbac.Role) error {
	if actor == nil {
		return apperrors.Unauthenticated("authentication required")
	}
	if role.IsAdmin() && !actor.IsSuperAdmin() {
		return apperrors.Forbidden("cannot assign admin roles")
	}
	return nil
}

// CheckRoleChange additionally blocks self role changes, so an admin
// cannot downgrade or upgrade their own account.
func (r *Resolver) CheckRoleChange(actor *auth.Principal, target *store.User, role rbac.Role) error {
	if actor.UserID == target.ID && role != target.Role {
		return apperrors.Forbidden("cannot change your own role")
	}
	return r.CheckRoleAssignment(actor, role)
}
