package api

import (
	"net/http"

	"github.com/platinummonkey/docvault/pkg/access"
	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/auth"
	"github.com/platinummonkey/docvault/pkg/httputil"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/store"
)

// listUsers handles GET /users. Super admins see everyone; admins see
// only non-admin accounts; everyone else is refused.
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	if err := s.resolver.RequireCapability(p, rbac.CapViewUsers); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	var (
		users []*store.User
		err   error
	)
	if p.IsSuperAdmin() {
		users, err = s.store.ListUsers(r.Context())
	} else {
		users, err = s.store.ListNonAdminUsers(r.Context())
	}
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

// createUser handles POST /users: admin-created accounts start active.
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	if err := s.resolver.RequireCapability(p, rbac.CapManageUsers); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	var req struct {
		Name         string  `json:"name"`
		Email        string  `json:"email"`
		Password     string  `json:"password"`
		Role         string  `json:"role"`
		GroupIDs     []int64 `json:"group_ids"`
		DirectoryIDs []int64 `json:"directory_ids"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") ||
		!httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}
	if len(req.Password) < minPasswordLength {
		httputil.WriteValidationError(w, "password must be at least 8 characters")
		return
	}

	role := rbac.RoleMember
	if req.Role != "" {
		parsed, ok := rbac.ParseRole(req.Role)
		if !ok {
			httputil.WriteValidationError(w, "unknown role: "+req.Role)
			return
		}
		role = parsed
	}
	if err := s.resolver.CheckRoleAssignment(p, role); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	user := &store.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Status:       store.StatusActive,
		Role:         role,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	if err := s.store.SetUserGroups(r.Context(), user.ID, req.GroupIDs); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if len(req.DirectoryIDs) > 0 {
		if err := s.store.SetUserDirectories(r.Context(), user.ID, req.DirectoryIDs); err != nil {
			httputil.WriteAppError(w, err)
			return
		}
	}

	httputil.WriteCreated(w, user)
}

// getUser handles GET /users/{id}.
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.resolver.RequireCapability(p, rbac.CapViewUsers); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if user.Role.IsAdmin() && !p.IsSuperAdmin() && p.UserID != user.ID {
		httputil.WriteAppError(w, apperrors.Forbidden("cannot manage admin users"))
		return
	}

	groupIDs, err := s.store.GroupIDsOf(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	dirIDs, err := s.store.DirectoryIDsOf(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"user":          user,
		"group_ids":     groupIDs,
		"directory_ids": dirIDs,
	})
}

// updateUser handles PUT /users/{id}: name, email, role, and the group
// and directory grant edges.
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	target, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if err := s.resolver.CheckUserMutation(p, target, access.UserOpUpdate); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	var req struct {
		Name         string   `json:"name"`
		Email        string   `json:"email"`
		Role         string   `json:"role"`
		GroupIDs     *[]int64 `json:"group_ids"`
		DirectoryIDs *[]int64 `json:"directory_ids"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if req.Name != "" {
		target.Name = req.Name
	}
	if req.Email != "" {
		target.Email = req.Email
	}
	if req.Role != "" {
		role, ok := rbac.ParseRole(req.Role)
		if !ok {
			httputil.WriteValidationError(w, "unknown role: "+req.Role)
			return
		}
		if err := s.resolver.CheckRoleChange(p, target, role); err != nil {
			httputil.WriteAppError(w, err)
			return
		}
		target.Role = role
	}

	if err := s.store.UpdateUser(r.Context(), target); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if req.GroupIDs != nil {
		if err := s.store.SetUserGroups(r.Context(), id, *req.GroupIDs); err != nil {
			httputil.WriteAppError(w, err)
			return
		}
	}
	if req.DirectoryIDs != nil {
		if err := s.store.SetUserDirectories(r.Context(), id, *req.DirectoryIDs); err != nil {
			httputil.WriteAppError(w, err)
			return
		}
	}

	httputil.WriteSuccess(w, target)
}

// deleteUser handles DELETE /users/{id}.
func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	s.mutateUser(w, r, access.UserOpDelete, func(r *http.Request, target *store.User) error {
		return s.store.DeleteUser(r.Context(), target.ID)
	})
}

// approveUser handles POST /users/{id}/approve.
func (s *Server) approveUser(w http.ResponseWriter, r *http.Request) {
	s.mutateUser(w, r, access.UserOpApprove, func(r *http.Request, target *store.User) error {
		if target.Status != store.StatusPending {
			return apperrors.Conflict("user is not awaiting approval")
		}
		return s.store.UpdateUserStatus(r.Context(), target.ID, store.StatusActive)
	})
}

// rejectUser handles POST /users/{id}/reject.
func (s *Server) rejectUser(w http.ResponseWriter, r *http.Request) {
	s.mutateUser(w, r, access.UserOpReject, func(r *http.Request, target *store.User) error {
		if target.Status != store.StatusPending {
			return apperrors.Conflict("user is not awaiting approval")
		}
		return s.store.UpdateUserStatus(r.Context(), target.ID, store.StatusInactive)
	})
}

// resetUserPassword handles POST /users/{id}/reset-password. A fresh
// random password is generated and returned exactly once; all of the
// target's tokens are revoked.
func (s *Server) resetUserPassword(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	target, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if err := s.resolver.CheckUserMutation(p, target, access.UserOpResetPassword); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	password, err := auth.GeneratePassword()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if err := s.store.UpdateUserPassword(r.Context(), id, hash); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if err := s.store.RevokeUserTokens(r.Context(), id); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]string{"password": password})
}

// mutateUser is the shared guard-then-act path for user mutations.
func (s *Server) mutateUser(w http.ResponseWriter, r *http.Request, op access.UserOp, act func(*http.Request, *store.User) error) {
	p := auth.PrincipalFrom(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	target, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if err := s.resolver.CheckUserMutation(p, target, op); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if err := act(r, target); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "ok", "operation": string(op)})
}
