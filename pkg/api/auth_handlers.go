package api

import (
	"net/http"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/auth"
	"github.com/platinummonkey/docvault/pkg/httputil"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/store"
)

const minPasswordLength = 8

// register handles POST /register. New accounts start pending and hold
// the member role until an admin approves them.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
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

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.WithError(err).Error("hash password")
		httputil.WriteInternalError(w, err)
		return
	}

	user := &store.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Status:       store.StatusPending,
		Role:         rbac.RoleMember,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	// Every account belongs to the default group from day one.
	group, err := s.store.GetGroupByName(r.Context(), store.DefaultGroupName)
	if err == nil {
		if err := s.store.AddUserToGroup(r.Context(), group.ID, user.ID); err != nil {
			s.logger.WithError(err).WithField("user_id", user.ID).Warn("attach default group")
		}
	} else {
		s.logger.WithError(err).Warn("default group missing at registration")
	}

	httputil.WriteCreated(w, map[string]interface{}{
		"user":    user,
		"message": "registration received, awaiting approval",
	})
}

// login handles POST /login. Pending and inactive accounts are refused
// without a token.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		// Unknown email and wrong password are indistinguishable.
		httputil.WriteUnauthorized(w, "invalid credentials")
		return
	}

	switch user.Status {
	case store.StatusPending:
		httputil.WriteAppError(w, apperrors.Forbidden("account is awaiting approval"))
		return
	case store.StatusInactive:
		httputil.WriteAppError(w, apperrors.Forbidden("account is disabled"))
		return
	}

	token, rec, err := s.tokens.Issue(r.Context(), user.ID)
	if err != nil {
		s.logger.WithError(err).Error("issue token")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"token":      token,
		"token_meta": rec,
		"user":       user,
	})
}

// logout handles POST /logout, revoking the presented token.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	if err := s.tokens.Revoke(r.Context(), token); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "logged out"})
}

// me handles GET /me, returning the principal and its capability set.
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())

	httputil.WriteSuccess(w, map[string]interface{}{
		"id":            p.UserID,
		"name":          p.Name,
		"email":         p.Email,
		"role":          p.Role,
		"capabilities":  rbac.CapabilitiesOf(p.Role),
		"group_ids":     p.GroupIDs,
		"directory_ids": p.DirectoryIDs,
	})
}

// changePassword handles PUT /change-password.
func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		httputil.WriteValidationError(w, "password must be at least 8 characters")
		return
	}

	user, err := s.store.GetUser(r.Context(), p.UserID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		httputil.WriteAppError(w, apperrors.Validation("current password is incorrect"))
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if err := s.store.UpdateUserPassword(r.Context(), p.UserID, hash); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "password changed"})
}

// updateProfile handles PUT /profile (name and email only; role and
// status stay under admin control).
func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") ||
		!httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}

	user, err := s.store.GetUser(r.Context(), p.UserID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	user.Name = req.Name
	user.Email = req.Email
	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}
