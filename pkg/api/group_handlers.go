package api

import (
	"context"
	"net/http"

	"github.com/platinummonkey/docvault/pkg/auth"
	"github.com/platinummonkey/docvault/pkg/httputil"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/store"
)

// listGroups handles GET /groups.
func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	if err := s.resolver.RequireCapability(p, rbac.CapViewGroups); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	groups, err := s.store.ListGroups(r.Context())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, groups)
}

// createGroup handles POST /groups.
func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	if err := s.resolver.RequireCapability(p, rbac.CapManageGroups); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	var req struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
		Description string `json:"description"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Name
	}

	group := &store.Group{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
	}
	if err := s.store.CreateGroup(r.Context(), group); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, group)
}

// getGroup handles GET /groups/{id}, including member ids.
func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.resolver.RequireCapability(p, rbac.CapViewGroups); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	group, err := s.store.GetGroup(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	memberIDs, err := s.store.GroupMemberIDs(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"group":      group,
		"member_ids": memberIDs,
	})
}

// updateGroup handles PUT /groups/{id}.
func (s *Server) updateGroup(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.resolver.RequireCapability(p, rbac.CapManageGroups); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	group, err := s.store.GetGroup(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	var req struct {
		DisplayName string `json:"display_name"`
		Description string `json:"description"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.DisplayName != "" {
		group.DisplayName = req.DisplayName
	}
	group.Description = req.Description

	if err := s.store.UpdateGroup(r.Context(), group); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, group)
}

// deleteGroup handles DELETE /groups/{id}. The default group is
// undeletable; the store refuses with Conflict.
func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.resolver.RequireCapability(p, rbac.CapManageGroups); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	if err := s.store.DeleteGroup(r.Context(), id); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "deleted"})
}

// addGroupMember handles POST /groups/{id}/users/{userId}.
func (s *Server) addGroupMember(w http.ResponseWriter, r *http.Request) {
	s.mutateMembership(w, r, s.store.AddUserToGroup)
}

// removeGroupMember handles DELETE /groups/{id}/users/{userId}. Members
// are never detachable from the default group.
func (s *Server) removeGroupMember(w http.ResponseWriter, r *http.Request) {
	s.mutateMembership(w, r, s.store.RemoveUserFromGroup)
}

func (s *Server) mutateMembership(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, groupID, userID int64) error) {
	p := auth.PrincipalFrom(r.Context())
	groupID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}
	if err := s.resolver.RequireCapability(p, rbac.CapManageGroups); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	// Both sides must exist so the failure is a clean 404.
	if _, err := s.store.GetGroup(r.Context(), groupID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if _, err := s.store.GetUser(r.Context(), userID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	if err := op(r.Context(), groupID, userID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}
