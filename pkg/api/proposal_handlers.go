package api

import (
	"net/http"
	"time"

	"github.com/platinummonkey/docvault/pkg/auth"
	"github.com/platinummonkey/docvault/pkg/httputil"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/store"
)

type proposalPermissionRequest struct {
	UserID      int64      `json:"user_id"`
	DirectoryID int64      `json:"directory_id"`
	ExpiresAt   *time.Time `json:"expires_at"`
	CanUpload   bool       `json:"can_upload"`
}

// listProposals handles GET /proposals.
func (s *Server) listProposals(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	if err := s.resolver.RequireCapability(p, rbac.CapViewProposals); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	proposals, err := s.store.ListProposals(r.Context())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, proposals)
}

// createProposal handles POST /proposals, with optional initial grants.
func (s *Server) createProposal(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	if err := s.resolver.RequireCapability(p, rbac.CapManageProposals); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	var req struct {
		Title       string                      `json:"title"`
		Description string                      `json:"description"`
		Status      string                      `json:"status"`
		Permissions []proposalPermissionRequest `json:"permissions"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") {
		return
	}

	status := store.ProposalDraft
	if req.Status != "" {
		parsed, ok := store.ParseProposalStatus(req.Status)
		if !ok {
			httputil.WriteValidationError(w, "unknown proposal status: "+req.Status)
			return
		}
		status = parsed
	}

	proposal := &store.Proposal{
		Title:       req.Title,
		Description: req.Description,
		CreatedBy:   p.UserID,
		Status:      status,
	}
	for _, perm := range req.Permissions {
		proposal.Permissions = append(proposal.Permissions, &store.ProposalPermission{
			UserID:      perm.UserID,
			DirectoryID: perm.DirectoryID,
			ExpiresAt:   perm.ExpiresAt,
			CanUpload:   perm.CanUpload,
		})
	}

	if err := s.store.CreateProposal(r.Context(), proposal); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, proposal)
}

// getProposal handles GET /proposals/{id}.
func (s *Server) getProposal(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.resolver.RequireCapability(p, rbac.CapViewProposals); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	proposal, err := s.store.GetProposal(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, proposal)
}

// updateProposal handles PUT /proposals/{id}: title, description and
// status transitions (closing a proposal does not delete its grants;
// they keep their own expiry).
func (s *Server) updateProposal(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.resolver.RequireCapability(p, rbac.CapManageProposals); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	proposal, err := s.store.GetProposal(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Status      string `json:"status"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Title != "" {
		proposal.Title = req.Title
	}
	if req.Description != "" {
		proposal.Description = req.Description
	}
	if req.Status != "" {
		status, ok := store.ParseProposalStatus(req.Status)
		if !ok {
			httputil.WriteValidationError(w, "unknown proposal status: "+req.Status)
			return
		}
		proposal.Status = status
	}

	if err := s.store.UpdateProposal(r.Context(), proposal); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, proposal)
}

// deleteProposal handles DELETE /proposals/{id}, cascading its grants.
func (s *Server) deleteProposal(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.resolver.RequireCapability(p, rbac.CapManageProposals); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	if err := s.store.DeleteProposal(r.Context(), id); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "deleted"})
}

// listProposalPermissions handles GET /proposals/{id}/permissions.
func (s *Server) listProposalPermissions(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.resolver.RequireCapability(p, rbac.CapViewProposals); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	if _, err := s.store.GetProposal(r.Context(), id); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	perms, err := s.store.ListProposalPermissions(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, perms)
}

// addProposalPermission handles POST /proposals/{id}/permissions.
func (s *Server) addProposalPermission(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.resolver.RequireCapability(p, rbac.CapManageProposals); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	var req proposalPermissionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == 0 || req.DirectoryID == 0 {
		httputil.WriteValidationError(w, "user_id and directory_id are required")
		return
	}

	// Validate all three referenced rows before inserting the edge.
	if _, err := s.store.GetProposal(r.Context(), id); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if _, err := s.store.GetUser(r.Context(), req.UserID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if _, err := s.store.GetDirectory(r.Context(), req.DirectoryID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	perm := &store.ProposalPermission{
		ProposalID:  id,
		UserID:      req.UserID,
		DirectoryID: req.DirectoryID,
		ExpiresAt:   req.ExpiresAt,
		CanUpload:   req.CanUpload,
	}
	if err := s.store.AddProposalPermission(r.Context(), perm); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, perm)
}
