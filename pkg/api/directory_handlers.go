package api

import (
	"net/http"
	"strconv"

	"github.com/platinummonkey/docvault/pkg/auth"
	"github.com/platinummonkey/docvault/pkg/httputil"
	"github.com/platinummonkey/docvault/pkg/rbac"
)

// treeNode is one node of the filtered tree response.
type treeNode struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	IsPublic bool        `json:"is_public"`
	Children []*treeNode `json:"children"`
}

// directoryTree handles GET /directories/tree, returning the tree pruned
// to the caller's visible set.
func (s *Server) directoryTree(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	if err := s.resolver.RequireCapability(p, rbac.CapViewDirectory); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	visible, idx, err := s.resolver.VisibleDirectories(r.Context(), p)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	var build func(id int64) *treeNode
	build = func(id int64) *treeNode {
		node, ok := idx.Get(id)
		if !ok || !visible[id] {
			return nil
		}
		out := &treeNode{
			ID:       node.ID,
			Name:     node.Name,
			Path:     node.Path,
			IsPublic: node.IsPublic,
			Children: []*treeNode{},
		}
		for _, childID := range idx.ChildrenOf(id) {
			if child := build(childID); child != nil {
				out.Children = append(out.Children, child)
			}
		}
		return out
	}

	roots := []*treeNode{}
	for _, rootID := range idx.Roots() {
		if n := build(rootID); n != nil {
			roots = append(roots, n)
		}
	}
	httputil.WriteSuccess(w, roots)
}

// listDirectories handles GET /directories?parent_id=N (roots when the
// parameter is absent), filtered to the caller's visible set.
func (s *Server) listDirectories(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	if err := s.resolver.RequireCapability(p, rbac.CapViewDirectory); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	var parentID *int64
	if raw := r.URL.Query().Get("parent_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid parent_id")
			return
		}
		parentID = &id
	}

	visible, _, err := s.resolver.VisibleDirectories(r.Context(), p)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	dirs, err := s.store.ListChildDirectories(r.Context(), parentID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	out := dirs[:0]
	for _, d := range dirs {
		if visible[d.ID] {
			out = append(out, d)
		}
	}
	httputil.WriteSuccess(w, out)
}

// createDirectory handles POST /directories.
func (s *Server) createDirectory(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())

	var req struct {
		Name     string `json:"name"`
		ParentID *int64 `json:"parent_id"`
		IsPublic bool   `json:"is_public"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	if req.ParentID != nil {
		// Creating under a parent needs create rights on that parent.
		if err := s.checkDirectory(r, p, *req.ParentID, rbac.CapCreateDirectory); err != nil {
			httputil.WriteAppError(w, err)
			return
		}
	} else if err := s.resolver.RequireCapability(p, rbac.CapCreateDirectory); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	dir, err := s.store.CreateDirectory(r.Context(), req.Name, req.ParentID, req.IsPublic, p.UserID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, dir)
}

// getDirectory handles GET /directories/{id}.
func (s *Server) getDirectory(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.checkDirectory(r, p, id, rbac.CapViewDirectory); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	dir, err := s.store.GetDirectory(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, dir)
}

// updateDirectory handles PUT /directories/{id}: rename and public flag.
// The cached path is intentionally not recomputed.
func (s *Server) updateDirectory(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Name     string `json:"name"`
		IsPublic *bool  `json:"is_public"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.checkDirectory(r, p, id, rbac.CapUpdateDirectory); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	current, err := s.store.GetDirectory(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	name := current.Name
	if req.Name != "" {
		name = req.Name
	}
	isPublic := current.IsPublic
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	dir, err := s.store.RenameDirectory(r.Context(), id, name, isPublic)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, dir)
}

// deleteDirectory handles DELETE /directories/{id}: recursive cascade
// over the subtree, then best-effort blob cleanup after commit.
func (s *Server) deleteDirectory(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	idx, err := s.resolver.Index(r.Context())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if err := s.resolver.CheckDirectoryWithIndex(p, idx, id, rbac.CapDeleteDirectory); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	blobKeys, err := s.store.DeleteDirectoryCascade(r.Context(), id, idx.DescendantsOf(id))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	// Metadata is gone; blob removal failures only leak storage.
	for _, key := range blobKeys {
		if err := s.blobs.Delete(r.Context(), key); err != nil {
			s.logger.WithError(err).WithField("blob_key", key).Warn("cascade blob cleanup failed")
		}
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"status":        "deleted",
		"files_removed": len(blobKeys),
	})
}

// checkDirectory runs the resolver on a fresh snapshot and records the
// decision metric.
func (s *Server) checkDirectory(r *http.Request, p *auth.Principal, directoryID int64, cap rbac.Capability) error {
	err := s.resolver.CheckDirectory(r.Context(), p, directoryID, cap)
	s.metrics.RecordAccessDecision(string(cap), err == nil)
	return err
}
