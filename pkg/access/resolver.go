// Package access implements the authorization engine: given a principal
// and a target (directory, file, or proposal-scoped upload), it decides
// allow or deny, and computes the visible subset of the tree for listing
// operations.
//
// The resolver is a decision procedure, not a state machine: every call
// re-derives its answer from freshly-read data. Grants carry lazy expiry
// and roles are mutable, so no decision is ever memoized or cached across
// requests.
package access

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/auth"
	"github.com/platinummonkey/docvault/pkg/dirtree"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/store"
)

// Resolver answers authorization questions against current store data.
type Resolver struct {
	store *store.Store
	now   func() time.Time
}

// NewResolver creates a resolver over the entity store.
func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s, now: time.Now}
}

// Index loads a fresh tree snapshot for this request. Handlers that make
// several checks against the same snapshot build it once and use the
// *WithIndex variants.
func (r *Resolver) Index(ctx context.Context) (*dirtree.Index, error) {
	nodes, err := r.store.TreeNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tree snapshot: %w", err)
	}
	return dirtree.NewIndex(nodes), nil
}

// RequireCapability checks a non-directory-scoped capability (user,
// group and proposal management, directory creation). Denial is
// Forbidden with the capability named.
func (r *Resolver) RequireCapability(p *auth.Principal, cap rbac.Capability) error {
	if p == nil {
		return apperrors.Unauthenticated("authentication required")
	}
	if !p.Role.Can(cap) {
		return apperrors.Forbidden(fmt.Sprintf("missing capability %s", cap))
	}
	return nil
}

// CheckDirectory decides whether p may exercise cap against a directory.
//
// Decision order, first match wins:
//  1. admin-class role holding cap: allow, ACLs bypassed
//  2. role lacking cap: deny (public affects visibility, not the role's
//     capability set)
//  3. effectively-public directory: allow
//  4. directly-granted directory: allow
//  5. ancestor of a granted directory: allow view capabilities only
//  6. deny
func (r *Resolver) CheckDirectory(ctx context.Context, p *auth.Principal, directoryID int64, cap rbac.Capability) error {
	idx, err := r.Index(ctx)
	if err != nil {
		return err
	}
	return r.CheckDirectoryWithIndex(p, idx, directoryID, cap)
}

// CheckDirectoryWithIndex is CheckDirectory against a caller-held
// snapshot.
func (r *Resolver) CheckDirectoryWithIndex(p *auth.Principal, idx *dirtree.Index, directoryID int64, cap rbac.Capability) error {
	if p == nil {
		return apperrors.Unauthenticated("authentication required")
	}
	if _, ok := idx.Get(directoryID); !ok {
		return apperrors.NotFound("directory not found")
	}

	if !p.Role.Can(cap) {
		return apperrors.Forbidden(fmt.Sprintf("missing capability %s", cap))
	}
	if p.IsAdmin() {
		return nil
	}

	if idx.EffectivePublic(directoryID) {
		return nil
	}
	if p.HasDirectGrant(directoryID) {
		return nil
	}
	if rbac.IsViewCapability(cap) && r.isAncestorOfGrant(p, idx, directoryID) {
		return nil
	}
	return apperrors.Forbidden("no access to this directory")
}

// isAncestorOfGrant reports whether directoryID sits on the path from a
// root down to one of p's granted directories. Such ancestors stay
// navigable so the user can reach the granted subtree.
func (r *Resolver) isAncestorOfGrant(p *auth.Principal, idx *dirtree.Index, directoryID int64) bool {
	for _, grantedID := range p.DirectoryIDs {
		for _, anc := range idx.AncestorsOf(grantedID) {
			if anc == directoryID {
				return true
			}
		}
	}
	return false
}

// CheckFile decides whether p may exercise cap against a file, by its
// owning directory.
func (r *Resolver) CheckFile(ctx context.Context, p *auth.Principal, f *store.File, cap rbac.Capability) error {
	return r.CheckDirectory(ctx, p, f.DirectoryID, cap)
}

// CheckUpload decides whether p may upload into a directory. The role
// path is evaluated first; failing that, a live proposal permission for
// (user, directory) with can_upload authorizes the write. Expiry is
// checked at call time, never from a cached answer.
func (r *Resolver) CheckUpload(ctx context.Context, p *auth.Principal, directoryID int64) error {
	roleErr := r.CheckDirectory(ctx, p, directoryID, rbac.CapUploadFile)
	if roleErr == nil {
		return nil
	}
	if apperrors.Is(roleErr, apperrors.KindNotFound) || apperrors.Is(roleErr, apperrors.KindUnauthenticated) {
		return roleErr
	}

	grants, err := r.store.UploadGrantsFor(ctx, p.UserID, directoryID)
	if err != nil {
		return err
	}
	now := r.now()
	for _, g := range grants {
		if !g.Expired(now) {
			return nil
		}
	}
	return roleErr
}

// VisibleDirectories computes the set of directory ids p may see in tree
// and listing responses: everything for admins; otherwise nodes that are
// effectively public, directly granted, or ancestors of a granted node.
// The predicate applies at every level, since a grant may sit arbitrarily
// deep in a non-public subtree.
func (r *Resolver) VisibleDirectories(ctx context.Context, p *auth.Principal) (map[int64]bool, *dirtree.Index, error) {
	idx, err := r.Index(ctx)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, apperrors.Unauthenticated("authentication required")
	}

	visible := make(map[int64]bool)
	if p.IsAdmin() {
		for _, id := range idx.Roots() {
			visible[id] = true
			for _, d := range idx.DescendantsOf(id) {
				visible[d] = true
			}
		}
		return visible, idx, nil
	}

	var walk func(id int64)
	walk = func(id int64) {
		if idx.EffectivePublic(id) || p.HasDirectGrant(id) || r.isAncestorOfGrant(p, idx, id) {
			visible[id] = true
		}
		for _, child := range idx.ChildrenOf(id) {
			walk(child)
		}
	}
	for _, root := range idx.Roots() {
		walk(root)
	}
	return visible, idx, nil
}
