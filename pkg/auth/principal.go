package auth

import (
	"context"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/store"
)

// Principal is the authenticated actor behind a request: identity, role
// and the grant edges the access resolver needs. It is loaded fresh per
// request; role and grants are mutable so nothing here may be cached
// across requests.
type Principal struct {
	UserID       int64
	Name         string
	Email        string
	Role         rbac.Role
	Status       store.Status
	GroupIDs     []int64
	DirectoryIDs []int64
}

// IsAdmin reports whether the principal's role bypasses directory ACLs.
func (p *Principal) IsAdmin() bool { return p.Role.IsAdmin() }

// IsSuperAdmin reports whether the principal holds the top role.
func (p *Principal) IsSuperAdmin() bool { return p.Role == rbac.RoleSuperAdmin }

// HasDirectGrant reports whether the principal holds a direct grant on
// the directory.
func (p *Principal) HasDirectGrant(directoryID int64) bool {
	for _, id := range p.DirectoryIDs {
		if id == directoryID {
			return true
		}
	}
	return false
}

// LoadPrincipal hydrates a Principal from the store. Inactive users are
// rejected here so a disabled account with a live token loses access
// immediately.
func LoadPrincipal(ctx context.Context, s *store.Store, userID int64) (*Principal, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return nil, apperrors.Unauthenticated("account no longer exists")
		}
		return nil, err
	}
	if u.Status != store.StatusActive {
		return nil, apperrors.Unauthenticated("account is not active")
	}

	groupIDs, err := s.GroupIDsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	dirIDs, err := s.DirectoryIDsOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Principal{
		UserID:       u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		Status:       u.Status,
		GroupIDs:     groupIDs,
		DirectoryIDs: dirIDs,
	}, nil
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal stores the principal on the request context. Handlers
// pull it out once and pass it explicitly into the resolver.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom retrieves the principal from the context, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}
