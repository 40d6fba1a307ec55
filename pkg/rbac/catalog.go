// Package rbac defines the static role/capability catalog. The rule set is
// fixed and small: four roles, a closed set of capability tokens, and a pure
// lookup from role to capability set. Per-directory and per-proposal grants
// are composed on top of this catalog by the access resolver.
package rbac

// Capability is an atomic permission token.
type Capability string

const (
	CapManageAllUsers  Capability = "manage-all-users"
	CapManageUsers     Capability = "manage-users"
	CapViewUsers       Capability = "view-users"
	CapCreateDirectory Capability = "create-directory"
	CapUpdateDirectory Capability = "update-directory"
	CapDeleteDirectory Capability = "delete-directory"
	CapViewDirectory   Capability = "view-directory"
	CapUploadFile      Capability = "upload-file"
	CapDownloadFile    Capability = "download-file"
	CapUpdateFile      Capability = "update-file"
	CapDeleteFile      Capability = "delete-file"
	CapViewFile        Capability = "view-file"
	CapManageGroups    Capability = "manage-groups"
	CapViewGroups      Capability = "view-groups"
	CapManageProposals Capability = "manage-proposals"
	CapViewProposals   Capability = "view-proposals"
)

// AllCapabilities returns the full capability universe in a stable order.
func AllCapabilities() []Capability {
	return []Capability{
		CapManageAllUsers,
		CapManageUsers,
		CapViewUsers,
		CapCreateDirectory,
		CapUpdateDirectory,
		CapDeleteDirectory,
		CapViewDirectory,
		CapUploadFile,
		CapDownloadFile,
		CapUpdateFile,
		CapDeleteFile,
		CapViewFile,
		CapManageGroups,
		CapViewGroups,
		CapManageProposals,
		CapViewProposals,
	}
}

// Role is one of the four fixed system roles. A user holds exactly one.
type Role string

const (
	RoleSuperAdmin   Role = "super_admin"
	RoleAdmin        Role = "admin"
	RoleSeniorMember Role = "senior_member"
	RoleMember       Role = "member"
)

// ParseRole validates a role name. The zero Role ("") signals unknown.
func ParseRole(name string) (Role, bool) {
	switch Role(name) {
	case RoleSuperAdmin, RoleAdmin, RoleSeniorMember, RoleMember:
		return Role(name), true
	}
	return "", false
}

// IsAdmin reports whether the role bypasses per-directory ACLs.
func (r Role) IsAdmin() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// Can reports whether the role's capability set contains cap.
func (r Role) Can(cap Capability) bool {
	_, ok := catalog[r][cap]
	return ok
}

// CapabilitiesOf returns the capability set of a role in a stable order.
// Unknown roles yield an empty set.
func CapabilitiesOf(role Role) []Capability {
	set, ok := catalog[role]
	if !ok {
		return nil
	}
	caps := make([]Capability, 0, len(set))
	for _, c := range AllCapabilities() {
		if _, ok := set[c]; ok {
			caps = append(caps, c)
		}
	}
	return caps
}

// ViewCapabilities are the capabilities the ancestor-of-granted rule may
// confer: just enough to keep the tree navigable down to a granted subtree.
func ViewCapabilities() []Capability {
	return []Capability{CapViewDirectory, CapViewFile}
}

// IsViewCapability reports whether cap is a listing/navigation capability.
func IsViewCapability(cap Capability) bool {
	return cap == CapViewDirectory || cap == CapViewFile
}

var catalog = map[Role]map[Capability]struct{}{
	RoleSuperAdmin: capSet(AllCapabilities()...),
	RoleAdmin: capSet(
		CapManageUsers,
		CapViewUsers,
		CapCreateDirectory,
		CapUpdateDirectory,
		CapDeleteDirectory,
		CapViewDirectory,
		CapUploadFile,
		CapDownloadFile,
		CapUpdateFile,
		CapDeleteFile,
		CapViewFile,
		CapManageGroups,
		CapViewGroups,
		CapManageProposals,
		CapViewProposals,
	),
	RoleSeniorMember: capSet(
		CapViewDirectory,
		CapViewFile,
		CapDownloadFile,
		CapViewGroups,
		CapViewProposals,
	),
	RoleMember: capSet(
		CapViewDirectory,
		CapViewFile,
		CapViewGroups,
		CapViewProposals,
	),
}

func capSet(caps ...Capability) map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}
