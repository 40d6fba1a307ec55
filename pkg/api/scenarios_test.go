package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/store"
)

// End-to-end flows spanning registration, approval, grants and uploads.

func TestScenarioPrivateRootInvisibleToMember(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	member := ts.mustUser("Member", "member@example.com", "password123", rbac.RoleMember, store.StatusActive)

	ts.mustDirectory("Docs", nil, false, admin.ID)

	rec := ts.do(http.MethodGet, "/directories/tree", ts.mustToken(member.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var roots []*treeNode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roots))
	assert.Empty(t, roots)
}

func TestScenarioGrantOpensAncestorPath(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	member := ts.mustUser("Member", "member@example.com", "password123", rbac.RoleMember, store.StatusActive)
	memberToken := ts.mustToken(member.ID)

	docs := ts.mustDirectory("Docs", nil, false, admin.ID)
	specs := ts.mustDirectory("Specs", &docs.ID, false, admin.ID)
	require.NoError(t, ts.store.GrantDirectory(ctx, member.ID, specs.ID))

	rec := ts.do(http.MethodGet, "/directories/tree", memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var roots []*treeNode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roots))
	require.Len(t, roots, 1)
	assert.Equal(t, "Docs", roots[0].Name)
	require.Len(t, roots[0].Children, 1)
	assert.Equal(t, "Specs", roots[0].Children[0].Name)

	// The ancestor is navigation-only: the member may open it but the
	// granted node is where real access begins.
	rec = ts.do(http.MethodGet, fmt.Sprintf("/directories/%d", docs.ID), memberToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(http.MethodGet, fmt.Sprintf("/directories/%d", specs.ID), memberToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScenarioExpiredGrantDeniesUpload(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	member := ts.mustUser("Member", "member@example.com", "password123", rbac.RoleMember, store.StatusActive)
	dir := ts.mustDirectory("Dropbox", nil, false, admin.ID)

	yesterday := time.Now().Add(-24 * time.Hour).UTC()
	p := &store.Proposal{
		Title: "Last week's call", CreatedBy: admin.ID, Status: store.ProposalActive,
		Permissions: []*store.ProposalPermission{
			{UserID: member.ID, DirectoryID: dir.ID, ExpiresAt: &yesterday, CanUpload: true},
		},
	}
	require.NoError(t, ts.store.CreateProposal(ctx, p))

	rec := ts.upload(ts.mustToken(member.ID), fmt.Sprintf("%d", dir.ID), "late.pdf", []byte("too late"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScenarioRegistrationApprovalFlow(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)

	// Self-registration lands pending.
	rec := ts.do(http.MethodPost, "/register", "", map[string]string{
		"name": "Newcomer", "email": "new@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Pending accounts get a 403 and no token.
	login := map[string]string{"email": "new@example.com", "password": "password123"}
	rec = ts.do(http.MethodPost, "/login", "", login)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, decode(t, rec), "token")

	// Approval unlocks login.
	u, err := ts.store.GetUserByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	rec = ts.do(http.MethodPost, fmt.Sprintf("/users/%d/approve", u.ID), ts.mustToken(admin.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/login", "", login)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["token"])
}
