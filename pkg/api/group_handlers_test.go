package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/store"
)

func TestCreateAndListGroups(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	token := ts.mustToken(admin.ID)

	rec := ts.do(http.MethodPost, "/groups", token, map[string]string{
		"name": "engineering", "description": "builders",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var g store.Group
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	// Display name falls back to the name.
	assert.Equal(t, "engineering", g.DisplayName)

	rec = ts.do(http.MethodGet, "/groups", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var groups []*store.Group
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	// The default group plus the one just created.
	assert.Len(t, groups, 2)
}

func TestCreateGroupRequiresManage(t *testing.T) {
	ts := newTestServer(t)
	member := ts.mustUser("Member", "member@example.com", "password123", rbac.RoleMember, store.StatusActive)

	rec := ts.do(http.MethodPost, "/groups", ts.mustToken(member.ID), map[string]string{"name": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Members may still list groups.
	rec = ts.do(http.MethodGet, "/groups", ts.mustToken(member.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGroupMembership(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	member := ts.mustUser("Member", "member@example.com", "password123", rbac.RoleMember, store.StatusActive)
	token := ts.mustToken(admin.ID)

	g := &store.Group{Name: "engineering", DisplayName: "Engineering"}
	require.NoError(t, ts.store.CreateGroup(ctx, g))

	rec := ts.do(http.MethodPost, fmt.Sprintf("/groups/%d/users/%d", g.ID, member.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, fmt.Sprintf("/groups/%d", g.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, []interface{}{float64(member.ID)}, body["member_ids"])

	// Adding twice conflicts.
	rec = ts.do(http.MethodPost, fmt.Sprintf("/groups/%d/users/%d", g.ID, member.ID), token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodDelete, fmt.Sprintf("/groups/%d/users/%d", g.ID, member.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	memberIDs, err := ts.store.GroupMemberIDs(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, memberIDs)
}

func TestGroupMembershipUnknownSides(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	token := ts.mustToken(admin.ID)

	rec := ts.do(http.MethodPost, fmt.Sprintf("/groups/9999/users/%d", admin.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	g, err := ts.store.GetGroupByName(context.Background(), store.DefaultGroupName)
	require.NoError(t, err)
	rec = ts.do(http.MethodPost, fmt.Sprintf("/groups/%d/users/9999", g.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDefaultGroupProtections(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	member := ts.mustUser("Member", "member@example.com", "password123", rbac.RoleMember, store.StatusActive)
	token := ts.mustToken(admin.ID)

	def, err := ts.store.GetGroupByName(ctx, store.DefaultGroupName)
	require.NoError(t, err)
	require.NoError(t, ts.store.AddUserToGroup(ctx, def.ID, member.ID))

	// Undeletable.
	rec := ts.do(http.MethodDelete, fmt.Sprintf("/groups/%d", def.ID), token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Undetachable.
	rec = ts.do(http.MethodDelete, fmt.Sprintf("/groups/%d/users/%d", def.ID, member.ID), token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	memberIDs, err := ts.store.GroupMemberIDs(ctx, def.ID)
	require.NoError(t, err)
	assert.Contains(t, memberIDs, member.ID)
}

func TestUpdateGroup(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	token := ts.mustToken(admin.ID)

	g := &store.Group{Name: "ops", DisplayName: "Ops", Description: "old"}
	require.NoError(t, ts.store.CreateGroup(context.Background(), g))

	rec := ts.do(http.MethodPut, fmt.Sprintf("/groups/%d", g.ID), token, map[string]string{
		"display_name": "Operations",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got store.Group
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Operations", got.DisplayName)
	// Description is a full replace; omitting it clears it.
	assert.Empty(t, got.Description)
}

func TestDeleteGroup(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)

	g := &store.Group{Name: "temp", DisplayName: "Temp"}
	require.NoError(t, ts.store.CreateGroup(context.Background(), g))

	rec := ts.do(http.MethodDelete, fmt.Sprintf("/groups/%d", g.ID), ts.mustToken(admin.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := ts.store.GetGroup(context.Background(), g.ID)
	assert.Error(t, err)
}
