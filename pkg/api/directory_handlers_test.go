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

func TestDirectoryTreePruned(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	member := ts.mustUser("Member", "member@example.com", "password123", rbac.RoleMember, store.StatusActive)

	public := ts.mustDirectory("public", nil, true, admin.ID)
	ts.mustDirectory("announcements", &public.ID, false, admin.ID)
	private := ts.mustDirectory("private", nil, false, admin.ID)
	granted := ts.mustDirectory("granted", &private.ID, false, admin.ID)
	ts.mustDirectory("hidden", &private.ID, false, admin.ID)
	require.NoError(t, ts.store.GrantDirectory(context.Background(), member.ID, granted.ID))

	rec := ts.do(http.MethodGet, "/directories/tree", ts.mustToken(member.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var roots []*treeNode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roots))
	require.Len(t, roots, 2)

	byName := map[string]*treeNode{}
	for _, n := range roots {
		byName[n.Name] = n
	}

	// Public subtree comes back whole.
	require.Contains(t, byName, "public")
	assert.Len(t, byName["public"].Children, 1)

	// The private root survives only as the navigation path to the grant.
	require.Contains(t, byName, "private")
	require.Len(t, byName["private"].Children, 1)
	assert.Equal(t, "granted", byName["private"].Children[0].Name)
}

func TestListDirectoriesFiltered(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	member := ts.mustUser("Member", "member@example.com", "password123", rbac.RoleMember, store.StatusActive)

	ts.mustDirectory("public", nil, true, admin.ID)
	ts.mustDirectory("private", nil, false, admin.ID)

	rec := ts.do(http.MethodGet, "/directories", ts.mustToken(member.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dirs []*store.Directory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dirs))
	require.Len(t, dirs, 1)
	assert.Equal(t, "public", dirs[0].Name)

	rec = ts.do(http.MethodGet, "/directories", ts.mustToken(admin.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dirs))
	assert.Len(t, dirs, 2)
}

func TestCreateDirectory(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	token := ts.mustToken(admin.ID)

	rec := ts.do(http.MethodPost, "/directories", token, map[string]interface{}{
		"name": "projects", "is_public": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var root store.Directory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &root))
	assert.Equal(t, "projects", root.Path)
	assert.True(t, root.IsPublic)

	rec = ts.do(http.MethodPost, "/directories", token, map[string]interface{}{
		"name": "2026", "parent_id": root.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var child store.Directory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &child))
	assert.Equal(t, "projects/2026", child.Path)
}

func TestCreateDirectoryMemberForbidden(t *testing.T) {
	ts := newTestServer(t)
	member := ts.mustUser("Member", "member@example.com", "password123", rbac.RoleMember, store.StatusActive)

	rec := ts.do(http.MethodPost, "/directories", ts.mustToken(member.ID), map[string]interface{}{
		"name": "mine",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateDirectoryKeepsPath(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	dir := ts.mustDirectory("projects", nil, false, admin.ID)

	rec := ts.do(http.MethodPut, fmt.Sprintf("/directories/%d", dir.ID), ts.mustToken(admin.ID), map[string]interface{}{
		"name": "archive", "is_public": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got store.Directory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "archive", got.Name)
	assert.True(t, got.IsPublic)
	assert.Equal(t, "projects", got.Path)
}

func TestDeleteDirectoryCascadeRemovesBlobs(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	token := ts.mustToken(admin.ID)

	root := ts.mustDirectory("projects", nil, false, admin.ID)
	child := ts.mustDirectory("2026", &root.ID, false, admin.ID)

	rec := ts.upload(token, fmt.Sprintf("%d", child.ID), "report.pdf", []byte("content"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var f store.File
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))

	rec = ts.do(http.MethodDelete, fmt.Sprintf("/directories/%d", root.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), decode(t, rec)["files_removed"])

	for _, id := range []int64{root.ID, child.ID} {
		_, err := ts.store.GetDirectory(ctx, id)
		assert.Error(t, err)
	}
	_, err := ts.blobs.Get(ctx, f.BlobKey)
	assert.Error(t, err, "blob should be cleaned up after the cascade")
}

func TestDeleteDirectoryRequiresCapability(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	member := ts.mustUser("Member", "member@example.com", "password123", rbac.RoleMember, store.StatusActive)
	dir := ts.mustDirectory("public", nil, true, admin.ID)

	// Visible is not deletable.
	rec := ts.do(http.MethodDelete, fmt.Sprintf("/directories/%d", dir.ID), ts.mustToken(member.ID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetDirectoryNotFound(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)

	rec := ts.do(http.MethodGet, "/directories/9999", ts.mustToken(admin.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
