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

func TestCreateProposalWithGrants(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	member := ts.mustUser("Member", "member@example.com", "password123", rbac.RoleMember, store.StatusActive)
	dir := ts.mustDirectory("uploads", nil, false, admin.ID)
	token := ts.mustToken(admin.ID)

	expires := time.Now().Add(time.Hour).UTC()
	rec := ts.do(http.MethodPost, "/proposals", token, map[string]interface{}{
		"title":  "Q1 submissions",
		"status": "active",
		"permissions": []map[string]interface{}{
			{"user_id": member.ID, "directory_id": dir.ID, "expires_at": expires, "can_upload": true},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var p store.Proposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, store.ProposalActive, p.Status)
	assert.Equal(t, admin.ID, p.CreatedBy)
	require.Len(t, p.Permissions, 1)

	// The grant immediately authorizes the member's upload.
	rec = ts.upload(ts.mustToken(member.ID), fmt.Sprintf("%d", dir.ID), "draft.txt", []byte("x"))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCreateProposalDefaultsToDraft(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)

	rec := ts.do(http.MethodPost, "/proposals", ts.mustToken(admin.ID), map[string]string{"title": "Untitled"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var p store.Proposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, store.ProposalDraft, p.Status)
}

func TestProposalValidation(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	token := ts.mustToken(admin.ID)

	rec := ts.do(http.MethodPost, "/proposals", token, map[string]string{"title": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(http.MethodPost, "/proposals", token, map[string]string{
		"title": "X", "status": "bogus",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestProposalCapabilityGates(t *testing.T) {
	ts := newTestServer(t)
	member := ts.mustUser("Member", "member@example.com", "password123", rbac.RoleMember, store.StatusActive)
	token := ts.mustToken(member.ID)

	// Members may read proposals but not manage them.
	rec := ts.do(http.MethodGet, "/proposals", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/proposals", token, map[string]string{"title": "Nope"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateProposalKeepsGrants(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	member := ts.mustUser("Member", "member@example.com", "password123", rbac.RoleMember, store.StatusActive)
	dir := ts.mustDirectory("uploads", nil, false, admin.ID)

	p := &store.Proposal{
		Title: "Open", CreatedBy: admin.ID, Status: store.ProposalActive,
		Permissions: []*store.ProposalPermission{
			{UserID: member.ID, DirectoryID: dir.ID, CanUpload: true},
		},
	}
	require.NoError(t, ts.store.CreateProposal(ctx, p))

	rec := ts.do(http.MethodPut, fmt.Sprintf("/proposals/%d", p.ID), ts.mustToken(admin.ID), map[string]string{
		"status": "closed",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Closing the proposal does not delete its grants; they live until
	// their own expiry.
	grants, err := ts.store.UploadGrantsFor(ctx, member.ID, dir.ID)
	require.NoError(t, err)
	assert.Len(t, grants, 1)
}

func TestDeleteProposalCascades(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	member := ts.mustUser("Member", "member@example.com", "password123", rbac.RoleMember, store.StatusActive)
	dir := ts.mustDirectory("uploads", nil, false, admin.ID)

	p := &store.Proposal{
		Title: "Doomed", CreatedBy: admin.ID, Status: store.ProposalActive,
		Permissions: []*store.ProposalPermission{
			{UserID: member.ID, DirectoryID: dir.ID, CanUpload: true},
		},
	}
	require.NoError(t, ts.store.CreateProposal(ctx, p))

	rec := ts.do(http.MethodDelete, fmt.Sprintf("/proposals/%d", p.ID), ts.mustToken(admin.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	grants, err := ts.store.UploadGrantsFor(ctx, member.ID, dir.ID)
	require.NoError(t, err)
	assert.Empty(t, grants)
}

func TestAddProposalPermission(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	admin := ts.mustUser("Admin", "admin@example.com", "password123", rbac.RoleAdmin, store.StatusActive)
	member := ts.mustUser("Member", "member@example.com", "password123", rbac.RoleMember, store.StatusActive)
	dir := ts.mustDirectory("uploads", nil, false, admin.ID)
	token := ts.mustToken(admin.ID)

	p := &store.Proposal{Title: "Rolling", CreatedBy: admin.ID, Status: store.ProposalActive}
	require.NoError(t, ts.store.CreateProposal(ctx, p))

	rec := ts.do(http.MethodPost, fmt.Sprintf("/proposals/%d/permissions", p.ID), token, map[string]interface{}{
		"user_id": member.ID, "directory_id": dir.ID, "can_upload": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, fmt.Sprintf("/proposals/%d/permissions", p.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var perms []*store.ProposalPermission
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &perms))
	assert.Len(t, perms, 1)

	// Missing references fail cleanly.
	rec = ts.do(http.MethodPost, fmt.Sprintf("/proposals/%d/permissions", p.ID), token, map[string]interface{}{
		"user_id": int64(9999), "directory_id": dir.ID,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, fmt.Sprintf("/proposals/%d/permissions", p.ID), token, map[string]interface{}{
		"directory_id": dir.ID,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
