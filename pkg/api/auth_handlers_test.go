package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/store"
)

func TestRegister(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/register", "", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	u, err := ts.store.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, u.Status)
	assert.Equal(t, rbac.RoleMember, u.Role)

	// Membership in the default group is automatic.
	groupIDs, err := ts.store.GroupIDsOf(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Len(t, groupIDs, 1)
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/register", "", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(http.MethodPost, "/register", "", map[string]string{
		"email": "alice@example.com", "password": "hunter2hunter2",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ts := newTestServer(t)
	ts.mustUser("Alice", "alice@example.com", "password123", rbac.RoleMember, store.StatusActive)

	rec := ts.do(http.MethodPost, "/register", "", map[string]string{
		"name": "Other Alice", "email": "alice@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	u := ts.mustUser("Alice", "alice@example.com", "password123", rbac.RoleMember, store.StatusActive)

	rec := ts.do(http.MethodPost, "/login", "", map[string]string{
		"email": "alice@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	// The token works against an authenticated endpoint.
	rec = ts.do(http.MethodGet, "/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode(t, rec)
	assert.Equal(t, float64(u.ID), me["id"])
	assert.Equal(t, "member", me["role"])
	assert.NotEmpty(t, me["capabilities"])
}

func TestLoginBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	ts.mustUser("Alice", "alice@example.com", "password123", rbac.RoleMember, store.StatusActive)

	// Wrong password and unknown email produce the same answer.
	for _, req := range []map[string]string{
		{"email": "alice@example.com", "password": "wrong"},
		{"email": "nobody@example.com", "password": "password123"},
	} {
		rec := ts.do(http.MethodPost, "/login", "", req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid credentials", decode(t, rec)["error"])
	}
}

func TestLoginPendingAndDisabled(t *testing.T) {
	ts := newTestServer(t)
	ts.mustUser("Pat", "pending@example.com", "password123", rbac.RoleMember, store.StatusPending)
	ts.mustUser("Ian", "inactive@example.com", "password123", rbac.RoleMember, store.StatusInactive)

	rec := ts.do(http.MethodPost, "/login", "", map[string]string{
		"email": "pending@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "account is awaiting approval", decode(t, rec)["error"])

	rec = ts.do(http.MethodPost, "/login", "", map[string]string{
		"email": "inactive@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "account is disabled", decode(t, rec)["error"])
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := newTestServer(t)
	u := ts.mustUser("Alice", "alice@example.com", "password123", rbac.RoleMember, store.StatusActive)
	token := ts.mustToken(u.ID)

	rec := ts.do(http.MethodPost, "/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareRejections(t *testing.T) {
	ts := newTestServer(t)

	// No token at all.
	rec := ts.do(http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Garbage token.
	rec = ts.do(http.MethodGet, "/me", "dv_not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareDisabledAccount(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	u := ts.mustUser("Alice", "alice@example.com", "password123", rbac.RoleMember, store.StatusActive)
	token := ts.mustToken(u.ID)

	// Disabling the account cuts off a live token immediately.
	require.NoError(t, ts.store.UpdateUserStatus(ctx, u.ID, store.StatusInactive))

	rec := ts.do(http.MethodGet, "/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePassword(t *testing.T) {
	ts := newTestServer(t)
	u := ts.mustUser("Alice", "alice@example.com", "oldpassword", rbac.RoleMember, store.StatusActive)
	token := ts.mustToken(u.ID)

	rec := ts.do(http.MethodPut, "/change-password", token, map[string]string{
		"current_password": "wrong", "new_password": "newpassword1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(http.MethodPut, "/change-password", token, map[string]string{
		"current_password": "oldpassword", "new_password": "newpassword1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/login", "", map[string]string{
		"email": "alice@example.com", "password": "newpassword1",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateProfile(t *testing.T) {
	ts := newTestServer(t)
	u := ts.mustUser("Alice", "alice@example.com", "password123", rbac.RoleMember, store.StatusActive)
	token := ts.mustToken(u.ID)

	rec := ts.do(http.MethodPut, "/profile", token, map[string]string{
		"name": "Alice Cooper", "email": "cooper@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := ts.store.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Cooper", got.Name)
	assert.Equal(t, "cooper@example.com", got.Email)
}

func TestUpdateProfileEmailConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.mustUser("Bob", "bob@example.com", "password123", rbac.RoleMember, store.StatusActive)
	u := ts.mustUser("Alice", "alice@example.com", "password123", rbac.RoleMember, store.StatusActive)
	token := ts.mustToken(u.ID)

	rec := ts.do(http.MethodPut, "/profile", token, map[string]string{
		"name": "Alice", "email": "bob@example.com",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
