package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/docvault/pkg/auth"
	"github.com/platinummonkey/docvault/pkg/blob"
	"github.com/platinummonkey/docvault/pkg/observability"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/store"
)

// testServer wires a full Server over in-memory SQLite and a temp-dir
// blob store.
type testServer struct {
	t      *testing.T
	server *Server
	store  *store.Store
	blobs  blob.Store
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st := store.New(store.SetupTestDB(t))
	_, err := st.EnsureDefaultGroup(context.Background())
	require.NoError(t, err)

	blobs, err := blob.NewFileSystemStore(t.TempDir())
	require.NoError(t, err)

	tokens := auth.NewTokenManager(st, time.Hour)
	srv := NewServer(Options{
		Store:  st,
		Blobs:  blobs,
		Tokens: tokens,
		Logger: observability.NewLogger(observability.ErrorLevel, io.Discard),
	})

	return &testServer{t: t, server: srv, store: st, blobs: blobs, tokens: tokens}
}

// mustUser creates a user with a known password and returns it.
func (ts *testServer) mustUser(name, email, password string, role rbac.Role, status store.Status) *store.User {
	ts.t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(ts.t, err)
	u := &store.User{
		Name: name, Email: email, PasswordHash: hash,
		Status: status, Role: role,
	}
	require.NoError(ts.t, ts.store.CreateUser(context.Background(), u))
	return u
}

// mustToken issues a bearer token for the user.
func (ts *testServer) mustToken(userID int64) string {
	ts.t.Helper()

	token, _, err := ts.tokens.Issue(context.Background(), userID)
	require.NoError(ts.t, err)
	return token
}

// do performs a JSON request. A nil body sends no payload; an empty
// token leaves the request unauthenticated.
func (ts *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	ts.t.Helper()

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.t, err)
		payload = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

// upload performs a multipart file upload. The part carries the content
// type a browser would infer from the filename.
func (ts *testServer) upload(token, directoryID, filename string, content []byte) *httptest.ResponseRecorder {
	ts.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(ts.t, mw.WriteField("directory_id", directoryID))

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		header.Set("Content-Type", ct)
	}
	part, err := mw.CreatePart(header)
	require.NoError(ts.t, err)
	_, err = part.Write(content)
	require.NoError(ts.t, err)
	require.NoError(ts.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a response body into a map.
func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

// mustDirectory creates a directory owned by userID.
func (ts *testServer) mustDirectory(name string, parentID *int64, isPublic bool, userID int64) *store.Directory {
	ts.t.Helper()

	d, err := ts.store.CreateDirectory(context.Background(), name, parentID, isPublic, userID)
	require.NoError(ts.t, err)
	return d
}
