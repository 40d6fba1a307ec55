package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/auth"
	"github.com/platinummonkey/docvault/pkg/blob"
	"github.com/platinummonkey/docvault/pkg/httputil"
	"github.com/platinummonkey/docvault/pkg/rbac"
	"github.com/platinummonkey/docvault/pkg/store"
)

// listFiles handles GET /files?directory_id=N.
func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())

	raw := r.URL.Query().Get("directory_id")
	if raw == "" {
		httputil.WriteBadRequest(w, "directory_id is required")
		return
	}
	directoryID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid directory_id")
		return
	}

	if err := s.checkDirectory(r, p, directoryID, rbac.CapViewFile); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	files, err := s.store.ListFilesByDirectory(r.Context(), directoryID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, files)
}

// uploadFile handles POST /files (multipart form: directory_id + file).
// The blob is written before the metadata row; a metadata failure leaves
// an orphaned blob, which is accepted.
func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httputil.WriteBadRequest(w, "invalid multipart form: "+err.Error())
		return
	}

	directoryID, err := strconv.ParseInt(r.FormValue("directory_id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid directory_id")
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteBadRequest(w, "file is required")
		return
	}
	defer part.Close()

	// Role path or a live proposal grant; decided per request.
	if err := s.resolver.CheckUpload(r.Context(), p, directoryID); err != nil {
		s.metrics.RecordAccessDecision(string(rbac.CapUploadFile), false)
		httputil.WriteAppError(w, err)
		return
	}
	s.metrics.RecordAccessDecision(string(rbac.CapUploadFile), true)

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	now := time.Now().UTC()
	storedName := fmt.Sprintf("%d_%s", now.Unix(), header.Filename)
	blobKey := fmt.Sprintf("%d/%s%s", now.Year(), uuid.NewString(), filepath.Ext(header.Filename))

	if err := s.blobs.Put(r.Context(), blobKey, part, contentType); err != nil {
		s.metrics.BlobErrorsTotal.WithLabelValues("put", "primary").Inc()
		httputil.WriteAppError(w, apperrors.Storagef("store file content: %v", err))
		return
	}
	s.metrics.BlobOperationsTotal.WithLabelValues("put", "primary").Inc()

	f := &store.File{
		Name:         storedName,
		OriginalName: header.Filename,
		DirectoryID:  directoryID,
		UploadedBy:   p.UserID,
		BlobKey:      blobKey,
		MimeType:     contentType,
		Size:         header.Size,
	}
	if err := s.store.CreateFile(r.Context(), f); err != nil {
		// The blob stays orphaned; metadata is the source of truth.
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteCreated(w, f)
}

// getFile handles GET /files/{id}.
func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	f, ok := s.loadFileChecked(w, r, p, rbac.CapViewFile)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, f)
}

// renameFile handles PUT /files/{id}: updates the display name only; the
// stored name and blob key never change.
func (s *Server) renameFile(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	f, ok := s.loadFileChecked(w, r, p, rbac.CapUpdateFile)
	if !ok {
		return
	}

	var req struct {
		OriginalName string `json:"original_name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.OriginalName, "original_name") {
		return
	}

	updated, err := s.store.RenameFile(r.Context(), f.ID, req.OriginalName)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

// deleteFile handles DELETE /files/{id}. The blob goes first; if its
// removal fails the operation aborts and the metadata stays intact.
func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	f, ok := s.loadFileChecked(w, r, p, rbac.CapDeleteFile)
	if !ok {
		return
	}

	if err := s.blobs.Delete(r.Context(), f.BlobKey); err != nil && !errors.Is(err, blob.ErrNotFound) {
		s.metrics.BlobErrorsTotal.WithLabelValues("delete", "primary").Inc()
		httputil.WriteAppError(w, apperrors.Storagef("delete file content: %v", err))
		return
	}
	s.metrics.BlobOperationsTotal.WithLabelValues("delete", "primary").Inc()

	if err := s.store.DeleteFile(r.Context(), f.ID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "deleted"})
}

// downloadFile handles GET /files/{id}/download, streaming the blob.
func (s *Server) downloadFile(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	f, ok := s.loadFileChecked(w, r, p, rbac.CapDownloadFile)
	if !ok {
		return
	}

	rc, err := s.blobs.Get(r.Context(), f.BlobKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			httputil.WriteAppError(w, apperrors.NotFound("file content not found"))
			return
		}
		s.metrics.BlobErrorsTotal.WithLabelValues("get", "primary").Inc()
		httputil.WriteAppError(w, apperrors.Storagef("open file content: %v", err))
		return
	}
	defer rc.Close()
	s.metrics.BlobOperationsTotal.WithLabelValues("get", "primary").Inc()

	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.OriginalName))
	if f.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.WithError(err).WithField("file_id", f.ID).Warn("download stream interrupted")
	}
}

// loadFileChecked fetches the file and authorizes cap against its owning
// directory. A false return means the response is already written.
func (s *Server) loadFileChecked(w http.ResponseWriter, r *http.Request, p *auth.Principal, cap rbac.Capability) (*store.File, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return nil, false
	}

	f, err := s.store.GetFile(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return nil, false
	}

	err = s.resolver.CheckFile(r.Context(), p, f, cap)
	s.metrics.RecordAccessDecision(string(cap), err == nil)
	if err != nil {
		httputil.WriteAppError(w, err)
		return nil, false
	}
	return f, true
}
