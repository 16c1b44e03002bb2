package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ibcol/portal/internal/common"
	"github.com/ibcol/portal/internal/fileref"
	"github.com/ibcol/portal/internal/server/auth"
)

// maxJSONBody bounds request bodies; file bytes never come through here.
const maxJSONBody = 64 << 10

type issueRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

type issueResponse struct {
	UploadURL string            `json:"uploadUrl"`
	FileRef   string            `json:"fileRef"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
}

type confirmResponse struct {
	FileRef     string `json:"fileRef"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType,omitempty"`
}

// IssueUploadTarget handles POST /files.
//
// Body: {"name": "...", "type": "...", "size": 123}
// Returns 201 with a write-signed URL and the file reference to keep.
func (h *Handler) IssueUploadTarget(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.fail(w, r, "issue upload target", fmt.Errorf("%w: malformed request body", common.ErrValidation))
		return
	}

	target, err := h.files.Issue(r.Context(), fileref.UploadRequest{
		Name:        req.Name,
		ContentType: req.Type,
		Size:        req.Size,
	})
	if err != nil {
		h.fail(w, r, "issue upload target", err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, issueResponse{
		UploadURL: target.UploadURL,
		FileRef:   target.FileRef,
		ExpiresAt: target.ExpiresAt.UTC(),
		Method:    target.Method,
		Headers:   target.Headers,
	})
}

// ResolveDownloadTarget handles GET /files/{fileRef} by redirecting to a
// freshly signed read URL.
func (h *Handler) ResolveDownloadTarget(w http.ResponseWriter, r *http.Request) {
	target, err := h.files.Resolve(r.Context(), r.PathValue("fileRef"))
	if err != nil {
		h.fail(w, r, "resolve download target", err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target.URL, http.StatusFound)
}

// DeleteReference handles DELETE /files/{fileRef}.
func (h *Handler) DeleteReference(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, r.PathValue("fileRef"))
}

// RevertUpload handles DELETE /files whose body is the file reference.
func (h *Handler) RevertUpload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		h.fail(w, r, "revert upload", fmt.Errorf("%w: unreadable body", common.ErrValidation))
		return
	}
	ref := strings.Trim(strings.TrimSpace(string(body)), `"`)
	if err := h.authorizeRevert(r, ref); err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="ibcol"`)
		}
		h.fail(w, r, "revert upload", err)
		return
	}
	h.delete(w, r, ref)
}

// authorizeRevert lets anyone revert an upload that landed within the revert
// window; older objects need an admin token when one is configured.
func (h *Handler) authorizeRevert(r *http.Request, ref string) error {
	secret := h.opts.AdminTokenSecret
	if len(secret) == 0 {
		return nil
	}
	if _, err := auth.AuthorizeAdmin(r.Header.Get("Authorization"), secret); err == nil {
		return nil
	}

	info, err := h.files.Confirm(r.Context(), ref)
	if err != nil {
		return err
	}
	if h.now().Sub(info.ModTime) > h.opts.RevertWindow {
		return fmt.Errorf("%w: upload is past the revert window", common.ErrUnauthorized)
	}
	return nil
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, ref string) {
	if err := h.files.Delete(r.Context(), ref); err != nil {
		h.fail(w, r, "delete reference", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ConfirmUpload handles POST /files/{fileRef}/confirm, reporting 404 until
// the client's direct upload has landed.
func (h *Handler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("fileRef")
	info, err := h.files.Confirm(r.Context(), ref)
	if err != nil {
		h.fail(w, r, "confirm upload", err)
		return
	}

	writeJSON(w, http.StatusOK, confirmResponse{
		FileRef:     ref,
		Size:        info.Size,
		ContentType: info.ContentType,
	})
}
