// Folder HTTP handlers.
//
// This file exposes REST endpoints for folder resources:
//   - POST   /folders              (register a provider folder for indexing)
//   - GET    /folders              (list)
//   - GET    /folders/{id}/status  (poll indexing progress)
//   - POST   /folders/{id}/reindex (queue a fresh indexing run)
//   - DELETE /folders/{id}         (delete; 409 while indexing)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docgrove/go-docchat-backend/internal/domain"
	"github.com/docgrove/go-docchat-backend/internal/services"
)

// FolderService defines folder lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type FolderService interface {
	// Register creates a folder for ownerID and queues its first indexing run.
	Register(ctx context.Context, ownerID, providerRef, name string) (*domain.Folder, error)
	// List returns all folders belonging to ownerID.
	List(ctx context.Context, ownerID string) ([]domain.Folder, error)
	// Status returns the indexing progress snapshot for polling.
	Status(ctx context.Context, ownerID, id string) (*services.FolderStatus, error)
	// Reindex queues a fresh run, or returns the active one.
	Reindex(ctx context.Context, ownerID, id string) (*domain.IndexJob, error)
	// Delete removes a folder unless an indexing run holds it.
	Delete(ctx context.Context, ownerID, id string) error
}

// RegisterFolderRequest is the JSON payload for registering a folder.
type RegisterFolderRequest struct {
	// ProviderRef points at the folder in the storage provider, e.g. a
	// bucket name or bucket/prefix.
	ProviderRef string `json:"provider_ref" binding:"required" example:"tenant-docs/contracts"`
	// Name optionally sets the display name; the reference is used when empty.
	Name string `json:"name" example:"Contracts 2026"`
}

// ReindexResponse reports the job a reindex request resolved to.
type ReindexResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// RegisterFolder godoc
// @ID          registerFolder
// @Summary     Register a folder for indexing
// @Description Registers a storage-provider folder for the current user and queues the first indexing run. Poll the status endpoint until it settles.
// @Tags        Folders
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.RegisterFolderRequest  true  "Register folder payload"
//
// @Success     201  {object}  domain.Folder
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /folders [post]
func (h *Handlers) RegisterFolder(c *gin.Context) {
	var req RegisterFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ProviderRef) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "provider_ref required")
		return
	}

	f, err := h.folderSvc.Register(c.Request.Context(), userID(c), req.ProviderRef, req.Name)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, f)
}

// ListFolders godoc
// @ID          listFolders
// @Summary     List folders
// @Description Returns the current user's folders, most recent first.
// @Tags        Folders
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {array}   domain.Folder
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /folders [get]
func (h *Handlers) ListFolders(c *gin.Context) {
	items, err := h.folderSvc.List(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, items)
}

// FolderStatus godoc
// @ID          folderStatus
// @Summary     Poll indexing progress
// @Description Returns the folder's indexing status and file counters.
// @Tags        Folders
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Folder ID (UUID)"       format(uuid)
//
// @Success     200  {object}  services.FolderStatus
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Folder not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /folders/{id}/status [get]
func (h *Handlers) FolderStatus(c *gin.Context) {
	id, okID := folderParam(c)
	if !okID {
		return
	}
	st, err := h.folderSvc.Status(c.Request.Context(), userID(c), id)
	if err != nil {
		failFolder(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

// ReindexFolder godoc
// @ID          reindexFolder
// @Summary     Queue a re-index
// @Description Queues a fresh indexing run for the folder. When a run is already queued or in flight the existing job is returned.
// @Tags        Folders
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Folder ID (UUID)"       format(uuid)
//
// @Success     202  {object}  handlers.ReindexResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Folder not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /folders/{id}/reindex [post]
func (h *Handlers) ReindexFolder(c *gin.Context) {
	id, okID := folderParam(c)
	if !okID {
		return
	}
	job, err := h.folderSvc.Reindex(c.Request.Context(), userID(c), id)
	if err != nil {
		failFolder(c, err)
		return
	}
	ok(c, http.StatusAccepted, ReindexResponse{JobID: job.ID, Status: job.Status})
}

// DeleteFolder godoc
// @ID          deleteFolder
// @Summary     Delete a folder
// @Description Deletes a folder with its files, chunks and conversations. Refused with 409 while an indexing run is in flight.
// @Tags        Folders
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Folder ID (UUID)"       format(uuid)
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Folder not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Folder is being indexed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /folders/{id} [delete]
func (h *Handlers) DeleteFolder(c *gin.Context) {
	id, okID := folderParam(c)
	if !okID {
		return
	}
	if err := h.folderSvc.Delete(c.Request.Context(), userID(c), id); err != nil {
		failFolder(c, err)
		return
	}
	noContent(c)
}

// folderParam validates the :id path parameter.
func folderParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "folder id must be a UUID")
		return "", false
	}
	return id, true
}

// failFolder translates folder service errors into HTTP responses.
func failFolder(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrFolderNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "folder not found")
	case errors.Is(err, services.ErrFolderIndexing):
		fail(c, http.StatusConflict, ErrCodeConflict, "folder is being indexed")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
