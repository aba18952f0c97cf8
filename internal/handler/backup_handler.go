package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edunexa/tuition-api/internal/service"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
	"github.com/edunexa/tuition-api/pkg/response"
)

// BackupHandler exposes tenant snapshot endpoints.
type BackupHandler struct {
	backups *service.BackupService
}

// NewBackupHandler constructs BackupHandler.
func NewBackupHandler(backups *service.BackupService) *BackupHandler {
	return &BackupHandler{backups: backups}
}

// List godoc
// @Summary List ready backups
// @Tags Backups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /backups [get]
func (h *BackupHandler) List(c *gin.Context) {
	backups, err := h.backups.List(c.Request.Context(), tuitionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, backups, nil)
}

// Create godoc
// @Summary Snapshot the tenant's data
// @Tags Backups
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /backups [post]
func (h *BackupHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	backup, err := h.backups.Create(c.Request.Context(), tuitionFromContext(c), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, backup)
}

// Download godoc
// @Summary Issue a signed download URL for a backup
// @Tags Backups
// @Produce json
// @Param id path string true "Backup ID"
// @Success 200 {object} response.Envelope
// @Router /backups/{id}/download [get]
func (h *BackupHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	link, err := h.backups.Download(c.Request.Context(), tuitionFromContext(c), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// DownloadByToken streams a backup archive referenced by a signed token.
// Unauthenticated: the token itself is the credential.
func (h *BackupHandler) DownloadByToken(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	backupID, path, err := h.backups.ResolveToken(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", backupID+".json"))
	c.File(path)
}

// Export godoc
// @Summary Export tenant data as an Excel workbook
// @Tags Backups
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary
// @Router /backups/export [post]
func (h *BackupHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	content, filename, err := h.backups.ExportExcel(c.Request.Context(), tuitionFromContext(c), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content)
}
