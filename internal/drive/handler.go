package drive

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// FolderIngester is implemented by IngestService.
type FolderIngester interface {
	IngestFolder(ctx context.Context, folderID string) ([]FileReport, error)
}

type Handler struct {
	ingester        FolderIngester
	defaultFolderID string
}

func NewHandler(ingester FolderIngester, defaultFolderID string) *Handler {
	return &Handler{ingester: ingester, defaultFolderID: defaultFolderID}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/drive/ingest", h.IngestFolder)
}

// IngestFolder pulls every fact file from a Drive folder.
// POST /api/v1/drive/ingest?folder_id=...
func (h *Handler) IngestFolder(c *gin.Context) {
	folderID := c.DefaultQuery("folder_id", h.defaultFolderID)
	if folderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "folder_id is required"})
		return
	}

	reports, err := h.ingester.IngestFolder(c.Request.Context(), folderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed", "details": err.Error(), "files": reports})
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": reports})
}
