package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/christo725/seen/internal/model"
	"github.com/christo725/seen/internal/store"
	"github.com/christo725/seen/internal/verify"
)

// ownerHeader identifies the caller. Authentication itself is handled
// upstream; handlers only need the resolved user id.
const ownerHeader = "X-User-ID"

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createUploadRequest struct {
	MediaURL       string     `json:"media_url"`
	MediaKind      string     `json:"media_kind"`
	Description    string     `json:"description"`
	Latitude       *float64   `json:"latitude"`
	Longitude      *float64   `json:"longitude"`
	LocationSource string     `json:"location_source"`
	LocationName   string     `json:"location_name"`
	CapturedAt     *time.Time `json:"captured_at"`
}

func (s *Server) createUpload(c *gin.Context) {
	owner := c.GetHeader(ownerHeader)
	if owner == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + ownerHeader + " header"})
		return
	}

	var req createUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	up := &model.Upload{
		ID:             uuid.NewString(),
		OwnerID:        owner,
		MediaURL:       req.MediaURL,
		MediaKind:      req.MediaKind,
		Description:    req.Description,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		LocationSource: req.LocationSource,
		LocationName:   req.LocationName,
		CapturedAt:     req.CapturedAt,
	}
	if err := up.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.Create(c.Request.Context(), up); err != nil {
		s.log.Error("create upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create upload"})
		return
	}
	c.JSON(http.StatusCreated, up)
}

func (s *Server) listUploads(c *gin.Context) {
	filter := store.ListFilter{
		OwnerID: c.Query("owner"),
	}
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		filter.Since = &t
	}
	if v := c.Query("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "until must be RFC3339"})
			return
		}
		filter.Until = &t
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		filter.Limit = n
	}

	uploads, err := s.store.List(c.Request.Context(), filter)
	if err != nil {
		s.log.Error("list uploads failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list uploads"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploads": uploads, "count": len(uploads)})
}

func (s *Server) getUpload(c *gin.Context) {
	up, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
		return
	}
	if err != nil {
		s.log.Error("get upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load upload"})
		return
	}
	c.JSON(http.StatusOK, up)
}

func (s *Server) deleteUpload(c *gin.Context) {
	owner := c.GetHeader(ownerHeader)
	if owner == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + ownerHeader + " header"})
		return
	}

	err := s.store.SoftDelete(c.Request.Context(), c.Param("id"), owner)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
	case errors.Is(err, store.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the upload owner"})
	case err != nil:
		s.log.Error("delete upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete upload"})
	default:
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}

func (s *Server) verifyUpload(c *gin.Context) {
	id := c.Param("id")
	result, err := s.verifier.VerifyUpload(c.Request.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
	case errors.Is(err, verify.ErrPersist):
		// The verification ran; only the write-back failed.
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "verification completed but result could not be saved",
			"result": resultPayload(result),
		})
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  err.Error(),
			"result": resultPayload(result),
		})
	default:
		c.JSON(http.StatusOK, gin.H{"result": resultPayload(result)})
	}
}

func (s *Server) verifyPending(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	outcomes, err := s.verifier.VerifyPending(c.Request.Context(), limit)
	if err != nil {
		s.log.Error("batch verification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to run batch verification"})
		return
	}

	items := make([]gin.H, 0, len(outcomes))
	failed := 0
	for _, o := range outcomes {
		item := gin.H{"upload_id": o.UploadID, "status": o.Result.Status}
		if o.Err != nil {
			item["error"] = o.Err.Error()
			failed++
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, gin.H{
		"processed": len(outcomes),
		"failed":    failed,
		"results":   items,
	})
}

func resultPayload(r verify.Result) gin.H {
	return gin.H{
		"status":   r.Status,
		"verified": r.Verified,
		"text":     r.Text,
		"issues":   r.Issues,
	}
}
