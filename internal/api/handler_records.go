package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"maintenance-panel-backend/internal/manager"
	"maintenance-panel-backend/internal/model"
	"maintenance-panel-backend/internal/store"
)

// ListRecords handles GET /api/{kind}.
func (h *Handler) ListRecords(res manager.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			docs []store.Document
			err  error
		)
		if field, value, ok := filterFrom(c); ok {
			docs, err = res.QueryDocuments(c.Request.Context(), field, value)
		} else {
			docs, err = res.LoadDocuments(c.Request.Context())
		}
		if err != nil {
			h.abortJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, docs)
	}
}

// GetRecord handles GET /api/{kind}/:key.
func (h *Handler) GetRecord(res manager.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := res.GetDocument(c.Request.Context(), c.Param("key"))
		if err != nil {
			h.abortJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

// CreateRecord handles POST /api/{kind}.
func (h *Handler) CreateRecord(res manager.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input store.Document
		if err := c.ShouldBindJSON(&input); err != nil || input == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		doc, err := res.CreateDocument(c.Request.Context(), input)
		if err != nil {
			h.abortJSON(c, err)
			return
		}
		c.JSON(http.StatusCreated, doc)
	}
}

// UpdateRecord handles PATCH /api/{kind}/:key.
func (h *Handler) UpdateRecord(res manager.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		var fields store.Document
		if err := c.ShouldBindJSON(&fields); err != nil || fields == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		doc, err := res.UpdateDocument(c.Request.Context(), c.Param("key"), fields)
		if err != nil {
			h.abortJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

// DeleteRecord handles DELETE /api/{kind}/:key?confirm=true.
func (h *Handler) DeleteRecord(res manager.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		confirmed := c.Query("confirm") == "true"
		if err := res.Delete(c.Request.Context(), c.Param("key"), confirmed); err != nil {
			h.abortJSON(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// APIUploadAttachment handles POST /api/reports/:key/attachments.
func (h *Handler) APIUploadAttachment(c *gin.Context) {
	att, err := h.attach(c, c.Param("key"))
	if err != nil {
		h.abortJSON(c, err)
		return
	}
	c.JSON(http.StatusCreated, att)
}

// attach reads the multipart "file" field of the request, bounded by the
// configured upload size, and stores it on the report.
func (h *Handler) attach(c *gin.Context, reportID string) (*model.Attachment, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.server.MaxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge {
			return nil, err
		}
		return nil, fmt.Errorf("%w: missing file: %v", manager.ErrInvalidInput, err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	return h.attachments.Attach(c.Request.Context(), reportID, manager.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	})
}
