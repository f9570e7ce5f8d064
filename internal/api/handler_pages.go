package api

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maintenance-panel-backend/internal/manager"
	"maintenance-panel-backend/internal/rules"
	"maintenance-panel-backend/internal/store"
)

// listFilters are the query parameters list pages and the API accept.
var listFilters = []string{"client_id", "machine_id"}

// Dashboard handles GET / and GET /dashboard.
func (h *Handler) Dashboard(c *gin.Context) {
	h.render(c, http.StatusOK, "dashboard.html", gin.H{"Title": "Dashboard"})
}

// NotFound renders the 404 page, or a JSON body under /api.
func (h *Handler) NotFound(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.render(c, http.StatusNotFound, "not_found.html", gin.H{"Title": "Not found"})
}

// pageError renders failures that have no form to go back to.
func (h *Handler) pageError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusUnauthorized {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	if status == http.StatusNotFound {
		h.render(c, status, "not_found.html", gin.H{"Title": "Not found"})
		return
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("page failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}
	_ = c.Error(err)
	h.render(c, status, "error.html", gin.H{"Title": "Error", "Error": errorMessage(status, err)})
}

// filterFrom returns the first list filter present in the query string.
func filterFrom(c *gin.Context) (field, value string, ok bool) {
	for _, f := range listFilters {
		if v := c.Query(f); v != "" {
			return f, v, true
		}
	}
	return "", "", false
}

// formDocument reads the kind's fields from a submitted form. With partial
// set, fields absent from the form are left out.
func formDocument(c *gin.Context, kind manager.Kind, partial bool) store.Document {
	doc := make(store.Document, len(kind.Fields))
	for _, f := range kind.Fields {
		v, ok := c.GetPostForm(f.Name)
		if !ok && partial {
			continue
		}
		doc[f.Name] = strings.TrimSpace(v)
	}
	return doc
}

// ListPage handles GET /{kind}.
func (h *Handler) ListPage(res manager.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		kind := res.Kind()

		var (
			docs []store.Document
			err  error
		)
		field, value, filtered := filterFrom(c)
		if filtered {
			docs, err = res.QueryDocuments(ctx, field, value)
		} else {
			docs, err = res.LoadDocuments(ctx)
		}
		if err != nil {
			h.pageError(c, err)
			return
		}
		refs, err := h.referenceMaps(ctx, kind.Fields)
		if err != nil {
			h.pageError(c, err)
			return
		}

		data := gin.H{
			"Title":   kind.Title,
			"Kind":    kind,
			"Active":  kind.Collection,
			"Columns": kind.Columns,
			"Rows":    rows(kind, docs, refs),
		}
		if filtered {
			data["Filter"] = field + " = " + value
		}
		h.render(c, http.StatusOK, "list.html", data)
	}
}

// renderForm shows the create or edit form of a kind.
func (h *Handler) renderForm(c *gin.Context, status int, kind manager.Kind, key string, values store.Document, formErr error) {
	refs, err := h.referenceMaps(c.Request.Context(), kind.Fields)
	if err != nil {
		h.pageError(c, err)
		return
	}

	var (
		fieldErrs map[string]string
		messages  []string
		verr      *rules.ViolationError
	)
	if errors.As(formErr, &verr) {
		fieldErrs = verr.Fields
		messages = unmatchedErrors(kind, verr.Fields)
	} else if formErr != nil {
		messages = []string{errorMessage(statusFor(formErr), formErr)}
	}

	action := "/" + kind.Collection
	title := "New " + kind.Singular
	if key != "" {
		action += "/" + key
		title = "Edit " + kind.Singular
	}
	data := gin.H{
		"Title":  title,
		"Kind":   kind,
		"Active": kind.Collection,
		"Key":    key,
		"Action": action,
		"Fields": formFields(kind, values, key != "", refs, fieldErrs),
		"Errors": messages,
	}
	if key != "" && kind.Collection == manager.ReportKind.Collection {
		data["Attachments"] = values["attachments"]
	}
	h.render(c, status, "form.html", data)
}

// NewPage handles GET /{kind}/new.
func (h *Handler) NewPage(res manager.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		values := store.Document{}
		// Pre-select the parent when coming from a filtered list.
		if field, value, ok := filterFrom(c); ok {
			values[field] = value
		}
		h.renderForm(c, http.StatusOK, res.Kind(), "", values, nil)
	}
}

// Create handles POST /{kind}.
func (h *Handler) Create(res manager.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind := res.Kind()
		input := formDocument(c, kind, false)
		if _, err := res.CreateDocument(c.Request.Context(), input); err != nil {
			if statusFor(err) == http.StatusUnauthorized {
				c.Redirect(http.StatusSeeOther, "/login")
				return
			}
			h.renderForm(c, statusFor(err), kind, "", store.Expand(input), err)
			return
		}
		c.Redirect(http.StatusSeeOther, "/"+kind.Collection)
	}
}

// EditPage handles GET /{kind}/:key/edit.
func (h *Handler) EditPage(res manager.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		doc, err := res.GetDocument(c.Request.Context(), key)
		if err != nil {
			h.pageError(c, err)
			return
		}
		h.renderForm(c, http.StatusOK, res.Kind(), key, doc, nil)
	}
}

// Update handles POST /{kind}/:key.
func (h *Handler) Update(res manager.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		kind := res.Kind()
		key := c.Param("key")
		fields := formDocument(c, kind, true)

		if _, err := res.UpdateDocument(ctx, key, fields); err != nil {
			switch statusFor(err) {
			case http.StatusUnauthorized, http.StatusNotFound:
				h.pageError(c, err)
				return
			}
			// Show what was submitted on top of what is stored.
			values, gerr := res.GetDocument(ctx, key)
			if gerr != nil {
				h.pageError(c, gerr)
				return
			}
			store.Merge(values, fields)
			h.renderForm(c, statusFor(err), kind, key, values, err)
			return
		}
		c.Redirect(http.StatusSeeOther, "/"+kind.Collection)
	}
}

// DeletePage handles GET /{kind}/:key/delete.
func (h *Handler) DeletePage(res manager.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind := res.Kind()
		key := c.Param("key")
		doc, err := res.GetDocument(c.Request.Context(), key)
		if err != nil {
			h.pageError(c, err)
			return
		}
		h.render(c, http.StatusOK, "confirm_delete.html", gin.H{
			"Title":  "Delete " + kind.Singular,
			"Kind":   kind,
			"Active": kind.Collection,
			"Key":    key,
			"Label":  fieldValue(doc, kind.LabelField),
		})
	}
}

// Delete handles POST /{kind}/:key/delete. Only confirm=yes deletes.
func (h *Handler) Delete(res manager.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind := res.Kind()
		confirmed := c.PostForm("confirm") == "yes"
		err := res.Delete(c.Request.Context(), c.Param("key"), confirmed)
		if err != nil && !errors.Is(err, manager.ErrNotConfirmed) {
			h.pageError(c, err)
			return
		}
		c.Redirect(http.StatusSeeOther, "/"+kind.Collection)
	}
}

// UploadAttachment handles POST /reports/:key/attachments.
func (h *Handler) UploadAttachment(c *gin.Context) {
	key := c.Param("key")
	if _, err := h.attach(c, key); err != nil {
		h.pageError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/reports/"+key+"/edit")
}

// File handles GET /files/*path.
func (h *Handler) File(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("path"), "/")
	rc, err := h.attachments.Open(c.Request.Context(), key)
	if err != nil {
		h.pageError(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}
