package api

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"maintenance-panel-backend/internal/manager"
	"maintenance-panel-backend/internal/mw"
	"maintenance-panel-backend/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// loadTemplates parses every page template.
func loadTemplates() *template.Template {
	return template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
}

type tab struct {
	Collection string
	Title      string
}

type option struct {
	Value string
	Label string
}

type row struct {
	Key         string
	Cells       []string
	Attachments int
}

type formField struct {
	manager.Field
	Value    string
	Error    string
	Disabled bool
	Options  []option
}

// render adds the navigation and the signed-in user to data.
func (h *Handler) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if session, ok := mw.SessionFrom(c); ok {
		data["User"] = session
	}
	tabs := make([]tab, 0, 5)
	for _, res := range h.registry.Resources() {
		k := res.Kind()
		tabs = append(tabs, tab{Collection: k.Collection, Title: k.Title})
	}
	data["Tabs"] = tabs
	if _, ok := data["Active"]; !ok {
		data["Active"] = ""
	}
	c.HTML(status, name, data)
}

// fieldValue renders the value at a dotted path of doc.
func fieldValue(doc store.Document, path string) string {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[part]
	}
	switch v := cur.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// references loads the records of collection as choices, keyed by record key.
func (h *Handler) references(ctx context.Context, collection string) ([]option, error) {
	res, ok := h.registry.Resource(collection)
	if !ok {
		return nil, fmt.Errorf("unknown reference collection %q", collection)
	}
	docs, err := res.LoadDocuments(ctx)
	if err != nil {
		return nil, err
	}
	kind := res.Kind()
	opts := make([]option, 0, len(docs))
	for _, doc := range docs {
		key := fieldValue(doc, kind.KeyField)
		label := fieldValue(doc, kind.LabelField)
		if kind.Key == manager.KeyBusinessCode {
			label = key + " (" + label + ")"
		}
		opts = append(opts, option{Value: key, Label: label})
	}
	return opts, nil
}

// referenceMaps loads every collection referenced by fields once.
func (h *Handler) referenceMaps(ctx context.Context, fields []manager.Field) (map[string][]option, error) {
	refs := make(map[string][]option)
	for _, f := range fields {
		if f.Ref == "" {
			continue
		}
		if _, done := refs[f.Ref]; done {
			continue
		}
		opts, err := h.references(ctx, f.Ref)
		if err != nil {
			return nil, err
		}
		refs[f.Ref] = opts
	}
	return refs, nil
}

// rows turns documents into table rows. Referenced keys are shown by label.
func rows(kind manager.Kind, docs []store.Document, refs map[string][]option) []row {
	labels := make(map[string]map[string]string, len(refs))
	for collection, opts := range refs {
		m := make(map[string]string, len(opts))
		for _, o := range opts {
			m[o.Value] = o.Label
		}
		labels[collection] = m
	}

	out := make([]row, 0, len(docs))
	for _, doc := range docs {
		r := row{Key: fieldValue(doc, kind.KeyField)}
		for _, col := range kind.Columns {
			v := fieldValue(doc, col.Field)
			if f, ok := kind.Field(col.Field); ok && f.Ref != "" {
				if label, ok := labels[f.Ref][v]; ok {
					v = label
				}
			}
			r.Cells = append(r.Cells, v)
		}
		if list, ok := doc["attachments"].([]any); ok {
			r.Attachments = len(list)
		}
		out = append(out, r)
	}
	return out
}

// formFields pairs each field of kind with its current value and error.
func formFields(kind manager.Kind, values store.Document, editing bool, refs map[string][]option, errs map[string]string) []formField {
	out := make([]formField, 0, len(kind.Fields))
	for _, f := range kind.Fields {
		out = append(out, formField{
			Field:    f,
			Value:    fieldValue(values, f.Name),
			Error:    errs[f.Name],
			Disabled: editing && f.Name == kind.KeyField,
			Options:  refs[f.Ref],
		})
	}
	return out
}

// unmatchedErrors lists violations that do not belong to a visible field.
func unmatchedErrors(kind manager.Kind, errs map[string]string) []string {
	var out []string
	for name, msg := range errs {
		if _, ok := kind.Field(name); !ok {
			out = append(out, name+": "+msg)
		}
	}
	sort.Strings(out)
	return out
}
