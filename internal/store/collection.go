package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"maintenance-panel-backend/internal/rules"
)

// Order names the field a listing is sorted by.
type Order struct {
	Field string
	Desc  bool
}

// Collection is one table of documents of type T.
type Collection[T any] struct {
	store  *Store
	name   string
	key    string
	schema *schema.Schema
}

// NewCollection binds T to the named collection whose primary key column is key.
func NewCollection[T any](s *Store, name, key string) (*Collection[T], error) {
	sch, err := schema.Parse(new(T), &sync.Map{}, s.db.NamingStrategy)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema for %s: %w", name, err)
	}
	if sch.Table != name {
		return nil, fmt.Errorf("collection %s is backed by table %s", name, sch.Table)
	}
	if _, ok := sch.FieldsByDBName[key]; !ok {
		return nil, fmt.Errorf("collection %s has no key field %s", name, key)
	}
	return &Collection[T]{store: s, name: name, key: key, schema: sch}, nil
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// KeyField returns the name of the key field.
func (c *Collection[T]) KeyField() string { return c.key }

// HasField reports whether field is a stored top-level field.
func (c *Collection[T]) HasField(field string) bool {
	_, ok := c.schema.FieldsByDBName[topLevel(field)]
	return ok
}

// Fields lists the stored field names in declaration order.
func (c *Collection[T]) Fields() []string {
	names := make([]string, 0, len(c.schema.DBNames))
	names = append(names, c.schema.DBNames...)
	return names
}

// valueColumns lists every stored column except the key.
func (c *Collection[T]) valueColumns() []string {
	cols := make([]string, 0, len(c.schema.DBNames))
	for _, name := range c.schema.DBNames {
		if name != c.key {
			cols = append(cols, name)
		}
	}
	return cols
}

func (c *Collection[T]) orderClause(order Order) (clause.OrderByColumn, error) {
	field := order.Field
	if field == "" {
		field = c.key
	}
	if !c.HasField(field) {
		return clause.OrderByColumn{}, fmt.Errorf("%w %q in %s", ErrUnknownField, field, c.name)
	}
	return clause.OrderByColumn{Column: clause.Column{Name: field}, Desc: order.Desc}, nil
}

// List reads the whole collection in order.
func (c *Collection[T]) List(ctx context.Context, order Order) ([]T, error) {
	if err := c.store.authorize(ctx, rules.OpList, c.name, nil); err != nil {
		return nil, err
	}
	by, err := c.orderClause(order)
	if err != nil {
		return nil, err
	}

	var out []T
	if err := c.store.db.WithContext(ctx).Order(by).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.name, err)
	}
	return out, nil
}

// Query reads the documents whose field equals value, in order.
func (c *Collection[T]) Query(ctx context.Context, field string, value any, order Order) ([]T, error) {
	if err := c.store.authorize(ctx, rules.OpList, c.name, nil); err != nil {
		return nil, err
	}
	if !c.HasField(field) || field != topLevel(field) {
		return nil, fmt.Errorf("%w %q in %s", ErrUnknownField, field, c.name)
	}
	by, err := c.orderClause(order)
	if err != nil {
		return nil, err
	}

	var out []T
	err = c.store.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: field}, Value: value}).
		Order(by).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", c.name, field, err)
	}
	return out, nil
}

// Get reads one document by key.
func (c *Collection[T]) Get(ctx context.Context, key string) (*T, error) {
	if err := c.store.authorize(ctx, rules.OpGet, c.name, nil); err != nil {
		return nil, err
	}
	return c.get(c.store.db.WithContext(ctx), key)
}

func (c *Collection[T]) get(tx *gorm.DB, key string) (*T, error) {
	var doc T
	err := tx.Where(clause.Eq{Column: clause.Column{Name: c.key}, Value: key}).Take(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, c.name, key)
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", c.name, key, err)
	}
	return &doc, nil
}

// Create inserts a new document. The key must not exist yet.
func (c *Collection[T]) Create(ctx context.Context, doc *T) error {
	data, err := ToDocument(doc)
	if err != nil {
		return err
	}
	if err := c.store.authorize(ctx, rules.OpCreate, c.name, data); err != nil {
		return err
	}
	return c.write(ctx, data, doc, false)
}

// CreateDocument checks the raw document against the rule set, decodes it
// and inserts it.
func (c *Collection[T]) CreateDocument(ctx context.Context, data Document) (*T, error) {
	doc, err := c.admit(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := c.write(ctx, data, doc, false); err != nil {
		return nil, err
	}
	return doc, nil
}

// Set writes the whole document under its key, replacing any existing one.
func (c *Collection[T]) Set(ctx context.Context, doc *T) error {
	data, err := ToDocument(doc)
	if err != nil {
		return err
	}
	if err := c.store.authorize(ctx, rules.OpCreate, c.name, data); err != nil {
		return err
	}
	return c.write(ctx, data, doc, true)
}

// SetDocument is Set for a raw document.
func (c *Collection[T]) SetDocument(ctx context.Context, data Document) (*T, error) {
	doc, err := c.admit(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := c.write(ctx, data, doc, true); err != nil {
		return nil, err
	}
	return doc, nil
}

// admit authorizes a raw document for creation and decodes it into T.
func (c *Collection[T]) admit(ctx context.Context, data Document) (*T, error) {
	if err := c.store.authorize(ctx, rules.OpCreate, c.name, data); err != nil {
		return nil, err
	}
	for field := range data {
		if !c.HasField(field) || field != topLevel(field) {
			return nil, fmt.Errorf("%w %q in %s", ErrUnknownField, field, c.name)
		}
	}
	var doc T
	if err := FromDocument(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &doc, nil
}

func (c *Collection[T]) write(ctx context.Context, data Document, doc *T, upsert bool) error {
	tx := c.store.db.WithContext(ctx)
	if upsert {
		tx = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: c.key}},
			DoUpdates: clause.AssignmentColumns(c.valueColumns()),
		})
	}
	if err := tx.Create(doc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s/%v", ErrAlreadyExists, c.name, data[c.key])
		}
		return fmt.Errorf("failed to write %s/%v: %w", c.name, data[c.key], err)
	}
	return nil
}

// Update applies a partial update to an existing document and returns the
// stored result. Dotted field names update one nested leaf.
func (c *Collection[T]) Update(ctx context.Context, key string, fields Document) (*T, error) {
	columns := make(map[string]struct{}, len(fields))
	for field := range fields {
		col := topLevel(field)
		if col == c.key {
			return nil, ErrKeyImmutable
		}
		if !c.HasField(col) {
			return nil, fmt.Errorf("%w %q in %s", ErrUnknownField, field, c.name)
		}
		columns[col] = struct{}{}
	}
	if err := c.store.authorize(ctx, rules.OpUpdate, c.name, Expand(fields)); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return c.get(c.store.db.WithContext(ctx), key)
	}

	selected := make([]string, 0, len(columns))
	for col := range columns {
		selected = append(selected, col)
	}
	sort.Strings(selected)

	var updated T
	err := c.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := c.get(tx, key)
		if err != nil {
			return err
		}
		merged, err := ToDocument(current)
		if err != nil {
			return err
		}
		Merge(merged, fields)
		if err := FromDocument(merged, &updated); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return tx.Model(&updated).Select(selected).Updates(&updated).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidDocument) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update %s/%s: %w", c.name, key, err)
	}
	return &updated, nil
}

// Delete removes a document by key.
func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	if err := c.store.authorize(ctx, rules.OpDelete, c.name, nil); err != nil {
		return err
	}

	result := c.store.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: c.key}, Value: key}).
		Delete(new(T))
	if result.Error != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", c.name, key, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, c.name, key)
	}
	return nil
}
