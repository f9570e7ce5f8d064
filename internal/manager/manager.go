package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"maintenance-panel-backend/internal/metrics"
	"maintenance-panel-backend/internal/parse"
	"maintenance-panel-backend/internal/rules"
	"maintenance-panel-backend/internal/store"
)

const fieldCreatedAt = "created_at"

var (
	// ErrNotConfirmed is returned by Delete when the caller did not confirm.
	ErrNotConfirmed = errors.New("manager: delete not confirmed")
	// ErrInvalidInput wraps input the manager cannot turn into a record.
	ErrInvalidInput = errors.New("manager: invalid input")
)

// Resource is the untyped view of a manager used by the HTTP layer.
type Resource interface {
	Kind() Kind
	LoadDocuments(ctx context.Context) ([]store.Document, error)
	QueryDocuments(ctx context.Context, field, value string) ([]store.Document, error)
	GetDocument(ctx context.Context, key string) (store.Document, error)
	CreateDocument(ctx context.Context, input store.Document) (store.Document, error)
	UpdateDocument(ctx context.Context, key string, fields store.Document) (store.Document, error)
	Delete(ctx context.Context, key string, confirmed bool) error
}

// Manager runs the list/create/edit/delete cycle for one entity kind. It
// holds no records between calls; callers reload after every mutation.
type Manager[T any] struct {
	kind    Kind
	coll    *store.Collection[T]
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// New binds a manager for kind to its collection in s.
func New[T any](s *store.Store, kind Kind, m *metrics.Metrics, logger *zap.Logger) (*Manager[T], error) {
	coll, err := store.NewCollection[T](s, kind.Collection, kind.KeyField)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager[T]{
		kind:    kind,
		coll:    coll,
		metrics: m,
		logger:  logger.With(zap.String("collection", kind.Collection)),
		now:     time.Now,
	}, nil
}

// Kind returns the descriptor the manager was built with.
func (m *Manager[T]) Kind() Kind { return m.kind }

// Load reads the whole collection in the kind's order.
func (m *Manager[T]) Load(ctx context.Context) ([]T, error) {
	out, err := m.coll.List(ctx, m.kind.Order)
	m.observe(rules.OpList, err)
	return out, err
}

// Query reads the records whose field equals value, in the kind's order.
func (m *Manager[T]) Query(ctx context.Context, field, value string) ([]T, error) {
	if !m.kind.Filterable(field) {
		err := fmt.Errorf("%w: %s cannot be filtered by %q", ErrInvalidInput, m.kind.Collection, field)
		m.observe(rules.OpList, err)
		return nil, err
	}
	out, err := m.coll.Query(ctx, field, value, m.kind.Order)
	m.observe(rules.OpList, err)
	return out, err
}

// Get reads one record.
func (m *Manager[T]) Get(ctx context.Context, key string) (*T, error) {
	out, err := m.coll.Get(ctx, m.lookupKey(key))
	m.observe(rules.OpGet, err)
	return out, err
}

// lookupKey puts a business code in the stored form. Codes that cannot be
// normalised are passed through and simply match nothing.
func (m *Manager[T]) lookupKey(key string) string {
	if m.kind.Key != KeyBusinessCode {
		return key
	}
	if code, err := parse.NormalizeCode(key); err == nil {
		return code
	}
	return key
}

// Create stores a new record built from input and returns it. Business-code
// kinds overwrite any record under the same code.
func (m *Manager[T]) Create(ctx context.Context, input store.Document) (*T, error) {
	out, err := m.create(ctx, input)
	m.observe(rules.OpCreate, err)
	return out, err
}

func (m *Manager[T]) create(ctx context.Context, input store.Document) (*T, error) {
	doc := store.Expand(input)
	delete(doc, fieldCreatedAt)

	switch m.kind.Key {
	case KeyGenerated:
		doc[m.kind.KeyField] = uuid.NewString()
	case KeyBusinessCode:
		// A missing code is left for the rule set to report.
		if raw, ok := doc[m.kind.KeyField].(string); ok && strings.TrimSpace(raw) != "" {
			code, err := parse.NormalizeCode(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			doc[m.kind.KeyField] = code
		}
	}
	doc[fieldCreatedAt] = m.now().UTC().Format(time.RFC3339Nano)

	var (
		out *T
		err error
	)
	if m.kind.Key == KeyBusinessCode {
		out, err = m.coll.SetDocument(ctx, doc)
	} else {
		out, err = m.coll.CreateDocument(ctx, doc)
	}
	if err != nil {
		return nil, err
	}
	m.logger.Info("record created", zap.Any("key", doc[m.kind.KeyField]))
	return out, nil
}

// Update changes only the given fields of an existing record. The key and
// created_at are dropped from fields; unknown fields are rejected.
func (m *Manager[T]) Update(ctx context.Context, key string, fields store.Document) (*T, error) {
	out, err := m.update(ctx, key, fields)
	m.observe(rules.OpUpdate, err)
	return out, err
}

func (m *Manager[T]) update(ctx context.Context, key string, fields store.Document) (*T, error) {
	changes := make(store.Document, len(fields))
	for name, value := range fields {
		top, _, _ := strings.Cut(name, ".")
		if top == m.kind.KeyField || top == fieldCreatedAt {
			continue
		}
		if !m.coll.HasField(top) {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidInput, name)
		}
		changes[name] = value
	}

	key = m.lookupKey(key)
	out, err := m.coll.Update(ctx, key, changes)
	if err != nil {
		return nil, err
	}
	m.logger.Info("record updated", zap.String("key", key), zap.Int("fields", len(changes)))
	return out, nil
}

// Delete removes a record. Nothing happens unless confirmed is true.
func (m *Manager[T]) Delete(ctx context.Context, key string, confirmed bool) error {
	err := m.delete(ctx, key, confirmed)
	m.observe(rules.OpDelete, err)
	return err
}

func (m *Manager[T]) delete(ctx context.Context, key string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	key = m.lookupKey(key)
	if err := m.coll.Delete(ctx, key); err != nil {
		return err
	}
	m.logger.Info("record deleted", zap.String("key", key))
	return nil
}

// LoadDocuments is Load in document form.
func (m *Manager[T]) LoadDocuments(ctx context.Context) ([]store.Document, error) {
	records, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	return toDocuments(records)
}

// QueryDocuments is Query in document form.
func (m *Manager[T]) QueryDocuments(ctx context.Context, field, value string) ([]store.Document, error) {
	records, err := m.Query(ctx, field, value)
	if err != nil {
		return nil, err
	}
	return toDocuments(records)
}

// GetDocument is Get in document form.
func (m *Manager[T]) GetDocument(ctx context.Context, key string) (store.Document, error) {
	record, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return store.ToDocument(record)
}

// CreateDocument is Create in document form.
func (m *Manager[T]) CreateDocument(ctx context.Context, input store.Document) (store.Document, error) {
	record, err := m.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	return store.ToDocument(record)
}

// UpdateDocument is Update in document form.
func (m *Manager[T]) UpdateDocument(ctx context.Context, key string, fields store.Document) (store.Document, error) {
	record, err := m.Update(ctx, key, fields)
	if err != nil {
		return nil, err
	}
	return store.ToDocument(record)
}

func toDocuments[T any](records []T) ([]store.Document, error) {
	docs := make([]store.Document, 0, len(records))
	for i := range records {
		doc, err := store.ToDocument(&records[i])
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (m *Manager[T]) observe(op rules.Op, err error) {
	outcome := Outcome(err)
	m.metrics.ObserveOperation(m.kind.Collection, string(op), outcome)
	if outcome == metrics.OutcomeError {
		m.logger.Error("operation failed", zap.String("op", string(op)), zap.Error(err))
	}
}

// Outcome classifies an operation error for metrics and HTTP status mapping.
func Outcome(err error) string {
	var verr *rules.ViolationError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, rules.ErrUnauthenticated), errors.Is(err, rules.ErrNoRule):
		return metrics.OutcomeDenied
	case errors.Is(err, store.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.As(err, &verr),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrNotConfirmed),
		errors.Is(err, store.ErrUnknownField),
		errors.Is(err, store.ErrInvalidDocument),
		errors.Is(err, store.ErrKeyImmutable),
		errors.Is(err, store.ErrAlreadyExists):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}
