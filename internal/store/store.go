package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"maintenance-panel-backend/internal/identity"
	"maintenance-panel-backend/internal/rules"
)

var (
	ErrNotFound      = errors.New("store: document not found")
	ErrAlreadyExists = errors.New("store: document already exists")
	ErrUnknownField  = errors.New("store: unknown field")
	ErrKeyImmutable  = errors.New("store: document key cannot be changed")
	// ErrInvalidDocument is returned when a document passed the rule set but
	// does not decode into the collection's record type.
	ErrInvalidDocument = errors.New("store: invalid document")
)

// Store is the document store shared by every collection. It evaluates the
// rule set before touching the database.
type Store struct {
	db     *gorm.DB
	rules  *rules.Set
	logger *zap.Logger
}

// New creates a store over db guarded by ruleSet.
func New(db *gorm.DB, ruleSet *rules.Set, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, rules: ruleSet, logger: logger}
}

// DB exposes the underlying connection for migrations and health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// authorize runs the rule set for one operation using the caller in ctx.
func (s *Store) authorize(ctx context.Context, op rules.Op, collection string, data Document) error {
	caller, _ := identity.UserIDFromContext(ctx)
	err := s.rules.Evaluate(rules.Request{
		Op:         op,
		Collection: collection,
		Caller:     caller,
		Data:       data,
	})
	if err != nil {
		s.logger.Warn("rule set denied operation",
			zap.String("op", string(op)),
			zap.String("collection", collection),
			zap.String("caller", caller),
			zap.Error(err))
		return err
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
