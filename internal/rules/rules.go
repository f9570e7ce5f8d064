package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRules []byte

var (
	// ErrUnauthenticated is returned for any operation without a caller.
	ErrUnauthenticated = errors.New("rules: authentication required")
	// ErrNoRule is returned for collections the rule set does not mention.
	ErrNoRule = errors.New("rules: no rule for collection")
)

// Op is the kind of storage operation being authorized.
type Op string

const (
	OpList   Op = "list"
	OpGet    Op = "get"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// FieldType is the primitive type a field must carry.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeNumber    FieldType = "number"
	TypeBool      FieldType = "bool"
	TypeMap       FieldType = "map"
	TypeList      FieldType = "list"
	TypeTimestamp FieldType = "timestamp"
)

func (t FieldType) valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBool, TypeMap, TypeList, TypeTimestamp:
		return true
	}
	return false
}

// CollectionRule is the policy for one collection.
type CollectionRule struct {
	Create map[string]FieldType `yaml:"create"`
}

type document struct {
	Collections map[string]CollectionRule `yaml:"collections"`
}

// Set is an immutable, parsed rule set.
type Set struct {
	collections map[string]CollectionRule
}

// Request describes one operation as seen by the rule set.
type Request struct {
	Op         Op
	Collection string
	Caller     string
	Data       map[string]any
}

// ViolationError lists the fields that failed a presence or type check.
type ViolationError struct {
	Op         Op
	Collection string
	Fields     map[string]string
}

func (e *ViolationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return fmt.Sprintf("rules: %s on %s rejected (%s)", e.Op, e.Collection, strings.Join(parts, "; "))
}

// Default returns the embedded rule set.
func Default() *Set {
	s, err := Parse(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("embedded rule set is invalid: %v", err))
	}
	return s
}

// LoadFile parses the rule set at path.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML rule set document.
func Parse(data []byte) (*Set, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if len(doc.Collections) == 0 {
		return nil, fmt.Errorf("rule set declares no collections")
	}
	for name, rule := range doc.Collections {
		for field, typ := range rule.Create {
			if !typ.valid() {
				return nil, fmt.Errorf("collection %s: field %s has unknown type %q", name, field, typ)
			}
		}
	}
	return &Set{collections: doc.Collections}, nil
}

// Collections lists the collections the rule set covers.
func (s *Set) Collections() []string {
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evaluate returns nil when the request is allowed.
func (s *Set) Evaluate(req Request) error {
	rule, ok := s.collections[req.Collection]
	if !ok {
		return fmt.Errorf("%w %q", ErrNoRule, req.Collection)
	}
	if req.Caller == "" {
		return ErrUnauthenticated
	}

	violations := make(map[string]string)
	switch req.Op {
	case OpCreate:
		for field, typ := range rule.Create {
			v, present := lookup(req.Data, field)
			if !present || isBlank(v) {
				violations[field] = "required"
				continue
			}
			if !hasType(v, typ) {
				violations[field] = "must be " + string(typ)
			}
		}
	case OpUpdate:
		for field, typ := range rule.Create {
			v, present := lookup(req.Data, field)
			if !present {
				continue
			}
			if isBlank(v) {
				violations[field] = "required"
				continue
			}
			if !hasType(v, typ) {
				violations[field] = "must be " + string(typ)
			}
		}
	}

	if len(violations) > 0 {
		return &ViolationError{Op: req.Op, Collection: req.Collection, Fields: violations}
	}
	return nil
}

// lookup resolves dotted paths such as "equipment.paint_code".
func lookup(data map[string]any, path string) (any, bool) {
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func hasType(v any, typ FieldType) bool {
	switch typ {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64, uint, uint32, uint64:
			return true
		}
		return false
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeMap:
		_, ok := v.(map[string]any)
		return ok
	case TypeList:
		_, ok := v.([]any)
		return ok
	case TypeTimestamp:
		switch t := v.(type) {
		case time.Time:
			return true
		case string:
			_, err := time.Parse(time.RFC3339Nano, t)
			return err == nil
		}
		return false
	}
	return false
}
