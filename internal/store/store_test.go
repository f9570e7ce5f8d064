package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"maintenance-panel-backend/internal/identity"
	"maintenance-panel-backend/internal/model"
	"maintenance-panel-backend/internal/rules"
)

// newSQLiteStore returns a store over a private in-memory database.
func newSQLiteStore(t *testing.T) *Store {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.Managed()...))
	return New(db, rules.Default(), nil)
}

// A helper function to create a mock database connection.
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return New(gormDB, rules.Default(), nil), mock
}

func authed() context.Context {
	return identity.WithUserID(context.Background(), "user-1")
}

func TestCollection_CreateListGetDelete(t *testing.T) {
	s := newSQLiteStore(t)
	machines, err := NewCollection[model.Machine](s, model.CollectionMachines, "id")
	require.NoError(t, err)
	ctx := authed()

	before := time.Now().UTC().Add(-time.Second)
	for _, name := range []string{"Booth B", "Booth A"} {
		m := &model.Machine{ID: uuid.NewString(), ClientID: "C1", Name: name, CreatedAt: time.Now().UTC()}
		require.NoError(t, machines.Create(ctx, m))
	}
	other := &model.Machine{ID: uuid.NewString(), ClientID: "C2", Name: "Oven", CreatedAt: time.Now().UTC()}
	require.NoError(t, machines.Create(ctx, other))

	all, err := machines.List(ctx, Order{Field: "name"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Booth A", all[0].Name)
	assert.Equal(t, "Oven", all[2].Name)
	assert.True(t, all[0].CreatedAt.After(before))

	forC1, err := machines.Query(ctx, "client_id", "C1", Order{Field: "name", Desc: true})
	require.NoError(t, err)
	require.Len(t, forC1, 2)
	assert.Equal(t, "Booth B", forC1[0].Name)

	got, err := machines.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "C2", got.ClientID)

	require.NoError(t, machines.Delete(ctx, other.ID))
	_, err = machines.Get(ctx, other.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, machines.Delete(ctx, other.ID), ErrNotFound)
}

func TestCollection_CreateDuplicateKey(t *testing.T) {
	s := newSQLiteStore(t)
	clients, err := NewCollection[model.Client](s, model.CollectionClients, "id")
	require.NoError(t, err)
	ctx := authed()

	c := &model.Client{ID: "C1", Name: "Acme"}
	require.NoError(t, clients.Create(ctx, c))
	err = clients.Create(ctx, &model.Client{ID: "C1", Name: "Acme again"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCollection_SetOverwritesByKey(t *testing.T) {
	s := newSQLiteStore(t)
	paints, err := NewCollection[model.Paint](s, model.CollectionPaints, "code")
	require.NoError(t, err)
	ctx := authed()

	require.NoError(t, paints.Set(ctx, &model.Paint{Code: "P100", Name: "White", Brand: "Acme", CreatedAt: time.Now().UTC()}))
	require.NoError(t, paints.Set(ctx, &model.Paint{Code: "P100", Name: "Off white", CreatedAt: time.Now().UTC()}))

	all, err := paints.List(ctx, Order{Field: "code"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Off white", all[0].Name)
	assert.Empty(t, all[0].Brand, "set replaces the whole document")
}

func TestCollection_UpdatePartial(t *testing.T) {
	s := newSQLiteStore(t)
	reports, err := NewCollection[model.Report](s, model.CollectionReports, "id")
	require.NoError(t, err)
	ctx := authed()

	r := &model.Report{
		ID:       "R1",
		ClientID: "C1",
		Date:     "2024-05-01",
		Equipment: datatypes.NewJSONType(model.Equipment{
			PaintCode:   "P100",
			SolventCode: "S1",
			Nozzle:      "517",
		}),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, reports.Create(ctx, r))

	updated, err := reports.Update(ctx, "R1", Document{
		"technician":       "Sam",
		"equipment.nozzle": "619",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sam", updated.Technician)

	stored, err := reports.Get(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, "Sam", stored.Technician)
	assert.Equal(t, "2024-05-01", stored.Date, "untouched fields are kept")
	assert.Equal(t, "619", stored.Equipment.Data().Nozzle)
	assert.Equal(t, "P100", stored.Equipment.Data().PaintCode, "sibling leaves are kept")
	assert.WithinDuration(t, r.CreatedAt, stored.CreatedAt, time.Second)

	_, err = reports.Update(ctx, "missing", Document{"technician": "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reports.Update(ctx, "R1", Document{"id": "R2"})
	assert.ErrorIs(t, err, ErrKeyImmutable)

	_, err = reports.Update(ctx, "R1", Document{"colour": "red"})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = reports.Update(ctx, "R1", Document{"client_id": ""})
	var verr *rules.ViolationError
	assert.True(t, errors.As(err, &verr))
}

func TestCollection_RejectsUnauthenticatedCallers(t *testing.T) {
	s := newSQLiteStore(t)
	clients, err := NewCollection[model.Client](s, model.CollectionClients, "id")
	require.NoError(t, err)
	anon := context.Background()

	_, err = clients.List(anon, Order{Field: "name"})
	assert.ErrorIs(t, err, rules.ErrUnauthenticated)
	_, err = clients.Get(anon, "C1")
	assert.ErrorIs(t, err, rules.ErrUnauthenticated)
	assert.ErrorIs(t, clients.Create(anon, &model.Client{ID: "C1", Name: "Acme"}), rules.ErrUnauthenticated)
	assert.ErrorIs(t, clients.Set(anon, &model.Client{ID: "C1", Name: "Acme"}), rules.ErrUnauthenticated)
	_, err = clients.Update(anon, "C1", Document{"name": "x"})
	assert.ErrorIs(t, err, rules.ErrUnauthenticated)
	assert.ErrorIs(t, clients.Delete(anon, "C1"), rules.ErrUnauthenticated)

	var count int64
	require.NoError(t, s.DB().Model(&model.Client{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCollection_CreateRejectsMissingFields(t *testing.T) {
	s := newSQLiteStore(t)
	machines, err := NewCollection[model.Machine](s, model.CollectionMachines, "id")
	require.NoError(t, err)

	err = machines.Create(authed(), &model.Machine{ID: "M1", Name: "Booth"})
	var verr *rules.ViolationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "required", verr.Fields["client_id"])
}

func TestCollection_CreateDocument(t *testing.T) {
	s := newSQLiteStore(t)
	reports, err := NewCollection[model.Report](s, model.CollectionReports, "id")
	require.NoError(t, err)
	ctx := authed()

	t.Run("rule set sees the raw document", func(t *testing.T) {
		_, err := reports.CreateDocument(ctx, Document{"id": "R1", "client_id": "C1", "date": "2024-05-01", "equipment": "spray gun"})
		var verr *rules.ViolationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "must be map", verr.Fields["equipment"])
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		_, err := reports.CreateDocument(ctx, Document{
			"id": "R1", "client_id": "C1", "date": "2024-05-01",
			"equipment": map[string]any{}, "colour": "red",
		})
		assert.ErrorIs(t, err, ErrUnknownField)
	})

	t.Run("undecodable values", func(t *testing.T) {
		_, err := reports.CreateDocument(ctx, Document{
			"id": "R1", "client_id": "C1", "date": "2024-05-01",
			"equipment": map[string]any{}, "technician": 42,
		})
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("stored", func(t *testing.T) {
		r, err := reports.CreateDocument(ctx, Document{
			"id": "R1", "client_id": "C1", "date": "2024-05-01",
			"equipment": map[string]any{"paint_code": "P100", "nozzle": "1.4"},
		})
		require.NoError(t, err)
		assert.Equal(t, "P100", r.Equipment.Data().PaintCode)

		got, err := reports.Get(ctx, "R1")
		require.NoError(t, err)
		assert.Equal(t, "1.4", got.Equipment.Data().Nozzle)
	})
}

func TestCollection_UnknownOrderField(t *testing.T) {
	s := newSQLiteStore(t)
	clients, err := NewCollection[model.Client](s, model.CollectionClients, "id")
	require.NoError(t, err)

	_, err = clients.List(authed(), Order{Field: "name; DROP TABLE clients"})
	assert.ErrorIs(t, err, ErrUnknownField)
	_, err = clients.Query(authed(), "nope", "x", Order{})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestNewCollection_Mismatch(t *testing.T) {
	s := newSQLiteStore(t)

	_, err := NewCollection[model.Client](s, model.CollectionPaints, "id")
	assert.Error(t, err)
	_, err = NewCollection[model.Paint](s, model.CollectionPaints, "id")
	assert.Error(t, err)
}

func TestCollection_SetSQL(t *testing.T) {
	s, mock := newMockStore(t)
	paints, err := NewCollection[model.Paint](s, model.CollectionPaints, "code")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "paints" ("code","name","brand","color","notes","created_at") VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT ("code") DO UPDATE SET "name"="excluded"."name","brand"="excluded"."brand","color"="excluded"."color","notes"="excluded"."notes","created_at"="excluded"."created_at"`)).
		WithArgs("P100", "White", "", "", "", Any{}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = paints.Set(authed(), &model.Paint{Code: "P100", Name: "White", CreatedAt: time.Now()})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_DeleteSQL(t *testing.T) {
	s, mock := newMockStore(t)
	solvents, err := NewCollection[model.Solvent](s, model.CollectionSolvents, "code")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "solvents" WHERE "code" = $1`)).
		WithArgs("S1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err = solvents.Delete(authed(), "S1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerge(t *testing.T) {
	doc := Document{"name": "a", "equipment": map[string]any{"nozzle": "1", "paint_code": "P1"}}
	Merge(doc, Document{"equipment.nozzle": "2", "notes.inner": "x", "name": "b"})

	assert.Equal(t, Document{
		"name":      "b",
		"equipment": map[string]any{"nozzle": "2", "paint_code": "P1"},
		"notes":     map[string]any{"inner": "x"},
	}, doc)

	assert.Equal(t, Document{"equipment": map[string]any{"nozzle": "2"}}, Expand(Document{"equipment.nozzle": "2"}))
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
