package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"maintenance-panel-backend/internal/blob"
	"maintenance-panel-backend/internal/identity"
	"maintenance-panel-backend/internal/metrics"
	"maintenance-panel-backend/internal/model"
	"maintenance-panel-backend/internal/rules"
	"maintenance-panel-backend/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *metrics.Metrics) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.Managed()...))

	m := metrics.New()
	reg, err := NewRegistry(store.New(db, rules.Default(), nil), m, nil)
	require.NoError(t, err)
	return reg, m
}

func authed() context.Context {
	return identity.WithUserID(context.Background(), "user-1")
}

func validInput(collection string) store.Document {
	switch collection {
	case model.CollectionClients:
		return store.Document{"name": "Acme Coatings", "city": "Lyon"}
	case model.CollectionMachines:
		return store.Document{"client_id": "C1", "name": "Booth 1"}
	case model.CollectionReports:
		return store.Document{"client_id": "C1", "date": "2024-05-01", "equipment.paint_code": "P100"}
	default:
		return store.Document{"code": "x1", "name": "Entry"}
	}
}

func TestManagers_CreateReloadDelete(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := authed()

	for _, res := range reg.Resources() {
		kind := res.Kind()
		t.Run(kind.Collection, func(t *testing.T) {
			before := time.Now().UTC().Add(-time.Millisecond)
			created, err := res.CreateDocument(ctx, validInput(kind.Collection))
			require.NoError(t, err)
			key, _ := created[kind.KeyField].(string)
			require.NotEmpty(t, key)

			docs, err := res.LoadDocuments(ctx)
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, key, docs[0][kind.KeyField])
			stamped, err := time.Parse(time.RFC3339Nano, docs[0]["created_at"].(string))
			require.NoError(t, err)
			assert.False(t, stamped.Before(before), "created_at is stamped at write time")

			// Unconfirmed deletes keep the record.
			assert.ErrorIs(t, res.Delete(ctx, key, false), ErrNotConfirmed)
			docs, err = res.LoadDocuments(ctx)
			require.NoError(t, err)
			assert.Len(t, docs, 1)

			require.NoError(t, res.Delete(ctx, key, true))
			docs, err = res.LoadDocuments(ctx)
			require.NoError(t, err)
			assert.Empty(t, docs)

			assert.ErrorIs(t, res.Delete(ctx, key, true), store.ErrNotFound)
		})
	}
}

func TestManagers_RejectUnauthenticatedCallers(t *testing.T) {
	reg, m := newTestRegistry(t)
	ctx := context.Background()

	for _, res := range reg.Resources() {
		kind := res.Kind()
		_, err := res.LoadDocuments(ctx)
		assert.ErrorIs(t, err, rules.ErrUnauthenticated, kind.Collection)
		_, err = res.GetDocument(ctx, "k")
		assert.ErrorIs(t, err, rules.ErrUnauthenticated, kind.Collection)
		_, err = res.CreateDocument(ctx, validInput(kind.Collection))
		assert.ErrorIs(t, err, rules.ErrUnauthenticated, kind.Collection)
		_, err = res.UpdateDocument(ctx, "k", store.Document{kind.Fields[1].Name: "x"})
		assert.ErrorIs(t, err, rules.ErrUnauthenticated, kind.Collection)
		assert.ErrorIs(t, res.Delete(ctx, "k", true), rules.ErrUnauthenticated, kind.Collection)
	}

	n, err := testutil.GatherAndCount(m.Registry, "panel_manager_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 5*5, n, "one denied series per collection and operation")
}

func TestMachine_QueryByClient(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := authed()

	_, err := reg.Machines.Create(ctx, store.Document{"client_id": "C1", "name": "Booth 1"})
	require.NoError(t, err)
	_, err = reg.Machines.Create(ctx, store.Document{"client_id": "C2", "name": "Oven"})
	require.NoError(t, err)

	machines, err := reg.Machines.Query(ctx, "client_id", "C1")
	require.NoError(t, err)
	require.Len(t, machines, 1)
	assert.Equal(t, "Booth 1", machines[0].Name)
	assert.False(t, machines[0].CreatedAt.IsZero())

	_, err = reg.Machines.Query(ctx, "serial_number", "x")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPaint_WritingSameCodeOverwrites(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := authed()
	first := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	reg.Paints.now = func() time.Time { return first }
	_, err := reg.Paints.Create(ctx, store.Document{"code": "P100", "name": "White", "brand": "Acme"})
	require.NoError(t, err)

	reg.Paints.now = func() time.Time { return second }
	_, err = reg.Paints.Create(ctx, store.Document{"code": " p100 ", "name": "Off white"})
	require.NoError(t, err)

	paints, err := reg.Paints.Load(ctx)
	require.NoError(t, err)
	require.Len(t, paints, 1)
	assert.Equal(t, "P100", paints[0].Code)
	assert.Equal(t, "Off white", paints[0].Name)
	assert.Empty(t, paints[0].Brand)
	assert.True(t, paints[0].CreatedAt.Equal(second))
}

func TestCatalog_CodeValidation(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := authed()

	_, err := reg.Solvents.Create(ctx, store.Document{"code": "bad/code", "name": "Thinner"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = reg.Solvents.Create(ctx, store.Document{"name": "Thinner"})
	var verr *rules.ViolationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "required", verr.Fields["code"])
}

func TestCreate_IgnoresSuppliedKeyAndTimestamp(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := authed()

	c, err := reg.Clients.Create(ctx, store.Document{
		"id":         "chosen",
		"name":       "Acme",
		"created_at": "1999-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "chosen", c.ID)
	_, err = uuid.Parse(c.ID)
	assert.NoError(t, err)
	assert.True(t, c.CreatedAt.After(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestUpdate_Partial(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := authed()

	r, err := reg.Reports.Create(ctx, store.Document{
		"client_id": "C1",
		"date":      "2024-05-01",
		"equipment": map[string]any{"paint_code": "P100", "nozzle": "517"},
	})
	require.NoError(t, err)

	updated, err := reg.Reports.Update(ctx, r.ID, store.Document{
		"id":                 "other",
		"created_at":         "1999-01-01T00:00:00Z",
		"technician":         "Sam",
		"equipment.pressure": "2.5 bar",
	})
	require.NoError(t, err)
	assert.Equal(t, r.ID, updated.ID)
	assert.Equal(t, "Sam", updated.Technician)
	assert.Equal(t, "P100", updated.Equipment.Data().PaintCode)
	assert.Equal(t, "2.5 bar", updated.Equipment.Data().Pressure)
	assert.WithinDuration(t, r.CreatedAt, updated.CreatedAt, time.Second)

	_, err = reg.Reports.Update(ctx, r.ID, store.Document{"colour": "red"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = reg.Reports.Update(ctx, "missing", store.Document{"technician": "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReports_NewestFirst(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := authed()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	for i, tech := range []string{"first", "second", "third"} {
		at := base.Add(time.Duration(i) * time.Minute)
		reg.Reports.now = func() time.Time { return at }
		_, err := reg.Reports.Create(ctx, store.Document{
			"client_id": "C1", "machine_id": "M1", "date": "2024-05-01",
			"technician": tech, "equipment": map[string]any{},
		})
		require.NoError(t, err)
	}

	reports, err := reg.Reports.Query(ctx, "machine_id", "M1")
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "third", reports[0].Technician)
	assert.Equal(t, "first", reports[2].Technician)
}

func TestManager_CatalogKeyLookupIsNormalised(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := authed()

	_, err := reg.Paints.Create(ctx, store.Document{"code": "p100", "name": "White"})
	require.NoError(t, err)

	got, err := reg.Paints.Get(ctx, "p100")
	require.NoError(t, err)
	assert.Equal(t, "P100", got.Code)

	updated, err := reg.Paints.Update(ctx, " p100 ", store.Document{"name": "Pure white"})
	require.NoError(t, err)
	assert.Equal(t, "Pure white", updated.Name)

	require.NoError(t, reg.Paints.Delete(ctx, "p100", true))
	_, err = reg.Paints.Get(ctx, "P100")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAttachments_Attach(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := authed()
	bucket, err := blob.NewFileBucket(t.TempDir(), "/files")
	require.NoError(t, err)
	att := NewAttachments(reg.Reports, bucket, nil)
	att.now = func() time.Time { return time.UnixMilli(1700000000000) }
	att.newID = func() string { return "a1" }

	r, err := reg.Reports.Create(ctx, store.Document{"client_id": "C1", "date": "2024-05-01", "equipment": map[string]any{}})
	require.NoError(t, err)

	stored, err := att.Attach(ctx, r.ID, Upload{Filename: "site photo.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpeg")})
	require.NoError(t, err)
	wantKey := "reports/" + r.ID + "/1700000000000_a1_site_photo.jpg"
	assert.Equal(t, wantKey, stored.Path)
	assert.Equal(t, "/files/"+wantKey, stored.URL)
	assert.Equal(t, int64(4), stored.Size)

	got, err := reg.Reports.Get(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "site photo.jpg", got.Attachments[0].Name)

	_, err = att.Attach(ctx, "missing", Upload{Filename: "x.txt", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAttachments_SameNameSameMillisecond(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := authed()
	bucket, err := blob.NewFileBucket(t.TempDir(), "/files")
	require.NoError(t, err)
	att := NewAttachments(reg.Reports, bucket, nil)
	att.now = func() time.Time { return time.UnixMilli(1700000000000) }

	r, err := reg.Reports.Create(ctx, store.Document{"client_id": "C1", "date": "2024-05-01", "equipment": map[string]any{}})
	require.NoError(t, err)

	first, err := att.Attach(ctx, r.ID, Upload{Filename: "photo.jpg", Body: strings.NewReader("first")})
	require.NoError(t, err)
	second, err := att.Attach(ctx, r.ID, Upload{Filename: "photo.jpg", Body: strings.NewReader("second")})
	require.NoError(t, err)
	assert.NotEqual(t, first.Path, second.Path)

	read := func(key string) string {
		rc, err := att.Open(ctx, key)
		require.NoError(t, err)
		defer rc.Close()
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(body)
	}
	assert.Equal(t, "first", read(first.Path))
	assert.Equal(t, "second", read(second.Path))

	got, err := reg.Reports.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, got.Attachments, 2)
}

func TestOutcome(t *testing.T) {
	testCases := []struct {
		err  error
		want string
	}{
		{nil, metrics.OutcomeOK},
		{rules.ErrUnauthenticated, metrics.OutcomeDenied},
		{fmt.Errorf("wrapped: %w", store.ErrNotFound), metrics.OutcomeNotFound},
		{&rules.ViolationError{Fields: map[string]string{"name": "required"}}, metrics.OutcomeInvalid},
		{ErrNotConfirmed, metrics.OutcomeInvalid},
		{errors.New("disk on fire"), metrics.OutcomeError},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, Outcome(tc.err), fmt.Sprint(tc.err))
	}
}
