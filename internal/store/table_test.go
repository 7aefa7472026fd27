package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/lpwan-core/internal/infrastructure/database"
)

type widget struct {
	ID        string
	Name      string
	Enabled   bool
	Settings  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (w widget) EntityID() string { return w.ID }

var widgetSchema = Schema[widget]{
	Table:   "widgets",
	Columns: []string{"id", "name", "enabled", "settings", "created_at", "updated_at"},
	OrderBy: "name, id",
	Values: func(w widget) ([]any, error) {
		settings, err := EncodeJSON(w.Settings)
		if err != nil {
			return nil, err
		}
		return []any{w.ID, w.Name, w.Enabled, settings, FormatTime(w.CreatedAt), FormatTime(w.UpdatedAt)}, nil
	},
	Scan: func(row Scanner) (widget, error) {
		var w widget
		var settings, created, updated string
		if err := row.Scan(&w.ID, &w.Name, &w.Enabled, &settings, &created, &updated); err != nil {
			return w, err
		}
		w.CreatedAt, w.UpdatedAt = ParseTime(created), ParseTime(updated)
		return w, DecodeJSON(settings, &w.Settings)
	},
	Stamp: func(w *widget, id string, now time.Time) {
		w.ID, w.CreatedAt, w.UpdatedAt = id, now, now
	},
}

// setupTable creates an in-memory widgets table.
func setupTable(t *testing.T) *Table[widget] {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	schema := `
		CREATE TABLE widgets (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			enabled INTEGER NOT NULL DEFAULT 1,
			settings TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	return NewTable(db.DB, widgetSchema)
}

func seed(t *testing.T, tbl *Table[widget], names ...string) []widget {
	t.Helper()
	out := make([]widget, 0, len(names))
	for _, n := range names {
		w, err := tbl.Create(context.Background(), widget{Name: n, Enabled: true})
		if err != nil {
			t.Fatalf("Create(%q) error = %v", n, err)
		}
		out = append(out, w)
	}
	return out
}

func TestTable_CreateAndLoad(t *testing.T) {
	tbl := setupTable(t)
	ctx := context.Background()

	created, err := tbl.Create(ctx, widget{Name: "sensor", Settings: map[string]any{"devEUI": "00AA"}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create() did not assign an id")
	}
	if created.CreatedAt.IsZero() {
		t.Error("Create() did not stamp created_at")
	}

	got, err := tbl.Load(ctx, ByID(created.ID))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Name != "sensor" || got.Settings["devEUI"] != "00AA" {
		t.Errorf("Load() = %+v", got)
	}

	if _, err := tbl.Create(ctx, widget{Name: "sensor"}); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate Create() error = %v, want ErrConflict", err)
	}
}

func TestTable_LoadNotFound(t *testing.T) {
	tbl := setupTable(t)

	_, err := tbl.Load(context.Background(), ByID("missing"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
	if _, err := tbl.Load(context.Background(), nil); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("Load(nil) error = %v, want ErrInvalidFilter", err)
	}
}

func TestTable_ListFilters(t *testing.T) {
	tbl := setupTable(t)
	ctx := context.Background()
	ws := seed(t, tbl, "alpha-meter", "beta-meter", "gamma", "Alpha-valve")

	tests := []struct {
		name  string
		where Where
		want  []string
	}{
		{name: "no filter", want: []string{"Alpha-valve", "alpha-meter", "beta-meter", "gamma"}},
		{name: "equality", where: Where{"name": "gamma"}, want: []string{"gamma"}},
		{name: "contains", where: Where{"name_contains": "meter"}, want: []string{"alpha-meter", "beta-meter"}},
		{name: "starts with is case sensitive", where: Where{"name_starts_with": "alpha"}, want: []string{"alpha-meter"}},
		{name: "not", where: Where{"name_not": "gamma", "name_contains": "a-"}, want: []string{"Alpha-valve", "alpha-meter", "beta-meter"}},
		{name: "in", where: Where{"id_in": []string{ws[0].ID, ws[2].ID}}, want: []string{"alpha-meter", "gamma"}},
		{name: "empty in", where: Where{"id_in": []string{}}, want: nil},
		{name: "bool column", where: Where{"enabled": true}, want: []string{"Alpha-valve", "alpha-meter", "beta-meter", "gamma"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, total, err := tbl.List(ctx, Query{Where: tt.where})
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if total != len(tt.want) {
				t.Errorf("total = %d, want %d", total, len(tt.want))
			}
			if len(recs) != len(tt.want) {
				t.Fatalf("got %d records, want %d", len(recs), len(tt.want))
			}
			for i, w := range recs {
				if w.Name != tt.want[i] {
					t.Errorf("record %d = %q, want %q", i, w.Name, tt.want[i])
				}
			}
		})
	}
}

func TestTable_ListPaging(t *testing.T) {
	tbl := setupTable(t)
	ctx := context.Background()
	seed(t, tbl, "a", "b", "c", "d", "e")

	recs, total, err := tbl.List(ctx, Query{Offset: 3, Limit: 2, IncludeTotal: true})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(recs) != 2 || recs[0].Name != "d" || recs[1].Name != "e" {
		t.Errorf("page = %+v", recs)
	}

	// Without IncludeTotal the count is the page length.
	_, total, err = tbl.List(ctx, Query{Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 2 {
		t.Errorf("total without IncludeTotal = %d, want 2", total)
	}
}

func TestTable_ListRejectsUnknownFilter(t *testing.T) {
	tbl := setupTable(t)

	_, _, err := tbl.List(context.Background(), Query{Where: Where{"name; DROP TABLE widgets": "x"}})
	if !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("List() error = %v, want ErrInvalidFilter", err)
	}
}

func TestTable_Update(t *testing.T) {
	tbl := setupTable(t)
	ctx := context.Background()
	w := seed(t, tbl, "old")[0]

	updated, err := tbl.Update(ctx, ByID(w.ID), Fields{"name": "new", "enabled": false, "settings": map[string]any{"k": "v"}})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "new" || updated.Enabled || updated.Settings["k"] != "v" {
		t.Errorf("Update() = %+v", updated)
	}

	tests := []struct {
		name   string
		where  Where
		fields Fields
		want   error
	}{
		{name: "missing record", where: ByID("nope"), fields: Fields{"name": "x"}, want: ErrNotFound},
		{name: "unknown column", where: ByID(w.ID), fields: Fields{"colour": "red"}, want: ErrInvalidField},
		{name: "immutable id", where: ByID(w.ID), fields: Fields{"id": "other"}, want: ErrInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tbl.Update(ctx, tt.where, tt.fields); !errors.Is(err, tt.want) {
				t.Errorf("Update() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTable_Remove(t *testing.T) {
	tbl := setupTable(t)
	ctx := context.Background()
	ws := seed(t, tbl, "dev:1:a", "dev:1:b", "dev:2:a")

	if err := tbl.Remove(ctx, ws[0].ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := tbl.Remove(ctx, ws[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove() error = %v, want ErrNotFound", err)
	}

	n, err := tbl.RemoveWhere(ctx, Where{"name_starts_with": "dev:1:"})
	if err != nil {
		t.Fatalf("RemoveWhere() error = %v", err)
	}
	if n != 1 {
		t.Errorf("RemoveWhere() removed %d, want 1", n)
	}
	if _, err := tbl.RemoveWhere(ctx, nil); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("RemoveWhere(nil) error = %v, want ErrInvalidFilter", err)
	}
}
