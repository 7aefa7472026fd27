package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Schema maps an entity type onto a SQLite table.
type Schema[T Entity] struct {
	// Table is the SQL table name.
	Table string

	// Columns lists the table columns in the order Values produces and Scan
	// consumes them. The first column must be "id".
	Columns []string

	// OrderBy is the ORDER BY clause used by List. Defaults to "rowid".
	OrderBy string

	// Values returns the column values for rec, in Columns order.
	Values func(rec T) ([]any, error)

	// Scan reads one row, in Columns order.
	Scan func(row Scanner) (T, error)

	// Stamp assigns the id and creation timestamps before insert.
	Stamp func(rec *T, id string, now time.Time)
}

// immutableColumns can never be changed through Update.
var immutableColumns = map[string]bool{"id": true, "created_at": true}

// Filter operators, checked in order after an exact column match fails.
var filterOperators = []struct {
	suffix string
	build  func(col string, v any) (string, []any, error)
}{
	{"_starts_with", func(col string, v any) (string, []any, error) {
		s := fmt.Sprint(v)
		return fmt.Sprintf("substr(%s, 1, length(?)) = ?", col), []any{s, s}, nil
	}},
	{"_contains", func(col string, v any) (string, []any, error) {
		return fmt.Sprintf("instr(%s, ?) > 0", col), []any{fmt.Sprint(v)}, nil
	}},
	{"_not", func(col string, v any) (string, []any, error) {
		if v == nil {
			return col + " IS NOT NULL", nil, nil
		}
		dv, err := dbValue(v)
		return col + " <> ?", []any{dv}, err
	}},
	{"_in", func(col string, v any) (string, []any, error) {
		values, ok := v.([]string)
		if !ok {
			return "", nil, fmt.Errorf("%w: %s_in expects []string", ErrInvalidFilter, col)
		}
		if len(values) == 0 {
			return "0 = 1", nil, nil
		}
		args := make([]any, len(values))
		for i, s := range values {
			args[i] = s
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")), args, nil
	}},
}

// Table is a SQLite-backed Store.
type Table[T Entity] struct {
	db      *sql.DB
	schema  Schema[T]
	columns map[string]bool
	now     func() time.Time
}

// NewTable creates a Store for schema over db.
func NewTable[T Entity](db *sql.DB, schema Schema[T]) *Table[T] {
	if schema.OrderBy == "" {
		schema.OrderBy = "rowid"
	}
	cols := make(map[string]bool, len(schema.Columns))
	for _, c := range schema.Columns {
		cols[c] = true
	}
	return &Table[T]{
		db:      db,
		schema:  schema,
		columns: cols,
		now:     time.Now,
	}
}

// Name returns the table name.
func (t *Table[T]) Name() string {
	return t.schema.Table
}

// Create inserts rec. An empty id is replaced with a generated one.
func (t *Table[T]) Create(ctx context.Context, rec T) (T, error) {
	var zero T

	id := rec.EntityID()
	if id == "" {
		id = GenerateID()
	}
	t.schema.Stamp(&rec, id, t.now().UTC())

	values, err := t.schema.Values(rec)
	if err != nil {
		return zero, fmt.Errorf("encoding %s: %w", t.schema.Table, err)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.schema.Table,
		strings.Join(t.schema.Columns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(t.schema.Columns)), ", "),
	)
	if _, err := t.db.ExecContext(ctx, query, values...); err != nil {
		return zero, fmt.Errorf("inserting into %s: %w", t.schema.Table, translate(err))
	}
	return rec, nil
}

// List returns the records selected by q.
func (t *Table[T]) List(ctx context.Context, q Query) ([]T, int, error) {
	clause, args, err := t.compile(q.Where)
	if err != nil {
		return nil, 0, err
	}

	total := -1
	if q.IncludeTotal {
		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", t.schema.Table, clause)
		if err := t.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("counting %s: %w", t.schema.Table, err)
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT ? OFFSET ?",
		strings.Join(t.schema.Columns, ", "), t.schema.Table, clause, t.schema.OrderBy)

	rows, err := t.db.QueryContext(ctx, query, append(args, limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing %s: %w", t.schema.Table, err)
	}
	defer rows.Close()

	var records []T
	for rows.Next() {
		rec, err := t.schema.Scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning %s: %w", t.schema.Table, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating %s: %w", t.schema.Table, err)
	}

	if total < 0 {
		total = len(records)
	}
	return records, total, nil
}

// Load returns the first record matching where.
func (t *Table[T]) Load(ctx context.Context, where Where) (T, error) {
	var zero T
	if len(where) == 0 {
		return zero, fmt.Errorf("%w: load requires a filter", ErrInvalidFilter)
	}

	records, _, err := t.List(ctx, Query{Where: where, Limit: 1})
	if err != nil {
		return zero, err
	}
	if len(records) == 0 {
		return zero, fmt.Errorf("%s: %w", t.schema.Table, ErrNotFound)
	}
	return records[0], nil
}

// Update applies fields to the record matching where.
func (t *Table[T]) Update(ctx context.Context, where Where, fields Fields) (T, error) {
	var zero T

	rec, err := t.Load(ctx, where)
	if err != nil {
		return zero, err
	}
	if len(fields) == 0 {
		return rec, nil
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if !t.columns[name] || immutableColumns[name] {
			return zero, fmt.Errorf("%w: %s.%s", ErrInvalidField, t.schema.Table, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names)+2)
	for _, name := range names {
		v, err := dbValue(fields[name])
		if err != nil {
			return zero, fmt.Errorf("encoding %s.%s: %w", t.schema.Table, name, err)
		}
		sets = append(sets, name+" = ?")
		args = append(args, v)
	}
	if t.columns["updated_at"] && fields["updated_at"] == nil {
		sets = append(sets, "updated_at = ?")
		args = append(args, FormatTime(t.now()))
	}
	args = append(args, rec.EntityID())

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", t.schema.Table, strings.Join(sets, ", "))
	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return zero, fmt.Errorf("updating %s: %w", t.schema.Table, translate(err))
	}

	return t.Load(ctx, ByID(rec.EntityID()))
}

// Remove deletes a record by id.
func (t *Table[T]) Remove(ctx context.Context, id string) error {
	result, err := t.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.schema.Table), id)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", t.schema.Table, translate(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", t.schema.Table, id, ErrNotFound)
	}
	return nil
}

// RemoveWhere deletes every record matching where and reports how many went.
// An empty filter is rejected.
func (t *Table[T]) RemoveWhere(ctx context.Context, where Where) (int64, error) {
	if len(where) == 0 {
		return 0, fmt.Errorf("%w: bulk delete requires a filter", ErrInvalidFilter)
	}
	clause, args, err := t.compile(where)
	if err != nil {
		return 0, err
	}
	result, err := t.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s%s", t.schema.Table, clause), args...)
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", t.schema.Table, translate(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// compile turns a Where into a SQL WHERE clause (with leading space) and its
// arguments. Keys are processed in sorted order so statements are stable.
func (t *Table[T]) compile(where Where) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	var args []any
	for _, key := range keys {
		cond, condArgs, err := t.condition(key, where[key])
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
		args = append(args, condArgs...)
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func (t *Table[T]) condition(key string, value any) (string, []any, error) {
	if t.columns[key] {
		if value == nil {
			return key + " IS NULL", nil, nil
		}
		v, err := dbValue(value)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %v", ErrInvalidFilter, key, err)
		}
		return key + " = ?", []any{v}, nil
	}

	for _, op := range filterOperators {
		col := strings.TrimSuffix(key, op.suffix)
		if col != key && t.columns[col] {
			return op.build(col, value)
		}
	}
	return "", nil, fmt.Errorf("%w: %s has no column %q", ErrInvalidFilter, t.schema.Table, key)
}

// dbValue converts values the SQLite driver cannot bind directly.
func dbValue(v any) (any, error) {
	switch v := v.(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case time.Time:
		return FormatTime(v), nil
	case json.RawMessage:
		return string(v), nil
	case map[string]any, []any:
		return EncodeJSON(v)
	default:
		return v, nil
	}
}

// translate maps driver constraint errors onto ErrConflict.
func translate(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// EncodeJSON marshals v for a TEXT column. Nil maps encode as "{}".
func EncodeJSON(v any) (string, error) {
	if m, ok := v.(map[string]any); ok && m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshalling json: %w", err)
	}
	return string(b), nil
}

// DecodeJSON unmarshals a TEXT column into dst. Empty input leaves dst untouched.
func DecodeJSON(s string, dst any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), dst); err != nil {
		return fmt.Errorf("unmarshalling json: %w", err)
	}
	return nil
}
