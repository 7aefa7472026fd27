package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Where is a record filter. See the package documentation for operators.
type Where map[string]any

// Fields is a partial update keyed by column name.
type Fields map[string]any

// Query selects a window of records.
type Query struct {
	Where Where

	// Offset is the number of matching records to skip.
	Offset int

	// Limit caps the number of records returned. Zero means no limit.
	Limit int

	// IncludeTotal requests the total number of matching records,
	// independent of Offset and Limit.
	IncludeTotal bool
}

// Entity is implemented by every persisted record type.
type Entity interface {
	EntityID() string
}

// Store is the data-access contract for one entity type.
type Store[T any] interface {
	// Create inserts rec, assigning an ID and timestamps, and returns the stored record.
	Create(ctx context.Context, rec T) (T, error)

	// List returns the records selected by q. The int result is the total
	// matching count when q.IncludeTotal is set, otherwise len(records).
	List(ctx context.Context, q Query) ([]T, int, error)

	// Load returns the first record matching where, or ErrNotFound.
	Load(ctx context.Context, where Where) (T, error)

	// Update applies fields to the record matching where and returns it.
	// Returns ErrNotFound if nothing matches.
	Update(ctx context.Context, where Where, fields Fields) (T, error)

	// Remove deletes a record by id. Returns ErrNotFound if it does not exist.
	Remove(ctx context.Context, id string) error
}

// ByID is shorthand for an id equality filter.
func ByID(id string) Where {
	return Where{"id": id}
}

// GenerateID returns a new random record identifier.
func GenerateID() string {
	return uuid.NewString()
}

// timeLayout is the persisted timestamp format.
const timeLayout = time.RFC3339Nano

// FormatTime renders t in the persisted timestamp format (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime parses a persisted timestamp. Malformed values yield the zero time.
func ParseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
