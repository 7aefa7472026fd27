package protocoldata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/lpwan-core/internal/network"
	"github.com/nerrad567/lpwan-core/internal/store"
)

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = fmt.Errorf("protocoldata: %w", store.ErrNotFound)

// Record is one stored value.
type Record struct {
	ID         string    `json:"id"`
	NetworkID  string    `json:"network_id"`
	ProtocolID string    `json:"network_protocol_id"`
	Key        string    `json:"data_identifier"`
	Value      string    `json:"data_value"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EntityID implements store.Entity.
func (r Record) EntityID() string { return r.ID }

var recordSchema = store.Schema[Record]{
	Table: "protocol_data",
	Columns: []string{"id", "network_id", "network_protocol_id", "data_identifier", "data_value",
		"created_at", "updated_at"},
	OrderBy: "data_identifier",
	Values: func(r Record) ([]any, error) {
		return []any{r.ID, r.NetworkID, r.ProtocolID, r.Key, r.Value,
			store.FormatTime(r.CreatedAt), store.FormatTime(r.UpdatedAt)}, nil
	},
	Scan: func(row store.Scanner) (Record, error) {
		var r Record
		var created, updated string
		err := row.Scan(&r.ID, &r.NetworkID, &r.ProtocolID, &r.Key, &r.Value, &created, &updated)
		r.CreatedAt, r.UpdatedAt = store.ParseTime(created), store.ParseTime(updated)
		return r, err
	},
	Stamp: func(r *Record, id string, now time.Time) {
		r.ID, r.CreatedAt, r.UpdatedAt = id, now, now
	},
}

// Store is the SQLite-backed protocol data store.
//
// Thread Safety: all methods are safe for concurrent use.
type Store struct {
	table *store.Table[Record]
	locks keyLocks
}

// New creates a Store over db.
func New(db *sql.DB) *Store {
	return &Store{
		table: store.NewTable(db, recordSchema),
		locks: keyLocks{held: make(map[string]*keyLock)},
	}
}

func keyWhere(networkID, protocolID, key string) store.Where {
	return store.Where{
		"network_id":          networkID,
		"network_protocol_id": protocolID,
		"data_identifier":     key,
	}
}

// Upsert stores value under key for network n, replacing any previous value.
func (s *Store) Upsert(ctx context.Context, n network.Network, key, value string) (Record, error) {
	lockKey := n.ID + "\x00" + n.ProtocolID + "\x00" + key
	s.locks.lock(lockKey)
	defer s.locks.unlock(lockKey)

	where := keyWhere(n.ID, n.ProtocolID, key)
	if _, err := s.table.Load(ctx, where); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return Record{}, fmt.Errorf("loading %s: %w", key, err)
		}
		rec, err := s.table.Create(ctx, Record{NetworkID: n.ID, ProtocolID: n.ProtocolID, Key: key, Value: value})
		if !errors.Is(err, store.ErrConflict) {
			return rec, err
		}
		// Another process created the key first; fall through to update it.
	}
	return s.table.Update(ctx, where, store.Fields{"data_value": value})
}

// Load returns the record stored under key for network n.
func (s *Store) Load(ctx context.Context, n network.Network, key string) (Record, error) {
	rec, err := s.table.Load(ctx, keyWhere(n.ID, n.ProtocolID, key))
	if errors.Is(err, store.ErrNotFound) {
		return Record{}, fmt.Errorf("%s on network %s: %w", key, n.ID, ErrNotFound)
	}
	return rec, err
}

// LoadValue returns only the value stored under key for network n.
func (s *Store) LoadValue(ctx context.Context, n network.Network, key string) (string, error) {
	rec, err := s.Load(ctx, n, key)
	if err != nil {
		return "", err
	}
	return rec.Value, nil
}

// Clear deletes every record of a network and protocol whose key starts
// with keyPrefix, and reports how many were removed.
func (s *Store) Clear(ctx context.Context, networkID, protocolID, keyPrefix string) (int64, error) {
	return s.table.RemoveWhere(ctx, store.Where{
		"network_id":                  networkID,
		"network_protocol_id":         protocolID,
		"data_identifier_starts_with": keyPrefix,
	})
}

// ReverseLookup finds the records of a network whose key contains
// keyPattern and whose value is exactly value.
func (s *Store) ReverseLookup(ctx context.Context, networkID, keyPattern, value string) ([]Record, error) {
	records, _, err := s.table.List(ctx, store.Query{Where: store.Where{
		"network_id":               networkID,
		"data_identifier_contains": keyPattern,
		"data_value":               value,
	}})
	return records, err
}

// keyLocks is a set of mutexes created on demand and dropped when unused.
type keyLocks struct {
	mu   sync.Mutex
	held map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyLocks) lock(key string) {
	k.mu.Lock()
	l, ok := k.held[key]
	if !ok {
		l = &keyLock{}
		k.held[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
}

func (k *keyLocks) unlock(key string) {
	k.mu.Lock()
	l := k.held[key]
	l.refs--
	if l.refs == 0 {
		delete(k.held, key)
	}
	k.mu.Unlock()

	l.mu.Unlock()
}
