package mailbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/lpwan-core/internal/store"
)

var (
	// ErrQueueFull is returned when a device's queue is at its configured limit.
	ErrQueueFull = errors.New("mailbox: queue full")

	// ErrEmptyDevEUI is returned when no device identifier is given.
	ErrEmptyDevEUI = errors.New("mailbox: devEUI is required")
)

// Logger is the logging interface used by the mailbox.
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}

// Notifier raises the wake-up signal for a device.
type Notifier interface {
	Notify(ctx context.Context, devEUI string) error
}

// Recorder observes pushes.
type Recorder interface {
	ObserveMailboxPush(err error)
}

type noopRecorder struct{}

func (noopRecorder) ObserveMailboxPush(error) {}

// Mailbox is the SQLite-backed downlink queue.
//
// Thread Safety: all methods are safe for concurrent use.
type Mailbox struct {
	db       *sql.DB
	notifier Notifier
	maxQueue int
	logger   Logger
	recorder Recorder
}

// New creates a mailbox over db. notifier may be nil; maxQueue 0 means no limit.
func New(db *sql.DB, notifier Notifier, maxQueue int, logger Logger) *Mailbox {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Mailbox{db: db, notifier: notifier, maxQueue: maxQueue, logger: logger, recorder: noopRecorder{}}
}

// SetRecorder sets the recorder observing pushes. Call before use.
func (m *Mailbox) SetRecorder(r Recorder) {
	if r == nil {
		r = noopRecorder{}
	}
	m.recorder = r
}

// Push serialises payload, appends it to the device's queue and raises the
// device's notification. It returns the queue length after the push.
// Notification failures are logged, never returned.
func (m *Mailbox) Push(ctx context.Context, devEUI string, payload any) (length int, err error) {
	defer func() { m.recorder.ObserveMailboxPush(err) }()

	if devEUI == "" {
		return 0, ErrEmptyDevEUI
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encoding downlink: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM ip_downlinks WHERE dev_eui = ?", devEUI).Scan(&length); err != nil {
		return 0, fmt.Errorf("counting queue: %w", err)
	}
	if m.maxQueue > 0 && length >= m.maxQueue {
		return length, fmt.Errorf("%w: %s has %d pending", ErrQueueFull, devEUI, length)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO ip_downlinks (dev_eui, payload, created_at) VALUES (?, ?, ?)",
		devEUI, string(data), store.FormatTime(time.Now()),
	); err != nil {
		return 0, fmt.Errorf("queueing downlink: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing downlink: %w", err)
	}
	length++

	if m.notifier != nil {
		if err := m.notifier.Notify(ctx, devEUI); err != nil {
			m.logger.Warn("downlink notification failed", "dev_eui", devEUI, "error", err)
		}
	}
	return length, nil
}

// Drain returns every queued payload for the device, oldest first, and
// deletes them.
func (m *Mailbox) Drain(ctx context.Context, devEUI string) ([]json.RawMessage, error) {
	if devEUI == "" {
		return nil, ErrEmptyDevEUI
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	rows, err := tx.QueryContext(ctx,
		"SELECT seq, payload FROM ip_downlinks WHERE dev_eui = ? ORDER BY seq", devEUI)
	if err != nil {
		return nil, fmt.Errorf("reading queue: %w", err)
	}

	messages := []json.RawMessage{}
	var last int64
	for rows.Next() {
		var payload string
		if err := rows.Scan(&last, &payload); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning downlink: %w", err)
		}
		messages = append(messages, json.RawMessage(payload))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating queue: %w", err)
	}
	if len(messages) == 0 {
		return messages, nil
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM ip_downlinks WHERE dev_eui = ? AND seq <= ?", devEUI, last,
	); err != nil {
		return nil, fmt.Errorf("deleting drained downlinks: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing drain: %w", err)
	}

	m.logger.Debug("downlink queue drained", "dev_eui", devEUI, "count", len(messages))
	return messages, nil
}

// Len returns the number of queued payloads for the device.
func (m *Mailbox) Len(ctx context.Context, devEUI string) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ip_downlinks WHERE dev_eui = ?", devEUI).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting queue: %w", err)
	}
	return n, nil
}

// Devices returns the devEUIs that currently have queued payloads.
func (m *Mailbox) Devices(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT DISTINCT dev_eui FROM ip_downlinks ORDER BY dev_eui")
	if err != nil {
		return nil, fmt.Errorf("listing queues: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scanning queue: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
