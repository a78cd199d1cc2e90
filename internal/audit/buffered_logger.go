// Package audit provides a tamper-evident, HMAC-chained trail of registry
// mutations: interface lifecycle, address/neighbor/gateway changes,
// admin-state transitions, VLAN creation, reload firings, and decode
// failures. Adapted from the buffered SQLite audit logger used elsewhere
// in this codebase's ancestry for file-operation auditing; the batching
// and chaining strategy carries over unchanged, only the event shape
// is domain-specific.
package audit

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"
)

// Event is a single audit trail entry for a registry-affecting action.
type Event struct {
	Timestamp int64
	Action    string // e.g. "interface_added", "vlan_created", "registry_corruption"
	Ifidx     uint32
	Name      string
	Details   string
	Success   bool
}

// CriticalActions lists actions that bypass the buffer and write directly
// to SQLite — they must survive a crash or SIGKILL immediately after they
// occur. Registry corruption precedes a log.Fatalf; if that write never
// lands, the operator loses the one record explaining the abort.
var CriticalActions = map[string]bool{
	"registry_corruption": true,
	"reload_failed":       true,
}

// BufferedLogger batches audit events into SQLite, flushing periodically
// or when the buffer fills, to keep registry-mutation hot paths
// non-blocking.
type BufferedLogger struct {
	db            *sql.DB
	buffer        []Event
	bufferMutex   sync.Mutex
	flushTicker   *time.Ticker
	stopChan      chan struct{}
	maxBuffer     int
	flushInterval time.Duration
	hmacKey       []byte // 32-byte key for chain integrity; nil = chain disabled
}

// NewBufferedLogger creates a buffered audit logger backed by db.
func NewBufferedLogger(db *sql.DB, maxBuffer int, flushInterval time.Duration, hmacKey []byte) *BufferedLogger {
	if maxBuffer <= 0 {
		maxBuffer = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &BufferedLogger{
		db:            db,
		buffer:        make([]Event, 0, maxBuffer),
		maxBuffer:     maxBuffer,
		flushInterval: flushInterval,
		stopChan:      make(chan struct{}),
		hmacKey:       hmacKey,
	}
}

// EnsureSchema creates the audit_logs table if it does not already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS audit_logs (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		action    TEXT    NOT NULL,
		ifidx     INTEGER NOT NULL DEFAULT 0,
		name      TEXT    NOT NULL DEFAULT '',
		details   TEXT    NOT NULL DEFAULT '',
		success   INTEGER NOT NULL DEFAULT 1,
		prev_hash TEXT    NOT NULL DEFAULT '',
		row_hash  TEXT    NOT NULL DEFAULT ''
	)`)
	if err != nil {
		return fmt.Errorf("audit schema: %w", err)
	}
	return nil
}

// Start begins the background flush goroutine.
func (bl *BufferedLogger) Start() {
	bl.flushTicker = time.NewTicker(bl.flushInterval)
	go func() {
		for {
			select {
			case <-bl.flushTicker.C:
				if err := bl.Flush(); err != nil {
					log.Printf("[audit] flush: %v", err)
				}
			case <-bl.stopChan:
				bl.flushTicker.Stop()
				if err := bl.Flush(); err != nil {
					log.Printf("[audit] final flush: %v", err)
				}
				return
			}
		}
	}()
}

// Stop flushes any remaining buffered events and stops the logger.
func (bl *BufferedLogger) Stop() {
	close(bl.stopChan)
	if err := bl.Flush(); err != nil {
		log.Printf("[audit] stop flush: %v", err)
	}
}

// Log records an event. Critical actions bypass the buffer entirely.
// Thread-safe.
func (bl *BufferedLogger) Log(event Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	if CriticalActions[event.Action] {
		return bl.writeDirect([]Event{event})
	}

	bl.bufferMutex.Lock()
	bl.buffer = append(bl.buffer, event)
	needFlush := len(bl.buffer) >= bl.maxBuffer
	bl.bufferMutex.Unlock()

	if needFlush {
		return bl.Flush()
	}
	return nil
}

func (bl *BufferedLogger) writeDirect(events []Event) error {
	tx, err := bl.db.Begin()
	if err != nil {
		return fmt.Errorf("audit direct write: begin: %w", err)
	}
	defer tx.Rollback()

	var prevHash string
	if bl.hmacKey != nil {
		_ = tx.QueryRow(`SELECT COALESCE(row_hash,'') FROM audit_logs ORDER BY id DESC LIMIT 1`).Scan(&prevHash)
	}

	stmt, err := tx.Prepare(`INSERT INTO audit_logs
		(timestamp, action, ifidx, name, details, success, prev_hash, row_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("audit direct write: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		rowHash := computeRowHash(bl.hmacKey, prevHash, e)
		if _, err := stmt.Exec(e.Timestamp, e.Action, e.Ifidx, e.Name, e.Details, e.Success, prevHash, rowHash); err != nil {
			log.Printf("[audit] direct write: %v", err)
			continue
		}
		prevHash = rowHash
	}
	return tx.Commit()
}

// Flush writes all buffered events to SQLite in a single transaction,
// threading the HMAC chain across rows.
func (bl *BufferedLogger) Flush() error {
	bl.bufferMutex.Lock()
	if len(bl.buffer) == 0 {
		bl.bufferMutex.Unlock()
		return nil
	}
	events := make([]Event, len(bl.buffer))
	copy(events, bl.buffer)
	bl.buffer = bl.buffer[:0]
	bl.bufferMutex.Unlock()

	tx, err := bl.db.Begin()
	if err != nil {
		return fmt.Errorf("audit flush: begin: %w", err)
	}
	defer tx.Rollback()

	var prevHash string
	if bl.hmacKey != nil {
		_ = tx.QueryRow(`SELECT COALESCE(row_hash,'') FROM audit_logs ORDER BY id DESC LIMIT 1`).Scan(&prevHash)
	}

	stmt, err := tx.Prepare(`INSERT INTO audit_logs
		(timestamp, action, ifidx, name, details, success, prev_hash, row_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("audit flush: prepare: %w", err)
	}
	defer stmt.Close()

	for _, event := range events {
		rowHash := computeRowHash(bl.hmacKey, prevHash, event)
		if _, err := stmt.Exec(event.Timestamp, event.Action, event.Ifidx, event.Name, event.Details, event.Success, prevHash, rowHash); err != nil {
			log.Printf("[audit] insert: %v", err)
			continue
		}
		prevHash = rowHash
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("audit flush: commit: %w", err)
	}
	return nil
}
