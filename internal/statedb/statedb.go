// Package statedb implements the single-writer JSON document persistence
// layer: one JSON document backing
// {servers: {uuid -> ServerRecord}}, read-any / write-serialized through
// a single writer goroutine.
//
// Grounded on crates/alerion_core/src/fs/db.rs (Root/Handle/io_task/
// rewrite_flushed); tokio's mpsc + parking_lot::RwLock become a buffered
// Go channel drained by one goroutine plus a sync.RWMutex-guarded map.
package statedb

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
)

// State is the persisted lifecycle state of a server.
type State string

const (
	StateBare       State = "Bare"
	StateInstalling State = "Installing"
	StateUnhealthy  State = "Unhealthy"
	StateOffline    State = "Offline"
	StateStarting   State = "Starting"
	StateRunning    State = "Running"
	StateStopping   State = "Stopping"
)

// IsBare reports whether this is the initial, egg-less state.
func (s State) IsBare() bool { return s == StateBare }

// Record is the persisted per-server document entry.
type Record struct {
	State State `json:"state"`
}

// model is the on-disk document shape.
type model struct {
	Servers map[uuid.UUID]Record `json:"servers"`
}

type update struct {
	id     uuid.UUID
	record Record
}

// DB is the single-writer JSON document store. Safe for concurrent use.
type DB struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
	updates chan update
	onWrite func(id uuid.UUID, from, to State)
}

// Option configures optional DB behavior.
type Option func(*DB)

// WithTransitionObserver registers a callback invoked (from the writer
// goroutine, after a successful persist) whenever a record's state
// changes. Used to feed the supplemental audit ledger.
func WithTransitionObserver(fn func(id uuid.UUID, from, to State)) Option {
	return func(db *DB) { db.onWrite = fn }
}

// Open reads path if present, falling back to an empty document on any
// read or parse failure — including a partial prior write, which is
// acceptable because the panel re-announces servers on reconnect.
func Open(path string, opts ...Option) (*DB, error) {
	m := model{Servers: map[uuid.UUID]Record{}}

	if contents, err := os.ReadFile(path); err == nil {
		var parsed model
		if err := json.Unmarshal(contents, &parsed); err == nil && parsed.Servers != nil {
			m = parsed
		}
	}

	fd, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}

	db := &DB{
		records: m.Servers,
		updates: make(chan update, 16),
	}
	for _, opt := range opts {
		opt(db)
	}

	go db.writerLoop(m, fd)

	return db, nil
}

// Get returns a cheap in-memory snapshot; never blocks on I/O. A missing
// uuid returns a Record whose State is StateBare.
func (db *DB) Get(id uuid.UUID) Record {
	db.mu.RLock()
	defer db.mu.RUnlock()
	rec, ok := db.records[id]
	if !ok {
		return Record{State: StateBare}
	}
	return rec
}

// Update applies f to the in-memory copy under a write lock, then
// publishes the new record to the writer goroutine for durable persist.
// The publish is never dropped: if the writer's queue is somehow full this
// blocks until there's room, since durability must never be skipped
// silently, but the writer never exerts backpressure in practice because
// it drains continuously.
func (db *DB) Update(id uuid.UUID, f func(*Record)) Record {
	db.mu.Lock()
	rec := db.records[id]
	if rec.State == "" {
		rec.State = StateBare
	}
	f(&rec)
	db.records[id] = rec
	db.mu.Unlock()

	db.updates <- update{id: id, record: rec}
	return rec
}

func (db *DB) writerLoop(m model, fd *os.File) {
	defer fd.Close()

	buf := make([]byte, 0, 4096)
	prevStates := map[uuid.UUID]State{}
	for id, rec := range m.Servers {
		prevStates[id] = rec.State
	}

	for u := range db.updates {
		m.Servers[u.id] = u.record

		encoded, err := json.Marshal(m)
		if err != nil {
			slog.Error("failed to serialize state database", "error", err)
			continue
		}
		buf = append(buf[:0], encoded...)

		if err := rewriteFlushed(fd, buf); err != nil {
			slog.Error("failed to persist state database", "error", err)
			continue
		}

		if db.onWrite != nil {
			from, seen := prevStates[u.id]
			if !seen {
				from = StateBare
			}
			if from != u.record.State {
				db.onWrite(u.id, from, u.record.State)
			}
		}
		prevStates[u.id] = u.record.State
	}

	slog.Info("state database writer channel closed")
}

func rewriteFlushed(fd *os.File, data []byte) error {
	if err := fd.Truncate(0); err != nil {
		return err
	}
	if _, err := fd.Seek(0, 0); err != nil {
		return err
	}
	if _, err := fd.Write(data); err != nil {
		return err
	}
	return fd.Sync()
}
