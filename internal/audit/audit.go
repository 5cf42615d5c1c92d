// Package audit is a supplemental, append-only record of server state
// transitions, backed by SQLite. It is not part of the core persistence
// contract (internal/statedb remains the sole source of truth for
// "current state") — it exists purely so an operator can answer "when did
// this server last change state" without replaying logs, and to give the
// this module's modernc.org/sqlite dependency a legitimate home instead of
// dropping it (see DESIGN.md).
package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pyrohost/alerion/internal/statedb"
)

// Ledger appends transition rows to a local SQLite database.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if necessary) the ledger database at path and
// applies its single migration.
func Open(path string) (*Ledger, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit ledger: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping audit ledger: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		server_uuid TEXT NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		at DATETIME NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate audit ledger: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the underlying database handle.
func (l *Ledger) Close() error { return l.db.Close() }

// Record appends one transition row. Errors are returned to the caller,
// which by convention (statedb.WithTransitionObserver) only logs them —
// a missed audit row is not fatal to the daemon's core persistence
// contract.
func (l *Ledger) Record(id uuid.UUID, from, to statedb.State) error {
	_, err := l.db.Exec(
		`INSERT INTO transitions (server_uuid, from_state, to_state, at) VALUES (?, ?, ?, ?)`,
		id.String(), string(from), string(to), time.Now().UTC(),
	)
	return err
}

// Transition is one historical row, returned by History.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// State is a transition endpoint: an alias of statedb.State, so rows
// read back from the ledger compare directly with statedb's constants.
type State = statedb.State

// History returns all recorded transitions for a server, oldest first.
func (l *Ledger) History(id uuid.UUID) ([]Transition, error) {
	rows, err := l.db.Query(
		`SELECT from_state, to_state, at FROM transitions WHERE server_uuid = ? ORDER BY id ASC`,
		id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit ledger: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var from, to string
		if err := rows.Scan(&from, &to, &t.At); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		t.From, t.To = State(from), State(to)
		out = append(out, t)
	}
	return out, rows.Err()
}
