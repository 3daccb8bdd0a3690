// Package journal is the durable write-ahead record of in-flight response
// streams. Every event of a stream is persisted before it may be applied to
// in-memory or display state, so a crash mid-stream loses nothing.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/erg0nix/samtale/internal/core"
)

// Store holds stream journals in a single SQLite database.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
	_, _ = db.Exec("PRAGMA journal_mode = WAL;")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL;")

	schema := []string{
		`CREATE TABLE IF NOT EXISTS stream_journal (
			stream_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			written_at INTEGER NOT NULL,
			sealed INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (stream_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_stream_journal_unsealed
			ON stream_journal(stream_id) WHERE sealed = 0;`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create journal schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const (
	eventDelta = "delta"
	eventDone  = "done"
	eventError = "error"
)

var errJournalClosed = errors.New("journal session already closed")

// ActiveJournal is one open stream's journal. Not safe for concurrent use;
// a stream has exactly one writer.
type ActiveJournal struct {
	store   *Store
	id      core.StreamID
	nextSeq uint64
	closed  bool
}

// Begin opens a journal session for a new stream.
func (s *Store) Begin(id core.StreamID) (*ActiveJournal, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM stream_journal WHERE stream_id = ?`, string(id)).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("%w: begin journal: %w", core.ErrStorage, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: journal for stream %s already exists", core.ErrStorage, id)
	}

	return &ActiveJournal{store: s, id: id}, nil
}

// Append durably records an event. It returns only after the write has
// committed, so the caller may then, and only then, apply the event to
// visible state. Thinking deltas are transient and are not recorded.
func (j *ActiveJournal) Append(event core.StreamEvent) error {
	if j.closed {
		return fmt.Errorf("%w: %w", core.ErrStorage, errJournalClosed)
	}

	if event.Kind == core.EventThinkingDelta {
		return nil
	}

	var eventType, content string
	switch event.Kind {
	case core.EventTextDelta:
		eventType, content = eventDelta, event.Text
	case core.EventDone:
		eventType = eventDone
	case core.EventError:
		eventType, content = eventError, event.Err
	default:
		return fmt.Errorf("unknown event kind %q", event.Kind)
	}

	_, err := j.store.db.Exec(
		`INSERT INTO stream_journal (stream_id, seq, event_type, content, written_at, sealed)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		string(j.id), j.nextSeq, eventType, content, time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("%w: journal append: %w", core.ErrStorage, err)
	}

	j.nextSeq++
	return nil
}

// Close records the terminal event if one is given and marks the whole
// session resolved. A resolved session is never picked up by recovery.
func (j *ActiveJournal) Close(terminal *core.StreamEvent) error {
	if j.closed {
		return nil
	}

	if terminal != nil {
		if !terminal.Terminal() {
			return fmt.Errorf("close requires a terminal event, got %q", terminal.Kind)
		}
		if err := j.Append(*terminal); err != nil {
			return err
		}
	}

	if err := j.store.seal(j.id); err != nil {
		return err
	}

	j.closed = true
	return nil
}

func (s *Store) seal(id core.StreamID) error {
	_, err := s.db.Exec(`UPDATE stream_journal SET sealed = 1 WHERE stream_id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("%w: seal journal: %w", core.ErrStorage, err)
	}
	return nil
}

// DiscardUnsealed drops the unresolved records of a stream without
// recovering them. Used when a partial stream is deliberately thrown away.
func (s *Store) DiscardUnsealed(id core.StreamID) error {
	_, err := s.db.Exec(`DELETE FROM stream_journal WHERE stream_id = ? AND sealed = 0`, string(id))
	if err != nil {
		return fmt.Errorf("%w: discard unsealed: %w", core.ErrStorage, err)
	}
	return nil
}

// Prune deletes resolved records written before the cutoff and reports how
// many rows were removed.
func (s *Store) Prune(before time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM stream_journal WHERE sealed = 1 AND written_at < ?`,
		before.UTC().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: prune journal: %w", core.ErrStorage, err)
	}

	return result.RowsAffected()
}

// Stats summarizes the journal database for operator commands.
type Stats struct {
	TotalRecords int
	OpenStreams  int
}

func (s *Store) Stats() (Stats, error) {
	var stats Stats

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM stream_journal`).Scan(&stats.TotalRecords); err != nil {
		return stats, fmt.Errorf("%w: journal stats: %w", core.ErrStorage, err)
	}

	err := s.db.QueryRow(
		`SELECT COUNT(DISTINCT stream_id) FROM stream_journal WHERE sealed = 0`,
	).Scan(&stats.OpenStreams)
	if err != nil {
		return stats, fmt.Errorf("%w: journal stats: %w", core.ErrStorage, err)
	}

	return stats, nil
}
