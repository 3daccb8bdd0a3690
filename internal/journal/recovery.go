package journal

import (
	"fmt"
	"strings"

	"github.com/erg0nix/samtale/internal/core"
)

// RecoveredStream is the replayed content of a stream whose journal was
// found unresolved at startup. Complete means a done record was journaled
// before the crash; otherwise the text is a partial response.
type RecoveredStream struct {
	StreamID core.StreamID
	Text     string
	Complete bool
	ErrMsg   string
}

// Recover scans for unresolved journal sessions and replays each one's text
// deltas in sequence order. The caller is expected to fold the recovered
// content into the conversation log and then call Resolve for each stream.
// Running Recover against a fully resolved journal returns nothing, which
// is what makes crash recovery idempotent.
func (s *Store) Recover() ([]RecoveredStream, error) {
	rows, err := s.db.Query(
		`SELECT stream_id, event_type, content FROM stream_journal
		 WHERE stream_id IN (SELECT DISTINCT stream_id FROM stream_journal WHERE sealed = 0)
		 ORDER BY stream_id, seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: scan journal: %w", core.ErrStorage, err)
	}
	defer rows.Close()

	var recovered []RecoveredStream
	var current *RecoveredStream
	var text strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.Text = text.String()
		recovered = append(recovered, *current)
		current = nil
		text.Reset()
	}

	for rows.Next() {
		var id, eventType, content string
		if err := rows.Scan(&id, &eventType, &content); err != nil {
			return nil, fmt.Errorf("%w: scan journal row: %w", core.ErrStorage, err)
		}

		if current == nil || current.StreamID != core.StreamID(id) {
			flush()
			current = &RecoveredStream{StreamID: core.StreamID(id)}
		}

		switch eventType {
		case eventDelta:
			text.WriteString(content)
		case eventDone:
			current.Complete = true
		case eventError:
			current.ErrMsg = content
		}
	}
	flush()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan journal: %w", core.ErrStorage, err)
	}

	return recovered, nil
}

// Resolve marks a recovered stream's records as handled.
func (s *Store) Resolve(id core.StreamID) error {
	return s.seal(id)
}
