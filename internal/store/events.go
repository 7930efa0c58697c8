package store

import (
	"context"
	"fmt"

	"github.com/medicrypt/consentledger/internal/model"
)

const eventColumns = `seq, event_id, op_token, kind, record_addr, grant_addr, owner, granter, requester, content_id, encrypted_hash, file_name, policy, ts`

// AppendEvent appends an event inside the operation's transaction. The
// event commits with the mutation that produced it or not at all. Seq is
// assigned by the database; the caller leaves it zero.
func (t *Tx) AppendEvent(ctx context.Context, ev model.Event) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO events
		(event_id, op_token, kind, record_addr, grant_addr, owner, granter, requester, content_id, encrypted_hash, file_name, policy, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.EventID,
		ev.OpToken,
		string(ev.Kind),
		ev.RecordAddr,
		ev.GrantAddr,
		ev.Owner,
		ev.Granter,
		ev.Requester,
		ev.ContentID,
		ev.EncryptedHash,
		ev.FileName,
		ev.Policy,
		ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// EventsSince returns up to limit events with seq > after, in seq order.
// Indexers poll this with their last seen seq. limit <= 0 means no limit.
func (s *Store) EventsSince(ctx context.Context, after int64, limit int) ([]model.Event, error) {
	query := `
		SELECT ` + eventColumns + ` FROM events
		WHERE seq > ?
		ORDER BY seq ASC
	`
	args := []any{after}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var ev model.Event
		var kind string
		err := rows.Scan(
			&ev.Seq,
			&ev.EventID,
			&ev.OpToken,
			&kind,
			&ev.RecordAddr,
			&ev.GrantAddr,
			&ev.Owner,
			&ev.Granter,
			&ev.Requester,
			&ev.ContentID,
			&ev.EncryptedHash,
			&ev.FileName,
			&ev.Policy,
			&ev.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("read events: %w", err)
		}
		ev.Kind = model.EventKind(kind)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return out, nil
}

// LastEventSeq returns the highest assigned event seq, or 0 when the log
// is empty.
func (s *Store) LastEventSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last event seq: %w", err)
	}
	return seq, nil
}
