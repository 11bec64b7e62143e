package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/crm/internal/events"
)

const pruneBatchSize = 1000

// StoreMergeEvent stores a new merge event
func (s *SQLiteStorage) StoreMergeEvent(ctx context.Context, event *events.MergeEvent) error {
	data, err := encodeJSON(event.Data, "{}")
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO merge_events (
			id, type, timestamp, contact_id, group_key, severity, message, data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.Type,
		event.Timestamp.UTC(),
		event.ContactID,
		event.GroupKey,
		event.Severity,
		event.Message,
		data,
	)
	if err != nil {
		return fmt.Errorf("failed to store merge event (type=%s, contact=%s): %w", event.Type, event.ContactID, err)
	}
	return nil
}

// GetMergeEvents retrieves events matching the given filter, newest first
func (s *SQLiteStorage) GetMergeEvents(ctx context.Context, filter events.EventFilter) ([]*events.MergeEvent, error) {
	query := `
		SELECT id, type, timestamp, contact_id, group_key, severity, message, data
		FROM merge_events
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.ContactID != "" {
		query += " AND contact_id = ?"
		args = append(args, filter.ContactID)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, filter.Severity)
	}
	if !filter.AfterTime.IsZero() {
		query += " AND timestamp > ?"
		args = append(args, filter.AfterTime.UTC())
	}
	if !filter.BeforeTime.IsZero() {
		query += " AND timestamp < ?"
		args = append(args, filter.BeforeTime.UTC())
	}

	query += " ORDER BY timestamp DESC, rowid DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query merge events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

// PruneMergeEvents deletes events older than before in batches and returns
// the number removed. With severities given only those severities are pruned.
func (s *SQLiteStorage) PruneMergeEvents(ctx context.Context, before time.Time, severities ...events.EventSeverity) (int, error) {
	where := "timestamp < ?"
	args := []interface{}{before.UTC()}
	if len(severities) > 0 {
		where += " AND severity IN (?" + strings.Repeat(", ?", len(severities)-1) + ")"
		for _, sev := range severities {
			args = append(args, sev)
		}
	}
	args = append(args, pruneBatchSize)

	query := fmt.Sprintf(`
		DELETE FROM merge_events
		WHERE id IN (
			SELECT id FROM merge_events
			WHERE %s
			ORDER BY timestamp ASC
			LIMIT ?
		)
	`, where)

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("failed to prune merge events: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to get rows affected: %w", err)
		}
		total += int(n)
		if n < pruneBatchSize {
			return total, nil
		}
	}
}

func scanEvents(rows *sql.Rows) ([]*events.MergeEvent, error) {
	var result []*events.MergeEvent

	for rows.Next() {
		var event events.MergeEvent
		var data string
		if err := rows.Scan(
			&event.ID,
			&event.Type,
			&event.Timestamp,
			&event.ContactID,
			&event.GroupKey,
			&event.Severity,
			&event.Message,
			&data,
		); err != nil {
			return nil, fmt.Errorf("failed to scan merge event: %w", err)
		}
		if err := decodeJSON("event data", data, &event.Data); err != nil {
			return nil, err
		}
		result = append(result, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating merge events: %w", err)
	}
	return result, nil
}
