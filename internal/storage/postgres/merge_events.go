package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/steveyegge/crm/internal/events"
)

// StoreMergeEvent stores a new merge event
func (p *PostgresStorage) StoreMergeEvent(ctx context.Context, event *events.MergeEvent) error {
	data := event.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO merge_events (
			id, type, timestamp, contact_id, group_key, severity, message, data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		event.ID,
		string(event.Type),
		event.Timestamp,
		event.ContactID,
		event.GroupKey,
		string(event.Severity),
		event.Message,
		dataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to store merge event (type=%s, contact=%s): %w", event.Type, event.ContactID, err)
	}
	return nil
}

// GetMergeEvents retrieves events matching the given filter, newest first
func (p *PostgresStorage) GetMergeEvents(ctx context.Context, filter events.EventFilter) ([]*events.MergeEvent, error) {
	query := `
		SELECT id, type, timestamp, contact_id, group_key, severity, message, data
		FROM merge_events
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.ContactID != "" {
		query += fmt.Sprintf(" AND contact_id = $%d", argNum)
		args = append(args, filter.ContactID)
		argNum++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argNum)
		args = append(args, string(filter.Type))
		argNum++
	}
	if filter.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argNum)
		args = append(args, string(filter.Severity))
		argNum++
	}
	if !filter.AfterTime.IsZero() {
		query += fmt.Sprintf(" AND timestamp > $%d", argNum)
		args = append(args, filter.AfterTime)
		argNum++
	}
	if !filter.BeforeTime.IsZero() {
		query += fmt.Sprintf(" AND timestamp < $%d", argNum)
		args = append(args, filter.BeforeTime)
		argNum++
	}

	query += " ORDER BY timestamp DESC, seq DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query merge events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// PruneMergeEvents deletes events older than before and returns the count.
// With severities given only those severities are pruned.
func (p *PostgresStorage) PruneMergeEvents(ctx context.Context, before time.Time, severities ...events.EventSeverity) (int, error) {
	query := `DELETE FROM merge_events WHERE timestamp < $1`
	args := []interface{}{before}
	if len(severities) > 0 {
		sevs := make([]string, len(severities))
		for i, s := range severities {
			sevs[i] = string(s)
		}
		query += ` AND severity = ANY($2)`
		args = append(args, sevs)
	}

	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune merge events: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanEvents(rows pgx.Rows) ([]*events.MergeEvent, error) {
	var result []*events.MergeEvent

	for rows.Next() {
		var event events.MergeEvent
		var eventType, severity string
		var data []byte
		if err := rows.Scan(
			&event.ID,
			&eventType,
			&event.Timestamp,
			&event.ContactID,
			&event.GroupKey,
			&severity,
			&event.Message,
			&data,
		); err != nil {
			return nil, fmt.Errorf("failed to scan merge event: %w", err)
		}
		event.Type = events.EventType(eventType)
		event.Severity = events.EventSeverity(severity)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &event.Data); err != nil {
				return nil, fmt.Errorf("failed to decode event data: %w", err)
			}
		}
		result = append(result, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating merge events: %w", err)
	}
	return result, nil
}
