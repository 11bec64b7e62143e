package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/steveyegge/crm/internal/events"
)

// StoreMergeEvent stores a new merge event
func (s *MongoStorage) StoreMergeEvent(ctx context.Context, event *events.MergeEvent) error {
	if _, err := s.events.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to store merge event (type=%s, contact=%s): %w", event.Type, event.ContactID, err)
	}
	return nil
}

// GetMergeEvents retrieves events matching the given filter, newest first
func (s *MongoStorage) GetMergeEvents(ctx context.Context, filter events.EventFilter) ([]*events.MergeEvent, error) {
	query := bson.D{}
	if filter.ContactID != "" {
		query = append(query, bson.E{Key: "contact_id", Value: filter.ContactID})
	}
	if filter.Type != "" {
		query = append(query, bson.E{Key: "type", Value: string(filter.Type)})
	}
	if filter.Severity != "" {
		query = append(query, bson.E{Key: "severity", Value: string(filter.Severity)})
	}
	timeRange := bson.D{}
	if !filter.AfterTime.IsZero() {
		timeRange = append(timeRange, bson.E{Key: "$gt", Value: filter.AfterTime})
	}
	if !filter.BeforeTime.IsZero() {
		timeRange = append(timeRange, bson.E{Key: "$lt", Value: filter.BeforeTime})
	}
	if len(timeRange) > 0 {
		query = append(query, bson.E{Key: "timestamp", Value: timeRange})
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.events.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query merge events: %w", err)
	}
	var result []*events.MergeEvent
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to decode merge events: %w", err)
	}
	return result, nil
}

// PruneMergeEvents deletes events older than before and returns the count.
// With severities given only those severities are pruned.
func (s *MongoStorage) PruneMergeEvents(ctx context.Context, before time.Time, severities ...events.EventSeverity) (int, error) {
	query := bson.D{{Key: "timestamp", Value: bson.D{{Key: "$lt", Value: before}}}}
	if len(severities) > 0 {
		sevs := make(bson.A, len(severities))
		for i, sev := range severities {
			sevs[i] = string(sev)
		}
		query = append(query, bson.E{Key: "severity", Value: bson.D{{Key: "$in", Value: sevs}}})
	}

	result, err := s.events.DeleteMany(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prune merge events: %w", err)
	}
	return int(result.DeletedCount), nil
}
