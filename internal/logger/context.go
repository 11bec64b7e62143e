package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are added to every log record written with a context that
// carries them. A merge sets GroupKey and ContactID once and every step
// below it logs them without repeating.
type LogFields struct {
	GroupKey  *string // duplicate group match key
	ContactID *string // surviving contact
	CardID    *string // surviving conversation card
	Step      *string // executor step name
	Component string  // e.g. "crm.merge.executor"
}

// WithLogFields enriches context with structured log fields.
// Newer non-nil/non-empty values take precedence over existing ones.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.GroupKey != nil {
		result.GroupKey = new.GroupKey
	}
	if new.ContactID != nil {
		result.ContactID = new.ContactID
	}
	if new.CardID != nil {
		result.CardID = new.CardID
	}
	if new.Step != nil {
		result.Step = new.Step
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{ContactID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}
