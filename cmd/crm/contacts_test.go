package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const importDoc = `{
  "contacts": [
    {"id": "c1", "name": "Ann", "phone": "+1 212 555 0100"},
    {"name": "Ann L", "phone": "212-555-0100", "tags": ["lead"]}
  ],
  "cards": [
    {"thread_id": "t1", "contact_id": "c1", "contact_number": "2125550100",
     "messages": [{"sender": "ann", "text": "hi", "timestamp": 1700000000000}]}
  ]
}`

func TestImportDocuments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	contacts, cards, err := importDocuments(ctx, s, []byte(importDoc))
	require.NoError(t, err)
	assert.Equal(t, 2, contacts)
	assert.Equal(t, 1, cards)

	all, err := s.ListContacts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	stored, err := s.ListCardsAcrossThreads(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotEmpty(t, stored[0].ID)
	require.Len(t, stored[0].Messages, 1)
	assert.Equal(t, int64(1700000000000), stored[0].Messages[0].Timestamp.ToMillis())

	// c1 already exists
	contacts, cards, err = importDocuments(ctx, s, []byte(importDoc))
	assert.Error(t, err)
	assert.Zero(t, contacts)
	assert.Zero(t, cards)
}

func TestImportDocumentsBadJSON(t *testing.T) {
	_, _, err := importDocuments(context.Background(), newTestStore(t), []byte("{"))
	assert.ErrorContains(t, err, "failed to parse import file")
}
