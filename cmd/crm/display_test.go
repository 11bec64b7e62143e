package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/crm/internal/types"
)

func TestContactDiff(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	before := &types.Contact{ID: "c1", Name: "Ann", CreatedAt: created, LastUpdated: created}
	after := before.Clone()
	after.Name = "Ann Lee"
	after.Email = "ann@example.com"

	diff, err := contactDiff(before, after)
	require.NoError(t, err)
	assert.Contains(t, diff, "--- c1 (current)")
	assert.Contains(t, diff, "+++ c1 (merged)")
	assert.Contains(t, diff, `-  "name": "Ann",`)
	assert.Contains(t, diff, `+  "name": "Ann Lee",`)
	assert.Contains(t, diff, `+  "email": "ann@example.com",`)
	assert.NotContains(t, diff, `-  "id"`)
}

func TestContactDiffUnchanged(t *testing.T) {
	c := &types.Contact{ID: "c1", Name: "Ann"}
	diff, err := contactDiff(c, c.Clone())
	require.NoError(t, err)
	assert.Empty(t, diff)
}

func TestFormatContact(t *testing.T) {
	c := &types.Contact{ID: "c1", Name: "Ann", Phone: "+1 212 555 0100"}
	out := formatContact(c)
	assert.Contains(t, out, "c1")
	assert.Contains(t, out, "Ann")
	assert.Contains(t, out, "+1 212 555 0100")
}
