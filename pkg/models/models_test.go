package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestFoldActivity(t *testing.T) {
	rows := []ActivityRow{
		{ID: 10, LeadID: 1, LastContactAt: ts("2025-05-01T10:00:00Z"), MissedCallCount: 1},
		{ID: 11, LeadID: 1, LastContactAt: ts("2025-05-03T10:00:00Z"), LastMissedCallAt: ts("2025-04-01T10:00:00Z"), MissedCallCount: 2},
		{ID: 12, LeadID: 1, LastMissedCallAt: ts("2025-05-02T10:00:00Z")},
		{ID: 20, LeadID: 2},
	}

	folded := FoldActivity(rows)
	require.Len(t, folded, 2)

	a := folded[1]
	assert.Equal(t, int64(11), a.PrimaryInboxID)
	assert.Equal(t, *ts("2025-05-03T10:00:00Z"), *a.LastContactAt)
	assert.Equal(t, *ts("2025-05-02T10:00:00Z"), *a.LastMissedCallAt)
	assert.Equal(t, 3, a.MissedCallCount)

	b := folded[2]
	assert.Equal(t, int64(20), b.PrimaryInboxID)
	assert.Nil(t, b.LastContactAt)
}

func TestLeadCandidateRecency(t *testing.T) {
	created := *ts("2025-01-01T00:00:00Z")
	c := LeadCandidate{Lead: Lead{CreatedAt: created}}
	assert.Equal(t, created, c.Recency())

	c.Lead.LastMessageAt = ts("2025-02-01T00:00:00Z")
	assert.Equal(t, *ts("2025-02-01T00:00:00Z"), c.Recency())

	c.Activity.LastContactAt = ts("2025-03-01T00:00:00Z")
	assert.Equal(t, *ts("2025-03-01T00:00:00Z"), c.Recency())
}

func TestNewLeadRowDefaults(t *testing.T) {
	row := NewLeadRow(LeadCandidate{Lead: Lead{ID: 7, CustomerID: 1, Phone: "+15145550101"}})
	assert.Equal(t, "+15145550101", row.Name)
	assert.Equal(t, "unknown", row.Source)
	assert.Equal(t, "new", row.Status)
	assert.Nil(t, row.InboxLeadID)
}

func TestEnvelopeMarshalsEmptyItems(t *testing.T) {
	data, err := json.Marshal(Envelope{Intent: "find_lead", ResultType: ResultLeadList})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, []any{}, out["items"])
	assert.Equal(t, "lead_list", out["resultType"])
}

func TestErrorTaxonomy(t *testing.T) {
	cause := assert.AnError
	ext := NewExternalFailure("failed to load leads", cause)

	assert.True(t, IsExternal(ext))
	assert.ErrorIs(t, ext, cause)
	assert.Equal(t, "failed to load leads", UserMessage(ext))

	assert.True(t, IsValidation(NewValidationError("bad")))
	assert.True(t, IsResolution(NewResolutionError("who?")))
	assert.Equal(t, "Failed to answer the request.", UserMessage(assert.AnError))
}
