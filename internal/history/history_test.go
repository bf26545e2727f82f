package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/duelarena/backend/internal/session"
)

func TestFromSummary(t *testing.T) {
	ended := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	m := FromSummary(session.Summary{
		Code:    "ABC123",
		Winner:  "A",
		Reason:  "forfeit",
		ScoreA:  1,
		ScoreB:  0,
		Rounds:  1,
		EndedAt: ended,
	})

	assert.NotEqual(t, [16]byte{}, [16]byte(m.ID), "row id assigned")
	assert.Equal(t, "ABC123", m.SessionCode)
	assert.Equal(t, "A", m.Winner)
	assert.Equal(t, "forfeit", m.Reason)
	assert.Equal(t, 1, m.ScoreA)
	assert.Equal(t, 0, m.ScoreB)
	assert.Equal(t, 1, m.Rounds)
	assert.Equal(t, ended, m.EndedAt)
}
