package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunik/edunik-api/internal/models"
)

func day(n int) time.Time {
	return time.Date(2026, 3, n, 12, 0, 0, 0, time.UTC)
}

func TestBuildBoard_PartitionAndOrder(t *testing.T) {
	now := day(10)
	items := []models.Assignment{
		{ID: "a", DueDate: day(12)},
		{ID: "b", DueDate: day(5)},
		{ID: "c", DueDate: day(11)},
		{ID: "d", DueDate: day(8)},
		{ID: "e", DueDate: day(20)},
	}

	board := BuildBoard(items, BoardOptions{Now: now})

	require.Len(t, board.Active, 3)
	assert.Equal(t, "c", board.Active[0].ID, "active is sorted soonest first")
	assert.Equal(t, "a", board.Active[1].ID)
	assert.Equal(t, "e", board.Active[2].ID)

	require.Len(t, board.Past, 2)
	assert.Equal(t, "d", board.Past[0].ID, "past is sorted most recent first")
	assert.Equal(t, "b", board.Past[1].ID)
}

func TestBuildBoard_DueExactlyNowIsActive(t *testing.T) {
	now := day(10)
	board := BuildBoard([]models.Assignment{{ID: "a", DueDate: now}}, BoardOptions{Now: now})
	require.Len(t, board.Active, 1)
	assert.Empty(t, board.Past)
}

func TestBuildBoard_LateOpenKeepsUnsubmittedActive(t *testing.T) {
	now := day(10)
	items := []models.Assignment{
		{ID: "late-open", DueDate: day(5), AllowLateSubmission: true},
		{ID: "late-done", DueDate: day(6), AllowLateSubmission: true},
		{ID: "closed", DueDate: day(7)},
	}

	board := BuildBoard(items, BoardOptions{
		Now:          now,
		KeepLateOpen: true,
		Submitted:    map[string]bool{"late-done": true},
	})

	require.Len(t, board.Active, 1)
	assert.Equal(t, "late-open", board.Active[0].ID)
	require.Len(t, board.Past, 2)
	assert.Equal(t, "closed", board.Past[0].ID)
	assert.Equal(t, "late-done", board.Past[1].ID)
}

func TestBuildBoard_TeacherViewIgnoresLateRule(t *testing.T) {
	now := day(10)
	items := []models.Assignment{
		{ID: "late-open", DueDate: day(5), AllowLateSubmission: true},
	}

	board := BuildBoard(items, BoardOptions{Now: now})

	assert.Empty(t, board.Active)
	require.Len(t, board.Past, 1)
}

func TestBuildBoard_Deterministic(t *testing.T) {
	now := day(10)
	items := []models.Assignment{
		{ID: "a", DueDate: day(12)},
		{ID: "b", DueDate: day(12)},
	}

	first := BuildBoard(items, BoardOptions{Now: now})
	second := BuildBoard(items, BoardOptions{Now: now})
	assert.Equal(t, first, second, "same snapshot and instant must yield the same board")
}
