package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunik/edunik-api/internal/models"
)

func TestReduceResults_KeepsHighestScorePerStudent(t *testing.T) {
	rows := []models.LiveQuizResult{
		{ID: "r1", StudentID: "x", Score: 5},
		{ID: "r2", StudentID: "y", Score: 3},
		{ID: "r3", StudentID: "x", Score: 8},
	}

	out := ReduceResults(rows)

	require.Len(t, out, 2)
	assert.Equal(t, "r3", out[0].ID)
	assert.Equal(t, 8.0, out[0].Score)
	assert.Equal(t, "r2", out[1].ID)
}

func TestReduceResults_TieKeepsFirstSeen(t *testing.T) {
	rows := []models.LiveQuizResult{
		{ID: "r1", StudentID: "x", Score: 6},
		{ID: "r2", StudentID: "x", Score: 6},
	}

	out := ReduceResults(rows)

	require.Len(t, out, 1)
	assert.Equal(t, "r1", out[0].ID)
}

func TestReduceResults_FullSetEveryTime(t *testing.T) {
	// Reducing a snapshot that no longer contains earlier duplicates
	// must not resurrect them: the reduction has no memory.
	first := ReduceResults([]models.LiveQuizResult{
		{ID: "r1", StudentID: "x", Score: 8},
	})
	second := ReduceResults([]models.LiveQuizResult{
		{ID: "r2", StudentID: "x", Score: 4},
	})

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, 4.0, second[0].Score)
}

func TestReduceResults_Empty(t *testing.T) {
	assert.Empty(t, ReduceResults(nil))
}
