package projection

import "github.com/edunik/edunik-api/internal/models"

// ReduceResults collapses quiz result rows to exactly one per student,
// keeping the row with the highest score; on a tie the first-seen row
// wins. It is a pure reduction over the full set on every snapshot,
// not an incremental merge, so stale duplicates cannot accumulate.
func ReduceResults(rows []models.LiveQuizResult) []models.LiveQuizResult {
	index := make(map[string]int, len(rows))
	out := make([]models.LiveQuizResult, 0, len(rows))
	for _, row := range rows {
		i, ok := index[row.StudentID]
		if !ok {
			index[row.StudentID] = len(out)
			out = append(out, row)
			continue
		}
		if row.Score > out[i].Score {
			out[i] = row
		}
	}
	return out
}
