package projection

import (
	"sort"
	"time"

	"github.com/edunik/edunik-api/internal/models"
)

// Board is the two-bucket assignment view: Active sorted ascending by
// due date (soonest first), Past sorted descending (most recent first).
type Board struct {
	Active []models.Assignment `json:"active"`
	Past   []models.Assignment `json:"past"`
}

// BoardOptions parameterise the partition.
type BoardOptions struct {
	// Now is the partition instant; derived state must be a pure
	// function of it so the same snapshot always yields the same board.
	Now time.Time

	// Submitted marks assignment ids the viewer already submitted.
	Submitted map[string]bool

	// KeepLateOpen keeps a past-due assignment in the active bucket
	// when it allows late submission and the viewer has not submitted
	// yet. Set for student boards, unset for teacher/admin boards.
	KeepLateOpen bool
}

// BuildBoard partitions a full snapshot into active and past buckets.
// It is recomputed from scratch on every snapshot; there is no
// incremental patching.
func BuildBoard(items []models.Assignment, opts BoardOptions) Board {
	var board Board
	for _, a := range items {
		if isActive(a, opts) {
			board.Active = append(board.Active, a)
		} else {
			board.Past = append(board.Past, a)
		}
	}
	sort.SliceStable(board.Active, func(i, j int) bool {
		return board.Active[i].DueDate.Before(board.Active[j].DueDate)
	})
	sort.SliceStable(board.Past, func(i, j int) bool {
		return board.Past[i].DueDate.After(board.Past[j].DueDate)
	})
	return board
}

func isActive(a models.Assignment, opts BoardOptions) bool {
	if !a.DueDate.Before(opts.Now) {
		return true
	}
	if opts.KeepLateOpen && a.AllowLateSubmission && !opts.Submitted[a.ID] {
		return true
	}
	return false
}
