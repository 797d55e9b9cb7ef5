// Package selector picks the next goal to work on.
package selector

import (
	"math"
	"sort"
	"time"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/catalog"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/requirements"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
)

// Selection is the outcome of one selection pass.
type Selection struct {
	// Candidate is the goal to start next, nil when nothing is eligible.
	Candidate *types.Goal
	// Eligible lists every goal whose requirements are met, best first.
	Eligible []*types.Goal
	// Locked lists goals whose requirements are unmet, with their checks.
	Locked []requirements.GoalCheck
	// CoolingDown lists LOCKED goals held back by a retry cool-down.
	CoolingDown []string
}

// SelectNext evaluates every goal that is not COMPLETED, FAILED or
// IN_PROGRESS and returns the best eligible one. progress is keyed by goal
// name; goals without a record count as NOT_STARTED. LOCKED goals still
// cooling down at now are skipped.
//
// Ordering: priority (critical first), then estimated duration ascending
// with unknown durations last, then catalog order.
func SelectNext(cat *catalog.Catalog, progress map[string]*types.GoalProgress, snap requirements.Snapshot, now time.Time) Selection {
	var sel Selection

	for _, goal := range cat.All() {
		if p, ok := progress[goal.Name]; ok {
			switch p.Status {
			case types.StatusCompleted, types.StatusFailed, types.StatusInProgress:
				continue
			}
			if p.CoolingDown(now) {
				sel.CoolingDown = append(sel.CoolingDown, goal.Name)
				continue
			}
		}

		check := requirements.CheckGoal(goal, snap)
		if !check.AllRequirementsMet {
			sel.Locked = append(sel.Locked, check)
			continue
		}
		sel.Eligible = append(sel.Eligible, goal)
	}

	sort.SliceStable(sel.Eligible, func(i, j int) bool {
		return less(cat, sel.Eligible[i], sel.Eligible[j])
	})
	if len(sel.Eligible) > 0 {
		sel.Candidate = sel.Eligible[0]
	}
	return sel
}

func less(cat *catalog.Catalog, a, b *types.Goal) bool {
	if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
		return ra > rb
	}
	if da, db := durationKey(a), durationKey(b); da != db {
		return da < db
	}
	return cat.Order(a.Name) < cat.Order(b.Name)
}

// durationKey sorts goals without an estimate after every estimated goal.
func durationKey(g *types.Goal) time.Duration {
	if g.EstimatedDuration == nil {
		return time.Duration(math.MaxInt64)
	}
	return *g.EstimatedDuration
}
