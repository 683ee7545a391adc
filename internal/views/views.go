// Package views computes read-only projections over the domain stores'
// current snapshots. Nothing here writes; every figure is derivable from the
// cached lists and goes stale with them.
package views

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"condosync/internal/condo"
)

// Community bundles the stores the dashboard projections read from. Nil
// members are skipped, so a partial wiring still refreshes what it has.
type Community struct {
	Users       *condo.Users
	Debtors     *condo.Debtors
	Problems    *condo.Problems
	Packages    *condo.Packages
	Suggestions *condo.Suggestions
	Meetings    *condo.Meetings
}

// Refresh fetches every wired store concurrently. The first failure cancels
// the rest; stores that already fetched keep their new data.
func (c *Community) Refresh(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if c.Users != nil {
		g.Go(func() error { return c.Users.Fetch(ctx) })
	}
	if c.Debtors != nil {
		g.Go(func() error { return c.Debtors.Fetch(ctx) })
	}
	if c.Problems != nil {
		g.Go(func() error { return c.Problems.Fetch(ctx) })
	}
	if c.Packages != nil {
		g.Go(func() error { return c.Packages.Fetch(ctx) })
	}
	if c.Suggestions != nil {
		g.Go(func() error { return c.Suggestions.Fetch(ctx) })
	}
	if c.Meetings != nil {
		g.Go(func() error { return c.Meetings.Fetch(ctx) })
	}
	return g.Wait()
}

// DebtorTotals sums outstanding amounts per status.
func DebtorTotals(debtors []condo.Debtor) map[string]float64 {
	totals := make(map[string]float64)
	for _, d := range debtors {
		totals[d.Status] += d.Amount
	}
	return totals
}

// ProblemCounts tallies reports per status.
func ProblemCounts(problems []condo.Problem) map[string]int {
	counts := make(map[string]int)
	for _, p := range problems {
		counts[p.Status]++
	}
	return counts
}

// SuggestionLeaderboard returns the top n suggestions by like count, most
// liked first. Ties keep their snapshot order.
func SuggestionLeaderboard(suggestions []condo.Suggestion, n int) []condo.Suggestion {
	ranked := append([]condo.Suggestion(nil), suggestions...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].LikeCount > ranked[j].LikeCount
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Stats is the community dashboard summary.
type Stats struct {
	Residents          int
	OpenProblems       int
	PackagesWaiting    int
	PendingSuggestions int
	OutstandingDebt    float64
	UpcomingMeetings   int
}

// Stats aggregates the current snapshots into one dashboard summary.
func (c *Community) Stats() Stats {
	var s Stats
	if c.Users != nil {
		s.Residents = len(c.Users.ResidentIDs())
	}
	if c.Problems != nil {
		problems, _, _ := c.Problems.Snapshot()
		for _, p := range problems {
			if p.Status != condo.ProblemResolved {
				s.OpenProblems++
			}
		}
	}
	if c.Packages != nil {
		s.PackagesWaiting = len(c.Packages.Backlog())
	}
	if c.Suggestions != nil {
		suggestions, _, _ := c.Suggestions.Snapshot()
		for _, sg := range suggestions {
			if sg.Status == condo.SuggestionPending {
				s.PendingSuggestions++
			}
		}
	}
	if c.Debtors != nil {
		debtors, _, _ := c.Debtors.Snapshot()
		for _, d := range debtors {
			if d.Status != condo.DebtorResolved {
				s.OutstandingDebt += d.Amount
			}
		}
	}
	if c.Meetings != nil {
		meetings, _, _ := c.Meetings.Snapshot()
		s.UpcomingMeetings = len(meetings)
	}
	return s
}
