package views

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condosync/internal/condo"
	"condosync/internal/identity"
	"condosync/internal/ledger"
	"condosync/internal/permission"
	"condosync/internal/remote/memory"
)

func seededCommunity(t *testing.T) (*Community, context.Context) {
	t.Helper()
	adapter := memory.New()
	deps := condo.Deps{
		Adapter:  adapter,
		Identity: identity.ContextProvider{},
		Ledger:   ledger.NewMembership(adapter, nil),
	}
	community := &Community{
		Users:       condo.NewUsers(deps),
		Debtors:     condo.NewDebtors(deps),
		Problems:    condo.NewProblems(deps),
		Packages:    condo.NewPackages(deps),
		Suggestions: condo.NewSuggestions(deps),
	}

	admin := identity.WithIdentity(context.Background(), identity.Identity{ID: "a1", Role: permission.RoleAdmin})
	manager := identity.WithIdentity(context.Background(), identity.Identity{ID: "m1", Role: permission.RoleManager})
	doorman := identity.WithIdentity(context.Background(), identity.Identity{ID: "d1", Role: permission.RoleDoorman})
	resident := identity.WithIdentity(context.Background(), identity.Identity{ID: "r1", Role: permission.RoleResident})

	_, err := community.Users.Create(admin, condo.User{Name: "Eve", Email: "eve@condo.test", Role: permission.RoleResident})
	require.NoError(t, err)

	_, err = community.Debtors.Open(manager, condo.Debtor{UserName: "Ana", Apartment: "402", Amount: 300})
	require.NoError(t, err)
	settled, err := community.Debtors.Open(manager, condo.Debtor{UserName: "Bia", Apartment: "107", Amount: 120})
	require.NoError(t, err)
	require.NoError(t, community.Debtors.SetStatus(manager, settled.ID, condo.DebtorResolved))

	_, err = community.Problems.Report(resident, condo.Problem{Title: "leak"})
	require.NoError(t, err)

	_, err = community.Packages.Register(doorman, condo.Package{RecipientName: "Bruno", Apartment: "105"})
	require.NoError(t, err)

	liked, err := community.Suggestions.Submit(resident, condo.Suggestion{Title: "bike rack"})
	require.NoError(t, err)
	require.NoError(t, community.Suggestions.Like(identity.WithIdentity(context.Background(),
		identity.Identity{ID: "r2", Role: permission.RoleResident}), liked.ID))
	_, err = community.Suggestions.Submit(resident, condo.Suggestion{Title: "gym hours"})
	require.NoError(t, err)

	return community, admin
}

func TestRefreshAndStats(t *testing.T) {
	community, ctx := seededCommunity(t)
	require.NoError(t, community.Refresh(ctx))

	stats := community.Stats()
	assert.Equal(t, 1, stats.Residents)
	assert.Equal(t, 1, stats.OpenProblems)
	assert.Equal(t, 1, stats.PackagesWaiting)
	assert.Equal(t, 2, stats.PendingSuggestions)
	assert.Equal(t, 300.0, stats.OutstandingDebt)
}

func TestDebtorTotals(t *testing.T) {
	totals := DebtorTotals([]condo.Debtor{
		{Status: condo.DebtorPending, Amount: 100},
		{Status: condo.DebtorPending, Amount: 50},
		{Status: condo.DebtorResolved, Amount: 75},
	})
	assert.Equal(t, 150.0, totals[condo.DebtorPending])
	assert.Equal(t, 75.0, totals[condo.DebtorResolved])
}

func TestProblemCounts(t *testing.T) {
	counts := ProblemCounts([]condo.Problem{
		{Status: condo.ProblemPending},
		{Status: condo.ProblemPending},
		{Status: condo.ProblemResolved},
	})
	assert.Equal(t, 2, counts[condo.ProblemPending])
	assert.Equal(t, 1, counts[condo.ProblemResolved])
}

func TestSuggestionLeaderboard(t *testing.T) {
	ranked := SuggestionLeaderboard([]condo.Suggestion{
		{Title: "a", LikeCount: 1},
		{Title: "b", LikeCount: 5},
		{Title: "c", LikeCount: 3},
	}, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "b", ranked[0].Title)
	assert.Equal(t, "c", ranked[1].Title)
}
