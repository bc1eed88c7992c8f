package usecase

import (
	"context"
	"errors"
	"testing"

	"SigCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverFiltersIneligibleAccounts(t *testing.T) {
	accounts := accountsNamed("active", "inactive", "manual", "blocked", "nocreds")
	accounts[1].Active = false
	accounts[2].AutoTrading = false
	accounts[3].Risk.BlockedSymbols = []string{"BTCUSDT"}
	accounts[4].CredentialRef = ""

	resolver := NewResolver(&stubDirectory{accounts: accounts}, nil)

	eligible, err := resolver.ResolveEligibleAccounts(context.Background(), longSignal())

	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "active", eligible[0].ID)
}

func TestResolverReturnsStableOrder(t *testing.T) {
	resolver := NewResolver(&stubDirectory{accounts: accountsNamed("c", "a", "b")}, nil)

	eligible, err := resolver.ResolveEligibleAccounts(context.Background(), longSignal())

	require.NoError(t, err)
	ids := make([]string, 0, len(eligible))
	for _, a := range eligible {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestResolverDirectoryErrorFailsClosed(t *testing.T) {
	resolver := NewResolver(&stubDirectory{err: errors.New("connection refused")}, nil)

	eligible, err := resolver.ResolveEligibleAccounts(context.Background(), longSignal())

	require.Error(t, err)
	assert.Nil(t, eligible)
}

func TestResolverEmptyDirectoryIsNotAnError(t *testing.T) {
	resolver := NewResolver(&stubDirectory{}, nil)

	eligible, err := resolver.ResolveEligibleAccounts(context.Background(), longSignal())

	require.NoError(t, err)
	assert.Empty(t, eligible)
}

func TestRiskParamsBlocksIsCaseInsensitive(t *testing.T) {
	risk := models.RiskParams{BlockedSymbols: []string{"btcusdt"}}
	assert.True(t, risk.Blocks("BTCUSDT"))
	assert.False(t, risk.Blocks("ETHUSDT"))
}
