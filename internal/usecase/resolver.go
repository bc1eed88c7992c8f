package usecase

import (
	"context"
	"fmt"
	"sort"

	"SigCast/internal/domain/models"
	drepo "SigCast/internal/domain/repository"
	"SigCast/pkg/logger"
)

// Resolver selects the accounts eligible to receive a signal. It fails
// closed: a directory error aborts the whole signal, because an empty
// list must always mean "no eligible accounts" and never "the store was
// down".
type Resolver struct {
	directory drepo.AccountDirectory
	log       *logger.Logger
}

func NewResolver(directory drepo.AccountDirectory, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{directory: directory, log: log}
}

// ResolveEligibleAccounts returns the accounts that may trade the signal,
// in stable account-id order so audit diffs are reproducible.
func (r *Resolver) ResolveEligibleAccounts(ctx context.Context, signal models.Signal) ([]models.TradingAccount, error) {
	accounts, err := r.directory.ListEligibleAccounts(ctx, signal)
	if err != nil {
		return nil, fmt.Errorf("account directory: %w", err)
	}

	eligible := make([]models.TradingAccount, 0, len(accounts))
	for _, a := range accounts {
		if !a.Active || !a.AutoTrading {
			continue
		}
		if a.Risk.Blocks(signal.Symbol) {
			r.log.Debug("account blocks instrument",
				logger.String("account_id", a.ID),
				logger.String("symbol", signal.Symbol))
			continue
		}
		if a.CredentialRef == "" {
			continue
		}
		eligible = append(eligible, a)
	}

	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	return eligible, nil
}
