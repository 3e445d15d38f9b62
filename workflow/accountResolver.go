package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
)

type postingAccounts struct {
	Primary    *models.Account
	Settlement *models.Account
}

type accountResolver struct {
	accounts []*models.Account
}

func newAccountResolver(ctx context.Context) (*accountResolver, error) {
	accounts, err := models.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]*models.Account, 0, len(accounts))
	for _, a := range accounts {
		if utils.DereferencePtr(a.IsActive, true) {
			active = append(active, a)
		}
	}
	return &accountResolver{accounts: active}, nil
}

func (r *accountResolver) byId(id int) (*models.Account, error) {
	for _, a := range r.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, utils.NewNotFoundError("account", id)
}

// primary resolves the account hit by the business side of the posting:
// explicit id, then the metadata hint, then the best category match.
func (r *accountResolver) primary(explicit *int, meta *models.TransactionMetadata) (*models.Account, error) {
	if explicit != nil {
		return r.byId(*explicit)
	}
	if meta.AccountId != nil {
		return r.byId(*meta.AccountId)
	}
	accountType := primaryAccountType(meta.Direction)
	var candidates []*models.Account
	for _, a := range r.accounts {
		if a.AccountType == accountType {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return nil, utils.NewValidationError("account_id", fmt.Sprintf("no active %s account to post to", accountType))
	}
	category := strings.TrimSpace(meta.Category)
	if category != "" {
		for _, a := range candidates {
			if strings.EqualFold(a.Category, category) {
				return a, nil
			}
		}
		for _, a := range candidates {
			if a.Category != "" && (utils.ContainsFold(category, a.Category) || utils.ContainsFold(a.Category, category)) {
				return a, nil
			}
		}
	}
	for _, a := range candidates {
		if a.Category == "general" || a.Category == "other income" {
			return a, nil
		}
	}
	return candidates[0], nil
}

// settlement resolves the cash-side account. A nil account with a nil error
// means the workbench has no cash-impacting account at all.
func (r *accountResolver) settlement(explicit *int, paymentType models.PaymentType) (*models.Account, error) {
	if explicit != nil {
		return r.byId(*explicit)
	}
	category := settlementCategory(paymentType)
	var fallback *models.Account
	for _, a := range r.accounts {
		if !a.CashImpact {
			continue
		}
		if a.Category == category {
			return a, nil
		}
		if fallback == nil {
			fallback = a
		}
	}
	return fallback, nil
}

func (r *accountResolver) resolve(primaryId *int, settlementId *int, meta *models.TransactionMetadata, paymentType models.PaymentType) (*postingAccounts, error) {
	primary, err := r.primary(primaryId, meta)
	if err != nil {
		return nil, err
	}
	settlement, err := r.settlement(settlementId, paymentType)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, utils.NewValidationError("counter_account_id", "no cash-impacting account to settle against")
	}
	if settlement.ID == primary.ID {
		return nil, utils.NewValidationError("counter_account_id", "must differ from account_id")
	}
	return &postingAccounts{Primary: primary, Settlement: settlement}, nil
}
