package models

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/utils"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed defaultChartOfAccounts.yaml
var defaultChartOfAccounts []byte

type chartOfAccountsFile struct {
	Accounts []NewAccount `yaml:"accounts"`
}

// LoadChartOfAccounts parses a yaml chart, e.g.
//
//	accounts:
//	  - code: "1000"
//	    name: Cash
//	    type: Asset
//	    cash_impact: true
func LoadChartOfAccounts(r io.Reader) ([]NewAccount, error) {
	var file chartOfAccountsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse chart of accounts: %w", err)
	}
	seen := map[string]bool{}
	for i := range file.Accounts {
		a := &file.Accounts[i]
		if err := a.validate(); err != nil {
			return nil, fmt.Errorf("account #%d: %w", i+1, err)
		}
		if seen[a.Code] {
			return nil, fmt.Errorf("account #%d: duplicate code %s", i+1, a.Code)
		}
		seen[a.Code] = true
	}
	return file.Accounts, nil
}

func DefaultChartOfAccounts() ([]NewAccount, error) {
	return LoadChartOfAccounts(bytes.NewReader(defaultChartOfAccounts))
}

// SeedChartOfAccounts creates the accounts whose code is not taken yet and returns how many were added.
func SeedChartOfAccounts(ctx context.Context, accounts []NewAccount) (int, error) {
	workbenchId, ok := utils.GetWorkbenchIdFromContext(ctx)
	if !ok || workbenchId == "" {
		return 0, errors.New("workbench id is required")
	}
	created := 0
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []string
		if err := tx.Model(&Account{}).Pluck("code", &existing).Error; err != nil {
			return err
		}
		taken := map[string]bool{}
		for _, c := range existing {
			taken[c] = true
		}
		for i := range accounts {
			if taken[accounts[i].Code] {
				continue
			}
			account, err := createAccountTx(tx, workbenchId, &accounts[i])
			if err != nil {
				return err
			}
			if err := LogChange(tx, Change{
				Action:     AuditActionCreateAccount,
				EntityType: EntityTypeAccount,
				EntityId:   account.ID,
				NewData:    account,
			}); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, utils.WrapPersistence("seed chart of accounts", err)
	}
	return created, nil
}
