package workflow

import (
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/shopspring/decimal"
)

// postingLegs is the entry type of each leg of a confirmation posting.
// Money in credits the revenue account and debits the settlement account;
// money out debits the expense account and credits the settlement account.
var postingLegs = map[models.Direction]struct {
	Primary    models.EntryType
	Settlement models.EntryType
}{
	models.DirectionCredit: {Primary: models.EntryTypeCredit, Settlement: models.EntryTypeDebit},
	models.DirectionDebit:  {Primary: models.EntryTypeDebit, Settlement: models.EntryTypeCredit},
}

// compensatingLegs returns the entry types of a compensating posting for a
// signed delta on a record with the given direction. A positive delta repeats
// the original posting; a negative one mirrors it.
func compensatingLegs(direction models.Direction, delta decimal.Decimal) (primary models.EntryType, settlement models.EntryType) {
	legs := postingLegs[direction]
	if delta.IsNegative() {
		return legs.Primary.Opposite(), legs.Settlement.Opposite()
	}
	return legs.Primary, legs.Settlement
}

// primaryAccountType is where the primary leg lands when no account is given.
func primaryAccountType(direction models.Direction) models.AccountType {
	if direction == models.DirectionCredit {
		return models.AccountTypeRevenue
	}
	return models.AccountTypeExpense
}

// settlementCategory maps a payment type to the category of its settlement account.
func settlementCategory(paymentType models.PaymentType) string {
	if paymentType == models.PaymentTypeCash || paymentType == "" {
		return "cash"
	}
	return "bank"
}
