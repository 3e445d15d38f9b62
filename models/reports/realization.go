package reports

import (
	"sort"
	"time"

	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
)

const (
	uncategorized = "Uncategorized"
	unknownParty  = "Unknown"
)

type realization struct {
	Realized    decimal.Decimal
	Outstanding decimal.Decimal
}

// realize splits amount by payment status. A missing status counts as completed.
func realize(amount decimal.Decimal, meta *models.TransactionMetadata) realization {
	amount = utils.MaxDecimal(amount, decimal.Zero)
	if meta == nil {
		return realization{Realized: amount, Outstanding: decimal.Zero}
	}
	switch meta.PaymentStatus {
	case models.PaymentStatusPending:
		return realization{Realized: decimal.Zero, Outstanding: amount}
	case models.PaymentStatusPartial:
		paid := utils.MinDecimal(utils.MaxDecimal(meta.PaidAmount, decimal.Zero), amount)
		return realization{Realized: paid, Outstanding: amount.Sub(paid)}
	default:
		return realization{Realized: amount, Outstanding: decimal.Zero}
	}
}

// fact is one monetary fact counted exactly once: either the ledger legs of
// a posted record (its original posting plus compensations) or the amounts
// of an unposted record.
type fact struct {
	RecordId  int
	Record    *models.Record
	Direction models.Direction
	Posted    bool
	Date      time.Time
	Category  string
	PartyId   *int
	Tags      []string

	// Amount is the net settlement, realized plus outstanding.
	Amount decimal.Decimal
	realization
	// Settled is false when the posting never touched a cash-impacting account.
	Settled bool
	// CounterName is the account on the other side of the settlement leg.
	CounterName string
	// settlementType is the type of a non-cash settlement account, which keeps
	// the realized share of an unsettled fact.
	settlementType models.AccountType
}

// CashEffect is the signed realized movement of cash.
func (f *fact) CashEffect() decimal.Decimal {
	if !f.Settled {
		return decimal.Zero
	}
	if f.Direction == models.DirectionCredit {
		return f.Realized
	}
	return f.Realized.Neg()
}

func (f *fact) hasTag(tag string) bool {
	for _, t := range f.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// accountTotals is the signed (debit minus credit) balance per account type,
// excluding cash-impacting accounts whose value is carried by facts.
type accountTotals map[models.AccountType]decimal.Decimal

// plLine is a revenue or expense contribution with its date, for P&L and trends.
type plLine struct {
	RecordId    int
	AccountType models.AccountType
	Category    string
	Date        time.Time
	// Amount is positive for revenue earned or cost incurred.
	Amount decimal.Decimal
}

type derivation struct {
	Facts   []*fact
	Totals  accountTotals
	PLLines []plLine
}

// derive walks the ledger and the unposted records once. Records in the
// processed set contribute only through their ledger legs; everything else
// contributes through its own amounts. A posted record's fact is carried by
// its settlement legs and any cash-impacting legs; all other legs land in the
// account totals.
func (s *ledgerSnapshot) derive() *derivation {
	d := &derivation{Totals: accountTotals{}}
	factsByRecord := map[int]*fact{}
	settlements := s.settlementAccounts()
	var order []int

	for _, e := range s.Entries {
		account := s.Accounts[e.AccountId]
		origin := e.OriginRecordId()
		if account == nil {
			continue
		}
		settlementId, hasSettlement := settlements[origin]
		if account.CashImpact || hasSettlement && settlementId == account.ID {
			f := factsByRecord[origin]
			if f == nil {
				f = s.postedFact(origin, e)
				factsByRecord[origin] = f
				order = append(order, origin)
			}
			if account.CashImpact {
				f.Settled = true
			} else {
				f.settlementType = account.AccountType
			}
			if e.EntryType == settlementEntryType(f.Direction) {
				f.Amount = f.Amount.Add(e.Amount)
			} else {
				f.Amount = f.Amount.Sub(e.Amount)
			}
			if f.CounterName == "" && e.CounterAccountId != nil {
				if counter := s.Accounts[*e.CounterAccountId]; counter != nil {
					f.CounterName = counter.Name
				}
			}
			continue
		}

		d.Totals[account.AccountType] = d.Totals[account.AccountType].Add(e.Signed())
		if line, ok := ledgerPLLine(account, e); ok {
			line.RecordId = origin
			if r := s.record(origin); r != nil && r.Transaction() != nil {
				line.Category = r.Category()
			}
			d.PLLines = append(d.PLLines, line)
		}
	}

	for _, id := range order {
		f := factsByRecord[id]
		var meta *models.TransactionMetadata
		if f.Record != nil {
			meta = f.Record.Transaction()
		}
		f.realization = realize(f.Amount, meta)
		// realized money on a non-cash settlement account stays on that account
		if !f.Settled && f.settlementType != "" {
			realized := f.Realized
			if f.Direction == models.DirectionDebit {
				realized = realized.Neg()
			}
			d.Totals[f.settlementType] = d.Totals[f.settlementType].Add(realized)
		}
		d.Facts = append(d.Facts, f)
	}

	for _, r := range s.Records {
		if !s.isUnposted(r) {
			continue
		}
		f, line := s.unpostedFact(r)
		d.Facts = append(d.Facts, f)
		if line.AccountType == models.AccountTypeRevenue || line.AccountType == models.AccountTypeExpense {
			d.PLLines = append(d.PLLines, line)
		} else {
			signed := line.Amount
			if f.Direction == models.DirectionCredit {
				signed = signed.Neg()
			}
			d.Totals[line.AccountType] = d.Totals[line.AccountType].Add(signed)
		}
	}

	sort.SliceStable(d.Facts, func(i, j int) bool { return d.Facts[i].RecordId < d.Facts[j].RecordId })
	return d
}

// settlementAccounts maps each posted record to the account its confirmation
// posting settled against: the leg whose entry type is the settlement side of
// the record's direction.
func (s *ledgerSnapshot) settlementAccounts() map[int]int {
	out := map[int]int{}
	for _, e := range s.Entries {
		if e.AdjustsRecordId != nil || e.RecordId == nil {
			continue
		}
		origin := *e.RecordId
		if _, ok := out[origin]; ok {
			continue
		}
		r := s.record(origin)
		if r == nil || r.Transaction() == nil {
			continue
		}
		if e.EntryType == settlementEntryType(r.Transaction().Direction) {
			out[origin] = e.AccountId
		}
	}
	return out
}

func settlementEntryType(direction models.Direction) models.EntryType {
	if direction == models.DirectionCredit {
		return models.EntryTypeDebit
	}
	return models.EntryTypeCredit
}

func (s *ledgerSnapshot) postedFact(origin int, first *models.LedgerEntry) *fact {
	f := &fact{RecordId: origin, Posted: true, Date: first.TransactionDate, Category: first.Category}
	r := s.record(origin)
	if r == nil || r.Transaction() == nil {
		// orphaned legs: direction follows the cash leg
		f.Direction = models.DirectionDebit
		if first.EntryType == models.EntryTypeDebit {
			f.Direction = models.DirectionCredit
		}
		if f.Category == "" {
			f.Category = uncategorized
		}
		return f
	}
	meta := r.Transaction()
	f.Record = r
	f.Direction = meta.Direction
	f.Category = r.Category()
	f.PartyId = r.PartyId
	f.Tags = meta.Tags
	f.Date = r.EffectiveDate()
	return f
}

func ledgerPLLine(account *models.Account, e *models.LedgerEntry) (plLine, bool) {
	var amount decimal.Decimal
	switch account.AccountType {
	case models.AccountTypeRevenue:
		amount = e.Signed().Neg()
	case models.AccountTypeExpense:
		amount = e.Signed()
	default:
		return plLine{}, false
	}
	category := e.Category
	if category == "" {
		category = account.Category
	}
	if category == "" {
		category = uncategorized
	}
	return plLine{AccountType: account.AccountType, Category: category, Date: e.TransactionDate, Amount: amount}, true
}

// unpostedAmount is the draft's amount including adjustments pushed before posting.
func unpostedAmount(r *models.Record) decimal.Decimal {
	amount := r.GrossAmount
	if t := r.Transaction(); t != nil {
		amount = amount.Add(t.AdjustedDelta)
	}
	return utils.MaxDecimal(amount, decimal.Zero)
}

func (s *ledgerSnapshot) unpostedFact(r *models.Record) (*fact, plLine) {
	meta := r.Transaction()
	amount := unpostedAmount(r)
	f := &fact{
		RecordId:    r.ID,
		Record:      r,
		Direction:   meta.Direction,
		Date:        r.EffectiveDate(),
		Category:    r.Category(),
		PartyId:     r.PartyId,
		Tags:        meta.Tags,
		Amount:      amount,
		realization: realize(amount, meta),
		Settled:     true,
	}

	accountType := models.AccountTypeExpense
	if meta.Direction == models.DirectionCredit {
		accountType = models.AccountTypeRevenue
	}
	if meta.AccountId != nil {
		if hint, ok := s.Accounts[*meta.AccountId]; ok && !hint.CashImpact {
			accountType = hint.AccountType
			f.CounterName = hint.Name
		}
	}
	line := plLine{RecordId: r.ID, AccountType: accountType, Category: f.Category, Date: f.Date, Amount: amount}
	if accountType == models.AccountTypeRevenue && meta.Direction == models.DirectionDebit ||
		accountType == models.AccountTypeExpense && meta.Direction == models.DirectionCredit {
		line.Amount = amount.Neg()
	}
	return f, line
}
