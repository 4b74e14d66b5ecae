// Package ledger holds the shared domain vocabulary for the double-entry
// accounting core: amounts, account classification, and the error taxonomy
// surfaced to posting sources.
package ledger

import "errors"

// Amount is a monetary value in minor currency units. All engine arithmetic
// is exact integer arithmetic; floating point is confined to presentation.
type Amount = int64

// Side represents the accounting position of a journal line.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// AccountType enumerates chart of accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// NormalSide returns the side on which an account type naturally increases.
// Assets and expenses grow on debit; liabilities, equity, and revenue on credit.
func NormalSide(t AccountType) Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// SignedDelta converts a debit/credit pair into the signed movement for an
// account, positive in the direction of its normal side.
func SignedDelta(t AccountType, debit, credit Amount) Amount {
	if NormalSide(t) == SideDebit {
		return debit - credit
	}
	return credit - debit
}

var (
	// ErrUnbalancedEntry indicates debit and credit totals differ.
	ErrUnbalancedEntry = errors.New("ledger: journal lines must balance")
	// ErrEmptyEntry indicates fewer than two lines.
	ErrEmptyEntry = errors.New("ledger: journal requires at least two lines")
	// ErrInvalidAccount indicates a referenced account is missing or inactive.
	ErrInvalidAccount = errors.New("ledger: account missing or inactive")
	// ErrEntryNotFound indicates the entry id is unknown.
	ErrEntryNotFound = errors.New("ledger: journal entry not found")
	// ErrAlreadyReversed indicates a reversal already references the entry.
	ErrAlreadyReversed = errors.New("ledger: entry already reversed")
	// ErrUnknownAccountKind indicates the registry cannot resolve a fixed kind.
	ErrUnknownAccountKind = errors.New("ledger: unknown account kind")
	// ErrSourceAlreadyLinked indicates the business event was already posted.
	ErrSourceAlreadyLinked = errors.New("ledger: source already linked")
)
