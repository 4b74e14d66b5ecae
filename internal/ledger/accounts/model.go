// Package accounts implements the chart of accounts registry: fixed control
// accounts seeded at setup plus party receivable/payable sub-accounts minted
// lazily on first transaction.
package accounts

import (
	"fmt"
	"time"

	"github.com/caravel-erp/caravel/internal/ledger"
)

// Kind identifies the role an account plays in posting logic.
type Kind string

const (
	KindCash               Kind = "CASH"
	KindBank               Kind = "BANK"
	KindInventory          Kind = "INVENTORY"
	KindOpeningEquity      Kind = "OPENING_EQUITY"
	KindSalesRevenue       Kind = "SALES_REVENUE"
	KindSalesReturns       Kind = "SALES_RETURNS"
	KindCOGS               Kind = "COGS"
	KindStockAdjustment    Kind = "STOCK_ADJUSTMENT"
	KindCustomerReceivable Kind = "CUSTOMER_RECEIVABLE"
	KindVendorPayable      Kind = "VENDOR_PAYABLE"
	KindExpense            Kind = "EXPENSE"
)

// PartyType distinguishes customer and vendor sub-accounts.
type PartyType string

const (
	PartyCustomer PartyType = "CUSTOMER"
	PartyVendor   PartyType = "VENDOR"
)

// Account models a chart of accounts node. Accounts are never deleted,
// only deactivated.
type Account struct {
	ID        int64
	Code      string
	Name      string
	Kind      Kind
	Type      ledger.AccountType
	PartyID   *int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalSide reports the side on which this account increases.
func (a Account) NormalSide() ledger.Side {
	return ledger.NormalSide(a.Type)
}

type fixedSpec struct {
	Code string
	Name string
	Type ledger.AccountType
}

// fixedChart is the seeded singleton chart. Expense categories are registered
// at runtime and are deliberately absent here.
var fixedChart = map[Kind]fixedSpec{
	KindCash:            {Code: "1000", Name: "Cash on Hand", Type: ledger.AccountTypeAsset},
	KindBank:            {Code: "1010", Name: "Bank", Type: ledger.AccountTypeAsset},
	KindInventory:       {Code: "1200", Name: "Inventory", Type: ledger.AccountTypeAsset},
	KindOpeningEquity:   {Code: "3000", Name: "Opening Balance Equity", Type: ledger.AccountTypeEquity},
	KindSalesRevenue:    {Code: "4000", Name: "Sales Revenue", Type: ledger.AccountTypeRevenue},
	KindSalesReturns:    {Code: "4100", Name: "Sales Returns", Type: ledger.AccountTypeRevenue},
	KindCOGS:            {Code: "5000", Name: "Cost of Goods Sold", Type: ledger.AccountTypeExpense},
	KindStockAdjustment: {Code: "5900", Name: "Inventory Adjustment", Type: ledger.AccountTypeExpense},
}

// KindType resolves the account type implied by a kind.
func KindType(kind Kind) (ledger.AccountType, error) {
	switch kind {
	case KindCustomerReceivable:
		return ledger.AccountTypeAsset, nil
	case KindVendorPayable:
		return ledger.AccountTypeLiability, nil
	case KindExpense:
		return ledger.AccountTypeExpense, nil
	}
	spec, ok := fixedChart[kind]
	if !ok {
		return "", ledger.ErrUnknownAccountKind
	}
	return spec.Type, nil
}

// PartyAccountCode derives the deterministic code of a party sub-account.
func PartyAccountCode(kind Kind, partyID int64) (string, error) {
	switch kind {
	case KindCustomerReceivable:
		return fmt.Sprintf("AR-%d", partyID), nil
	case KindVendorPayable:
		return fmt.Sprintf("AP-%d", partyID), nil
	}
	return "", ledger.ErrUnknownAccountKind
}

// ExpenseCategoryCode derives the stable code for a registered expense
// category.
func ExpenseCategoryCode(category string) string {
	return fmt.Sprintf("6-%s", category)
}
