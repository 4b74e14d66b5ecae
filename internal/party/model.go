// Package party holds the customer and vendor master the ledger posts
// against. Each active party owns one sub-account in the chart; its stored
// balance is a derived cache over that account's postings, never a source of
// truth.
package party

import (
	"errors"
	"time"

	"github.com/caravel-erp/caravel/internal/ledger"
	"github.com/caravel-erp/caravel/internal/ledger/accounts"
)

// Sentinel errors for the party master.
var (
	ErrNotFound    = errors.New("party: not found")
	ErrInactive    = errors.New("party: inactive")
	ErrInvalidType = errors.New("party: type must be customer or vendor")
)

// Party represents a customer or vendor.
type Party struct {
	ID          int64              `json:"id"`
	Type        accounts.PartyType `json:"type"`
	Name        string             `json:"name"`
	Phone       string             `json:"phone,omitempty"`
	Address     string             `json:"address,omitempty"`
	CreditLimit ledger.Amount      `json:"creditLimit"`
	IsActive    bool               `json:"isActive"`

	// CachedBalance mirrors the party account's running balance as of
	// BalanceSyncedAt. Refreshed on read and by the reconcile job; reports
	// always recompute from postings.
	CachedBalance   ledger.Amount `json:"cachedBalance"`
	BalanceSyncedAt time.Time     `json:"balanceSyncedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AccountKind maps the party type to its ledger account kind.
func (p Party) AccountKind() (accounts.Kind, error) {
	switch p.Type {
	case accounts.PartyCustomer:
		return accounts.KindCustomerReceivable, nil
	case accounts.PartyVendor:
		return accounts.KindVendorPayable, nil
	default:
		return "", ErrInvalidType
	}
}
