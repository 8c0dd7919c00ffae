package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest     = errors.New("invalid purchase request")
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrJournalWrite       = errors.New("journal write failure")
	ErrReservationRelease = errors.New("reservation release failure")
	ErrRequestInProgress  = errors.New("purchase request already in progress")
	// ErrReservationNotHeld means a ledger has no marker for the request at
	// all. Releasing a marker that is already RELEASED is not an error.
	ErrReservationNotHeld = errors.New("reservation not held")
)

// Resource names the part of a purchase that failed.
type Resource string

const (
	ResourceNameProduct  Resource = "product"
	ResourceNameCustomer Resource = "customer"
	ResourceNameStock    Resource = "stock"
	ResourceNameFunds    Resource = "funds"
	ResourceNameJournal  Resource = "journal"
	ResourceNameRequest  Resource = "request"
)

// PurchaseError is returned to callers of the purchase flow. Err is one of
// the sentinel errors above; Cause is the underlying failure, if any.
type PurchaseError struct {
	Resource Resource
	Err      error
	Cause    error
}

func NewPurchaseError(resource Resource, err, cause error) *PurchaseError {
	return &PurchaseError{Resource: resource, Err: err, Cause: cause}
}

func (e *PurchaseError) Error() string {
	if e.Cause == nil || errors.Is(e.Cause, e.Err) {
		return fmt.Sprintf("%s: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Resource, e.Err, e.Cause)
}

func (e *PurchaseError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// ResourceOf reports which resource a purchase failure concerns.
func ResourceOf(err error) (Resource, bool) {
	var pe *PurchaseError
	if errors.As(err, &pe) {
		return pe.Resource, true
	}
	return "", false
}
