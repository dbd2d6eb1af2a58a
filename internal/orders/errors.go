package orders

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input. Nothing was written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing product or order.
type NotFoundError struct {
	Kind string // "product" | "order"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// InsufficientStockError carries the stock observed when the decrement was refused.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d available", e.Available)
}

// TransactionError means the atomic unit could not commit. No partial state
// exists, so the caller may retry.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: transaction failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

func (e *TransactionError) Retryable() bool { return true }

// StockOverflow reports an increment that would push stock past MaxQuantity.
func StockOverflow(productID int64, current, added int) error {
	return &ValidationError{
		Field:  "quantity",
		Reason: fmt.Sprintf("adding %d to product %d (stock %d) exceeds %d", added, productID, current, MaxQuantity),
	}
}

func ProductNotFound(id int64) error { return &NotFoundError{Kind: "product", ID: id} }

func OrderNotFound(id int64) error { return &NotFoundError{Kind: "order", ID: id} }

// IsDomainError reports whether err belongs to the terminal, non-retryable kinds.
func IsDomainError(err error) bool {
	var v *ValidationError
	var nf *NotFoundError
	var is *InsufficientStockError
	return errors.As(err, &v) || errors.As(err, &nf) || errors.As(err, &is)
}

func asTxError(op string, err error) error {
	if err == nil || IsDomainError(err) {
		return err
	}
	var te *TransactionError
	if errors.As(err, &te) {
		return err
	}
	return &TransactionError{Op: op, Err: err}
}
