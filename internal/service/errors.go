package service

import "errors"

// Purchase failures are expected, user-facing outcomes. They are detected
// before any write is staged, abort the transaction with no side effects,
// and are never retryable without the user changing state. Storage-level
// failures are wrapped separately and may be retried by the caller.
var (
	// ErrUserNotFound indicates the buyer's user document does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrItemNotFound indicates the item document does not exist.
	ErrItemNotFound = errors.New("shop item not found")

	// ErrItemUnavailable indicates the item is disabled.
	ErrItemUnavailable = errors.New("shop item not available")

	// ErrSoldOut indicates no stock remains, or the buyer hit the per-user
	// purchase limit (distinguished by the wrapped detail, not the code).
	ErrSoldOut = errors.New("shop item sold out")

	// ErrInsufficientGiftPoints indicates the buyer cannot cover a
	// gift-point price.
	ErrInsufficientGiftPoints = errors.New("insufficient gift points")

	// ErrInsufficientUsd indicates the buyer cannot cover a USD price.
	ErrInsufficientUsd = errors.New("insufficient usd balance")

	// ErrUnknownItemType indicates an item kind no purchase variant handles.
	ErrUnknownItemType = errors.New("unknown shop item type")
)

// IsPurchaseError reports whether err is one of the business-rule purchase
// failures, as opposed to a storage failure.
func IsPurchaseError(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrItemUnavailable) ||
		errors.Is(err, ErrSoldOut) ||
		errors.Is(err, ErrInsufficientGiftPoints) ||
		errors.Is(err, ErrInsufficientUsd) ||
		errors.Is(err, ErrUnknownItemType)
}
