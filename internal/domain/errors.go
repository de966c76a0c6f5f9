package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInsufficientData fewer than two snapshots in the requested window.
	ErrInsufficientData = errors.New("not enough data")
	// ErrEmptyPortfolio portfolio total value is zero.
	ErrEmptyPortfolio = errors.New("portfolio is empty")
	// ErrNoConversionPath neither a direct nor a triangular route exists.
	ErrNoConversionPath = errors.New("no conversion path")
	// ErrOrderRejected exchange refused the order.
	ErrOrderRejected = errors.New("order rejected")
	// ErrInvalidAllocation allocation targets are malformed.
	ErrInvalidAllocation = errors.New("invalid allocation")
	// ErrNoAllocation no allocation targets configured.
	ErrNoAllocation = errors.New("allocation targets are not configured")
	// ErrSnapshotTooSoon previous snapshot is closer than the minimum interval.
	ErrSnapshotTooSoon = errors.New("snapshot taken too recently")
	// ErrSameAsset source and target assets are equal.
	ErrSameAsset = errors.New("source and target assets are the same")
	// ErrPriceUnavailable no usable price for the symbol.
	ErrPriceUnavailable = errors.New("price unavailable")
)

// OrderRejectedError carries the exchange-side reason for a refused order.
type OrderRejectedError struct {
	Symbol string
	Code   int64
	Reason string
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("order rejected for %s: code=%d: %s", e.Symbol, e.Code, e.Reason)
}

// Is makes errors.Is(err, ErrOrderRejected) hold for every rejection.
func (e *OrderRejectedError) Is(target error) bool {
	return target == ErrOrderRejected
}
