package domain

import (
	"fmt"
	"strings"
)

// Side direction of an order or a rebalancing action.
type Side string

const (
	// SideBuy acquire the base asset.
	SideBuy Side = "BUY"
	// SideSell dispose of the base asset.
	SideSell Side = "SELL"
)

// String returns the string representation.
func (s Side) String() string {
	return string(s)
}

// IsValid checks if the Side value is valid.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// ParseSide converts a case-insensitive string into a Side.
func ParseSide(value string) (Side, error) {
	side := Side(strings.ToUpper(strings.TrimSpace(value)))
	if !side.IsValid() {
		return "", fmt.Errorf("unknown side %q", value)
	}

	return side, nil
}
